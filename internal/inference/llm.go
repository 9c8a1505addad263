package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Completer answers a prompt
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors, one per text, in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SystemPrompt frames the chat completions of the Groq model
const SystemPrompt = "You are a helpful assistant."

// ChatConfig configures an OpenAI-compatible chat model
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	// System is sent as the system message when set
	System  string
	Timeout time.Duration
}

// ChatModel is a Completer backed by any OpenAI-compatible endpoint
// (Groq, Gemini's compatibility layer)
type ChatModel struct {
	client *openai.Client
	cfg    ChatConfig
}

// NewChatModel creates a chat model client
func NewChatModel(cfg ChatConfig) *ChatModel {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &ChatModel{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

// Complete sends prompt as the user message
func (m *ChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	var messages []openai.ChatCompletionMessage
	if m.cfg.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.cfg.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.cfg.Model,
		Messages:    messages,
		Temperature: m.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// EmbeddingConfig configures an OpenAI-compatible embedding model
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// BatchSize bounds the inputs of one request
	BatchSize int
	Timeout   time.Duration
}

// EmbeddingModel is an Embedder backed by an OpenAI-compatible endpoint
type EmbeddingModel struct {
	client *openai.Client
	cfg    EmbeddingConfig
}

// NewEmbeddingModel creates an embedding client
func NewEmbeddingModel(cfg EmbeddingConfig) *EmbeddingModel {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &EmbeddingModel{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

// Embed embeds texts in batches
func (m *EmbeddingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := m.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (m *EmbeddingModel) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}
	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(m.cfg.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// BuildPrompt frames a question with the retrieved context, if any
func BuildPrompt(query string, chunks []string) string {
	context := strings.Join(chunks, "\n")
	scope := ""
	if context != "" {
		scope = " based only on the provided document content"
	}
	return fmt.Sprintf("Answer the following question%s:\n\n%s\n\nQuestion: %s\nAnswer:", scope, context, query)
}
