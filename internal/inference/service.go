package inference

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/core/graph"
	"github.com/sandeepseesa/promptea/internal/inference/vectorstore"
)

// NoChunksAnswer is returned when a document has nothing close to the query
const NoChunksAnswer = "No relevant chunks found for the given document."

// DefaultTopK is how many chunks a search retrieves when the request
// names no top_k
const DefaultTopK = 5

// SearchRequest is the body of a /search call
type SearchRequest struct {
	Query        string  `json:"query"`
	Model        string  `json:"model"`
	DocumentName *string `json:"documentName"`
	TopK         int     `json:"top_k" validate:"gte=0,lte=50"`
}

// SearchResponse is the reply of a /search call. Answer is a string for
// the chat models and a list of results for web search.
type SearchResponse struct {
	Query        string      `json:"query,omitempty"`
	DocumentUsed string      `json:"document_used,omitempty"`
	ModelUsed    string      `json:"model_used,omitempty"`
	Chunks       []string    `json:"chunks,omitempty"`
	Answer       interface{} `json:"answer"`
}

// ModelError reports a model the backend does not serve
type ModelError struct {
	Model        string
	WithDocument bool
}

func (e *ModelError) Error() string {
	scope := ""
	if e.WithDocument {
		scope = " for document-based query"
	}
	return fmt.Sprintf("Model '%s' not supported%s. Choose from: 'llama3', 'gemini', 'serpapi'.", e.Model, scope)
}

func (e *ModelError) Unwrap() error { return ErrUnknownModel }

// Observer receives backend measurements
type Observer interface {
	BackendCall(operation string, err error, d time.Duration)
	ChunksStored(n int)
}

type nopObserver struct{}

func (nopObserver) BackendCall(string, error, time.Duration) {}
func (nopObserver) ChunksStored(int)                         {}

// Deps wires a Service. Chat models are keyed by model name.
type Deps struct {
	Splitter *Splitter
	Embedder Embedder
	Store    vectorstore.Store
	Models   map[string]Completer
	Web      WebSearcher
	TopK     int
	Logger   *zap.Logger
	Observer Observer
}

// Service indexes documents and answers searches
// PRINCIPLES:
// - SRP: Orchestrates extraction, retrieval and generation
// - DIP: Models, embedder and vector store are injected
type Service struct {
	splitter *Splitter
	embedder Embedder
	store    vectorstore.Store
	models   map[string]Completer
	web      WebSearcher
	topK     int
	logger   *zap.Logger
	observer Observer

	mu        sync.Mutex
	uploading map[string]struct{}
}

// NewService creates a Service
func NewService(d Deps) *Service {
	s := &Service{
		splitter:  d.Splitter,
		embedder:  d.Embedder,
		store:     d.Store,
		models:    d.Models,
		web:       d.Web,
		topK:      d.TopK,
		logger:    d.Logger,
		observer:  d.Observer,
		uploading: make(map[string]struct{}),
	}
	if s.splitter == nil {
		s.splitter = NewSplitter(500, 75)
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

// Upload indexes a document under its file name and returns the number of
// chunks stored. A name already indexed is rejected with
// ErrDocumentExists.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (int, error) {
	name := filepath.Base(filename)
	if _, err := FormatOf(name); err != nil {
		return 0, err
	}

	release, err := s.claim(name)
	if err != nil {
		return 0, err
	}
	defer release()

	exists, err := s.store.Exists(ctx, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: %s", ErrDocumentExists, name)
	}

	text, err := ExtractText(name, data)
	if err != nil {
		return 0, err
	}
	if text == "" {
		return 0, ErrEmptyDocument
	}
	pieces := s.splitter.Split(text)

	vecs, err := s.embed(ctx, pieces)
	if err != nil {
		return 0, err
	}
	chunks := make([]vectorstore.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = vectorstore.Chunk{DocumentID: name, Text: p, Embedding: vecs[i]}
	}
	if err := s.store.Add(ctx, chunks); err != nil {
		return 0, err
	}

	s.observer.ChunksStored(len(chunks))
	s.logger.Info("document indexed",
		zap.String("document", name),
		zap.Int("bytes", len(data)),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// claim marks name as being uploaded; a concurrent upload of the same name
// counts as a duplicate
func (s *Service) claim(name string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.uploading[name]; busy {
		return nil, fmt.Errorf("%w: %s is being uploaded", ErrDocumentExists, name)
	}
	s.uploading[name] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.uploading, name)
		s.mu.Unlock()
	}, nil
}

// Search answers a question, grounded on a document when one is named.
// An unserved model is reported as a *ModelError.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	doc := ""
	if req.DocumentName != nil {
		doc = *req.DocumentName
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	var chunks []string
	if doc != "" {
		vecs, err := s.embed(ctx, []string{req.Query})
		if err != nil {
			return nil, err
		}
		matches, err := s.store.Query(ctx, doc, vecs[0], topK)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return &SearchResponse{Answer: NoChunksAnswer}, nil
		}
		chunks = make([]string, len(matches))
		for i, m := range matches {
			chunks[i] = m.Text
		}
	}

	answer, err := s.answer(ctx, req.Model, req.Query, chunks)
	if err != nil {
		var merr *ModelError
		if errors.As(err, &merr) {
			merr.WithDocument = doc != ""
		}
		return nil, err
	}

	resp := &SearchResponse{Query: req.Query, ModelUsed: req.Model, Answer: answer}
	if doc != "" {
		resp.DocumentUsed = doc
		resp.Chunks = chunks
	}
	return resp, nil
}

func (s *Service) answer(ctx context.Context, model, query string, chunks []string) (interface{}, error) {
	if model == graph.ModelSerpAPI {
		if s.web == nil {
			return nil, &ModelError{Model: model}
		}
		start := time.Now()
		results, err := s.web.Search(ctx, query)
		s.observer.BackendCall("web_search", err, time.Since(start))
		if err != nil {
			return nil, err
		}
		return results, nil
	}

	llm, ok := s.models[model]
	if !ok {
		return nil, &ModelError{Model: model}
	}
	start := time.Now()
	text, err := llm.Complete(ctx, BuildPrompt(query, chunks))
	s.observer.BackendCall("chat_"+model, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return text, nil
}

func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := s.embedder.Embed(ctx, texts)
	s.observer.BackendCall("embed", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}
