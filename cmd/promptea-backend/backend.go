package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/core/graph"
	"github.com/sandeepseesa/promptea/internal/inference"
	"github.com/sandeepseesa/promptea/internal/inference/vectorstore"
	"github.com/sandeepseesa/promptea/internal/infrastructure/config"
	"github.com/sandeepseesa/promptea/internal/infrastructure/metrics"
)

// backend is the wired inference service
type backend struct {
	handler   http.Handler
	store     vectorstore.Store
	storeKind string
}

func (b *backend) Close() error { return b.store.Close() }

func build(ctx context.Context, cfg config.InferenceConfig, server config.ServerConfig, logger *zap.Logger) (*backend, error) {
	collector := metrics.NewCollector("promptea_backend")

	store, kind, err := openVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.GroqAPIKey == "" {
		logger.Warn("GROQ_API_KEY is not set; llama3 requests will fail")
	}
	if cfg.EmbeddingAPIKey == "" {
		logger.Warn("no embedding API key; document uploads will fail")
	}

	svc := inference.NewService(inference.Deps{
		Splitter: inference.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		Embedder: inference.NewEmbeddingModel(inference.EmbeddingConfig{
			APIKey:  cfg.EmbeddingAPIKey,
			BaseURL: cfg.EmbeddingBaseURL,
			Model:   cfg.EmbeddingModel,
			Timeout: cfg.CallTimeout,
		}),
		Store:    store,
		Models:   chatModels(cfg),
		Web:      inference.NewSerpAPI(cfg.SerpAPIKey, cfg.SerpAPIURL, cfg.CallTimeout, nil),
		TopK:     cfg.TopK,
		Logger:   logger.Named("inference"),
		Observer: collector,
	})

	handler := inference.NewRouter(svc, inference.RouterOptions{
		Logger:         logger.Named("http"),
		AllowedOrigins: server.AllowedOrigins,
		MaxUpload:      cfg.MaxUpload,
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
	})
	return &backend{handler: handler, store: store, storeKind: kind}, nil
}

// chatModels maps the model names a search may request to their clients.
// serpapi is answered by web search, not a chat model.
func chatModels(cfg config.InferenceConfig) map[string]inference.Completer {
	return map[string]inference.Completer{
		graph.ModelLlama3: inference.NewChatModel(inference.ChatConfig{
			APIKey:      cfg.GroqAPIKey,
			BaseURL:     cfg.GroqBaseURL,
			Model:       cfg.GroqModel,
			Temperature: cfg.Temperature,
			System:      inference.SystemPrompt,
			Timeout:     cfg.CallTimeout,
		}),
		graph.ModelGemini: inference.NewChatModel(inference.ChatConfig{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Timeout: cfg.CallTimeout,
		}),
	}
}

// openVectorStore connects to pgvector when a DSN is configured and keeps
// chunks in memory otherwise
func openVectorStore(ctx context.Context, cfg config.InferenceConfig) (vectorstore.Store, string, error) {
	if cfg.VectorDSN == "" {
		return vectorstore.NewMemory(cfg.EmbeddingDimensions), "memory", nil
	}
	pg, err := vectorstore.ConnectPgVector(ctx, cfg.VectorDSN, cfg.EmbeddingDimensions)
	if err != nil {
		return nil, "", err
	}
	return pg, "pgvector", nil
}
