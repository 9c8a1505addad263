package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/adapters/backend"
	"github.com/sandeepseesa/promptea/internal/adapters/httpapi"
	canvasrepo "github.com/sandeepseesa/promptea/internal/adapters/repository/canvas"
	"github.com/sandeepseesa/promptea/internal/adapters/repository/memory"
	"github.com/sandeepseesa/promptea/internal/adapters/repository/postgres"
	"github.com/sandeepseesa/promptea/internal/adapters/repository/sqlite"
	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/app/services"
	"github.com/sandeepseesa/promptea/internal/app/usecases"
	"github.com/sandeepseesa/promptea/internal/core/snapshot"
	"github.com/sandeepseesa/promptea/internal/infrastructure/config"
	"github.com/sandeepseesa/promptea/internal/infrastructure/metrics"
	"github.com/sandeepseesa/promptea/pkg/serialization"
)

// app is the wired canvas service
type app struct {
	handler http.Handler
	closers []io.Closer
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// saver is a snapshot.Saver holding resources
type saver interface {
	snapshot.Saver
	io.Closer
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	collector := metrics.NewCollector("promptea")

	client := backend.NewClient(backend.Config{
		BaseURL:      cfg.Backend.URL,
		Timeout:      cfg.Backend.Timeout,
		FailureRatio: cfg.Backend.BreakerFailureRatio,
		MinRequests:  cfg.Backend.BreakerMinRequests,
		OpenTimeout:  cfg.Backend.BreakerOpenTimeout,
	},
		backend.WithLogger(logger.Named("backend")),
		backend.WithObserver(collector),
	)

	store, err := openSnapshots(ctx, cfg.Snapshot)
	if err != nil {
		return nil, err
	}

	runner := usecases.NewRunner(client,
		usecases.WithResolveMode(dto.ResolveMode(cfg.Canvas.ResolveMode)),
		usecases.WithRequestTimeout(cfg.Backend.Timeout),
		usecases.WithRunnerLogger(logger.Named("runner")),
		usecases.WithRunnerRecorder(collector),
	)
	controller := usecases.NewController(runner, client,
		usecases.WithLogger(logger.Named("controller")),
		usecases.WithRecorder(collector),
	)

	server := httpapi.NewServer(httpapi.Deps{
		Workspaces:     canvasrepo.NewInMemoryWorkspaceRepository(),
		Controller:     controller,
		Snapshots:      services.NewSnapshotService(store),
		Logger:         logger.Named("http"),
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		UploadLimit:    cfg.Inference.MaxUpload,
	})
	return &app{handler: server.Routes(), closers: []io.Closer{store}}, nil
}

// openSnapshots returns the snapshot saver cfg.Driver names
func openSnapshots(ctx context.Context, cfg config.SnapshotConfig) (saver, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	serializer, err := serialization.FromOptions(cfg.Codec, cfg.Compression, key)
	if err != nil {
		return nil, fmt.Errorf("snapshot serializer: %w", err)
	}

	switch cfg.Driver {
	case "", "memory":
		return memory.NewInMemorySaver(memory.InMemoryConfig{
			TTL:          cfg.TTL,
			MaxPerCanvas: cfg.MaxPerCanvas,
			Serializer:   serializer,
		}), nil
	case "sqlite":
		return sqlite.Open(ctx, cfg.DSN, serializer)
	case "postgres":
		return postgres.Connect(ctx, cfg.DSN, serializer)
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", cfg.Driver)
	}
}
