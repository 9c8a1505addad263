// Package main runs the inference backend: document upload and indexing,
// retrieval and answer generation behind /upload and /search.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/infrastructure/config"
	"github.com/sandeepseesa/promptea/internal/infrastructure/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.Must(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := build(ctx, cfg.Inference, cfg.Server, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer b.Close()

	srv := &http.Server{
		Addr:         cfg.Inference.Addr,
		Handler:      b.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting inference backend",
			zap.String("addr", cfg.Inference.Addr),
			zap.String("vector_store", b.storeKind),
			zap.Int("chunk_size", cfg.Inference.ChunkSize),
			zap.Int("chunk_overlap", cfg.Inference.ChunkOverlap))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
