// Package main runs the canvas service: the HTTP API and change stream
// behind the workflow editor.
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
		// No logger yet
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.Must(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      svc.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting canvas service",
			zap.String("addr", cfg.Server.Addr),
			zap.String("backend", cfg.Backend.URL),
			zap.String("snapshot_driver", cfg.Snapshot.Driver),
			zap.String("resolve_mode", cfg.Canvas.ResolveMode))
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
