package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hybrid-rag/internal/app"
	"hybrid-rag/internal/config"
	"hybrid-rag/internal/http"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API provides hybrid (dense vector plus keyword) retrieval over ingested documents.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Hybrid RAG API
//   description: |
//     Retrieval API combining semantic-density chunking, a dense vector index and an inverted keyword index.
//     Documents can be ingested as JSON, uploaded as .txt or .pdf files, or synced from a corpus directory.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := app.NewLogger(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel, "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()
	slog.Info("Retrieval engine initialized",
		"vector_backend", cfg.VectorBackend,
		"persist_backend", cfg.PersistBackend,
		"alpha", cfg.HybridAlpha,
		"min_similarity", cfg.MinSimilarity)

	router := http.NewRouter(&http.Deps{
		Engine:      a.Engine,
		AskService:  a.AskService,
		Tracker:     a.Tracker,
		RateLimiter: http.NewRateLimiter(http.RateLimitConfig{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}),
		DefaultTopK: cfg.DefaultTopK,
	})

	// Sync the corpus in background after router is ready
	if a.Syncer != nil {
		go func() {
			slog.Info("Starting background corpus sync", "dir", cfg.CorpusDir)
			report, err := a.Syncer.SyncAll(ctx)
			if err != nil {
				slog.Error("Corpus sync completed with errors", "error", err, "failed", report.Failed)
				return
			}
			slog.Info("Corpus sync completed successfully",
				"scanned", report.Scanned,
				"indexed", report.Indexed,
				"unchanged", report.Unchanged,
				"removed", report.Removed)
		}()
	}

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}
