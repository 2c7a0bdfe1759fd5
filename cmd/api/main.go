package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citerag/internal/app"
	"citerag/internal/config"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions from ingested documents with hybrid BM25 and vector retrieval and numbered citations.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: citerag API
//   description: |
//     Retrieval-augmented question answering with citation tracking.
//     Ingest markdown or plain text documents, search them, and ask questions answered from the retrieved context.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer func() {
		_ = application.Close()
	}()

	// Start ingestion in background after router is ready
	if cfg.DocsPath != "" {
		go func() {
			slog.Info("Starting background ingestion", "root", cfg.DocsPath)
			stats, err := application.IngestDocs(ctx)
			if err != nil {
				slog.Error("Ingestion completed with errors", "error", err)
				return
			}
			slog.Info("Ingestion completed successfully",
				"docs", stats.DocsProcessed,
				"chunks", stats.ChunksEmbedded,
				"index_version", stats.IndexVersion)
		}()
	}
	if cfg.DocsWatch {
		go func() {
			if err := application.WatchDocs(ctx); err != nil {
				slog.Error("Document watcher stopped", "error", err)
			}
		}()
	}

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModel)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}
	slog.Info("API server stopped")
}
