package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"hybrid-rag/internal/app"
	"hybrid-rag/internal/cli"
	"hybrid-rag/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Logs go to stderr so command output stays clean.
	logger, err := app.NewLogger(cfg, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	cli.SetServices(a.Engine, a.AskService, a.Syncer)
	err = cli.Execute()
	_ = a.Close()
	if err != nil {
		os.Exit(1)
	}
}
