package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/studyvault/internal/app"
	"github.com/markdave123-py/studyvault/internal/config"
	"github.com/markdave123-py/studyvault/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer application.Close()

	serverErr := make(chan error, 1)
	go func() { serverErr <- application.Server.Start() }()

	log.Info("studyvault is running",
		"vector_backend", cfg.VectorBackend,
		"embed_provider", cfg.EmbedProvider,
		"collection", cfg.CollectionName,
	)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("server stopped", "error", err)
		}
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
