package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodfinder/classifier"
	"foodfinder/config"
	"foodfinder/database"
	"foodfinder/logging"
	"foodfinder/server"
)

var version = "dev"

const (
	name           = "foodfinder-server"
	connectTimeout = 15 * time.Second
)

// main loads configuration, connects the store and serves the API until
// SIGINT or SIGTERM.
func main() {
	logging.SetDefaultFromEnv(name, version)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.SetDefaultStructuredLogger(name, version, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	store, err := database.Connect(connectCtx, cfg.Store)
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Warn("closing store failed", "error", err)
		}
	}()

	cls := classifier.New(cfg.Classifier.URL, cfg.Classifier.Timeout)

	if err := server.New(cfg, store, cls).Run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
