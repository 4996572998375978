package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"marketlens/internal/app"
	"marketlens/internal/config"
	"marketlens/internal/logger"
)

func main() {
	// Initialize structured logger
	log := logger.New(os.Stdout, slog.LevelInfo)
	slog.SetDefault(log)

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 2. Infrastructure
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// 3. Services and routes
	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// 4. Worker
	consumer, err := a.StartIndexConsumer()
	if err != nil {
		slog.Error("failed to start index consumer", "error", err)
	} else {
		defer func() {
			consumer.Stop()
			<-consumer.StopChan
		}()
	}

	if err := a.EnqueueStartupIndex(); err != nil {
		slog.Warn("failed to enqueue startup index", "error", err)
	}

	// 5. Serve until the context is cancelled
	return a.Run(ctx)
}
