package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"marketlens/features/document"
	"marketlens/internal/app"
	"marketlens/internal/cli"
	"marketlens/internal/config"
	"marketlens/internal/logger"
)

func main() {
	log := logger.New(os.Stderr, slog.LevelWarn)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, log)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) int {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("failed to bootstrap", "error", err)
		return 1
	}
	defer deps.Close()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, log)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		return 1
	}
	defer a.Close()

	cli.Configure(cli.Services{
		Indexer:       a.Indexer,
		Researcher:    a.Research,
		Documents:     document.NewPostgresRepo(deps.DB),
		Chunks:        deps.VectorStore,
		Drafts:        a.Research,
		DefaultFolder: cfg.DocumentFolder,
	})

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
