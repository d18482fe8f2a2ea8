package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielwei123/llm-evals-platform/internal/platform/postgres"
	repopg "github.com/danielwei123/llm-evals-platform/internal/repo/postgres"
	"github.com/danielwei123/llm-evals-platform/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := worker.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid worker config", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runStore := repopg.NewRunStore(db)
	executor := worker.StubExecutor{Note: cfg.ExecutorNote}

	w := worker.New(runStore, executor, logger, cfg.PollInterval)
	if w == nil {
		logger.Error("worker init failed")
		os.Exit(2)
	}

	logger.Info("worker started", "poll_interval", cfg.PollInterval.String())
	if err := w.Run(ctx); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
