package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielwei123/llm-evals-platform/internal/api"
	"github.com/danielwei123/llm-evals-platform/internal/platform/env"
	"github.com/danielwei123/llm-evals-platform/internal/platform/httpserver"
	"github.com/danielwei123/llm-evals-platform/internal/platform/postgres"
	repopg "github.com/danielwei123/llm-evals-platform/internal/repo/postgres"
	promptsvc "github.com/danielwei123/llm-evals-platform/internal/service/prompts"
	runsvc "github.com/danielwei123/llm-evals-platform/internal/service/runs"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("REGISTRY_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("REGISTRY_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
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

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("registry"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"registry",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
		),
	)

	promptStore := repopg.NewPromptStore(db)
	runStore := repopg.NewRunStore(db)
	tagStore := repopg.NewTagStore(db)

	promptService := promptsvc.New(promptStore, tagStore)
	runService := runsvc.New(runStore, promptStore)

	registryAPI := api.New(logger, promptService, runService)
	if registryAPI == nil {
		logger.Error("api init failed")
		os.Exit(2)
	}
	registryAPI.Register(mux)

	cfg := httpserver.Config{
		Service:         "registry",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "registry", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
