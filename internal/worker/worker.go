// Package worker polls the run queue, claims one run at a time and records
// its outcome. Any number of workers may run concurrently against the same
// database; the claim statement guarantees each run is handed to exactly one
// of them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielwei123/llm-evals-platform/internal/repo"
)

const DefaultPollInterval = time.Second

type Worker struct {
	runs         repo.RunRepository
	executor     Executor
	logger       *slog.Logger
	pollInterval time.Duration
}

func New(runRepo repo.RunRepository, executor Executor, logger *slog.Logger, pollInterval time.Duration) *Worker {
	if runRepo == nil || executor == nil || logger == nil {
		return nil
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Worker{
		runs:         runRepo,
		executor:     executor,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Run polls until ctx is cancelled. After a successful claim the next poll
// happens immediately so a burst of queued runs is drained before idling;
// the sleep only applies to an empty queue or a failed poll.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		id, ok, err := w.runs.ClaimOldestQueued(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("claim failed", "error", err)
			if !w.sleep(ctx) {
				return nil
			}
			continue
		}
		if !ok {
			if !w.sleep(ctx) {
				return nil
			}
			continue
		}

		w.Process(ctx, id)
	}
}

// Process executes one already-claimed run and writes its terminal state.
// Execution failures are recorded on the run, never propagated: a failing
// run must not take the worker loop down with it.
func (w *Worker) Process(ctx context.Context, id string) {
	claimed, err := w.runs.GetForExecution(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		// The run (or its prompt) was deleted after the claim.
		w.logger.Warn("claimed run vanished", "run_id", id)
		return
	}
	if err != nil {
		w.logger.Error("load claimed run", "run_id", id, "error", err)
		return
	}

	started := time.Now()
	output, execErr := w.execute(ctx, claimed)
	if execErr != nil {
		if err := w.runs.MarkFailed(ctx, id, execErr.Error()); err != nil {
			w.logger.Error("record run failure", "run_id", id, "error", err)
			return
		}
		w.logger.Info("run failed", "run_id", id, "duration_ms", time.Since(started).Milliseconds(), "error", execErr)
		return
	}

	if err := w.runs.MarkSucceeded(ctx, id, output); err != nil {
		w.logger.Error("record run success", "run_id", id, "error", err)
		return
	}
	w.logger.Info("run succeeded", "run_id", id, "duration_ms", time.Since(started).Milliseconds())
}

func (w *Worker) execute(ctx context.Context, claimed repo.ClaimedRun) (output string, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("executor panic: %v", v)
		}
	}()
	return w.executor.Execute(ctx, claimed.Content, claimed.Run.Input)
}

func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
