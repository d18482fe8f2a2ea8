// Package runs implements the run queue: enqueueing work against the
// currently active prompt version and the reads the API serves.
package runs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
	"github.com/danielwei123/llm-evals-platform/internal/repo"
)

type Service struct {
	runs    repo.RunRepository
	prompts repo.PromptRepository
}

func New(runRepo repo.RunRepository, promptRepo repo.PromptRepository) *Service {
	if runRepo == nil || promptRepo == nil {
		return nil
	}
	return &Service{runs: runRepo, prompts: promptRepo}
}

// Enqueue persists a queued run against the prompt's active version as
// resolved right now. The version number is copied into the run, so a later
// activation never changes an already-enqueued run's inputs. No work happens
// synchronously.
func (s *Service) Enqueue(ctx context.Context, promptName string, input domain.Metadata) (domain.Run, error) {
	prompt, err := s.prompts.GetByName(ctx, strings.TrimSpace(promptName))
	if err != nil {
		return domain.Run{}, err
	}

	run := domain.Run{
		ID:            domain.NewRunID(),
		PromptID:      prompt.ID,
		PromptVersion: prompt.ActiveVersion,
		Status:        domain.RunStatusQueued,
		Input:         input.Clone(),
	}
	if err := run.Validate(); err != nil {
		return domain.Run{}, err
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return domain.Run{}, err
	}
	return s.runs.Get(ctx, run.ID)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Run, error) {
	return s.runs.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	return s.runs.List(ctx, filter)
}

// Requeue resets a run stuck in running back to queued. This is the manual
// recovery path for a worker that crashed after claiming: there is no
// automatic lease expiry, an operator decides when a run is abandoned.
func (s *Service) Requeue(ctx context.Context, id string) (domain.Run, error) {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return domain.Run{}, err
	}
	if run.Status != domain.RunStatusRunning {
		return domain.Run{}, fmt.Errorf("run %s is %s, only running runs can be requeued: %w", id, run.Status, repo.ErrConflict)
	}
	if err := s.runs.Requeue(ctx, id); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.Run{}, fmt.Errorf("run %s left running state concurrently: %w", id, repo.ErrConflict)
		}
		return domain.Run{}, err
	}
	return s.runs.Get(ctx, id)
}
