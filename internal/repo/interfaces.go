// Package repo defines the storage contracts the services depend on, plus
// the sentinel errors stores translate driver failures into.
package repo

import (
	"context"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
)

type PromptFilter struct {
	Query  string
	Limit  int
	Offset int
}

type RunFilter struct {
	PromptID string
	Limit    int
	Offset   int
}

// PromptSummary is a prompt listed together with its newest version entry.
type PromptSummary struct {
	Prompt        domain.Prompt
	LatestVersion *domain.PromptVersion
}

// PromptRepository manages prompts and their immutable version ledger.
type PromptRepository interface {
	// CreateWithFirstVersion persists the prompt and version 1 atomically;
	// a prompt never exists without at least one version entry.
	CreateWithFirstVersion(ctx context.Context, prompt domain.Prompt, first domain.PromptVersion) error
	Get(ctx context.Context, id string) (domain.Prompt, error)
	GetByName(ctx context.Context, name string) (domain.Prompt, error)
	List(ctx context.Context, filter PromptFilter) ([]PromptSummary, error)
	UpdateDescription(ctx context.Context, id, description string) error
	Delete(ctx context.Context, id string) error

	// InsertVersion appends one ledger entry; a duplicate
	// (prompt_id, version) surfaces ErrVersionTaken.
	InsertVersion(ctx context.Context, version domain.PromptVersion) error
	NextVersion(ctx context.Context, promptID string) (int, error)
	GetVersion(ctx context.Context, promptID string, version int) (domain.PromptVersion, error)
	ListVersions(ctx context.Context, promptID string) ([]domain.PromptVersion, error)
	SetActiveVersion(ctx context.Context, promptID string, version int) error
}

// ClaimedRun is everything the worker needs to execute a claimed run: the
// run row joined with the immutable version content it snapshotted.
type ClaimedRun struct {
	Run     domain.Run
	Content string
}

// RunRepository manages the run queue.
type RunRepository interface {
	Create(ctx context.Context, run domain.Run) error
	Get(ctx context.Context, id string) (domain.Run, error)
	List(ctx context.Context, filter RunFilter) ([]domain.Run, error)

	// ClaimOldestQueued atomically transitions the oldest queued run to
	// running and returns its id. ok=false means an empty queue, which is a
	// normal condition and not an error. Runs already being claimed by a
	// concurrent worker are skipped, never waited on.
	ClaimOldestQueued(ctx context.Context) (id string, ok bool, err error)

	// GetForExecution loads a claimed run joined with its version content.
	GetForExecution(ctx context.Context, id string) (ClaimedRun, error)

	// MarkSucceeded and MarkFailed write the terminal outcome of a run the
	// calling worker claimed. A run no longer in running surfaces
	// ErrInconsistent.
	MarkSucceeded(ctx context.Context, id, output string) error
	MarkFailed(ctx context.Context, id, errMsg string) error

	// Requeue resets a stuck running run back to queued. Operator recovery
	// for worker crashes; terminal runs are refused with ErrConflict.
	Requeue(ctx context.Context, id string) error
}

// TagRepository manages tags and their prompt attachments.
type TagRepository interface {
	Attach(ctx context.Context, promptID, tagName string) (domain.Tag, error)
	Detach(ctx context.Context, promptID, tagName string) error
	List(ctx context.Context) ([]domain.Tag, error)
	ListForPrompt(ctx context.Context, promptID string) ([]domain.Tag, error)
}
