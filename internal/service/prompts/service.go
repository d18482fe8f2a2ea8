// Package prompts implements the registry's core operations: the append-only
// version ledger, the active-version pointer, and name resolution.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
	"github.com/danielwei123/llm-evals-platform/internal/repo"
)

// maxVersionAttempts bounds the optimistic allocation loop. Exhaustion
// surfaces repo.ErrConflict and the caller may retry the whole append.
const maxVersionAttempts = 3

type Service struct {
	prompts repo.PromptRepository
	tags    repo.TagRepository
}

func New(promptRepo repo.PromptRepository, tagRepo repo.TagRepository) *Service {
	if promptRepo == nil || tagRepo == nil {
		return nil
	}
	return &Service{prompts: promptRepo, tags: tagRepo}
}

type CreateInput struct {
	Name        string
	Description string
	Content     string
	Parameters  domain.Metadata
}

// Create persists a new prompt together with version 1 as its active
// version. A prompt never exists without a ledger entry.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Prompt, error) {
	prompt := domain.Prompt{
		ID:            domain.NewPromptID(),
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		ActiveVersion: 1,
	}
	first := domain.PromptVersion{
		ID:         domain.NewPromptVersionID(),
		PromptID:   prompt.ID,
		Version:    1,
		Content:    in.Content,
		Parameters: in.Parameters.Clone(),
	}
	if err := prompt.Validate(); err != nil {
		return domain.Prompt{}, err
	}
	if err := first.Validate(); err != nil {
		return domain.Prompt{}, err
	}
	if err := s.prompts.CreateWithFirstVersion(ctx, prompt, first); err != nil {
		return domain.Prompt{}, err
	}
	return s.prompts.Get(ctx, prompt.ID)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Prompt, error) {
	return s.prompts.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter repo.PromptFilter) ([]repo.PromptSummary, error) {
	return s.prompts.List(ctx, filter)
}

func (s *Service) UpdateDescription(ctx context.Context, id, description string) (domain.Prompt, error) {
	if err := s.prompts.UpdateDescription(ctx, id, strings.TrimSpace(description)); err != nil {
		return domain.Prompt{}, err
	}
	return s.prompts.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.prompts.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		// Deleting an absent prompt is a no-op.
		return nil
	}
	return err
}

func (s *Service) ListVersions(ctx context.Context, promptID string) ([]domain.PromptVersion, error) {
	if _, err := s.prompts.Get(ctx, promptID); err != nil {
		return nil, err
	}
	return s.prompts.ListVersions(ctx, promptID)
}

// AppendVersion allocates the next version number optimistically: read the
// current max, propose max+1, insert, and retry on a lost race. The unique
// constraint on (prompt_id, version) is the arbiter; no lock is held across
// the read-propose-insert cycle.
func (s *Service) AppendVersion(ctx context.Context, promptID, content string, parameters domain.Metadata) (domain.PromptVersion, error) {
	if _, err := s.prompts.Get(ctx, promptID); err != nil {
		return domain.PromptVersion{}, err
	}

	for attempt := 0; attempt < maxVersionAttempts; attempt++ {
		next, err := s.prompts.NextVersion(ctx, promptID)
		if err != nil {
			return domain.PromptVersion{}, err
		}
		version := domain.PromptVersion{
			ID:         domain.NewPromptVersionID(),
			PromptID:   promptID,
			Version:    next,
			Content:    content,
			Parameters: parameters.Clone(),
		}
		if err := version.Validate(); err != nil {
			return domain.PromptVersion{}, err
		}
		err = s.prompts.InsertVersion(ctx, version)
		if errors.Is(err, repo.ErrVersionTaken) {
			continue
		}
		if err != nil {
			return domain.PromptVersion{}, err
		}
		return s.prompts.GetVersion(ctx, promptID, next)
	}
	return domain.PromptVersion{}, fmt.Errorf("allocate prompt version after %d attempts: %w", maxVersionAttempts, repo.ErrConflict)
}

// Activate points the prompt at an existing version. Activating the already
// active version is a no-op success; a missing version is NotFound and
// leaves the pointer untouched.
func (s *Service) Activate(ctx context.Context, promptID string, version int) (domain.Prompt, error) {
	if _, err := s.prompts.GetVersion(ctx, promptID, version); err != nil {
		return domain.Prompt{}, err
	}
	if err := s.prompts.SetActiveVersion(ctx, promptID, version); err != nil {
		return domain.Prompt{}, err
	}
	return s.prompts.Get(ctx, promptID)
}

// Resolve returns the prompt named name and the ledger entry its active
// pointer designates. A dangling pointer is reported as ErrInconsistent,
// never silently masked.
func (s *Service) Resolve(ctx context.Context, name string) (domain.Prompt, domain.PromptVersion, error) {
	prompt, err := s.prompts.GetByName(ctx, name)
	if err != nil {
		return domain.Prompt{}, domain.PromptVersion{}, err
	}
	entry, err := s.prompts.GetVersion(ctx, prompt.ID, prompt.ActiveVersion)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Prompt{}, domain.PromptVersion{}, fmt.Errorf(
			"prompt %s active version %d has no ledger entry: %w",
			prompt.ID, prompt.ActiveVersion, repo.ErrInconsistent,
		)
	}
	if err != nil {
		return domain.Prompt{}, domain.PromptVersion{}, err
	}
	return prompt, entry, nil
}

func (s *Service) AttachTag(ctx context.Context, promptID, tagName string) (domain.Tag, error) {
	if _, err := s.prompts.Get(ctx, promptID); err != nil {
		return domain.Tag{}, err
	}
	return s.tags.Attach(ctx, promptID, tagName)
}

func (s *Service) DetachTag(ctx context.Context, promptID, tagName string) error {
	if _, err := s.prompts.Get(ctx, promptID); err != nil {
		return err
	}
	return s.tags.Detach(ctx, promptID, tagName)
}

func (s *Service) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.tags.List(ctx)
}

func (s *Service) ListPromptTags(ctx context.Context, promptID string) ([]domain.Tag, error) {
	return s.tags.ListForPrompt(ctx, promptID)
}
