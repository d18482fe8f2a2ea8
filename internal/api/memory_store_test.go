package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
	"github.com/danielwei123/llm-evals-platform/internal/repo"
)

// memoryStore implements all three repositories over maps so handler tests
// can exercise the full request path without Postgres.
type memoryStore struct {
	mu       sync.Mutex
	prompts  map[string]domain.Prompt
	versions map[string]map[int]domain.PromptVersion
	runs     map[string]domain.Run
	runOrder []string
	tags     map[string]domain.Tag
	attached map[string]map[string]bool
}

// memoryRunStore and memoryTagStore rename the colliding Get/List methods so
// the shared state can satisfy RunRepository and TagRepository as well.
type memoryRunStore struct{ *memoryStore }

func (s *memoryRunStore) Get(ctx context.Context, id string) (domain.Run, error) {
	return s.GetRun(ctx, id)
}

func (s *memoryRunStore) List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	return s.ListRuns(ctx, filter)
}

type memoryTagStore struct{ *memoryStore }

func (s *memoryTagStore) List(ctx context.Context) ([]domain.Tag, error) {
	return s.ListTags(ctx)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		prompts:  map[string]domain.Prompt{},
		versions: map[string]map[int]domain.PromptVersion{},
		runs:     map[string]domain.Run{},
		tags:     map[string]domain.Tag{},
		attached: map[string]map[string]bool{},
	}
}

func (s *memoryStore) CreateWithFirstVersion(_ context.Context, prompt domain.Prompt, first domain.PromptVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.prompts {
		if existing.Name == prompt.Name {
			return repo.ErrConflict
		}
	}
	prompt.CreatedAt = time.Now().UTC()
	first.CreatedAt = prompt.CreatedAt
	s.prompts[prompt.ID] = prompt
	s.versions[prompt.ID] = map[int]domain.PromptVersion{1: first}
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (domain.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prompt, ok := s.prompts[id]
	if !ok {
		return domain.Prompt{}, repo.ErrNotFound
	}
	return prompt, nil
}

func (s *memoryStore) GetByName(_ context.Context, name string) (domain.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, prompt := range s.prompts {
		if prompt.Name == name {
			return prompt, nil
		}
	}
	return domain.Prompt{}, repo.ErrNotFound
}

func (s *memoryStore) List(_ context.Context, filter repo.PromptFilter) ([]repo.PromptSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repo.PromptSummary, 0, len(s.prompts))
	for id, prompt := range s.prompts {
		if filter.Query != "" && !strings.Contains(strings.ToLower(prompt.Name), strings.ToLower(filter.Query)) {
			continue
		}
		summary := repo.PromptSummary{Prompt: prompt}
		if latest, ok := s.latestVersionLocked(id); ok {
			summary.LatestVersion = &latest
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prompt.Name < out[j].Prompt.Name })
	return out, nil
}

func (s *memoryStore) latestVersionLocked(promptID string) (domain.PromptVersion, bool) {
	max := 0
	for n := range s.versions[promptID] {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return domain.PromptVersion{}, false
	}
	return s.versions[promptID][max], true
}

func (s *memoryStore) UpdateDescription(_ context.Context, id, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prompt, ok := s.prompts[id]
	if !ok {
		return repo.ErrNotFound
	}
	prompt.Description = description
	s.prompts[id] = prompt
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prompts[id]; !ok {
		return repo.ErrNotFound
	}
	for _, run := range s.runs {
		if run.PromptID == id {
			return repo.ErrConflict
		}
	}
	delete(s.prompts, id)
	delete(s.versions, id)
	delete(s.attached, id)
	return nil
}

func (s *memoryStore) InsertVersion(_ context.Context, version domain.PromptVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, ok := s.versions[version.PromptID]
	if !ok {
		return repo.ErrNotFound
	}
	if _, taken := ledger[version.Version]; taken {
		return repo.ErrVersionTaken
	}
	version.CreatedAt = time.Now().UTC()
	ledger[version.Version] = version
	return nil
}

func (s *memoryStore) NextVersion(_ context.Context, promptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for n := range s.versions[promptID] {
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (s *memoryStore) GetVersion(_ context.Context, promptID string, version int) (domain.PromptVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.versions[promptID][version]
	if !ok {
		return domain.PromptVersion{}, repo.ErrNotFound
	}
	return entry, nil
}

func (s *memoryStore) ListVersions(_ context.Context, promptID string) ([]domain.PromptVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PromptVersion, 0, len(s.versions[promptID]))
	for _, entry := range s.versions[promptID] {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s *memoryStore) SetActiveVersion(_ context.Context, promptID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prompt, ok := s.prompts[promptID]
	if !ok {
		return repo.ErrNotFound
	}
	prompt.ActiveVersion = version
	s.prompts[promptID] = prompt
	return nil
}

func (s *memoryStore) Create(_ context.Context, run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.CreatedAt = time.Now().UTC()
	s.runs[run.ID] = run
	s.runOrder = append(s.runOrder, run.ID)
	return nil
}

func (s *memoryStore) GetRun(_ context.Context, id string) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.Run{}, repo.ErrNotFound
	}
	return run, nil
}

func (s *memoryStore) ListRuns(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Run, 0, len(s.runs))
	for i := len(s.runOrder) - 1; i >= 0; i-- {
		run := s.runs[s.runOrder[i]]
		if filter.PromptID != "" && run.PromptID != filter.PromptID {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *memoryStore) ClaimOldestQueued(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.runOrder {
		run := s.runs[id]
		if run.Status != domain.RunStatusQueued {
			continue
		}
		run.Status = domain.RunStatusRunning
		now := time.Now().UTC()
		run.StartedAt = &now
		s.runs[id] = run
		return id, true, nil
	}
	return "", false, nil
}

func (s *memoryStore) GetForExecution(_ context.Context, id string) (repo.ClaimedRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return repo.ClaimedRun{}, repo.ErrNotFound
	}
	entry, ok := s.versions[run.PromptID][run.PromptVersion]
	if !ok {
		return repo.ClaimedRun{}, repo.ErrNotFound
	}
	return repo.ClaimedRun{Run: run, Content: entry.Content}, nil
}

func (s *memoryStore) MarkSucceeded(_ context.Context, id, output string) error {
	return s.finishRun(id, domain.RunStatusSucceeded, output, "")
}

func (s *memoryStore) MarkFailed(_ context.Context, id, errMsg string) error {
	return s.finishRun(id, domain.RunStatusFailed, "", errMsg)
}

func (s *memoryStore) finishRun(id string, status domain.RunStatus, output, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status != domain.RunStatusRunning {
		return repo.ErrInconsistent
	}
	run.Status = status
	run.Output = output
	run.Error = errMsg
	now := time.Now().UTC()
	run.FinishedAt = &now
	s.runs[id] = run
	return nil
}

func (s *memoryStore) Requeue(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if run.Status != domain.RunStatusRunning {
		return repo.ErrConflict
	}
	run.Status = domain.RunStatusQueued
	run.StartedAt = nil
	run.Error = ""
	s.runs[id] = run
	return nil
}

func (s *memoryStore) Attach(_ context.Context, promptID, tagName string) (domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prompts[promptID]; !ok {
		return domain.Tag{}, repo.ErrNotFound
	}
	tag, ok := s.tags[tagName]
	if !ok {
		tag = domain.Tag{ID: domain.NewTagID(), Name: tagName, CreatedAt: time.Now().UTC()}
		s.tags[tagName] = tag
	}
	if s.attached[promptID] == nil {
		s.attached[promptID] = map[string]bool{}
	}
	s.attached[promptID][tagName] = true
	return tag, nil
}

func (s *memoryStore) Detach(_ context.Context, promptID, tagName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached[promptID][tagName] {
		return repo.ErrNotFound
	}
	delete(s.attached[promptID], tagName)
	return nil
}

func (s *memoryStore) ListTags(_ context.Context) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Tag, 0, len(s.tags))
	for _, tag := range s.tags {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryStore) ListForPrompt(_ context.Context, promptID string) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Tag, 0)
	for name := range s.attached[promptID] {
		out = append(out, s.tags[name])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
