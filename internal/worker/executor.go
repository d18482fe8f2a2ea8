package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
)

// Executor runs a claimed run's work: the snapshotted prompt content plus
// the run's input, producing output text. The worker treats it as an opaque,
// possibly slow, possibly failing black box.
type Executor interface {
	Execute(ctx context.Context, promptContent string, input domain.Metadata) (string, error)
}

// StubExecutor is the deterministic default execution path: it echoes the
// prompt content with a JSON trailer describing the input. Cheap and stable
// while a real runner integration is pending.
type StubExecutor struct {
	Note string
}

func (e StubExecutor) Execute(_ context.Context, promptContent string, input domain.Metadata) (string, error) {
	note := e.Note
	if note == "" {
		note = "stub executor output"
	}
	payload := map[string]any{
		"note":  note,
		"input": input,
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode stub payload: %w", err)
	}
	return strings.TrimRight(promptContent, " \t\r\n") + "\n\n---\n" + string(raw), nil
}
