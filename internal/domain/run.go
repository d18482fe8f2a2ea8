package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the run queue lifecycle state.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusQueued, RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Run is one request to execute a prompt's content. PromptVersion is a
// snapshot of the prompt's active version at enqueue time; later activations
// never change it.
type Run struct {
	ID            string
	PromptID      string
	PromptVersion int
	Status        RunStatus
	Input         Metadata
	Output        string
	Error         string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

func NewRunID() string {
	return uuid.NewString()
}

func (r Run) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(r.PromptID) == "" {
		return errors.New("run prompt id is required")
	}
	if r.PromptVersion < 1 {
		return errors.New("run prompt version must be >= 1")
	}
	if !r.Status.Valid() {
		return errors.New("run status is invalid")
	}
	return nil
}
