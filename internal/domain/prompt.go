// Package domain holds the registry's entities and their invariants.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxPromptNameLen = 200
	maxTagNameLen    = 64
)

// Prompt is a named, versioned resource. Name and ID are immutable after
// creation; ActiveVersion must always reference an existing version entry.
type Prompt struct {
	ID            string
	Name          string
	Description   string
	CreatedAt     time.Time
	ActiveVersion int
}

func NewPromptID() string {
	return uuid.NewString()
}

func (p Prompt) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("prompt id is required")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return errors.New("prompt name is required")
	}
	if len(name) > maxPromptNameLen {
		return fmt.Errorf("prompt name exceeds %d characters", maxPromptNameLen)
	}
	if p.ActiveVersion < 1 {
		return errors.New("prompt active version must be >= 1")
	}
	return nil
}

// PromptVersion is one immutable content snapshot of a prompt. Versions for
// a prompt form the gapless sequence 1..N; rows are never updated or
// individually deleted.
type PromptVersion struct {
	ID         string
	PromptID   string
	Version    int
	Content    string
	Parameters Metadata
	CreatedAt  time.Time
}

func NewPromptVersionID() string {
	return uuid.NewString()
}

func (v PromptVersion) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return errors.New("version id is required")
	}
	if strings.TrimSpace(v.PromptID) == "" {
		return errors.New("version prompt id is required")
	}
	if v.Version < 1 {
		return errors.New("version number must be >= 1")
	}
	if v.Content == "" {
		return errors.New("version content is required")
	}
	return nil
}

// Tag is a label attachable to prompts. Names are unique.
type Tag struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

func NewTagID() string {
	return uuid.NewString()
}

func (t Tag) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("tag id is required")
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return errors.New("tag name is required")
	}
	if len(name) > maxTagNameLen {
		return fmt.Errorf("tag name exceeds %d characters", maxTagNameLen)
	}
	return nil
}
