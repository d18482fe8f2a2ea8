package repo

import "errors"

var (
	// ErrNotFound reports a missing prompt, version, tag or run.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a duplicate name or an exhausted version
	// allocation; the caller may retry the whole operation.
	ErrConflict = errors.New("conflict")

	// ErrVersionTaken reports a lost allocation race for a specific version
	// number. It never crosses the service boundary: the append loop retries
	// and surfaces ErrConflict on exhaustion.
	ErrVersionTaken = errors.New("version number already taken")

	// ErrInconsistent reports an active pointer referencing a version entry
	// that does not exist. This indicates a data-integrity bug and must be
	// surfaced loudly.
	ErrInconsistent = errors.New("inconsistent registry state")
)
