package domain

import "fmt"

var runTransitions = map[RunStatus][]RunStatus{
	RunStatusQueued:    {RunStatusRunning},
	RunStatusRunning:   {RunStatusSucceeded, RunStatusFailed},
	RunStatusSucceeded: {},
	RunStatusFailed:    {},
}

// CanTransition returns true when a run status transition is allowed.
func CanTransition(from, to RunStatus) bool {
	allowed, ok := runTransitions[from]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition ensures a run status transition moves strictly forward
// along queued -> running -> {succeeded, failed}.
func ValidateTransition(from, to RunStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("invalid run status transition")
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("run status transition %q -> %q not allowed", from, to)
	}
	return nil
}
