package domain

import "testing"

func TestRunTransitionsForwardOnly(t *testing.T) {
	allowed := [][2]RunStatus{
		{RunStatusQueued, RunStatusRunning},
		{RunStatusRunning, RunStatusSucceeded},
		{RunStatusRunning, RunStatusFailed},
	}
	for _, pair := range allowed {
		if err := ValidateTransition(pair[0], pair[1]); err != nil {
			t.Fatalf("ValidateTransition(%s, %s) err=%v", pair[0], pair[1], err)
		}
	}

	forbidden := [][2]RunStatus{
		{RunStatusQueued, RunStatusSucceeded},
		{RunStatusQueued, RunStatusFailed},
		{RunStatusRunning, RunStatusQueued},
		{RunStatusSucceeded, RunStatusRunning},
		{RunStatusSucceeded, RunStatusFailed},
		{RunStatusFailed, RunStatusQueued},
	}
	for _, pair := range forbidden {
		if err := ValidateTransition(pair[0], pair[1]); err == nil {
			t.Fatalf("ValidateTransition(%s, %s) expected error", pair[0], pair[1])
		}
	}
}

func TestValidateTransitionRejectsUnknownStatus(t *testing.T) {
	if err := ValidateTransition(RunStatus("archived"), RunStatusRunning); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestRunStatusTerminal(t *testing.T) {
	if RunStatusQueued.Terminal() || RunStatusRunning.Terminal() {
		t.Fatalf("queued/running must not be terminal")
	}
	if !RunStatusSucceeded.Terminal() || !RunStatusFailed.Terminal() {
		t.Fatalf("succeeded/failed must be terminal")
	}
}
