package models

import "testing"

func TestIsValidStepTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{StepStatusPending, StepStatusRequiresApproval, true},
		{StepStatusPending, StepStatusInProgress, true},
		{StepStatusInProgress, StepStatusCompleted, true},
		{StepStatusRequiresApproval, StepStatusCompleted, true},
		{StepStatusRequiresApproval, StepStatusFailed, true},
		{StepStatusRequiresApproval, StepStatusInProgress, true},

		{StepStatusCompleted, StepStatusFailed, false},
		{StepStatusFailed, StepStatusCompleted, false},
		{StepStatusCompleted, StepStatusCompleted, false},
		{StepStatusRequiresApproval, StepStatusPending, false},
		{"nonexistent", StepStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := IsValidStepTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsValidStepTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestAllStepStatusesHaveTransitionEntry(t *testing.T) {
	all := []string{StepStatusPending, StepStatusInProgress, StepStatusRequiresApproval, StepStatusCompleted, StepStatusFailed}
	for _, status := range all {
		if _, ok := ValidStepTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidStepTransitions map", status)
		}
	}
}

func TestTerminalStepStatuses(t *testing.T) {
	for _, status := range []string{StepStatusCompleted, StepStatusFailed} {
		if !IsTerminalStepStatus(status) {
			t.Errorf("%q should be terminal", status)
		}
		if len(ValidStepTransitions[status]) != 0 {
			t.Errorf("terminal status %q should have no transitions", status)
		}
	}
	if IsTerminalStepStatus(StepStatusRequiresApproval) {
		t.Errorf("requires_approval should not be terminal")
	}
}
