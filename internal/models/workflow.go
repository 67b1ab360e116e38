package models

import "time"

// Workflow step statuses
const (
	StepStatusPending          = "pending"
	StepStatusInProgress       = "in_progress"
	StepStatusRequiresApproval = "requires_approval"
	StepStatusCompleted        = "completed"
	StepStatusFailed           = "failed"
)

const (
	StepOwnerHuman  = "human"
	StepOwnerSystem = "system"
)

// Step types
const (
	StepTypeApproval = "approval"
)

var ValidStepTransitions = map[string][]string{
	StepStatusPending:          {StepStatusInProgress, StepStatusRequiresApproval, StepStatusCompleted, StepStatusFailed},
	StepStatusInProgress:       {StepStatusRequiresApproval, StepStatusCompleted, StepStatusFailed},
	StepStatusRequiresApproval: {StepStatusInProgress, StepStatusCompleted, StepStatusFailed},
	StepStatusCompleted:        {},
	StepStatusFailed:           {},
}

func IsValidStepTransition(from, to string) bool {
	for _, s := range ValidStepTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStepStatus(status string) bool {
	return status == StepStatusCompleted || status == StepStatusFailed
}

type WorkflowStep struct {
	StepID       string         `json:"step_id"`
	TenantID     string         `json:"tenant_id"`
	ContextID    string         `json:"context_id"`
	StepType     string         `json:"step_type"`
	ToolName     string         `json:"tool_name"`
	Status       string         `json:"status"`
	Owner        string         `json:"owner"`
	AssignedTo   *string        `json:"assigned_to,omitempty"`
	RequestData  map[string]any `json:"request_data,omitempty"`
	ResponseData map[string]any `json:"response_data,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

func (s WorkflowStep) IsTerminal() bool {
	return IsTerminalStepStatus(s.Status)
}

// ObjectWorkflowMapping links the object an action applies to with its step.
type ObjectWorkflowMapping struct {
	ObjectType string    `json:"object_type"`
	ObjectID   string    `json:"object_id"`
	StepID     string    `json:"step_id"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}
