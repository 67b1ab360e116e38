package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/events"
	"github.com/adcp/salesagent/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApprovalHook runs when a step created by the named tool is approved. A
// returned error fails the step instead of completing it.
type ApprovalHook func(ctx context.Context, step models.WorkflowStep) error

// StepRequest describes a step that waits for a human.
type StepRequest struct {
	TenantID    string
	PrincipalID string
	ContextID   string
	StepType    string
	ToolName    string
	Owner       string
	RequestData map[string]any
	ObjectType  string
	ObjectID    string
	Action      string
}

type WorkflowService struct {
	steps     workflowStore
	audit     auditStore
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time

	mu    sync.RWMutex
	hooks map[string]ApprovalHook
}

func NewWorkflowService(steps workflowStore, audit auditStore, publisher events.Publisher, log *zap.Logger) *WorkflowService {
	return &WorkflowService{
		steps:     steps,
		audit:     audit,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		hooks:     make(map[string]ApprovalHook),
	}
}

func (s *WorkflowService) RegisterHook(toolName string, hook ApprovalHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[toolName] = hook
}

func (s *WorkflowService) hook(toolName string) ApprovalHook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks[toolName]
}

// CreateStep records a step in requires_approval and links it to the object
// it gates.
func (s *WorkflowService) CreateStep(ctx context.Context, req StepRequest) (*models.WorkflowStep, error) {
	if req.ToolName == "" {
		return nil, errs.Validation("tool_name_required", "workflow step needs a tool name")
	}
	if req.TenantID == "" {
		return nil, errs.Tenant("workflow step needs a tenant")
	}
	if req.StepType == "" {
		req.StepType = models.StepTypeApproval
	}
	if req.Owner == "" {
		req.Owner = models.StepOwnerHuman
	}
	if req.ContextID == "" {
		req.ContextID = "ctx_" + shortID()
	}

	data := make(map[string]any, len(req.RequestData)+2)
	for k, v := range req.RequestData {
		data[k] = v
	}
	data["tenant_id"] = req.TenantID
	data["principal_id"] = req.PrincipalID

	step := &models.WorkflowStep{
		StepID:      "step_" + shortID(),
		TenantID:    req.TenantID,
		ContextID:   req.ContextID,
		StepType:    req.StepType,
		ToolName:    req.ToolName,
		Status:      models.StepStatusRequiresApproval,
		Owner:       req.Owner,
		RequestData: data,
	}

	var mapping *models.ObjectWorkflowMapping
	if req.ObjectType != "" && req.ObjectID != "" {
		mapping = &models.ObjectWorkflowMapping{ObjectType: req.ObjectType, ObjectID: req.ObjectID, Action: req.Action}
	}
	if err := s.steps.CreateWithMapping(ctx, step, mapping); err != nil {
		return nil, err
	}

	s.log.Info("workflow step awaiting approval",
		zap.String("step_id", step.StepID),
		zap.String("tool_name", step.ToolName),
		zap.String("object_id", req.ObjectID),
	)
	s.record(ctx, *step, "workflow_step_created", req.PrincipalID, "principal")
	return step, nil
}

// Approve completes a step of tenantID, running the tool's hook first when one
// is registered. A hook failure leaves the step failed with the hook's error.
func (s *WorkflowService) Approve(ctx context.Context, tenantID, stepID, approver string) (*models.WorkflowStep, error) {
	step, err := s.pendingStep(ctx, tenantID, stepID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, *step, map[string]any{"approved_by": approver}, approver, "reviewer")
}

// Reject fails a step, recording the reason.
func (s *WorkflowService) Reject(ctx context.Context, tenantID, stepID, reviewer, reason string) (*models.WorkflowStep, error) {
	step, err := s.pendingStep(ctx, tenantID, stepID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "rejected"
	}
	return s.finish(ctx, *step, models.StepStatusFailed, map[string]any{"rejected_by": reviewer}, &reason, reviewer, "reviewer")
}

// AutoApproveStale completes every step, of any tenant, that has waited in
// requires_approval longer than threshold. It returns how many steps it completed.
func (s *WorkflowService) AutoApproveStale(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := s.now().Add(-threshold)
	stale, err := s.steps.ListStale(ctx, models.StepStatusRequiresApproval, cutoff, 100)
	if err != nil {
		return 0, err
	}

	approved := 0
	for _, step := range stale {
		response := map[string]any{
			"auto_approved": true,
			"note":          fmt.Sprintf("auto-approved after waiting more than %s", threshold),
		}
		done, err := s.complete(ctx, step, response, "system", "system")
		if err != nil {
			if errs.Code(err) == "step_already_terminal" {
				continue
			}
			s.log.Error("auto-approve failed", zap.String("step_id", step.StepID), zap.Error(err))
			continue
		}
		if done.Status == models.StepStatusCompleted {
			approved++
		}
	}
	if approved > 0 {
		s.log.Info("auto-approved stale workflow steps", zap.Int("count", approved))
	}
	return approved, nil
}

func (s *WorkflowService) ListPending(ctx context.Context, tenantID string, limit, offset int) ([]models.WorkflowStep, error) {
	return s.steps.ListByStatus(ctx, tenantID, models.StepStatusRequiresApproval, limit, offset)
}

func (s *WorkflowService) Get(ctx context.Context, tenantID, stepID string) (*models.WorkflowStep, []models.ObjectWorkflowMapping, error) {
	step, err := s.steps.GetByID(ctx, tenantID, stepID)
	if err != nil {
		return nil, nil, err
	}
	mappings, err := s.steps.GetMappings(ctx, stepID)
	if err != nil {
		return nil, nil, err
	}
	return step, mappings, nil
}

func (s *WorkflowService) ListForObject(ctx context.Context, tenantID, objectType, objectID string) ([]models.WorkflowStep, error) {
	return s.steps.ListByObject(ctx, tenantID, objectType, objectID)
}

func (s *WorkflowService) pendingStep(ctx context.Context, tenantID, stepID string) (*models.WorkflowStep, error) {
	step, err := s.steps.GetByID(ctx, tenantID, stepID)
	if err != nil {
		return nil, err
	}
	if step.IsTerminal() {
		return nil, errs.Validationf("step_already_terminal", "workflow step %s is already %s", stepID, step.Status)
	}
	if step.Status == models.StepStatusInProgress {
		return nil, errs.Validationf("step_in_progress", "workflow step %s is being approved", stepID)
	}
	return step, nil
}

// complete claims the step before running the hook, so a concurrent approval
// or sweep cannot run the same hook twice.
func (s *WorkflowService) complete(ctx context.Context, step models.WorkflowStep, response map[string]any, actor, actorType string) (*models.WorkflowStep, error) {
	claimed, err := s.steps.Claim(ctx, step.TenantID, step.StepID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, errs.Validationf("step_already_terminal", "workflow step %s was already claimed or finished", step.StepID)
	}
	step.Status = models.StepStatusInProgress

	if hook := s.hook(step.ToolName); hook != nil {
		if err := hook(ctx, step); err != nil {
			s.log.Warn("approval hook failed",
				zap.String("step_id", step.StepID),
				zap.String("tool_name", step.ToolName),
				zap.Error(err),
			)
			msg := err.Error()
			return s.finish(ctx, step, models.StepStatusFailed, response, &msg, actor, actorType)
		}
	}
	return s.finish(ctx, step, models.StepStatusCompleted, response, nil, actor, actorType)
}

// finish performs the conditional terminal write. Losing the race to another
// writer is reported as step_already_terminal.
func (s *WorkflowService) finish(ctx context.Context, step models.WorkflowStep, status string, response map[string]any, errorMessage *string, actor, actorType string) (*models.WorkflowStep, error) {
	if !models.IsValidStepTransition(step.Status, status) {
		return nil, errs.Validationf("invalid_step_transition", "workflow step %s cannot move from %s to %s", step.StepID, step.Status, status)
	}
	at := s.now()
	ok, err := s.steps.Finish(ctx, step.TenantID, step.StepID, step.Status, status, response, errorMessage, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Validationf("step_already_terminal", "workflow step %s was already completed or failed", step.StepID)
	}

	step.Status = status
	step.ResponseData = response
	step.ErrorMessage = errorMessage
	step.CompletedAt = &at

	s.record(ctx, step, "workflow_step_"+status, actor, actorType)
	return &step, nil
}

func (s *WorkflowService) record(ctx context.Context, step models.WorkflowStep, action, actor, actorType string) {
	tenantID := step.TenantID
	var principal *string
	if actor != "" {
		principal = &actor
	}
	if err := s.audit.Log(ctx, models.AuditLog{
		TenantID:    tenantID,
		PrincipalID: principal,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "workflow_step",
		EntityID:    step.StepID,
		Success:     step.Status != models.StepStatusFailed,
		Meta:        map[string]any{"tool_name": step.ToolName, "status": step.Status},
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("step_id", step.StepID), zap.Error(err))
	}

	payload := map[string]any{
		"step_id":   step.StepID,
		"status":    step.Status,
		"tool_name": step.ToolName,
		"tenant_id": tenantID,
	}
	if step.ErrorMessage != nil {
		payload["error_message"] = *step.ErrorMessage
	}
	if err := s.publisher.Publish(ctx, events.StreamWorkflow, events.Event{
		Type:    events.EventWorkflowStepUpdated,
		Payload: payload,
	}); err != nil {
		s.log.Warn("publish workflow event failed", zap.String("step_id", step.StepID), zap.Error(err))
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
