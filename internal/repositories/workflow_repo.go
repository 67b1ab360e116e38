package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/adcp/salesagent/internal/db"
	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

type WorkflowRepo struct {
	pool db.Pool
}

func NewWorkflowRepo(pool db.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

const stepColumns = `step_id, tenant_id, context_id, step_type, COALESCE(tool_name, ''), status, owner, assigned_to,
	request_data, response_data, error_message, created_at, completed_at`

func scanStep(row pgx.Row, s *models.WorkflowStep) error {
	return row.Scan(&s.StepID, &s.TenantID, &s.ContextID, &s.StepType, &s.ToolName, &s.Status, &s.Owner, &s.AssignedTo,
		&s.RequestData, &s.ResponseData, &s.ErrorMessage, &s.CreatedAt, &s.CompletedAt)
}

// CreateWithMapping inserts a step and, when mapping is non-nil, the link to
// the object it gates.
func (r *WorkflowRepo) CreateWithMapping(ctx context.Context, s *models.WorkflowStep, m *models.ObjectWorkflowMapping) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "workflow: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO workflow_steps (step_id, tenant_id, context_id, step_type, tool_name, status, owner, assigned_to, request_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, s.StepID, s.TenantID, s.ContextID, s.StepType, s.ToolName, s.Status, s.Owner, s.AssignedTo, s.RequestData,
	).Scan(&s.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "workflow: insert step %s", s.StepID)
	}

	if m != nil {
		m.StepID = s.StepID
		err = tx.QueryRow(ctx, `
			INSERT INTO object_workflow_mapping (object_type, object_id, step_id, action)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, m.ObjectType, m.ObjectID, m.StepID, m.Action).Scan(&m.CreatedAt)
		if err != nil {
			return eris.Wrapf(err, "workflow: insert mapping for %s", s.StepID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "workflow: commit")
}

// GetByID reports steps of other tenants as not found.
func (r *WorkflowRepo) GetByID(ctx context.Context, tenantID, stepID string) (*models.WorkflowStep, error) {
	var s models.WorkflowStep
	err := scanStep(r.pool.QueryRow(ctx, `
		SELECT `+stepColumns+`
		FROM workflow_steps WHERE tenant_id = $1 AND step_id = $2
	`, tenantID, stepID), &s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("workflow_step", stepID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: get %s", stepID)
	}
	return &s, nil
}

// Claim moves a step from requires_approval to in_progress. Only one caller
// can win the claim; the others get false.
func (r *WorkflowRepo) Claim(ctx context.Context, tenantID, stepID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflow_steps SET status = 'in_progress'
		WHERE tenant_id = $1 AND step_id = $2 AND status = 'requires_approval'
	`, tenantID, stepID)
	if err != nil {
		return false, eris.Wrapf(err, "workflow: claim %s", stepID)
	}
	return tag.RowsAffected() == 1, nil
}

// Finish moves a step from status from to a terminal status. It reports false
// when the step is no longer in from because another writer got there first.
func (r *WorkflowRepo) Finish(ctx context.Context, tenantID, stepID, from, status string, response map[string]any, errorMessage *string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflow_steps
		SET status = $1, response_data = COALESCE($2, response_data), error_message = $3, completed_at = $4
		WHERE tenant_id = $5 AND step_id = $6 AND status = $7
	`, status, response, errorMessage, at, tenantID, stepID, from)
	if err != nil {
		return false, eris.Wrapf(err, "workflow: finish %s", stepID)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *WorkflowRepo) ListByStatus(ctx context.Context, tenantID, status string, limit, offset int) ([]models.WorkflowStep, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+stepColumns+`
		FROM workflow_steps WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at ASC LIMIT $3 OFFSET $4
	`, tenantID, status, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: list by status")
	}
	return collectSteps(rows)
}

// ListStale returns steps in status created before cutoff, across tenants.
func (r *WorkflowRepo) ListStale(ctx context.Context, status string, cutoff time.Time, limit int) ([]models.WorkflowStep, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+stepColumns+`
		FROM workflow_steps WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3
	`, status, cutoff, limit)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: list stale")
	}
	return collectSteps(rows)
}

func (r *WorkflowRepo) ListByObject(ctx context.Context, tenantID, objectType, objectID string) ([]models.WorkflowStep, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stepColumns+`
		FROM workflow_steps
		WHERE tenant_id = $1 AND step_id IN (
			SELECT step_id FROM object_workflow_mapping WHERE object_type = $2 AND object_id = $3
		)
		ORDER BY created_at DESC
	`, tenantID, objectType, objectID)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: list by object")
	}
	return collectSteps(rows)
}

func (r *WorkflowRepo) GetMappings(ctx context.Context, stepID string) ([]models.ObjectWorkflowMapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT object_type, object_id, step_id, action, created_at
		FROM object_workflow_mapping WHERE step_id = $1
	`, stepID)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: get mappings")
	}
	defer rows.Close()

	var out []models.ObjectWorkflowMapping
	for rows.Next() {
		var m models.ObjectWorkflowMapping
		if err := rows.Scan(&m.ObjectType, &m.ObjectID, &m.StepID, &m.Action, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "workflow: scan mapping")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "workflow: iterate mappings")
}

func collectSteps(rows pgx.Rows) ([]models.WorkflowStep, error) {
	defer rows.Close()
	var steps []models.WorkflowStep
	for rows.Next() {
		var s models.WorkflowStep
		if err := scanStep(rows, &s); err != nil {
			return nil, eris.Wrap(err, "workflow: scan step")
		}
		steps = append(steps, s)
	}
	return steps, eris.Wrap(rows.Err(), "workflow: iterate steps")
}
