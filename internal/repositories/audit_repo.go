package repositories

import (
	"context"

	"github.com/adcp/salesagent/internal/db"
	"github.com/adcp/salesagent/internal/models"
	"github.com/rotisserie/eris"
)

type AuditRepo struct {
	pool db.Pool
}

func NewAuditRepo(pool db.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (tenant_id, principal_id, actor_type, action, entity_type, entity_id, success, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.TenantID, entry.PrincipalID, entry.ActorType, entry.Action, entry.EntityType, entry.EntityID, entry.Success, entry.Meta)
	return eris.Wrap(err, "audit: insert")
}

func (r *AuditRepo) GetByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, principal_id, actor_type, action, entity_type, entity_id, success, meta, created_at
		FROM audit_logs WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, entityType, entityID, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "audit: list")
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.PrincipalID, &l.ActorType, &l.Action, &l.EntityType, &l.EntityID,
			&l.Success, &l.Meta, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "audit: scan")
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "audit: iterate")
}
