package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	PrincipalID *string   `json:"principal_id,omitempty"`
	ActorType   string    `json:"actor_type"` // principal/reviewer/system
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Success     bool      `json:"success"`
	Meta        any       `json:"meta,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
