package services

import (
	"context"
	"strings"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"go.uber.org/zap"
)

// CreativeService manages the creative library. New creatives start in
// pending_review and only approved ones pass the booking guardrail.
type CreativeService struct {
	creatives creativeStore
	audit     auditStore
	log       *zap.Logger
}

func NewCreativeService(creatives creativeStore, audit auditStore, log *zap.Logger) *CreativeService {
	return &CreativeService{creatives: creatives, audit: audit, log: log}
}

func (s *CreativeService) Submit(ctx context.Context, c models.Creative) (*models.Creative, error) {
	if strings.TrimSpace(c.CreativeID) == "" {
		return nil, errs.Validation("creative_id_required", "creative_id is required")
	}
	if strings.TrimSpace(c.Format) == "" {
		return nil, errs.Validation("format_required", "format is required")
	}
	if c.Name == "" {
		c.Name = c.CreativeID
	}
	c.Status = models.CreativeStatusPendingReview
	if err := s.creatives.Create(ctx, &c); err != nil {
		return nil, err
	}
	s.record(ctx, c.TenantID, c.PrincipalID, "principal", "creative_submitted", c.CreativeID)
	return &c, nil
}

// Review moves a creative to approved or rejected.
func (s *CreativeService) Review(ctx context.Context, tenantID, reviewerID, creativeID, status string) error {
	if status != models.CreativeStatusApproved && status != models.CreativeStatusRejected {
		return errs.Validationf("invalid_creative_status", "status must be %s or %s", models.CreativeStatusApproved, models.CreativeStatusRejected)
	}
	if err := s.creatives.UpdateStatus(ctx, tenantID, creativeID, status); err != nil {
		return err
	}
	s.record(ctx, tenantID, reviewerID, "reviewer", "creative_"+status, creativeID)
	return nil
}

func (s *CreativeService) record(ctx context.Context, tenantID, actor, actorType, action, creativeID string) {
	if err := s.audit.Log(ctx, models.AuditLog{
		TenantID:    tenantID,
		PrincipalID: &actor,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "creative",
		EntityID:    creativeID,
		Success:     true,
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("creative_id", creativeID), zap.Error(err))
	}
}
