package services

import (
	"context"
	"testing"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreativeService_SubmitThenApprove(t *testing.T) {
	h := newHarness(t)
	svc := NewCreativeService(h.creatives, h.audit, zap.NewNop())
	ctx := context.Background()

	c, err := svc.Submit(ctx, models.Creative{CreativeID: "c_new", TenantID: "t1", PrincipalID: "p1", Format: "display_728x90", Status: models.CreativeStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.CreativeStatusPendingReview, c.Status, "submitted creatives always start in review")

	id := createBuy(t, h, "PO-20")
	_, err = h.svc.AssignCreatives(ctx, "t1", "p1", id, "pkg_1", []string{"c_new"})
	assert.Equal(t, "creative_not_approved", errs.Code(err))

	require.NoError(t, svc.Review(ctx, "t1", "rev", "c_new", models.CreativeStatusApproved))
	_, err = h.svc.AssignCreatives(ctx, "t1", "p1", id, "pkg_1", []string{"c_new"})
	assert.NoError(t, err)

	assert.Equal(t, "invalid_creative_status", errs.Code(svc.Review(ctx, "t1", "rev", "c_new", "maybe")))
	assert.Equal(t, "creative_not_found", errs.Code(svc.Review(ctx, "t1", "rev", "c_missing", models.CreativeStatusRejected)))

	_, err = svc.Submit(ctx, models.Creative{TenantID: "t1", Format: "video"})
	assert.Equal(t, "creative_id_required", errs.Code(err))
}
