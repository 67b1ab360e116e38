package services

import (
	"context"
	"errors"
	"testing"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/events"
	"github.com/adcp/salesagent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMediaBuy_Success(t *testing.T) {
	h := newHarness(t)
	start, end := flight()

	req := displayRequest(800)
	req.PONumber = "PO-12345"
	res, err := h.svc.CreateMediaBuy(context.Background(), "t1", "p1", req, start, end)
	require.NoError(t, err)

	assert.Equal(t, "buy_PO-12345", res.MediaBuyID)
	assert.Equal(t, "buy_PO-12345", res.BuyerRef)
	assert.Equal(t, models.MediaBuyStatusDraft, res.Status)
	assert.Equal(t, int32(1), h.spy.creates.Load())

	stored, err := h.buys.GetByID(context.Background(), "t1", "buy_PO-12345")
	require.NoError(t, err)
	assert.Equal(t, 800.0, stored.Budget)
	assert.Equal(t, "USD", stored.Currency)
	assert.Equal(t, "Acme", stored.AdvertiserName)

	packages, _ := h.buys.GetPackages(context.Background(), "t1", "buy_PO-12345")
	require.Len(t, packages, 1)
	assert.Equal(t, "cpm", packages[0].PricingModel)
	assert.Equal(t, 10.0, packages[0].Rate)
	assert.NotEmpty(t, packages[0].PlatformLineItemID)

	assert.Equal(t, []string{events.EventMediaBuyCreated}, h.pub.types())
	assert.Contains(t, h.audit.actions(), "media_buy_created")
}

func TestDeriveMediaBuyID(t *testing.T) {
	assert.Equal(t, "buy_PO-12345", DeriveMediaBuyID("PO-12345"))
	assert.Equal(t, DeriveMediaBuyID("PO-12345"), DeriveMediaBuyID("PO-12345"))

	random := DeriveMediaBuyID("")
	assert.Regexp(t, `^buy_[0-9a-f]{8}$`, random)
	assert.NotEqual(t, random, DeriveMediaBuyID(""))
}

func TestCreateMediaBuy_GuardrailRejectsBeforeAdapter(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateMediaBuyRequest)
		code    string
		message string
	}{
		{
			name:   "package budget five times the daily max",
			mutate: func(r *CreateMediaBuyRequest) { r.Packages[0].Budget = ptr(5000.0) },
			code:   "budget_exceeds_daily_max",
		},
		{
			name:    "currency without limits",
			mutate:  func(r *CreateMediaBuyRequest) { r.Currency = "EUR" },
			code:    "unsupported_currency",
			message: "unsupported currency",
		},
		{
			name:   "creative still in review",
			mutate: func(r *CreateMediaBuyRequest) { r.Packages[0].CreativeIDs = []string{"c_pending"} },
			code:   "creative_not_approved",
		},
		{
			name:   "unknown creative",
			mutate: func(r *CreateMediaBuyRequest) { r.Packages[0].CreativeIDs = []string{"c_missing"} },
			code:   "creative_not_found",
		},
		{
			name:   "budget under tenant minimum",
			mutate: func(r *CreateMediaBuyRequest) { r.Packages[0].Budget = ptr(50.0) },
			code:   "budget_below_minimum",
		},
		{
			name:   "zero budget",
			mutate: func(r *CreateMediaBuyRequest) { r.Packages[0].Budget = ptr(0.0) },
			code:   "invalid_budget",
		},
		{
			name:   "total above daily max times packages",
			mutate: func(r *CreateMediaBuyRequest) { r.Budget = ptr(1500.0) },
			code:   "total_budget_exceeds_limit",
		},
		{
			name:   "no products",
			mutate: func(r *CreateMediaBuyRequest) { r.ProductIDs = nil },
			code:   "product_ids_required",
		},
		{
			name:   "no packages",
			mutate: func(r *CreateMediaBuyRequest) { r.Packages = nil },
			code:   "packages_required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			start, end := flight()
			req := displayRequest(800)
			tt.mutate(&req)

			_, err := h.svc.CreateMediaBuy(context.Background(), "t1", "p1", req, start, end)
			require.Error(t, err)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
			assert.Equal(t, tt.code, errs.Code(err))
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
			assert.Zero(t, h.spy.creates.Load(), "adapter must not be called")
			assert.Zero(t, h.buys.count(), "no row may be written")
		})
	}
}

func TestCreateMediaBuy_ProductMinimumSpend(t *testing.T) {
	h := newHarness(t)
	start, end := flight()
	req := CreateMediaBuyRequest{
		ProductIDs: []string{"prod_premium"},
		Packages:   []models.MediaPackage{{ProductID: "prod_premium", Budget: ptr(300.0)}},
	}

	_, err := h.svc.CreateMediaBuy(context.Background(), "t1", "p1", req, start, end)
	assert.Equal(t, "budget_below_minimum", errs.Code(err))
	assert.Contains(t, err.Error(), "500.00")
	assert.Zero(t, h.spy.creates.Load())
}

func TestCreateMediaBuy_AdapterFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.spy.failCreate = true
	start, end := flight()

	_, err := h.svc.CreateMediaBuy(context.Background(), "t1", "p1", displayRequest(800), start, end)
	require.Error(t, err)
	assert.Equal(t, errs.KindAdapter, errs.KindOf(err))
	assert.Equal(t, int32(1), h.spy.creates.Load())
	assert.Zero(t, h.buys.count())
	assert.Empty(t, h.pub.types())
}

func TestCreateMediaBuy_LocalWriteFailureReportsOrphan(t *testing.T) {
	h := newHarness(t)
	h.buys.createErr = errors.New("connection reset")
	start, end := flight()

	req := displayRequest(800)
	req.PONumber = "PO-9"
	_, err := h.svc.CreateMediaBuy(context.Background(), "t1", "p1", req, start, end)
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
	assert.Contains(t, err.Error(), "buy_PO-9")
	assert.Equal(t, int32(1), h.spy.creates.Load())
	assert.Equal(t, []string{events.EventMediaBuyOrphaned}, h.pub.types())
}

func TestCreateMediaBuy_InactiveTenant(t *testing.T) {
	h := newHarness(t)
	tenant := h.tenants.tenants["t1"]
	tenant.IsActive = false
	h.tenants.tenants["t1"] = tenant
	start, end := flight()

	_, err := h.svc.CreateMediaBuy(context.Background(), "t1", "p1", displayRequest(800), start, end)
	assert.Equal(t, errs.KindTenant, errs.KindOf(err))
	assert.Zero(t, h.spy.creates.Load())
}

func TestCreateMediaBuy_DuplicatePONumberSkipsAdapter(t *testing.T) {
	h := newHarness(t)
	start, end := flight()
	ctx := context.Background()

	req := displayRequest(800)
	req.PONumber = "PO-1"
	first, err := h.svc.CreateMediaBuy(ctx, "t1", "p1", req, start, end)
	require.NoError(t, err)

	retry := displayRequest(600)
	retry.PONumber = "PO-1"
	_, err = h.svc.CreateMediaBuy(ctx, "t1", "p1", retry, start, end)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Equal(t, "duplicate_media_buy", errs.Code(err))
	assert.Equal(t, int32(1), h.spy.creates.Load())
	assert.Equal(t, 1, h.buys.count())

	stored, err := h.buys.GetByID(ctx, "t1", first.MediaBuyID)
	require.NoError(t, err)
	assert.Equal(t, 800.0, stored.Budget)
}

func createBuy(t *testing.T, h *harness, po string) string {
	t.Helper()
	start, end := flight()
	req := displayRequest(800)
	req.PONumber = po
	res, err := h.svc.CreateMediaBuy(context.Background(), "t1", "p1", req, start, end)
	require.NoError(t, err)
	return res.MediaBuyID
}

func TestUpdateMediaBuy_Budget(t *testing.T) {
	h := newHarness(t)
	id := createBuy(t, h, "PO-1")
	ctx := context.Background()

	_, err := h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, Budget: ptr(900.0)})
	assert.Equal(t, "package_id_required", errs.Code(err))

	_, err = h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, PackageID: "pkg_1", Budget: ptr(5000.0)})
	assert.Equal(t, "budget_exceeds_daily_max", errs.Code(err))
	assert.Zero(t, h.spy.updates.Load())

	res, err := h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, PackageID: "pkg_1", Budget: ptr(900.0)})
	require.NoError(t, err)
	assert.Equal(t, UpdateStatusAccepted, res.Status)
	assert.Equal(t, int32(1), h.spy.updates.Load())

	packages, _ := h.buys.GetPackages(ctx, "t1", id)
	assert.Equal(t, 900.0, *packages[0].Budget)
}

func TestUpdateMediaBuy_OwnershipAndValidation(t *testing.T) {
	h := newHarness(t)
	id := createBuy(t, h, "PO-2")
	h.tenants.principals["t1/p2"] = models.Principal{PrincipalID: "p2", TenantID: "t1", Name: "Other"}
	ctx := context.Background()

	_, err := h.svc.UpdateMediaBuy(ctx, "t1", "p2", UpdateMediaBuyRequest{MediaBuyID: id, Action: adapters.ActionActivateOrder})
	assert.Equal(t, "media_buy_not_found", errs.Code(err))

	_, err = h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, Action: "explode"})
	assert.Equal(t, "unsupported_action", errs.Code(err))

	_, err = h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, Action: adapters.ActionPauseMediaBuy})
	assert.Equal(t, "invalid_transition", errs.Code(err), "a draft buy cannot be paused")

	_, err = h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, BuyerRef: "other", Action: adapters.ActionActivateOrder})
	assert.Equal(t, "buyer_ref_mismatch", errs.Code(err))
	assert.Zero(t, h.spy.updates.Load())
}

func TestUpdateMediaBuy_ActivateThenPause(t *testing.T) {
	h := newHarness(t)
	id := createBuy(t, h, "PO-3")
	ctx := context.Background()

	_, err := h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, Action: adapters.ActionActivateOrder})
	require.NoError(t, err)
	_, err = h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, Action: adapters.ActionPauseMediaBuy})
	require.NoError(t, err)

	buy, _ := h.buys.GetByID(ctx, "t1", id)
	assert.Equal(t, models.MediaBuyStatusPaused, buy.Status)
	assert.Equal(t, int32(2), h.spy.updates.Load())

	st, err := h.svc.GetMediaBuyStatus(ctx, "t1", "p1", id)
	require.NoError(t, err)
	assert.Equal(t, models.MediaBuyStatusPaused, st.Status)
}

func TestUpdateMediaBuy_ManualApprovalGate(t *testing.T) {
	h := newHarness(t)
	id := createBuy(t, h, "PO-4")
	h.tenants.configs["t1"] = models.AdapterConfig{
		TenantID:                 "t1",
		AdapterType:              adapters.TypeMock,
		DryRun:                   true,
		ManualApprovalRequired:   true,
		ManualApprovalOperations: []string{adapters.ActionActivateOrder},
	}
	ctx := context.Background()

	res, err := h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, Action: adapters.ActionActivateOrder})
	require.NoError(t, err)
	assert.Equal(t, UpdateStatusPendingApproval, res.Status)
	require.NotEmpty(t, res.StepID)
	assert.Zero(t, h.spy.updates.Load(), "gated action must wait for approval")

	step, mappings, err := h.workflow.Get(ctx, "t1", res.StepID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusRequiresApproval, step.Status)
	assert.Equal(t, ToolUpdateMediaBuy, step.ToolName)
	require.Len(t, mappings, 1)
	assert.Equal(t, id, mappings[0].ObjectID)
	assert.Equal(t, adapters.ActionActivateOrder, mappings[0].Action)

	approved, err := h.workflow.Approve(ctx, "t1", res.StepID, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, approved.Status)
	assert.NotNil(t, approved.CompletedAt)
	assert.Equal(t, int32(1), h.spy.updates.Load())

	buy, _ := h.buys.GetByID(ctx, "t1", id)
	assert.Equal(t, models.MediaBuyStatusActive, buy.Status)

	_, err = h.workflow.Approve(ctx, "t1", res.StepID, "reviewer-1")
	assert.Equal(t, "step_already_terminal", errs.Code(err))
	assert.Equal(t, int32(1), h.spy.updates.Load())

	// Ungated actions still go straight through.
	_, err = h.svc.UpdateMediaBuy(ctx, "t1", "p1", UpdateMediaBuyRequest{MediaBuyID: id, Action: adapters.ActionPauseMediaBuy})
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.spy.updates.Load())
}

func TestAssignCreatives(t *testing.T) {
	h := newHarness(t)
	id := createBuy(t, h, "PO-5")
	ctx := context.Background()

	_, err := h.svc.AssignCreatives(ctx, "t1", "p1", id, "pkg_1", []string{"c_pending"})
	assert.Equal(t, "creative_not_approved", errs.Code(err))

	res, err := h.svc.AssignCreatives(ctx, "t1", "p1", id, "pkg_1", []string{"c_ok"})
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)
	require.Len(t, res.Associations, 1)
	assert.Equal(t, res.Assets[0].PlatformCreativeID, res.Associations[0].PlatformCreativeID)

	packages, _ := h.buys.GetPackages(ctx, "t1", id)
	assert.Equal(t, []string{"c_ok"}, packages[0].CreativeIDs)

	_, err = h.svc.AssignCreatives(ctx, "t1", "p1", id, "pkg_9", []string{"c_ok"})
	assert.Equal(t, "package_not_found", errs.Code(err))
}

func TestDeliveryAndPerformance(t *testing.T) {
	h := newHarness(t)
	id := createBuy(t, h, "PO-6")
	ctx := context.Background()

	report, err := h.svc.GetMediaBuyDelivery(ctx, "t1", "p1", id, adapters.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, id, report.MediaBuyID)
	assert.Equal(t, "USD", report.Currency)
	assert.Greater(t, report.Impressions, int64(0))
	assert.LessOrEqual(t, report.Spend, 800.0)

	ok, err := h.svc.UpdatePerformanceIndex(ctx, "t1", "p1", id, []adapters.PackagePerformance{{PackageID: "pkg_1", PerformanceIndex: 1.2}})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.svc.GetMediaBuyStatus(ctx, "t1", "p1", "buy_missing")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}
