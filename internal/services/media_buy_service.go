package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/events"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/repositories"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ToolUpdateMediaBuy names gated media buy updates in workflow steps.
const ToolUpdateMediaBuy = "update_media_buy"

const defaultCurrency = "USD"

type CreateMediaBuyRequest struct {
	ProductIDs     []string              `json:"product_ids"`
	Packages       []models.MediaPackage `json:"packages"`
	Budget         *float64              `json:"budget,omitempty"`
	Currency       string                `json:"currency,omitempty"`
	BuyerRef       string                `json:"buyer_ref,omitempty"`
	PONumber       string                `json:"po_number,omitempty"`
	OrderName      string                `json:"order_name,omitempty"`
	AdvertiserName string                `json:"advertiser_name,omitempty"`
	Targeting      map[string]any        `json:"targeting_overlay,omitempty"`
}

type CreateMediaBuyResult struct {
	MediaBuyID string                `json:"media_buy_id"`
	BuyerRef   string                `json:"buyer_ref"`
	Status     string                `json:"status"`
	Packages   []models.MediaPackage `json:"packages"`
}

type UpdateMediaBuyRequest struct {
	MediaBuyID  string   `json:"media_buy_id"`
	BuyerRef    string   `json:"buyer_ref,omitempty"`
	Action      string   `json:"action"`
	PackageID   string   `json:"package_id,omitempty"`
	Budget      *float64 `json:"budget,omitempty"`
	Impressions *int64   `json:"impressions,omitempty"`
}

// Update result statuses.
const (
	UpdateStatusAccepted        = "accepted"
	UpdateStatusPendingApproval = "pending_approval"
)

type UpdateMediaBuyResult struct {
	MediaBuyID string `json:"media_buy_id"`
	Status     string `json:"status"`
	StepID     string `json:"workflow_step_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

type AssignCreativesResult struct {
	Assets       []adapters.AssetStatus         `json:"assets"`
	Associations []adapters.CreativeAssociation `json:"associations"`
}

// gatedUpdate is what a workflow step stores for an update waiting on a human.
type gatedUpdate struct {
	TenantID    string `json:"tenant_id"`
	PrincipalID string `json:"principal_id"`
	UpdateMediaBuyRequest
}

// MediaBuyService places and manages media buys against the tenant's ad
// server. A create calls the adapter exactly once and only writes local rows
// after the adapter confirmed the order.
type MediaBuyService struct {
	resolver  *AdapterResolver
	guardrail *Guardrail
	workflow  *WorkflowService
	buys      mediaBuyStore
	products  productStore
	creatives creativeStore
	audit     auditStore
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewMediaBuyService(
	resolver *AdapterResolver,
	guardrail *Guardrail,
	workflow *WorkflowService,
	buys mediaBuyStore,
	products productStore,
	creatives creativeStore,
	audit auditStore,
	publisher events.Publisher,
	log *zap.Logger,
) *MediaBuyService {
	s := &MediaBuyService{
		resolver:  resolver,
		guardrail: guardrail,
		workflow:  workflow,
		buys:      buys,
		products:  products,
		creatives: creatives,
		audit:     audit,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
	workflow.RegisterHook(ToolUpdateMediaBuy, s.ExecuteApprovedUpdate)
	return s
}

// DeriveMediaBuyID returns buy_<po> when a purchase order number is given so
// retries with the same PO map to the same local id.
func DeriveMediaBuyID(poNumber string) string {
	if po := strings.TrimSpace(poNumber); po != "" {
		return "buy_" + po
	}
	return "buy_" + shortID()[:8]
}

func (s *MediaBuyService) CreateMediaBuy(ctx context.Context, tenantID, principalID string, req CreateMediaBuyRequest, start, end time.Time) (*CreateMediaBuyResult, error) {
	resolved, err := s.resolver.Resolve(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}

	if len(req.ProductIDs) == 0 {
		return nil, errs.Validation("product_ids_required", "at least one product id is required")
	}
	if len(req.Packages) == 0 {
		return nil, errs.Validation("packages_required", "at least one package is required")
	}
	if !end.After(start) {
		return nil, errs.Validation("invalid_flight", "end date must be after start date")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	products, err := s.products.GetByIDs(ctx, tenantID, req.ProductIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range req.ProductIDs {
		if _, ok := products[id]; !ok {
			return nil, errs.Validationf("unknown_product", "product %s is not offered by this tenant", id)
		}
	}

	packages, err := preparePackages(req, products)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, p := range packages {
		total += p.BudgetValue()
	}
	if req.Budget != nil {
		total = *req.Budget
	}

	if err := s.guardrail.ValidateCreate(ctx, tenantID, currency, packages, products, total); err != nil {
		return nil, err
	}

	localID := DeriveMediaBuyID(req.PONumber)
	if err := s.ensureNew(ctx, tenantID, localID); err != nil {
		return nil, err
	}
	buyerRef := req.BuyerRef
	if buyerRef == "" {
		buyerRef = localID
	}
	orderName := req.OrderName
	if orderName == "" {
		orderName = fmt.Sprintf("%s %s", resolved.Principal.Name, localID)
	}
	advertiser := req.AdvertiserName
	if advertiser == "" {
		advertiser = resolved.Principal.Name
	}

	adapterReq := adapters.CreateMediaBuyRequest{
		MediaBuyID:     localID,
		BuyerRef:       buyerRef,
		PONumber:       req.PONumber,
		OrderName:      orderName,
		AdvertiserName: advertiser,
		Budget:         total,
		Currency:       currency,
		ProductIDs:     req.ProductIDs,
		Targeting:      req.Targeting,
	}
	adapter := resolved.Adapter
	created, err := adapter.CreateMediaBuy(ctx, adapterReq, packages, start, end)
	if err != nil {
		s.log.Warn("ad server rejected media buy",
			zap.String("tenant_id", tenantID),
			zap.String("media_buy_id", localID),
			zap.String("adapter", adapter.Name()),
			zap.Error(err),
		)
		return nil, asAdapterError(adapter.Name(), err)
	}

	mediaBuyID := localID
	if created.MediaBuyID != "" {
		mediaBuyID = created.MediaBuyID
	}
	if created.BuyerRef != "" {
		buyerRef = created.BuyerRef
	}
	lineItems := make(map[string]string, len(created.Packages))
	for _, p := range created.Packages {
		lineItems[p.PackageID] = p.PlatformLineItemID
	}
	for i := range packages {
		packages[i].MediaBuyID = mediaBuyID
		packages[i].PlatformLineItemID = lineItems[packages[i].PackageID]
	}

	buy := &models.MediaBuy{
		MediaBuyID:     mediaBuyID,
		TenantID:       tenantID,
		PrincipalID:    principalID,
		BuyerRef:       buyerRef,
		OrderName:      orderName,
		AdvertiserName: advertiser,
		Budget:         total,
		Currency:       currency,
		StartDate:      start,
		EndDate:        end,
		Status:         models.MediaBuyStatusDraft,
		RawRequest:     map[string]any{"request": req, "adapter_response": created},
	}
	if err := s.buys.CreateWithPackages(ctx, buy, packages); err != nil {
		s.log.Error("media buy created remotely but not recorded",
			zap.String("tenant_id", tenantID),
			zap.String("media_buy_id", mediaBuyID),
			zap.String("adapter", adapter.Name()),
			zap.Error(err),
		)
		s.publish(ctx, events.EventMediaBuyOrphaned, map[string]any{
			"tenant_id":    tenantID,
			"principal_id": principalID,
			"media_buy_id": mediaBuyID,
			"buyer_ref":    buyerRef,
			"adapter":      adapter.Name(),
		})
		return nil, errs.Internal(fmt.Sprintf("media buy %s was created on %s but could not be recorded", mediaBuyID, adapter.Name()), err)
	}

	s.record(ctx, tenantID, principalID, "media_buy_created", mediaBuyID, true, map[string]any{
		"adapter":   adapter.Name(),
		"budget":    total,
		"currency":  currency,
		"packages":  len(packages),
		"buyer_ref": buyerRef,
	})
	s.publish(ctx, events.EventMediaBuyCreated, map[string]any{
		"tenant_id":    tenantID,
		"media_buy_id": mediaBuyID,
		"status":       buy.Status,
	})
	s.log.Info("media buy created",
		zap.String("tenant_id", tenantID),
		zap.String("media_buy_id", mediaBuyID),
		zap.String("adapter", adapter.Name()),
	)

	return &CreateMediaBuyResult{MediaBuyID: mediaBuyID, BuyerRef: buyerRef, Status: buy.Status, Packages: packages}, nil
}

// preparePackages fills package defaults from the referenced products.
func preparePackages(req CreateMediaBuyRequest, products map[string]models.Product) ([]models.MediaPackage, error) {
	packages := make([]models.MediaPackage, len(req.Packages))
	seen := make(map[string]bool, len(req.Packages))
	for i, p := range req.Packages {
		if p.ProductID == "" && i < len(req.ProductIDs) {
			p.ProductID = req.ProductIDs[i]
		}
		if p.PackageID == "" {
			p.PackageID = fmt.Sprintf("pkg_%d", i+1)
		}
		if seen[p.PackageID] {
			return nil, errs.Validationf("duplicate_package", "package id %s is used twice", p.PackageID)
		}
		seen[p.PackageID] = true

		if product, ok := products[p.ProductID]; ok {
			if p.Name == "" {
				p.Name = product.Name
			}
			if p.DeliveryType == "" {
				p.DeliveryType = product.DeliveryType
			}
			if p.PricingModel == "" {
				p.PricingModel = product.PricingModel
			}
			if p.Rate == 0 && product.Rate != nil {
				p.Rate = *product.Rate
			}
		} else if p.ProductID != "" {
			return nil, errs.Validationf("unknown_product", "package %s references unknown product %s", p.PackageID, p.ProductID)
		}
		if p.DeliveryType == "" {
			p.DeliveryType = models.DeliveryNonGuaranteed
		}
		if len(p.Targeting) == 0 && len(req.Targeting) > 0 {
			p.Targeting = req.Targeting
		}
		if p.Budget == nil {
			b := p.BudgetValue()
			p.Budget = &b
		}
		p.Status = models.MediaBuyStatusDraft
		packages[i] = p
	}
	return packages, nil
}

// UpdateMediaBuy applies an action to an existing buy. Actions the tenant
// gates behind manual approval are parked in a workflow step instead.
func (s *MediaBuyService) UpdateMediaBuy(ctx context.Context, tenantID, principalID string, req UpdateMediaBuyRequest) (*UpdateMediaBuyResult, error) {
	if req.Action == "" && req.Budget != nil {
		req.Action = adapters.ActionUpdatePackageBudget
	}
	if !adapters.IsValidAction(req.Action) {
		return nil, errs.Validationf("unsupported_action", "action %q is not supported", req.Action)
	}

	buy, err := s.ownedBuy(ctx, tenantID, principalID, req.MediaBuyID)
	if err != nil {
		return nil, err
	}
	if req.BuyerRef != "" && req.BuyerRef != buy.BuyerRef {
		return nil, errs.Validation("buyer_ref_mismatch", "buyer_ref does not match the media buy")
	}
	if err := s.checkUpdate(ctx, buy, req); err != nil {
		return nil, err
	}

	resolved, err := s.resolver.Resolve(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}

	if resolved.Config.RequiresApproval(req.Action) {
		data, err := toMap(req)
		if err != nil {
			return nil, err
		}
		step, err := s.workflow.CreateStep(ctx, StepRequest{
			TenantID:    tenantID,
			PrincipalID: principalID,
			ContextID:   buy.MediaBuyID,
			ToolName:    ToolUpdateMediaBuy,
			RequestData: data,
			ObjectType:  "media_buy",
			ObjectID:    buy.MediaBuyID,
			Action:      req.Action,
		})
		if err != nil {
			return nil, err
		}
		return &UpdateMediaBuyResult{
			MediaBuyID: buy.MediaBuyID,
			Status:     UpdateStatusPendingApproval,
			StepID:     step.StepID,
			Detail:     fmt.Sprintf("%s requires manual approval", req.Action),
		}, nil
	}

	return s.applyUpdate(ctx, resolved.Adapter, buy, principalID, req)
}

// ExecuteApprovedUpdate replays an update that waited for approval. It is
// registered as the workflow hook for update_media_buy steps.
func (s *MediaBuyService) ExecuteApprovedUpdate(ctx context.Context, step models.WorkflowStep) error {
	raw, err := json.Marshal(step.RequestData)
	if err != nil {
		return eris.Wrap(err, "encode gated update")
	}
	var u gatedUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		return eris.Wrap(err, "decode gated update")
	}

	// The step's own tenant wins over anything carried in the request data.
	u.TenantID = step.TenantID

	buy, err := s.ownedBuy(ctx, u.TenantID, u.PrincipalID, u.MediaBuyID)
	if err != nil {
		return err
	}
	if err := s.checkUpdate(ctx, buy, u.UpdateMediaBuyRequest); err != nil {
		return err
	}
	resolved, err := s.resolver.Resolve(ctx, u.TenantID, u.PrincipalID)
	if err != nil {
		return err
	}
	_, err = s.applyUpdate(ctx, resolved.Adapter, buy, u.PrincipalID, u.UpdateMediaBuyRequest)
	return err
}

// checkUpdate validates an update against the stored buy before any remote call.
func (s *MediaBuyService) checkUpdate(ctx context.Context, buy *models.MediaBuy, req UpdateMediaBuyRequest) error {
	if target := targetStatus(req.Action); target != "" && target != buy.Status &&
		!models.IsValidMediaBuyTransition(buy.Status, target) {
		return errs.Validationf("invalid_transition", "media buy %s cannot move from %s to %s", buy.MediaBuyID, buy.Status, target)
	}
	if !adapters.IsPackageAction(req.Action) && req.Budget == nil {
		return nil
	}
	if req.PackageID == "" {
		return errs.Validation("package_id_required", "package_id is required for package updates and budget changes")
	}

	packages, err := s.buys.GetPackages(ctx, buy.TenantID, buy.MediaBuyID)
	if err != nil {
		return err
	}
	var pkg *models.MediaPackage
	for i := range packages {
		if packages[i].PackageID == req.PackageID {
			pkg = &packages[i]
			break
		}
	}
	if pkg == nil {
		return errs.NotFound("package", req.PackageID)
	}

	if req.Action == adapters.ActionUpdatePackageImpressions && (req.Impressions == nil || *req.Impressions <= 0) {
		return errs.Validation("invalid_impressions", "impressions must be a positive number")
	}
	if req.Budget == nil {
		if req.Action == adapters.ActionUpdatePackageBudget {
			return errs.Validation("budget_required", "budget is required for update_package_budget")
		}
		return nil
	}

	var product *models.Product
	if pkg.ProductID != "" {
		found, err := s.products.GetByIDs(ctx, buy.TenantID, []string{pkg.ProductID})
		if err != nil {
			return err
		}
		if p, ok := found[pkg.ProductID]; ok {
			product = &p
		}
	}
	return s.guardrail.ValidateBudgetUpdate(ctx, buy.TenantID, buy.Currency, *pkg, *req.Budget, product)
}

func (s *MediaBuyService) applyUpdate(ctx context.Context, adapter adapters.Adapter, buy *models.MediaBuy, principalID string, req UpdateMediaBuyRequest) (*UpdateMediaBuyResult, error) {
	res, err := adapter.UpdateMediaBuy(ctx, adapters.UpdateMediaBuyRequest{
		MediaBuyID:  buy.MediaBuyID,
		BuyerRef:    buy.BuyerRef,
		Action:      req.Action,
		PackageID:   req.PackageID,
		Budget:      req.Budget,
		Impressions: req.Impressions,
	}, s.now())
	if err != nil {
		s.record(ctx, buy.TenantID, principalID, "media_buy_"+req.Action, buy.MediaBuyID, false, map[string]any{"error": err.Error()})
		return nil, asAdapterError(adapter.Name(), err)
	}

	switch req.Action {
	case adapters.ActionUpdatePackageBudget:
		if req.Budget != nil {
			err = s.buys.UpdatePackageBudget(ctx, buy.TenantID, buy.MediaBuyID, req.PackageID, *req.Budget)
		}
	case adapters.ActionPausePackage:
		err = s.buys.UpdatePackageStatus(ctx, buy.TenantID, buy.MediaBuyID, req.PackageID, models.MediaBuyStatusPaused)
	case adapters.ActionResumePackage:
		err = s.buys.UpdatePackageStatus(ctx, buy.TenantID, buy.MediaBuyID, req.PackageID, models.MediaBuyStatusActive)
	default:
		if target := targetStatus(req.Action); target != "" && target != buy.Status {
			err = s.buys.UpdateStatus(ctx, buy.TenantID, buy.MediaBuyID, target)
			if err == nil {
				buy.Status = target
			}
		}
	}
	if err != nil {
		return nil, err
	}

	s.record(ctx, buy.TenantID, principalID, "media_buy_"+req.Action, buy.MediaBuyID, true, map[string]any{
		"package_id": req.PackageID,
		"adapter":    adapter.Name(),
	})
	s.publish(ctx, events.EventMediaBuyUpdated, map[string]any{
		"tenant_id":    buy.TenantID,
		"media_buy_id": buy.MediaBuyID,
		"action":       req.Action,
		"status":       buy.Status,
	})

	return &UpdateMediaBuyResult{MediaBuyID: buy.MediaBuyID, Status: UpdateStatusAccepted, Detail: res.Detail}, nil
}

// targetStatus is the buy status an order-level action moves to.
func targetStatus(action string) string {
	switch action {
	case adapters.ActionPauseMediaBuy:
		return models.MediaBuyStatusPaused
	case adapters.ActionResumeMediaBuy, adapters.ActionActivateOrder:
		return models.MediaBuyStatusActive
	}
	return ""
}

func (s *MediaBuyService) UpdatePerformanceIndex(ctx context.Context, tenantID, principalID, mediaBuyID string, perf []adapters.PackagePerformance) (bool, error) {
	buy, err := s.ownedBuy(ctx, tenantID, principalID, mediaBuyID)
	if err != nil {
		return false, err
	}
	resolved, err := s.resolver.Resolve(ctx, tenantID, principalID)
	if err != nil {
		return false, err
	}
	ok, err := resolved.Adapter.UpdateMediaBuyPerformanceIndex(ctx, buy.MediaBuyID, perf)
	if err != nil {
		return false, asAdapterError(resolved.Adapter.Name(), err)
	}
	return ok, nil
}

func (s *MediaBuyService) GetMediaBuy(ctx context.Context, tenantID, principalID, mediaBuyID string) (*models.MediaBuyWithPackages, error) {
	buy, err := s.ownedBuy(ctx, tenantID, principalID, mediaBuyID)
	if err != nil {
		return nil, err
	}
	packages, err := s.buys.GetPackages(ctx, buy.TenantID, buy.MediaBuyID)
	if err != nil {
		return nil, err
	}
	return &models.MediaBuyWithPackages{MediaBuy: *buy, Packages: packages}, nil
}

func (s *MediaBuyService) ListMediaBuys(ctx context.Context, f repositories.MediaBuyFilter) ([]models.MediaBuy, error) {
	return s.buys.List(ctx, f)
}

func (s *MediaBuyService) GetMediaBuyStatus(ctx context.Context, tenantID, principalID, mediaBuyID string) (*adapters.MediaBuyStatus, error) {
	buy, err := s.ownedBuy(ctx, tenantID, principalID, mediaBuyID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolver.Resolve(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}
	st, err := resolved.Adapter.CheckMediaBuyStatus(ctx, buy.MediaBuyID, s.now())
	if err != nil {
		return nil, asAdapterError(resolved.Adapter.Name(), err)
	}
	return st, nil
}

// GetMediaBuyDelivery reports delivery for period. A zero period covers the
// flight from its start until now.
func (s *MediaBuyService) GetMediaBuyDelivery(ctx context.Context, tenantID, principalID, mediaBuyID string, period adapters.DateRange) (*adapters.DeliveryReport, error) {
	buy, err := s.ownedBuy(ctx, tenantID, principalID, mediaBuyID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if period.Start.IsZero() {
		period.Start = buy.StartDate
	}
	if period.End.IsZero() {
		period.End = now
		if buy.EndDate.Before(now) {
			period.End = buy.EndDate
		}
	}
	if period.End.Before(period.Start) {
		return nil, errs.Validation("invalid_period", "reporting period ends before it starts")
	}

	resolved, err := s.resolver.Resolve(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}
	report, err := resolved.Adapter.GetMediaBuyDelivery(ctx, buy.MediaBuyID, period, now)
	if err != nil {
		return nil, asAdapterError(resolved.Adapter.Name(), err)
	}
	if report.Currency == "" {
		report.Currency = buy.Currency
	}
	return report, nil
}

// AssignCreatives uploads approved creatives and attaches them to one package.
func (s *MediaBuyService) AssignCreatives(ctx context.Context, tenantID, principalID, mediaBuyID, packageID string, creativeIDs []string) (*AssignCreativesResult, error) {
	if len(creativeIDs) == 0 {
		return nil, errs.Validation("creative_ids_required", "at least one creative id is required")
	}
	buy, err := s.ownedBuy(ctx, tenantID, principalID, mediaBuyID)
	if err != nil {
		return nil, err
	}
	packages, err := s.buys.GetPackages(ctx, buy.TenantID, buy.MediaBuyID)
	if err != nil {
		return nil, err
	}
	var pkg *models.MediaPackage
	for i := range packages {
		if packages[i].PackageID == packageID {
			pkg = &packages[i]
			break
		}
	}
	if pkg == nil {
		return nil, errs.NotFound("package", packageID)
	}

	if err := s.guardrail.checkCreatives(ctx, tenantID, creativeIDs); err != nil {
		return nil, err
	}
	found, err := s.creatives.GetByIDs(ctx, tenantID, creativeIDs)
	if err != nil {
		return nil, err
	}

	assets := make([]adapters.CreativeAsset, 0, len(creativeIDs))
	for _, id := range creativeIDs {
		c := found[id]
		a := adapters.CreativeAsset{CreativeID: c.CreativeID, Name: c.Name, Format: c.Format, PackageIDs: []string{packageID}}
		if c.URL != nil {
			a.URL = *c.URL
		}
		if c.Width != nil {
			a.Width = *c.Width
		}
		if c.Height != nil {
			a.Height = *c.Height
		}
		assets = append(assets, a)
	}

	resolved, err := s.resolver.Resolve(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}
	adapter := resolved.Adapter
	statuses, err := adapter.AddCreativeAssets(ctx, buy.MediaBuyID, assets, s.now())
	if err != nil {
		return nil, asAdapterError(adapter.Name(), err)
	}
	platformIDs := make([]string, 0, len(statuses))
	for _, st := range statuses {
		if st.PlatformCreativeID != "" {
			platformIDs = append(platformIDs, st.PlatformCreativeID)
		}
	}
	lineItem := pkg.PlatformLineItemID
	if lineItem == "" {
		lineItem = pkg.PackageID
	}
	associations, err := adapter.AssociateCreatives(ctx, []string{lineItem}, platformIDs)
	if err != nil {
		return nil, asAdapterError(adapter.Name(), err)
	}

	if err := s.buys.SetPackageCreatives(ctx, buy.TenantID, buy.MediaBuyID, packageID, mergeIDs(pkg.CreativeIDs, creativeIDs)); err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, principalID, "media_buy_creatives_assigned", buy.MediaBuyID, true, map[string]any{
		"package_id":   packageID,
		"creative_ids": creativeIDs,
	})
	return &AssignCreativesResult{Assets: statuses, Associations: associations}, nil
}

// ownedBuy loads a buy and hides it from principals that do not own it.
// ensureNew rejects a create whose derived id is already recorded for the
// tenant, before the ad server is called a second time for the same PO.
func (s *MediaBuyService) ensureNew(ctx context.Context, tenantID, mediaBuyID string) error {
	_, err := s.buys.GetByID(ctx, tenantID, mediaBuyID)
	switch {
	case err == nil:
		return errs.Validationf("duplicate_media_buy", "media buy %s already exists", mediaBuyID)
	case errs.KindOf(err) == errs.KindNotFound:
		return nil
	}
	return err
}

func (s *MediaBuyService) ownedBuy(ctx context.Context, tenantID, principalID, mediaBuyID string) (*models.MediaBuy, error) {
	if mediaBuyID == "" {
		return nil, errs.Validation("media_buy_id_required", "media_buy_id is required")
	}
	buy, err := s.buys.GetByID(ctx, tenantID, mediaBuyID)
	if err != nil {
		return nil, err
	}
	if buy.PrincipalID != principalID {
		return nil, errs.NotFound("media_buy", mediaBuyID)
	}
	return buy, nil
}

func (s *MediaBuyService) record(ctx context.Context, tenantID, principalID, action, mediaBuyID string, success bool, meta map[string]any) {
	if err := s.audit.Log(ctx, models.AuditLog{
		TenantID:    tenantID,
		PrincipalID: &principalID,
		ActorType:   "principal",
		Action:      action,
		EntityType:  "media_buy",
		EntityID:    mediaBuyID,
		Success:     success,
		Meta:        meta,
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("media_buy_id", mediaBuyID), zap.Error(err))
	}
}

func (s *MediaBuyService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if err := s.publisher.Publish(ctx, events.StreamMediaBuy, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("publish media buy event failed", zap.String("type", eventType), zap.Error(err))
	}
}

// asAdapterError keeps domain errors as they are and tags anything else with
// the backend that produced it.
func asAdapterError(backend string, err error) error {
	if _, ok := errs.As(err); ok {
		return err
	}
	return errs.Adapter(backend, err)
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "encode request")
	}
	out := map[string]any{}
	return out, eris.Wrap(json.Unmarshal(raw, &out), "decode request")
}

func mergeIDs(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, id := range append(append([]string{}, existing...), added...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
