package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/pricing"
	"go.uber.org/zap"
)

var mockCapabilities = Capabilities{
	PricingModels: pricing.AllModels,
	Targeting:     allTargeting,
}

type mockBuy struct {
	req      CreateMediaBuyRequest
	packages []models.MediaPackage
	start    time.Time
	end      time.Time
	paused   bool
	pausedPk map[string]bool
	perf     map[string]float64
}

// MockStore keeps mock media buys in memory. It is safe for concurrent use.
type MockStore struct {
	mu   sync.Mutex
	buys map[string]*mockBuy
}

func NewMockStore() *MockStore {
	return &MockStore{buys: make(map[string]*mockBuy)}
}

// MockAdapter is a deterministic in-memory backend. Setting
// adapter_config.extra.fail_create makes CreateMediaBuy fail.
type MockAdapter struct {
	base
	store *MockStore
}

func NewMockAdapter(store *MockStore, cfg models.AdapterConfig, principal models.Principal, dryRun bool, tenantID string, log *zap.Logger) *MockAdapter {
	if store == nil {
		store = NewMockStore()
	}
	return &MockAdapter{
		base:  newBase(TypeMock, mockCapabilities, cfg, principal, dryRun, tenantID, log),
		store: store,
	}
}

func (a *MockAdapter) CreateMediaBuy(ctx context.Context, req CreateMediaBuyRequest, packages []models.MediaPackage, start, end time.Time) (*CreateMediaBuyResult, error) {
	if fail, _ := a.cfg.Extra["fail_create"].(bool); fail {
		return nil, errs.AdapterMessage(a.name, "create_failed", "simulated order creation failure", "fail_create is set")
	}
	if !end.After(start) {
		return nil, errs.AdapterMessage(a.name, "invalid_flight", "end date must be after start date", "")
	}

	id := req.MediaBuyID
	if id == "" {
		id = "mock_" + shortHash(req.OrderName+req.BuyerRef+start.String())
	}

	results := make([]PackageResult, len(packages))
	stored := make([]models.MediaPackage, len(packages))
	for i, p := range packages {
		lineItem := fmt.Sprintf("mock_li_%s_%d", shortHash(id), i+1)
		results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: lineItem}
		p.PlatformLineItemID = lineItem
		stored[i] = p
	}

	a.log.Info("mock media buy created",
		zap.String("media_buy_id", id),
		zap.Int("packages", len(packages)),
		zap.Float64("budget", req.Budget),
	)

	a.store.mu.Lock()
	a.store.buys[a.storeKey(id)] = &mockBuy{req: req, packages: stored, start: start, end: end, pausedPk: map[string]bool{}, perf: map[string]float64{}}
	a.store.mu.Unlock()

	return &CreateMediaBuyResult{
		MediaBuyID: id,
		BuyerRef:   req.BuyerRef,
		Status:     models.MediaBuyStatusDraft,
		Packages:   results,
		Raw:        map[string]any{"adapter": a.name, "dry_run": a.dryRun},
	}, nil
}

func (a *MockAdapter) AddCreativeAssets(ctx context.Context, mediaBuyID string, assets []CreativeAsset, now time.Time) ([]AssetStatus, error) {
	if _, err := a.lookup(mediaBuyID); err != nil {
		return nil, err
	}
	out := make([]AssetStatus, len(assets))
	for i, asset := range assets {
		out[i] = AssetStatus{
			CreativeID:         asset.CreativeID,
			PlatformCreativeID: "mock_cr_" + shortHash(asset.CreativeID),
			Status:             "approved",
		}
	}
	return out, nil
}

func (a *MockAdapter) AssociateCreatives(ctx context.Context, lineItemIDs, platformCreativeIDs []string) ([]CreativeAssociation, error) {
	var out []CreativeAssociation
	for _, li := range lineItemIDs {
		for _, cr := range platformCreativeIDs {
			out = append(out, CreativeAssociation{LineItemID: li, PlatformCreativeID: cr, Status: "success"})
		}
	}
	return out, nil
}

func (a *MockAdapter) CheckMediaBuyStatus(ctx context.Context, mediaBuyID string, now time.Time) (*MediaBuyStatus, error) {
	buy, err := a.lookup(mediaBuyID)
	if err != nil {
		return nil, err
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	status := models.MediaBuyStatusActive
	switch {
	case now.Before(buy.start):
		status = models.MediaBuyStatusPending
	case !now.Before(buy.end):
		status = models.MediaBuyStatusCompleted
	case buy.paused:
		status = models.MediaBuyStatusPaused
	}
	return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: status}, nil
}

// GetMediaBuyDelivery simulates linear pacing: delivery is proportional to
// the elapsed share of the flight at period.End (capped by now).
func (a *MockAdapter) GetMediaBuyDelivery(ctx context.Context, mediaBuyID string, period DateRange, now time.Time) (*DeliveryReport, error) {
	buy, err := a.lookup(mediaBuyID)
	if err != nil {
		return nil, err
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	at := period.End
	if at.IsZero() || at.After(now) {
		at = now
	}
	frac := flightFraction(buy.start, buy.end, at)

	report := &DeliveryReport{MediaBuyID: mediaBuyID, Period: period, Currency: buy.req.Currency}
	for _, p := range buy.packages {
		pkgFrac := frac
		if buy.pausedPk[p.PackageID] {
			pkgFrac = frac / 2
		}
		impressions := int64(float64(p.Impressions) * pkgFrac)
		spend := p.BudgetValue() * pkgFrac
		// 0.1% CTR keeps clicks deterministic.
		clicks := impressions / 1000
		report.Packages = append(report.Packages, PackageDelivery{
			PackageID:   p.PackageID,
			Impressions: impressions,
			Clicks:      clicks,
			Spend:       spend,
		})
		report.Impressions += impressions
		report.Clicks += clicks
		report.Spend += spend
	}
	return report, nil
}

func (a *MockAdapter) UpdateMediaBuyPerformanceIndex(ctx context.Context, mediaBuyID string, perf []PackagePerformance) (bool, error) {
	buy, err := a.lookup(mediaBuyID)
	if err != nil {
		return false, err
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	for _, p := range perf {
		buy.perf[p.PackageID] = p.PerformanceIndex
	}
	return true, nil
}

func (a *MockAdapter) UpdateMediaBuy(ctx context.Context, req UpdateMediaBuyRequest, now time.Time) (*UpdateMediaBuyResult, error) {
	buy, err := a.lookup(req.MediaBuyID)
	if err != nil {
		return nil, err
	}
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	switch req.Action {
	case ActionPauseMediaBuy:
		buy.paused = true
	case ActionResumeMediaBuy, ActionActivateOrder:
		buy.paused = false
	case ActionPausePackage, ActionResumePackage:
		if !buy.hasPackage(req.PackageID) {
			return nil, errs.NotFound("package", req.PackageID)
		}
		buy.pausedPk[req.PackageID] = req.Action == ActionPausePackage
	case ActionUpdatePackageBudget, ActionUpdatePackageImpressions:
		idx := buy.packageIndex(req.PackageID)
		if idx < 0 {
			return nil, errs.NotFound("package", req.PackageID)
		}
		if req.Budget != nil {
			b := *req.Budget
			buy.packages[idx].Budget = &b
		}
		if req.Impressions != nil {
			buy.packages[idx].Impressions = *req.Impressions
		}
	default:
		return nil, errs.Validationf("unsupported_action", "action %q is not supported", req.Action)
	}

	return &UpdateMediaBuyResult{Status: "accepted", ImplementationDate: &now}, nil
}

// storeKey scopes ids per tenant; two tenants may reuse the same PO number.
func (a *MockAdapter) storeKey(mediaBuyID string) string {
	return a.tenantID + "/" + mediaBuyID
}

func (a *MockAdapter) lookup(mediaBuyID string) (*mockBuy, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	buy, ok := a.store.buys[a.storeKey(mediaBuyID)]
	if !ok {
		return nil, errs.NotFound("media_buy", mediaBuyID)
	}
	return buy, nil
}

func (b *mockBuy) packageIndex(id string) int {
	for i, p := range b.packages {
		if p.PackageID == id {
			return i
		}
	}
	return -1
}

func (b *mockBuy) hasPackage(id string) bool { return b.packageIndex(id) >= 0 }

func flightFraction(start, end, at time.Time) float64 {
	total := end.Sub(start)
	if total <= 0 || at.Before(start) {
		return 0
	}
	if !at.Before(end) {
		return 1
	}
	return float64(at.Sub(start)) / float64(total)
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
