package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/pricing"
	"go.uber.org/zap"
)

const defaultGAMBaseURL = "https://gam-gateway.internal/v1"

var gamCapabilities = Capabilities{
	PricingModels: []pricing.Model{pricing.CPM, pricing.VCPM, pricing.CPC, pricing.FlatRate},
	Targeting: []string{
		TargetGeoCountry, TargetGeoRegion, TargetGeoMetro, TargetGeoCity, TargetGeoZip,
		TargetDeviceType, TargetOS, TargetBrowser, TargetKeyValue, TargetAudienceSegment, TargetDaypart,
	},
}

// GoogleAdManagerAdapter creates orders and line items through a JSON gateway
// in front of the Ad Manager API.
type GoogleAdManagerAdapter struct {
	base
	client      *restClient
	networkCode string
}

func NewGoogleAdManagerAdapter(cfg models.AdapterConfig, principal models.Principal, dryRun bool, tenantID string, opts ClientOptions, log *zap.Logger) (*GoogleAdManagerAdapter, error) {
	b := newBase(TypeGoogleAdManager, gamCapabilities, cfg, principal, dryRun, tenantID, log)
	if cfg.NetworkCode == "" && !b.dryRun {
		return nil, errs.AdapterMessage(TypeGoogleAdManager, "missing_network_code", "network code is not configured", "")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGAMBaseURL
	}
	headers := map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	return &GoogleAdManagerAdapter{
		base:        b,
		client:      newRESTClient(TypeGoogleAdManager, baseURL, headers, nil, opts, b.log),
		networkCode: cfg.NetworkCode,
	}, nil
}

type gamLineItem struct {
	Name             string         `json:"name"`
	ExternalID       string         `json:"external_id"`
	LineItemType     string         `json:"line_item_type"`
	Priority         int            `json:"priority"`
	CostType         string         `json:"cost_type"`
	CostPerUnit      float64        `json:"cost_per_unit"`
	PrimaryGoalUnits int64          `json:"primary_goal_units"`
	Budget           float64        `json:"budget"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time"`
	Targeting        map[string]any `json:"targeting,omitempty"`
}

type gamOrder struct {
	Name         string        `json:"name"`
	AdvertiserID string        `json:"advertiser_id"`
	TraffickerID string        `json:"trafficker_id,omitempty"`
	PONumber     string        `json:"po_number,omitempty"`
	ExternalID   string        `json:"external_order_id"`
	Currency     string        `json:"currency_code"`
	TotalBudget  float64       `json:"total_budget"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	LineItems    []gamLineItem `json:"line_items"`
}

type gamOrderResponse struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	LineItems []struct {
		ExternalID string `json:"external_id"`
		LineItemID string `json:"line_item_id"`
	} `json:"line_items"`
}

// buildLineItems resolves line-item type, priority and cost type per package.
func (a *GoogleAdManagerAdapter) buildLineItems(packages []models.MediaPackage, start, end time.Time) ([]gamLineItem, error) {
	items := make([]gamLineItem, 0, len(packages))
	for _, p := range packages {
		model, err := a.packageModel(p)
		if err != nil {
			return nil, err
		}
		lineType, err := pricing.SelectLineItemType(model, p.IsGuaranteed(), pricing.LineItemType(p.LineItemType))
		if err != nil {
			return nil, err
		}
		costType, err := pricing.CostTypeFor(model)
		if err != nil {
			return nil, err
		}
		items = append(items, gamLineItem{
			Name:             p.Name,
			ExternalID:       p.PackageID,
			LineItemType:     string(lineType),
			Priority:         pricing.DefaultPriority(lineType),
			CostType:         string(costType),
			CostPerUnit:      p.Rate,
			PrimaryGoalUnits: p.Impressions,
			Budget:           p.BudgetValue(),
			StartTime:        start,
			EndTime:          end,
			Targeting:        a.dropTargeting(p.PackageID, p.Targeting),
		})
	}
	return items, nil
}

func (a *GoogleAdManagerAdapter) CreateMediaBuy(ctx context.Context, req CreateMediaBuyRequest, packages []models.MediaPackage, start, end time.Time) (*CreateMediaBuyResult, error) {
	advertiserID := a.principal.AdvertiserID(a.name)
	if advertiserID == "" {
		return nil, errs.AdapterMessage(a.name, "missing_advertiser",
			"principal has no advertiser id for this ad server", "principal_id="+a.principal.PrincipalID)
	}

	items, err := a.buildLineItems(packages, start, end)
	if err != nil {
		return nil, err
	}

	order := gamOrder{
		Name:         req.OrderName,
		AdvertiserID: advertiserID,
		TraffickerID: a.cfg.TrafficerID,
		PONumber:     req.PONumber,
		ExternalID:   req.MediaBuyID,
		Currency:     req.Currency,
		TotalBudget:  req.Budget,
		StartTime:    start,
		EndTime:      end,
		LineItems:    items,
	}

	if a.dryRun {
		a.log.Info("dry run: would create order",
			zap.String("order_name", order.Name),
			zap.String("advertiser_id", advertiserID),
			zap.Int("line_items", len(items)),
		)
		results := make([]PackageResult, len(packages))
		for i, p := range packages {
			results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: fmt.Sprintf("gam_dry_li_%d", i+1)}
		}
		return &CreateMediaBuyResult{Status: models.MediaBuyStatusDraft, Packages: results, Raw: map[string]any{"dry_run": true}}, nil
	}

	var resp gamOrderResponse
	if err := a.client.post(ctx, "/networks/"+url.PathEscape(a.networkCode)+"/orders", order, &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}

	byExternal := make(map[string]string, len(resp.LineItems))
	for _, li := range resp.LineItems {
		byExternal[li.ExternalID] = li.LineItemID
	}
	results := make([]PackageResult, len(packages))
	for i, p := range packages {
		results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: byExternal[p.PackageID]}
	}

	a.log.Info("order created", zap.String("order_id", resp.OrderID), zap.Int("line_items", len(resp.LineItems)))
	return &CreateMediaBuyResult{
		Status:   models.MediaBuyStatusDraft,
		Packages: results,
		Raw:      map[string]any{"order_id": resp.OrderID, "status": resp.Status},
	}, nil
}

func (a *GoogleAdManagerAdapter) AddCreativeAssets(ctx context.Context, mediaBuyID string, assets []CreativeAsset, now time.Time) ([]AssetStatus, error) {
	advertiserID := a.principal.AdvertiserID(a.name)
	out := make([]AssetStatus, 0, len(assets))
	for _, asset := range assets {
		if a.dryRun {
			a.log.Info("dry run: would upload creative", zap.String("creative_id", asset.CreativeID))
			out = append(out, AssetStatus{CreativeID: asset.CreativeID, PlatformCreativeID: "gam_dry_cr_" + asset.CreativeID, Status: "approved"})
			continue
		}
		body := map[string]any{
			"advertiser_id": advertiserID,
			"name":          asset.Name,
			"external_id":   asset.CreativeID,
			"destination":   asset.URL,
			"size":          map[string]int{"width": asset.Width, "height": asset.Height},
		}
		var resp struct {
			CreativeID string `json:"creative_id"`
		}
		if err := a.client.post(ctx, "/networks/"+url.PathEscape(a.networkCode)+"/creatives", body, &resp); err != nil {
			return out, errs.Adapter(a.name, err)
		}
		out = append(out, AssetStatus{CreativeID: asset.CreativeID, PlatformCreativeID: resp.CreativeID, Status: "approved"})
	}
	return out, nil
}

func (a *GoogleAdManagerAdapter) AssociateCreatives(ctx context.Context, lineItemIDs, platformCreativeIDs []string) ([]CreativeAssociation, error) {
	var pairs []CreativeAssociation
	for _, li := range lineItemIDs {
		for _, cr := range platformCreativeIDs {
			pairs = append(pairs, CreativeAssociation{LineItemID: li, PlatformCreativeID: cr, Status: "success"})
		}
	}
	if len(pairs) == 0 {
		return pairs, nil
	}
	if a.dryRun {
		a.log.Info("dry run: would associate creatives", zap.Int("associations", len(pairs)))
		return pairs, nil
	}
	body := map[string]any{"associations": pairs}
	if err := a.client.post(ctx, "/networks/"+url.PathEscape(a.networkCode)+"/lineItemCreativeAssociations", body, nil); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	return pairs, nil
}

var gamOrderStatus = map[string]string{
	"DRAFT":            models.MediaBuyStatusDraft,
	"PENDING_APPROVAL": models.MediaBuyStatusPending,
	"APPROVED":         models.MediaBuyStatusActive,
	"PAUSED":           models.MediaBuyStatusPaused,
	"COMPLETED":        models.MediaBuyStatusCompleted,
	"CANCELED":         models.MediaBuyStatusCancelled,
	"DISAPPROVED":      models.MediaBuyStatusCancelled,
}

func (a *GoogleAdManagerAdapter) CheckMediaBuyStatus(ctx context.Context, mediaBuyID string, now time.Time) (*MediaBuyStatus, error) {
	if a.dryRun {
		return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: models.MediaBuyStatusActive}, nil
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := a.client.get(ctx, a.orderPath(mediaBuyID), &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	status, ok := gamOrderStatus[strings.ToUpper(resp.Status)]
	if !ok {
		status = models.MediaBuyStatusPending
	}
	return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: status}, nil
}

func (a *GoogleAdManagerAdapter) GetMediaBuyDelivery(ctx context.Context, mediaBuyID string, period DateRange, now time.Time) (*DeliveryReport, error) {
	report := &DeliveryReport{MediaBuyID: mediaBuyID, Period: period}
	if a.dryRun {
		return report, nil
	}
	var resp struct {
		Currency string `json:"currency_code"`
		Rows     []struct {
			ExternalID  string  `json:"line_item_external_id"`
			Impressions int64   `json:"impressions"`
			Clicks      int64   `json:"clicks"`
			Revenue     float64 `json:"revenue"`
		} `json:"rows"`
	}
	path := fmt.Sprintf("%s/delivery?start=%s&end=%s", a.orderPath(mediaBuyID),
		period.Start.Format("2006-01-02"), period.End.Format("2006-01-02"))
	if err := a.client.get(ctx, path, &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	report.Currency = resp.Currency
	for _, r := range resp.Rows {
		report.Packages = append(report.Packages, PackageDelivery{PackageID: r.ExternalID, Impressions: r.Impressions, Clicks: r.Clicks, Spend: r.Revenue})
		report.Impressions += r.Impressions
		report.Clicks += r.Clicks
		report.Spend += r.Revenue
	}
	return report, nil
}

func (a *GoogleAdManagerAdapter) UpdateMediaBuyPerformanceIndex(ctx context.Context, mediaBuyID string, perf []PackagePerformance) (bool, error) {
	if a.dryRun {
		a.log.Info("dry run: would update performance index", zap.String("media_buy_id", mediaBuyID), zap.Int("packages", len(perf)))
		return true, nil
	}
	if err := a.client.put(ctx, a.orderPath(mediaBuyID)+"/performance", map[string]any{"packages": perf}, nil); err != nil {
		return false, errs.Adapter(a.name, err)
	}
	return true, nil
}

var gamActionPaths = map[string]string{
	ActionPauseMediaBuy:  ":pause",
	ActionResumeMediaBuy: ":resume",
	ActionActivateOrder:  ":approve",
	ActionPausePackage:   ":pause",
	ActionResumePackage:  ":resume",
}

func (a *GoogleAdManagerAdapter) UpdateMediaBuy(ctx context.Context, req UpdateMediaBuyRequest, now time.Time) (*UpdateMediaBuyResult, error) {
	if !IsValidAction(req.Action) {
		return nil, errs.Validationf("unsupported_action", "action %q is not supported", req.Action)
	}
	if a.dryRun {
		a.log.Info("dry run: would update media buy",
			zap.String("media_buy_id", req.MediaBuyID),
			zap.String("action", req.Action),
			zap.String("package_id", req.PackageID),
		)
		return &UpdateMediaBuyResult{Status: "accepted", ImplementationDate: &now}, nil
	}

	var err error
	switch req.Action {
	case ActionUpdatePackageBudget, ActionUpdatePackageImpressions:
		body := map[string]any{}
		if req.Budget != nil {
			body["budget"] = *req.Budget
		}
		if req.Impressions != nil {
			body["primary_goal_units"] = *req.Impressions
		}
		err = a.client.put(ctx, a.lineItemPath(req.MediaBuyID, req.PackageID), body, nil)
	case ActionPausePackage, ActionResumePackage:
		err = a.client.post(ctx, a.lineItemPath(req.MediaBuyID, req.PackageID)+gamActionPaths[req.Action], nil, nil)
	default:
		err = a.client.post(ctx, a.orderPath(req.MediaBuyID)+gamActionPaths[req.Action], nil, nil)
	}
	if err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	return &UpdateMediaBuyResult{Status: "accepted", ImplementationDate: &now}, nil
}

func (a *GoogleAdManagerAdapter) orderPath(mediaBuyID string) string {
	return "/networks/" + url.PathEscape(a.networkCode) + "/orders/external/" + url.PathEscape(mediaBuyID)
}

func (a *GoogleAdManagerAdapter) lineItemPath(mediaBuyID, packageID string) string {
	return a.orderPath(mediaBuyID) + "/lineItems/external/" + url.PathEscape(packageID)
}
