package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/pricing"
	"go.uber.org/zap"
)

const defaultBroadstreetBaseURL = "https://api.broadstreetads.com/api/1"

var broadstreetCapabilities = Capabilities{
	PricingModels: []pricing.Model{pricing.CPM, pricing.FlatRate},
	Targeting:     []string{TargetGeoCountry, TargetGeoRegion, TargetGeoCity, TargetKeyValue},
}

// BroadstreetAdapter books campaigns and places one placement per package.
// Broadstreet authenticates with an access_token query parameter.
type BroadstreetAdapter struct {
	base
	client    *restClient
	networkID string
}

func NewBroadstreetAdapter(cfg models.AdapterConfig, principal models.Principal, dryRun bool, tenantID string, opts ClientOptions, log *zap.Logger) (*BroadstreetAdapter, error) {
	b := newBase(TypeBroadstreet, broadstreetCapabilities, cfg, principal, dryRun, tenantID, log)
	if !b.dryRun && (cfg.NetworkCode == "" || cfg.APIKey == "") {
		return nil, errs.AdapterMessage(TypeBroadstreet, "missing_credentials", "network id and access token are required", "")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBroadstreetBaseURL
	}
	query := url.Values{}
	query.Set("access_token", cfg.APIKey)
	return &BroadstreetAdapter{
		base:      b,
		client:    newRESTClient(TypeBroadstreet, baseURL, nil, query, opts, b.log),
		networkID: cfg.NetworkCode,
	}, nil
}

func (a *BroadstreetAdapter) advertiserPath() (string, error) {
	advertiserID := a.principal.AdvertiserID(a.name)
	if advertiserID == "" {
		return "", errs.AdapterMessage(a.name, "missing_advertiser",
			"principal has no advertiser id for this ad server", "principal_id="+a.principal.PrincipalID)
	}
	return "/networks/" + url.PathEscape(a.networkID) + "/advertisers/" + url.PathEscape(advertiserID), nil
}

func (a *BroadstreetAdapter) CreateMediaBuy(ctx context.Context, req CreateMediaBuyRequest, packages []models.MediaPackage, start, end time.Time) (*CreateMediaBuyResult, error) {
	advPath, err := a.advertiserPath()
	if err != nil {
		return nil, err
	}

	placements := make([]map[string]any, 0, len(packages))
	for _, p := range packages {
		model, err := a.packageModel(p)
		if err != nil {
			return nil, err
		}
		placement := map[string]any{
			"name":        p.Name,
			"external_id": p.PackageID,
			"pricing":     string(model),
			"rate":        p.Rate,
			"budget":      p.BudgetValue(),
		}
		if t := a.dropTargeting(p.PackageID, p.Targeting); len(t) > 0 {
			placement["targeting"] = t
		}
		placements = append(placements, placement)
	}

	body := map[string]any{
		"name":       req.OrderName,
		"start_date": start.Format("2006-01-02"),
		"end_date":   end.Format("2006-01-02"),
		"notes":      req.MediaBuyID,
		"placements": placements,
	}

	if a.dryRun {
		a.log.Info("dry run: would create campaign",
			zap.String("name", req.OrderName),
			zap.Int("placements", len(placements)),
		)
		results := make([]PackageResult, len(packages))
		for i, p := range packages {
			results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: fmt.Sprintf("bs_dry_placement_%d", i+1)}
		}
		return &CreateMediaBuyResult{Status: models.MediaBuyStatusDraft, Packages: results, Raw: map[string]any{"dry_run": true}}, nil
	}

	var resp struct {
		Campaign struct {
			ID         int64 `json:"id"`
			Placements []struct {
				ID         int64  `json:"id"`
				ExternalID string `json:"external_id"`
			} `json:"placements"`
		} `json:"campaign"`
	}
	if err := a.client.post(ctx, advPath+"/campaigns", body, &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}

	ids := make(map[string]string, len(resp.Campaign.Placements))
	for _, pl := range resp.Campaign.Placements {
		ids[pl.ExternalID] = strconv.FormatInt(pl.ID, 10)
	}
	results := make([]PackageResult, len(packages))
	for i, p := range packages {
		results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: ids[p.PackageID]}
	}
	return &CreateMediaBuyResult{
		MediaBuyID: "bs_" + strconv.FormatInt(resp.Campaign.ID, 10),
		Status:     models.MediaBuyStatusDraft,
		Packages:   results,
		Raw:        map[string]any{"campaign_id": resp.Campaign.ID},
	}, nil
}

func (a *BroadstreetAdapter) AddCreativeAssets(ctx context.Context, mediaBuyID string, assets []CreativeAsset, now time.Time) ([]AssetStatus, error) {
	advPath, err := a.advertiserPath()
	if err != nil {
		return nil, err
	}
	out := make([]AssetStatus, 0, len(assets))
	for _, asset := range assets {
		if a.dryRun {
			out = append(out, AssetStatus{CreativeID: asset.CreativeID, PlatformCreativeID: "bs_dry_ad_" + asset.CreativeID, Status: "approved"})
			continue
		}
		var resp struct {
			Advertisement struct {
				ID int64 `json:"id"`
			} `json:"advertisement"`
		}
		body := map[string]any{"name": asset.Name, "type": "static", "destination": asset.URL}
		if err := a.client.post(ctx, advPath+"/advertisements", body, &resp); err != nil {
			return out, errs.Adapter(a.name, err)
		}
		out = append(out, AssetStatus{CreativeID: asset.CreativeID, PlatformCreativeID: strconv.FormatInt(resp.Advertisement.ID, 10), Status: "approved"})
	}
	return out, nil
}

func (a *BroadstreetAdapter) AssociateCreatives(ctx context.Context, placementIDs, platformCreativeIDs []string) ([]CreativeAssociation, error) {
	var out []CreativeAssociation
	for _, placement := range placementIDs {
		for _, ad := range platformCreativeIDs {
			assoc := CreativeAssociation{LineItemID: placement, PlatformCreativeID: ad, Status: "success"}
			if !a.dryRun {
				body := map[string]any{"advertisement_id": ad}
				if err := a.client.post(ctx, "/placements/"+url.PathEscape(placement)+"/advertisements", body, nil); err != nil {
					a.log.Warn("placement association failed", zap.String("placement_id", placement), zap.Error(err))
					assoc.Status = "failed"
				}
			}
			out = append(out, assoc)
		}
	}
	return out, nil
}

func (a *BroadstreetAdapter) CheckMediaBuyStatus(ctx context.Context, mediaBuyID string, now time.Time) (*MediaBuyStatus, error) {
	if a.dryRun {
		return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: models.MediaBuyStatusActive}, nil
	}
	advPath, err := a.advertiserPath()
	if err != nil {
		return nil, err
	}
	var resp struct {
		Campaign struct {
			Paused   bool   `json:"paused"`
			Archived bool   `json:"archived"`
			Start    string `json:"start_date"`
			End      string `json:"end_date"`
		} `json:"campaign"`
	}
	if err := a.client.get(ctx, advPath+"/campaigns/"+broadstreetCampaignID(mediaBuyID), &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	c := resp.Campaign
	status := models.MediaBuyStatusActive
	switch {
	case c.Archived:
		status = models.MediaBuyStatusCancelled
	case c.Paused:
		status = models.MediaBuyStatusPaused
	default:
		if s, err := time.Parse("2006-01-02", c.Start); err == nil && now.Before(s) {
			status = models.MediaBuyStatusPending
		}
		if e, err := time.Parse("2006-01-02", c.End); err == nil && now.After(e.Add(24*time.Hour)) {
			status = models.MediaBuyStatusCompleted
		}
	}
	return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: status}, nil
}

func (a *BroadstreetAdapter) GetMediaBuyDelivery(ctx context.Context, mediaBuyID string, period DateRange, now time.Time) (*DeliveryReport, error) {
	report := &DeliveryReport{MediaBuyID: mediaBuyID, Period: period}
	if a.dryRun {
		return report, nil
	}
	var resp struct {
		Records []struct {
			PlacementID string `json:"placement_id"`
			Views       int64  `json:"views"`
			Clicks      int64  `json:"clicks"`
		} `json:"records"`
	}
	q := url.Values{}
	q.Set("campaign_id", broadstreetCampaignID(mediaBuyID))
	q.Set("start_date", period.Start.Format("2006-01-02"))
	q.Set("end_date", period.End.Format("2006-01-02"))
	if err := a.client.get(ctx, "/records?"+q.Encode(), &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	for _, r := range resp.Records {
		report.Packages = append(report.Packages, PackageDelivery{PackageID: r.PlacementID, Impressions: r.Views, Clicks: r.Clicks})
		report.Impressions += r.Views
		report.Clicks += r.Clicks
	}
	return report, nil
}

func (a *BroadstreetAdapter) UpdateMediaBuyPerformanceIndex(ctx context.Context, mediaBuyID string, perf []PackagePerformance) (bool, error) {
	a.log.Debug("performance index ignored", zap.String("media_buy_id", mediaBuyID), zap.Int("packages", len(perf)))
	return false, nil
}

func (a *BroadstreetAdapter) UpdateMediaBuy(ctx context.Context, req UpdateMediaBuyRequest, now time.Time) (*UpdateMediaBuyResult, error) {
	advPath, err := a.advertiserPath()
	if err != nil {
		return nil, err
	}
	path := advPath + "/campaigns/" + broadstreetCampaignID(req.MediaBuyID)
	body := map[string]any{}
	switch req.Action {
	case ActionPauseMediaBuy:
		body["paused"] = true
	case ActionResumeMediaBuy, ActionActivateOrder:
		body["paused"] = false
	case ActionUpdatePackageBudget:
		if req.Budget == nil {
			return nil, errs.Validation("budget_required", "budget is required")
		}
		path = "/placements/" + url.PathEscape(req.PackageID)
		body["budget"] = *req.Budget
	default:
		return nil, errs.Validationf("unsupported_action", "action %q is not supported by %s", req.Action, a.name)
	}

	if a.dryRun {
		a.log.Info("dry run: would update", zap.String("path", path), zap.String("action", req.Action))
		return &UpdateMediaBuyResult{Status: "accepted", ImplementationDate: &now}, nil
	}
	if err := a.client.put(ctx, path, body, nil); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	return &UpdateMediaBuyResult{Status: "accepted", ImplementationDate: &now}, nil
}

func broadstreetCampaignID(mediaBuyID string) string {
	return strings.TrimPrefix(mediaBuyID, "bs_")
}
