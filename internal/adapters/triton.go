package adapters

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/pricing"
	"go.uber.org/zap"
)

const defaultTritonBaseURL = "https://tap.tritondigital.com/api/v1"

var tritonCapabilities = Capabilities{
	PricingModels: []pricing.Model{pricing.CPM},
	Targeting: []string{
		TargetGeoCountry, TargetGeoRegion, TargetGeoMetro, TargetDeviceType, TargetDaypart,
	},
}

// TritonAdapter books audio campaigns, one flight per package.
type TritonAdapter struct {
	base
	client    *restClient
	stationID string
}

func NewTritonAdapter(cfg models.AdapterConfig, principal models.Principal, dryRun bool, tenantID string, opts ClientOptions, log *zap.Logger) (*TritonAdapter, error) {
	b := newBase(TypeTritonDigital, tritonCapabilities, cfg, principal, dryRun, tenantID, log)
	if !b.dryRun && cfg.APIKey == "" {
		return nil, errs.AdapterMessage(TypeTritonDigital, "missing_credentials", "api key is required", "")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTritonBaseURL
	}
	headers := map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	return &TritonAdapter{
		base:      b,
		client:    newRESTClient(TypeTritonDigital, baseURL, headers, nil, opts, b.log),
		stationID: cfg.AccountID,
	}, nil
}

type tritonFlight struct {
	Name        string         `json:"name"`
	ExternalID  string         `json:"external_id"`
	Start       string         `json:"start_date"`
	End         string         `json:"end_date"`
	CPM         float64        `json:"cpm"`
	Impressions int64          `json:"impression_goal"`
	Targeting   map[string]any `json:"targeting,omitempty"`
}

func (a *TritonAdapter) CreateMediaBuy(ctx context.Context, req CreateMediaBuyRequest, packages []models.MediaPackage, start, end time.Time) (*CreateMediaBuyResult, error) {
	flights := make([]tritonFlight, 0, len(packages))
	for _, p := range packages {
		if _, err := a.packageModel(p); err != nil {
			return nil, err
		}
		flights = append(flights, tritonFlight{
			Name:        p.Name,
			ExternalID:  p.PackageID,
			Start:       start.Format("2006-01-02"),
			End:         end.Format("2006-01-02"),
			CPM:         p.Rate,
			Impressions: p.Impressions,
			Targeting:   a.dropTargeting(p.PackageID, p.Targeting),
		})
	}

	body := map[string]any{
		"name":        req.OrderName,
		"advertiser":  req.AdvertiserName,
		"external_id": req.MediaBuyID,
		"station_id":  a.stationID,
		"budget":      req.Budget,
		"currency":    req.Currency,
		"flights":     flights,
	}

	if a.dryRun {
		a.log.Info("dry run: would create audio campaign",
			zap.String("name", req.OrderName),
			zap.Int("flights", len(flights)),
		)
		results := make([]PackageResult, len(packages))
		for i, p := range packages {
			results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: fmt.Sprintf("triton_dry_flight_%d", i+1)}
		}
		return &CreateMediaBuyResult{Status: models.MediaBuyStatusDraft, Packages: results, Raw: map[string]any{"dry_run": true}}, nil
	}

	var resp struct {
		CampaignID string `json:"campaign_id"`
		Flights    []struct {
			ExternalID string `json:"external_id"`
			FlightID   string `json:"flight_id"`
		} `json:"flights"`
	}
	if err := a.client.post(ctx, "/campaigns", body, &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}

	ids := make(map[string]string, len(resp.Flights))
	for _, f := range resp.Flights {
		ids[f.ExternalID] = f.FlightID
	}
	results := make([]PackageResult, len(packages))
	for i, p := range packages {
		results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: ids[p.PackageID]}
	}
	return &CreateMediaBuyResult{
		Status:   models.MediaBuyStatusDraft,
		Packages: results,
		Raw:      map[string]any{"campaign_id": resp.CampaignID},
	}, nil
}

func (a *TritonAdapter) AddCreativeAssets(ctx context.Context, mediaBuyID string, assets []CreativeAsset, now time.Time) ([]AssetStatus, error) {
	out := make([]AssetStatus, 0, len(assets))
	for _, asset := range assets {
		if a.dryRun {
			out = append(out, AssetStatus{CreativeID: asset.CreativeID, PlatformCreativeID: "triton_dry_cr_" + asset.CreativeID, Status: "approved"})
			continue
		}
		var resp struct {
			AudioID string `json:"audio_id"`
			Status  string `json:"status"`
		}
		body := map[string]any{"name": asset.Name, "url": asset.URL, "external_id": asset.CreativeID}
		if err := a.client.post(ctx, a.campaignPath(mediaBuyID)+"/audio", body, &resp); err != nil {
			return out, errs.Adapter(a.name, err)
		}
		out = append(out, AssetStatus{CreativeID: asset.CreativeID, PlatformCreativeID: resp.AudioID, Status: resp.Status})
	}
	return out, nil
}

func (a *TritonAdapter) AssociateCreatives(ctx context.Context, flightIDs, platformCreativeIDs []string) ([]CreativeAssociation, error) {
	var out []CreativeAssociation
	for _, flight := range flightIDs {
		status := "success"
		if !a.dryRun {
			body := map[string]any{"audio_ids": platformCreativeIDs}
			if err := a.client.put(ctx, "/flights/"+url.PathEscape(flight)+"/audio", body, nil); err != nil {
				a.log.Warn("audio association failed", zap.String("flight_id", flight), zap.Error(err))
				status = "failed"
			}
		}
		for _, cr := range platformCreativeIDs {
			out = append(out, CreativeAssociation{LineItemID: flight, PlatformCreativeID: cr, Status: status})
		}
	}
	return out, nil
}

var tritonStatus = map[string]string{
	"draft":     models.MediaBuyStatusDraft,
	"scheduled": models.MediaBuyStatusPending,
	"running":   models.MediaBuyStatusActive,
	"paused":    models.MediaBuyStatusPaused,
	"ended":     models.MediaBuyStatusCompleted,
	"cancelled": models.MediaBuyStatusCancelled,
}

func (a *TritonAdapter) CheckMediaBuyStatus(ctx context.Context, mediaBuyID string, now time.Time) (*MediaBuyStatus, error) {
	if a.dryRun {
		return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: models.MediaBuyStatusActive}, nil
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := a.client.get(ctx, a.campaignPath(mediaBuyID), &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	status, ok := tritonStatus[resp.Status]
	if !ok {
		status = models.MediaBuyStatusPending
	}
	return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: status}, nil
}

func (a *TritonAdapter) GetMediaBuyDelivery(ctx context.Context, mediaBuyID string, period DateRange, now time.Time) (*DeliveryReport, error) {
	report := &DeliveryReport{MediaBuyID: mediaBuyID, Period: period}
	if a.dryRun {
		return report, nil
	}
	var resp struct {
		Currency string `json:"currency"`
		Flights  []struct {
			ExternalID  string  `json:"external_id"`
			Impressions int64   `json:"impressions"`
			Spend       float64 `json:"spend"`
		} `json:"flights"`
	}
	q := url.Values{}
	q.Set("from", period.Start.Format("2006-01-02"))
	q.Set("to", period.End.Format("2006-01-02"))
	if err := a.client.get(ctx, a.campaignPath(mediaBuyID)+"/stats?"+q.Encode(), &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	report.Currency = resp.Currency
	for _, f := range resp.Flights {
		report.Packages = append(report.Packages, PackageDelivery{PackageID: f.ExternalID, Impressions: f.Impressions, Spend: f.Spend})
		report.Impressions += f.Impressions
		report.Spend += f.Spend
	}
	return report, nil
}

func (a *TritonAdapter) UpdateMediaBuyPerformanceIndex(ctx context.Context, mediaBuyID string, perf []PackagePerformance) (bool, error) {
	a.log.Debug("performance index ignored", zap.String("media_buy_id", mediaBuyID), zap.Int("packages", len(perf)))
	return false, nil
}

func (a *TritonAdapter) UpdateMediaBuy(ctx context.Context, req UpdateMediaBuyRequest, now time.Time) (*UpdateMediaBuyResult, error) {
	path := a.campaignPath(req.MediaBuyID)
	body := map[string]any{}
	switch req.Action {
	case ActionPauseMediaBuy:
		body["status"] = "paused"
	case ActionResumeMediaBuy, ActionActivateOrder:
		body["status"] = "running"
	case ActionPausePackage, ActionResumePackage:
		path += "/flights/external/" + url.PathEscape(req.PackageID)
		body["status"] = "running"
		if req.Action == ActionPausePackage {
			body["status"] = "paused"
		}
	case ActionUpdatePackageBudget, ActionUpdatePackageImpressions:
		path += "/flights/external/" + url.PathEscape(req.PackageID)
		if req.Budget != nil {
			body["budget"] = *req.Budget
		}
		if req.Impressions != nil {
			body["impression_goal"] = *req.Impressions
		}
	default:
		return nil, errs.Validationf("unsupported_action", "action %q is not supported", req.Action)
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

func (a *TritonAdapter) campaignPath(mediaBuyID string) string {
	return "/campaigns/external/" + url.PathEscape(mediaBuyID)
}
