package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/pricing"
	"go.uber.org/zap"
)

const defaultKevelBaseURL = "https://api.kevel.co/v1"

var kevelCapabilities = Capabilities{
	PricingModels: []pricing.Model{pricing.CPM, pricing.CPC, pricing.FlatRate},
	Targeting: []string{
		TargetGeoCountry, TargetGeoRegion, TargetGeoMetro, TargetGeoCity,
		TargetDeviceType, TargetKeyValue, TargetDaypart,
	},
}

// Kevel rate types.
const (
	kevelRateFlat = 1
	kevelRateCPM  = 2
	kevelRateCPC  = 3
)

var kevelRateTypes = map[pricing.Model]int{
	pricing.FlatRate: kevelRateFlat,
	pricing.CPM:      kevelRateCPM,
	pricing.CPC:      kevelRateCPC,
}

// KevelAdapter books campaigns with one flight per package.
type KevelAdapter struct {
	base
	client *restClient
}

func NewKevelAdapter(cfg models.AdapterConfig, principal models.Principal, dryRun bool, tenantID string, opts ClientOptions, log *zap.Logger) (*KevelAdapter, error) {
	b := newBase(TypeKevel, kevelCapabilities, cfg, principal, dryRun, tenantID, log)
	if !b.dryRun && (cfg.AccountID == "" || cfg.APIKey == "") {
		return nil, errs.AdapterMessage(TypeKevel, "missing_credentials", "network id and api key are required", "")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultKevelBaseURL
	}
	headers := map[string]string{"X-Adzerk-ApiKey": cfg.APIKey}
	return &KevelAdapter{
		base:   b,
		client: newRESTClient(TypeKevel, baseURL, headers, nil, opts, b.log),
	}, nil
}

type kevelFlight struct {
	Name            string         `json:"Name"`
	CampaignID      int64          `json:"CampaignId,omitempty"`
	StartDateISO    string         `json:"StartDateISO"`
	EndDateISO      string         `json:"EndDateISO"`
	RateType        int            `json:"RateType"`
	Price           float64        `json:"Price"`
	Impressions     int64          `json:"Impressions,omitempty"`
	DailyCapAmount  float64        `json:"DailyCapAmount,omitempty"`
	IsActive        bool           `json:"IsActive"`
	CustomTargeting map[string]any `json:"CustomTargeting,omitempty"`
}

type kevelCampaign struct {
	Name         string        `json:"Name"`
	AdvertiserID int64         `json:"AdvertiserId"`
	NetworkID    string        `json:"NetworkId,omitempty"`
	IsActive     bool          `json:"IsActive"`
	Price        float64       `json:"Price"`
	Flights      []kevelFlight `json:"Flights"`
}

func (a *KevelAdapter) CreateMediaBuy(ctx context.Context, req CreateMediaBuyRequest, packages []models.MediaPackage, start, end time.Time) (*CreateMediaBuyResult, error) {
	advertiserID, err := strconv.ParseInt(a.principal.AdvertiserID(a.name), 10, 64)
	if err != nil {
		return nil, errs.AdapterMessage(a.name, "missing_advertiser",
			"principal has no numeric advertiser id for this ad server", "principal_id="+a.principal.PrincipalID)
	}

	flights := make([]kevelFlight, 0, len(packages))
	for _, p := range packages {
		model, err := a.packageModel(p)
		if err != nil {
			return nil, err
		}
		price := p.Rate
		if model == pricing.FlatRate {
			price = p.BudgetValue()
		}
		flights = append(flights, kevelFlight{
			Name:            p.PackageID,
			StartDateISO:    start.UTC().Format(time.RFC3339),
			EndDateISO:      end.UTC().Format(time.RFC3339),
			RateType:        kevelRateTypes[model],
			Price:           price,
			Impressions:     p.Impressions,
			IsActive:        false,
			CustomTargeting: a.dropTargeting(p.PackageID, p.Targeting),
		})
	}

	campaign := kevelCampaign{
		Name:         req.OrderName,
		AdvertiserID: advertiserID,
		NetworkID:    a.cfg.AccountID,
		Price:        req.Budget,
		Flights:      flights,
	}

	if a.dryRun {
		a.log.Info("dry run: would create campaign",
			zap.String("name", campaign.Name),
			zap.Int("flights", len(flights)),
		)
		results := make([]PackageResult, len(packages))
		for i, p := range packages {
			results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: fmt.Sprintf("kevel_dry_flight_%d", i+1)}
		}
		return &CreateMediaBuyResult{Status: models.MediaBuyStatusDraft, Packages: results, Raw: map[string]any{"dry_run": true}}, nil
	}

	var resp struct {
		ID      int64 `json:"Id"`
		Flights []struct {
			ID   int64  `json:"Id"`
			Name string `json:"Name"`
		} `json:"Flights"`
	}
	if err := a.client.post(ctx, "/campaign", campaign, &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}

	flightIDs := make(map[string]string, len(resp.Flights))
	for _, f := range resp.Flights {
		flightIDs[f.Name] = strconv.FormatInt(f.ID, 10)
	}
	results := make([]PackageResult, len(packages))
	for i, p := range packages {
		results[i] = PackageResult{PackageID: p.PackageID, PlatformLineItemID: flightIDs[p.PackageID]}
	}

	id := strconv.FormatInt(resp.ID, 10)
	a.log.Info("campaign created", zap.String("campaign_id", id))
	return &CreateMediaBuyResult{
		MediaBuyID: "kevel_" + id,
		Status:     models.MediaBuyStatusDraft,
		Packages:   results,
		Raw:        map[string]any{"campaign_id": resp.ID},
	}, nil
}

func (a *KevelAdapter) AddCreativeAssets(ctx context.Context, mediaBuyID string, assets []CreativeAsset, now time.Time) ([]AssetStatus, error) {
	out := make([]AssetStatus, 0, len(assets))
	for _, asset := range assets {
		if a.dryRun {
			a.log.Info("dry run: would create creative", zap.String("creative_id", asset.CreativeID))
			out = append(out, AssetStatus{CreativeID: asset.CreativeID, PlatformCreativeID: "kevel_dry_cr_" + asset.CreativeID, Status: "approved"})
			continue
		}
		body := map[string]any{
			"Title":    asset.Name,
			"Url":      asset.URL,
			"Width":    asset.Width,
			"Height":   asset.Height,
			"IsActive": true,
		}
		var resp struct {
			ID int64 `json:"Id"`
		}
		if err := a.client.post(ctx, "/creative", body, &resp); err != nil {
			return out, errs.Adapter(a.name, err)
		}
		out = append(out, AssetStatus{CreativeID: asset.CreativeID, PlatformCreativeID: strconv.FormatInt(resp.ID, 10), Status: "approved"})
	}
	return out, nil
}

// AssociateCreatives creates one ad per flight/creative pair.
func (a *KevelAdapter) AssociateCreatives(ctx context.Context, flightIDs, platformCreativeIDs []string) ([]CreativeAssociation, error) {
	var out []CreativeAssociation
	for _, flight := range flightIDs {
		for _, cr := range platformCreativeIDs {
			assoc := CreativeAssociation{LineItemID: flight, PlatformCreativeID: cr, Status: "success"}
			if !a.dryRun {
				body := map[string]any{"Creative": map[string]string{"Id": cr}, "FlightId": flight, "IsActive": true}
				if err := a.client.post(ctx, "/flight/"+flight+"/ad", body, nil); err != nil {
					a.log.Warn("ad creation failed", zap.String("flight_id", flight), zap.Error(err))
					assoc.Status = "failed"
				}
			}
			out = append(out, assoc)
		}
	}
	return out, nil
}

func (a *KevelAdapter) CheckMediaBuyStatus(ctx context.Context, mediaBuyID string, now time.Time) (*MediaBuyStatus, error) {
	if a.dryRun {
		return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: models.MediaBuyStatusActive}, nil
	}
	var resp struct {
		IsActive  bool `json:"IsActive"`
		IsDeleted bool `json:"IsDeleted"`
		Flights   []struct {
			EndDateISO string `json:"EndDateISO"`
		} `json:"Flights"`
	}
	if err := a.client.get(ctx, "/campaign/"+kevelCampaignID(mediaBuyID), &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	status := models.MediaBuyStatusPaused
	switch {
	case resp.IsDeleted:
		status = models.MediaBuyStatusCancelled
	case resp.IsActive:
		status = models.MediaBuyStatusActive
	}
	if status == models.MediaBuyStatusActive && len(resp.Flights) > 0 {
		ended := true
		for _, f := range resp.Flights {
			t, err := time.Parse(time.RFC3339, f.EndDateISO)
			if err != nil || t.After(now) {
				ended = false
				break
			}
		}
		if ended {
			status = models.MediaBuyStatusCompleted
		}
	}
	return &MediaBuyStatus{MediaBuyID: mediaBuyID, Status: status}, nil
}

func (a *KevelAdapter) GetMediaBuyDelivery(ctx context.Context, mediaBuyID string, period DateRange, now time.Time) (*DeliveryReport, error) {
	report := &DeliveryReport{MediaBuyID: mediaBuyID, Period: period}
	if a.dryRun {
		return report, nil
	}
	body := map[string]any{
		"StartDateISO": period.Start.UTC().Format(time.RFC3339),
		"EndDateISO":   period.End.UTC().Format(time.RFC3339),
		"GroupBy":      []string{"flightId"},
		"Parameters":   []map[string]any{{"campaignId": kevelCampaignID(mediaBuyID)}},
	}
	var resp struct {
		Records []struct {
			FlightID    int64   `json:"FlightId"`
			Impressions int64   `json:"Impressions"`
			Clicks      int64   `json:"Clicks"`
			Revenue     float64 `json:"Revenue"`
		} `json:"Records"`
	}
	if err := a.client.post(ctx, "/report/queue/instant", body, &resp); err != nil {
		return nil, errs.Adapter(a.name, err)
	}
	for _, r := range resp.Records {
		report.Packages = append(report.Packages, PackageDelivery{
			PackageID:   strconv.FormatInt(r.FlightID, 10),
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Spend:       r.Revenue,
		})
		report.Impressions += r.Impressions
		report.Clicks += r.Clicks
		report.Spend += r.Revenue
	}
	return report, nil
}

// UpdateMediaBuyPerformanceIndex is a no-op: Kevel optimizes flights itself.
func (a *KevelAdapter) UpdateMediaBuyPerformanceIndex(ctx context.Context, mediaBuyID string, perf []PackagePerformance) (bool, error) {
	a.log.Debug("performance index ignored", zap.String("media_buy_id", mediaBuyID), zap.Int("packages", len(perf)))
	return false, nil
}

func (a *KevelAdapter) UpdateMediaBuy(ctx context.Context, req UpdateMediaBuyRequest, now time.Time) (*UpdateMediaBuyResult, error) {
	var (
		path string
		body map[string]any
	)
	campaignID := kevelCampaignID(req.MediaBuyID)
	switch req.Action {
	case ActionPauseMediaBuy, ActionResumeMediaBuy, ActionActivateOrder:
		path = "/campaign/" + campaignID
		body = map[string]any{"Id": campaignID, "IsActive": req.Action != ActionPauseMediaBuy}
	case ActionPausePackage, ActionResumePackage:
		path = "/flight/" + req.PackageID
		body = map[string]any{"Id": req.PackageID, "IsActive": req.Action == ActionResumePackage}
	case ActionUpdatePackageBudget:
		if req.Budget == nil {
			return nil, errs.Validation("budget_required", "budget is required")
		}
		path = "/flight/" + req.PackageID
		body = map[string]any{"Id": req.PackageID, "DailyCapAmount": *req.Budget}
	case ActionUpdatePackageImpressions:
		if req.Impressions == nil {
			return nil, errs.Validation("impressions_required", "impressions are required")
		}
		path = "/flight/" + req.PackageID
		body = map[string]any{"Id": req.PackageID, "Impressions": *req.Impressions}
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

func kevelCampaignID(mediaBuyID string) string {
	return strings.TrimPrefix(mediaBuyID, "kevel_")
}
