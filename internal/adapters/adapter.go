// Package adapters holds the capability interface every ad server backend
// implements, the registry that resolves a tenant to a backend, and the five
// backends: mock, google_ad_manager, kevel, triton_digital and broadstreet.
package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/pricing"
	"go.uber.org/zap"
)

// Adapter type tags, as stored in tenants.ad_server / adapter_config.adapter_type.
const (
	TypeMock            = "mock"
	TypeGoogleAdManager = "google_ad_manager"
	TypeKevel           = "kevel"
	TypeTritonDigital   = "triton_digital"
	TypeBroadstreet     = "broadstreet"
)

// Update actions accepted by UpdateMediaBuy.
const (
	ActionPauseMediaBuy            = "pause_media_buy"
	ActionResumeMediaBuy           = "resume_media_buy"
	ActionPausePackage             = "pause_package"
	ActionResumePackage            = "resume_package"
	ActionUpdatePackageBudget      = "update_package_budget"
	ActionUpdatePackageImpressions = "update_package_impressions"
	ActionActivateOrder            = "activate_order"
)

var validActions = map[string]bool{
	ActionPauseMediaBuy:            true,
	ActionResumeMediaBuy:           true,
	ActionPausePackage:             true,
	ActionResumePackage:            true,
	ActionUpdatePackageBudget:      true,
	ActionUpdatePackageImpressions: true,
	ActionActivateOrder:            true,
}

func IsValidAction(a string) bool { return validActions[a] }

// IsPackageAction reports whether action targets a single package.
func IsPackageAction(a string) bool {
	switch a {
	case ActionPausePackage, ActionResumePackage, ActionUpdatePackageBudget, ActionUpdatePackageImpressions:
		return true
	}
	return false
}

// Targeting dimensions a backend may accept.
const (
	TargetGeoCountry      = "geo_country"
	TargetGeoRegion       = "geo_region"
	TargetGeoMetro        = "geo_metro"
	TargetGeoCity         = "geo_city"
	TargetGeoZip          = "geo_zip"
	TargetAge             = "age"
	TargetGender          = "gender"
	TargetDeviceType      = "device_type"
	TargetOS              = "os"
	TargetBrowser         = "browser"
	TargetKeyValue        = "key_value"
	TargetAudienceSegment = "audience_segment"
	TargetDaypart         = "daypart"
)

var allTargeting = []string{
	TargetGeoCountry, TargetGeoRegion, TargetGeoMetro, TargetGeoCity, TargetGeoZip,
	TargetAge, TargetGender, TargetDeviceType, TargetOS, TargetBrowser,
	TargetKeyValue, TargetAudienceSegment, TargetDaypart,
}

// Capabilities is the static descriptor of what a backend supports.
type Capabilities struct {
	PricingModels []pricing.Model
	Targeting     []string
}

func (c Capabilities) SupportsPricing(m pricing.Model) bool {
	for _, v := range c.PricingModels {
		if v == m {
			return true
		}
	}
	return false
}

func (c Capabilities) pricingSet() map[pricing.Model]bool {
	out := make(map[pricing.Model]bool, len(c.PricingModels))
	for _, m := range c.PricingModels {
		out[m] = true
	}
	return out
}

// targetingMap reports every known dimension, true when supported.
func (c Capabilities) targetingMap() map[string]bool {
	out := make(map[string]bool, len(allTargeting))
	for _, d := range allTargeting {
		out[d] = false
	}
	for _, d := range c.Targeting {
		out[d] = true
	}
	return out
}

// NormalizePricingModel returns m when the backend supports it and cpm otherwise.
func NormalizePricingModel(caps Capabilities, m pricing.Model) pricing.Model {
	if caps.SupportsPricing(m) {
		return m
	}
	return pricing.CPM
}

// FilterTargeting drops overlay keys the backend cannot honour. The dropped
// keys are returned sorted so callers can report them.
func FilterTargeting(caps Capabilities, overlay map[string]any) (map[string]any, []string) {
	if len(overlay) == 0 {
		return overlay, nil
	}
	supported := caps.targetingMap()
	kept := make(map[string]any, len(overlay))
	var dropped []string
	for k, v := range overlay {
		if supported[k] {
			kept[k] = v
		} else {
			dropped = append(dropped, k)
		}
	}
	sort.Strings(dropped)
	return kept, dropped
}

type CreateMediaBuyRequest struct {
	MediaBuyID     string         `json:"media_buy_id"`
	BuyerRef       string         `json:"buyer_ref"`
	PONumber       string         `json:"po_number,omitempty"`
	OrderName      string         `json:"order_name"`
	AdvertiserName string         `json:"advertiser_name"`
	Budget         float64        `json:"budget"`
	Currency       string         `json:"currency"`
	ProductIDs     []string       `json:"product_ids"`
	Targeting      map[string]any `json:"targeting_overlay,omitempty"`
}

type PackageResult struct {
	PackageID          string `json:"package_id"`
	PlatformLineItemID string `json:"platform_line_item_id"`
}

// CreateMediaBuyResult is the backend confirmation. Empty MediaBuyID/BuyerRef
// mean the backend did not assign its own.
type CreateMediaBuyResult struct {
	MediaBuyID string          `json:"media_buy_id,omitempty"`
	BuyerRef   string          `json:"buyer_ref,omitempty"`
	Status     string          `json:"status"`
	Packages   []PackageResult `json:"packages,omitempty"`
	Raw        map[string]any  `json:"raw,omitempty"`
}

type CreativeAsset struct {
	CreativeID string   `json:"creative_id"`
	Name       string   `json:"name"`
	Format     string   `json:"format"`
	URL        string   `json:"url"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
	PackageIDs []string `json:"package_assignments,omitempty"`
}

type AssetStatus struct {
	CreativeID         string `json:"creative_id"`
	PlatformCreativeID string `json:"platform_creative_id"`
	Status             string `json:"status"`
}

type CreativeAssociation struct {
	LineItemID         string `json:"line_item_id"`
	PlatformCreativeID string `json:"platform_creative_id"`
	Status             string `json:"status"`
}

type MediaBuyStatus struct {
	MediaBuyID string `json:"media_buy_id"`
	Status     string `json:"status"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type PackageDelivery struct {
	PackageID   string  `json:"package_id"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
}

type DeliveryReport struct {
	MediaBuyID  string            `json:"media_buy_id"`
	Period      DateRange         `json:"reporting_period"`
	Currency    string            `json:"currency"`
	Impressions int64             `json:"impressions"`
	Clicks      int64             `json:"clicks"`
	Spend       float64           `json:"spend"`
	Packages    []PackageDelivery `json:"packages"`
}

type PackagePerformance struct {
	PackageID        string  `json:"package_id"`
	PerformanceIndex float64 `json:"performance_index"`
}

type UpdateMediaBuyRequest struct {
	MediaBuyID  string   `json:"media_buy_id"`
	BuyerRef    string   `json:"buyer_ref"`
	Action      string   `json:"action"`
	PackageID   string   `json:"package_id,omitempty"`
	Budget      *float64 `json:"budget,omitempty"`
	Impressions *int64   `json:"impressions,omitempty"`
}

type UpdateMediaBuyResult struct {
	Status             string     `json:"status"`
	Detail             string     `json:"detail,omitempty"`
	ImplementationDate *time.Time `json:"implementation_date,omitempty"`
}

// Adapter is the contract every backend satisfies. Each method performs at
// most one logical remote operation per call and never retries side effects.
type Adapter interface {
	Name() string
	Capabilities() Capabilities
	SupportedPricingModels() map[pricing.Model]bool
	TargetingCapabilities() map[string]bool

	CreateMediaBuy(ctx context.Context, req CreateMediaBuyRequest, packages []models.MediaPackage, start, end time.Time) (*CreateMediaBuyResult, error)
	AddCreativeAssets(ctx context.Context, mediaBuyID string, assets []CreativeAsset, now time.Time) ([]AssetStatus, error)
	AssociateCreatives(ctx context.Context, lineItemIDs, platformCreativeIDs []string) ([]CreativeAssociation, error)
	CheckMediaBuyStatus(ctx context.Context, mediaBuyID string, now time.Time) (*MediaBuyStatus, error)
	GetMediaBuyDelivery(ctx context.Context, mediaBuyID string, period DateRange, now time.Time) (*DeliveryReport, error)
	UpdateMediaBuyPerformanceIndex(ctx context.Context, mediaBuyID string, perf []PackagePerformance) (bool, error)
	UpdateMediaBuy(ctx context.Context, req UpdateMediaBuyRequest, now time.Time) (*UpdateMediaBuyResult, error)
}

// base carries the context every backend is constructed with.
type base struct {
	name      string
	caps      Capabilities
	cfg       models.AdapterConfig
	principal models.Principal
	dryRun    bool
	tenantID  string
	log       *zap.Logger
}

func newBase(name string, caps Capabilities, cfg models.AdapterConfig, principal models.Principal, dryRun bool, tenantID string, log *zap.Logger) base {
	return base{
		name:      name,
		caps:      caps,
		cfg:       cfg,
		principal: principal,
		dryRun:    dryRun || cfg.DryRun,
		tenantID:  tenantID,
		log: log.With(
			zap.String("adapter", name),
			zap.String("tenant_id", tenantID),
			zap.String("principal_id", principal.PrincipalID),
			zap.Bool("dry_run", dryRun || cfg.DryRun),
		),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) Capabilities() Capabilities { return b.caps }

func (b *base) SupportedPricingModels() map[pricing.Model]bool { return b.caps.pricingSet() }

func (b *base) TargetingCapabilities() map[string]bool { return b.caps.targetingMap() }

// packageModel resolves a package's pricing model, defaulting to cpm, and
// rejects models the backend cannot book.
func (b *base) packageModel(p models.MediaPackage) (pricing.Model, error) {
	m, err := pricing.ParseModel(p.PricingModel)
	if err != nil {
		return "", err
	}
	if !b.caps.SupportsPricing(m) {
		return "", errs.AdapterMessage(b.name, "unsupported_pricing_model",
			fmt.Sprintf("pricing model %q is not supported", m),
			"supported: "+joinModelList(b.caps.PricingModels))
	}
	return m, nil
}

// dropTargeting filters a package overlay and logs what was dropped.
func (b *base) dropTargeting(packageID string, overlay map[string]any) map[string]any {
	kept, dropped := FilterTargeting(b.caps, overlay)
	if len(dropped) > 0 {
		b.log.Warn("dropping unsupported targeting",
			zap.String("package_id", packageID),
			zap.Strings("dimensions", dropped),
		)
	}
	return kept
}

func joinModelList(ms []pricing.Model) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
