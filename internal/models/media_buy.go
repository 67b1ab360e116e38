package models

import (
	"time"
)

// Media buy statuses
const (
	MediaBuyStatusDraft     = "draft"
	MediaBuyStatusPending   = "pending"
	MediaBuyStatusActive    = "active"
	MediaBuyStatusPaused    = "paused"
	MediaBuyStatusCompleted = "completed"
	MediaBuyStatusCancelled = "cancelled"
)

// Valid state transitions: from -> []to
var ValidMediaBuyTransitions = map[string][]string{
	MediaBuyStatusDraft:     {MediaBuyStatusPending, MediaBuyStatusActive, MediaBuyStatusCancelled},
	MediaBuyStatusPending:   {MediaBuyStatusActive, MediaBuyStatusCancelled},
	MediaBuyStatusActive:    {MediaBuyStatusPaused, MediaBuyStatusCompleted, MediaBuyStatusCancelled},
	MediaBuyStatusPaused:    {MediaBuyStatusActive, MediaBuyStatusCompleted, MediaBuyStatusCancelled},
	MediaBuyStatusCompleted: {},
	MediaBuyStatusCancelled: {},
}

func IsValidMediaBuyTransition(from, to string) bool {
	allowed, ok := ValidMediaBuyTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Delivery types
const (
	DeliveryGuaranteed    = "guaranteed"
	DeliveryNonGuaranteed = "non_guaranteed"
)

func IsValidDeliveryType(d string) bool {
	return d == DeliveryGuaranteed || d == DeliveryNonGuaranteed
}

type MediaBuy struct {
	MediaBuyID     string    `json:"media_buy_id"`
	TenantID       string    `json:"tenant_id"`
	PrincipalID    string    `json:"principal_id"`
	BuyerRef       string    `json:"buyer_ref"`
	OrderName      string    `json:"order_name"`
	AdvertiserName string    `json:"advertiser_name"`
	Budget         float64   `json:"budget"`
	Currency       string    `json:"currency"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Status         string    `json:"status"`
	RawRequest     any       `json:"raw_request,omitempty"` // backend confirmation + original request
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MediaPackage is one line of a media buy. Everything but the id and budget
// lives in the package_config JSON column.
type MediaPackage struct {
	MediaBuyID   string         `json:"media_buy_id"`
	PackageID    string         `json:"package_id"`
	Name         string         `json:"name"`
	ProductID    string         `json:"product_id,omitempty"`
	DeliveryType string         `json:"delivery_type"`
	PricingModel string         `json:"pricing_model,omitempty"`
	Rate         float64        `json:"rate"`
	Impressions  int64          `json:"impressions"`
	Budget       *float64       `json:"budget,omitempty"`
	CreativeIDs  []string       `json:"creative_ids,omitempty"`
	Targeting    map[string]any `json:"targeting_overlay,omitempty"`
	// LineItemType optionally forces the platform line-item category.
	LineItemType string `json:"line_item_type,omitempty"`
	// PlatformLineItemID is filled in by the backend after creation.
	PlatformLineItemID string `json:"platform_line_item_id,omitempty"`
	Status             string `json:"status,omitempty"`
}

func (p MediaPackage) IsGuaranteed() bool {
	return p.DeliveryType == DeliveryGuaranteed
}

// BudgetValue returns the package budget, falling back to rate × impressions / 1000.
func (p MediaPackage) BudgetValue() float64 {
	if p.Budget != nil {
		return *p.Budget
	}
	return p.Rate * float64(p.Impressions) / 1000
}

// MediaBuyWithPackages embeds MediaBuy and its packages.
type MediaBuyWithPackages struct {
	MediaBuy
	Packages []MediaPackage `json:"packages"`
}
