package dto

import (
	"time"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/services"
)

type PackageRequest struct {
	PackageID        string         `json:"package_id,omitempty"`
	ProductID        string         `json:"product_id,omitempty"`
	Name             string         `json:"name,omitempty"`
	DeliveryType     string         `json:"delivery_type,omitempty"`
	PricingModel     string         `json:"pricing_model,omitempty"`
	LineItemType     string         `json:"line_item_type,omitempty"`
	Rate             float64        `json:"rate,omitempty"`
	Impressions      int64          `json:"impressions,omitempty"`
	Budget           *float64       `json:"budget,omitempty"`
	CreativeIDs      []string       `json:"creative_ids,omitempty"`
	TargetingOverlay map[string]any `json:"targeting_overlay,omitempty"`
}

func (p PackageRequest) ToModel() models.MediaPackage {
	return models.MediaPackage{
		PackageID:    p.PackageID,
		ProductID:    p.ProductID,
		Name:         p.Name,
		DeliveryType: p.DeliveryType,
		PricingModel: p.PricingModel,
		LineItemType: p.LineItemType,
		Rate:         p.Rate,
		Impressions:  p.Impressions,
		Budget:       p.Budget,
		CreativeIDs:  p.CreativeIDs,
		Targeting:    p.TargetingOverlay,
	}
}

type CreateMediaBuyRequest struct {
	ProductIDs       []string         `json:"product_ids"`
	Packages         []PackageRequest `json:"packages"`
	Budget           *float64         `json:"budget,omitempty"`
	Currency         string           `json:"currency,omitempty"`
	StartDate        *time.Time       `json:"start_date,omitempty"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
	BuyerRef         string           `json:"buyer_ref,omitempty"`
	PONumber         string           `json:"po_number,omitempty"`
	OrderName        string           `json:"order_name,omitempty"`
	AdvertiserName   string           `json:"advertiser_name,omitempty"`
	TargetingOverlay map[string]any   `json:"targeting_overlay,omitempty"`
}

// DefaultFlight is used when a create request leaves the end date out.
const DefaultFlight = 30 * 24 * time.Hour

// ToService converts the request and resolves the flight: a missing start is
// now, a missing end is start plus DefaultFlight.
func (r CreateMediaBuyRequest) ToService(now time.Time) (services.CreateMediaBuyRequest, time.Time, time.Time) {
	packages := make([]models.MediaPackage, len(r.Packages))
	for i, p := range r.Packages {
		packages[i] = p.ToModel()
	}
	start := now
	if r.StartDate != nil {
		start = *r.StartDate
	}
	end := start.Add(DefaultFlight)
	if r.EndDate != nil {
		end = *r.EndDate
	}
	return services.CreateMediaBuyRequest{
		ProductIDs:     r.ProductIDs,
		Packages:       packages,
		Budget:         r.Budget,
		Currency:       r.Currency,
		BuyerRef:       r.BuyerRef,
		PONumber:       r.PONumber,
		OrderName:      r.OrderName,
		AdvertiserName: r.AdvertiserName,
		Targeting:      r.TargetingOverlay,
	}, start, end
}

type UpdateMediaBuyRequest struct {
	BuyerRef    string   `json:"buyer_ref,omitempty"`
	Action      string   `json:"action"`
	PackageID   string   `json:"package_id,omitempty"`
	Budget      *float64 `json:"budget,omitempty"`
	Impressions *int64   `json:"impressions,omitempty"`
}

type UpdatePerformanceIndexRequest struct {
	PackagePerformance []adapters.PackagePerformance `json:"package_performance"`
}

type AssignCreativesRequest struct {
	PackageID   string   `json:"package_id"`
	CreativeIDs []string `json:"creative_ids"`
}

type SubmitCreativeRequest struct {
	CreativeID string  `json:"creative_id"`
	Name       string  `json:"name"`
	Format     string  `json:"format"`
	URL        *string `json:"url,omitempty"`
	Width      *int    `json:"width,omitempty"`
	Height     *int    `json:"height,omitempty"`
}

type ReviewCreativeRequest struct {
	Status string `json:"status"` // approved / rejected
}

type RejectStepRequest struct {
	Reason string `json:"reason"`
}
