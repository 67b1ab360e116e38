package models

import "time"

type Product struct {
	ProductID          string   `json:"product_id"`
	TenantID           string   `json:"tenant_id"`
	Name               string   `json:"name"`
	Description        *string  `json:"description,omitempty"`
	DeliveryType       string   `json:"delivery_type"`
	PricingModel       string   `json:"pricing_model"`
	Rate               *float64 `json:"rate,omitempty"`
	Currency           string   `json:"currency"`
	MinSpendPerPackage *float64 `json:"min_spend_per_package,omitempty"`
}

// Creative statuses
const (
	CreativeStatusPendingReview = "pending_review"
	CreativeStatusApproved      = "approved"
	CreativeStatusRejected      = "rejected"
)

type Creative struct {
	CreativeID  string    `json:"creative_id"`
	TenantID    string    `json:"tenant_id"`
	PrincipalID string    `json:"principal_id"`
	Name        string    `json:"name"`
	Format      string    `json:"format"`
	URL         *string   `json:"url,omitempty"`
	Width       *int      `json:"width,omitempty"`
	Height      *int      `json:"height,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
