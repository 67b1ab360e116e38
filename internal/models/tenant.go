package models

import "time"

type Tenant struct {
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	AdServer  string    `json:"ad_server"` // adapter type tag
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AdapterConfig is the tenant-scoped backend configuration.
type AdapterConfig struct {
	TenantID                 string         `json:"tenant_id"`
	AdapterType              string         `json:"adapter_type"`
	DryRun                   bool           `json:"dry_run"`
	ManualApprovalRequired   bool           `json:"manual_approval_required"`
	ManualApprovalOperations []string       `json:"manual_approval_operations,omitempty"`
	NetworkCode              string         `json:"network_code,omitempty"` // GAM network / Broadstreet network
	AccountID                string         `json:"account_id,omitempty"`   // Kevel network id / Triton station
	APIKey                   string         `json:"-"`
	BaseURL                  string         `json:"base_url,omitempty"`
	TrafficerID              string         `json:"trafficker_id,omitempty"`
	Extra                    map[string]any `json:"extra,omitempty"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

// RequiresApproval reports whether operation is gated behind a human.
func (c AdapterConfig) RequiresApproval(operation string) bool {
	if !c.ManualApprovalRequired {
		return false
	}
	if len(c.ManualApprovalOperations) == 0 {
		return true
	}
	for _, op := range c.ManualApprovalOperations {
		if op == operation {
			return true
		}
	}
	return false
}

// CurrencyLimit bounds per-package spend for one tenant/currency. Nil limits
// are not enforced.
type CurrencyLimit struct {
	TenantID             string   `json:"tenant_id"`
	CurrencyCode         string   `json:"currency_code"`
	MinPackageBudget     *float64 `json:"min_package_budget,omitempty"`
	MaxDailyPackageSpend *float64 `json:"max_daily_package_spend,omitempty"`
}
