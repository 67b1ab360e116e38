package models

import (
	"fmt"
	"time"
)

// Principal is an advertiser identity. PlatformMappings holds per-backend
// identifiers keyed by adapter type, e.g.
// {"google_ad_manager": {"advertiser_id": "4412"}}.
type Principal struct {
	PrincipalID      string                    `json:"principal_id"`
	TenantID         string                    `json:"tenant_id"`
	Name             string                    `json:"name"`
	PlatformMappings map[string]map[string]any `json:"platform_mappings"`
	CreatedAt        time.Time                 `json:"created_at"`
}

// AdvertiserID returns the principal's advertiser id on backend, or "".
func (p Principal) AdvertiserID(backend string) string {
	m, ok := p.PlatformMappings[backend]
	if !ok {
		return ""
	}
	for _, key := range []string{"advertiser_id", "company_id"} {
		if v, ok := m[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}
