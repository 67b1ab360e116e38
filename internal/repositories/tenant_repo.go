package repositories

import (
	"context"
	"errors"

	"github.com/adcp/salesagent/internal/db"
	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// TenantRepo reads tenant-scoped configuration: the tenant row, its adapter
// config, principals and currency limits.
type TenantRepo struct {
	pool db.Pool
}

func NewTenantRepo(pool db.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

func (r *TenantRepo) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_id, name, ad_server, is_active, created_at
		FROM tenants WHERE tenant_id = $1
	`, tenantID).Scan(&t.TenantID, &t.Name, &t.AdServer, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Tenant("tenant " + tenantID + " not found")
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tenant: get %s", tenantID)
	}
	return &t, nil
}

// GetAdapterConfig returns nil, nil when the tenant has no config row.
func (r *TenantRepo) GetAdapterConfig(ctx context.Context, tenantID string) (*models.AdapterConfig, error) {
	var c models.AdapterConfig
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_id, adapter_type, dry_run, manual_approval_required, manual_approval_operations,
		       COALESCE(network_code, ''), COALESCE(account_id, ''), COALESCE(api_key, ''),
		       COALESCE(base_url, ''), COALESCE(trafficker_id, ''), extra, updated_at
		FROM adapter_config WHERE tenant_id = $1
	`, tenantID).Scan(&c.TenantID, &c.AdapterType, &c.DryRun, &c.ManualApprovalRequired, &c.ManualApprovalOperations,
		&c.NetworkCode, &c.AccountID, &c.APIKey, &c.BaseURL, &c.TrafficerID, &c.Extra, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tenant: get adapter config %s", tenantID)
	}
	return &c, nil
}

func (r *TenantRepo) GetPrincipal(ctx context.Context, tenantID, principalID string) (*models.Principal, error) {
	var p models.Principal
	err := r.pool.QueryRow(ctx, `
		SELECT principal_id, tenant_id, name, platform_mappings, created_at
		FROM principals WHERE tenant_id = $1 AND principal_id = $2
	`, tenantID, principalID).Scan(&p.PrincipalID, &p.TenantID, &p.Name, &p.PlatformMappings, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("principal", principalID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tenant: get principal %s", principalID)
	}
	return &p, nil
}

// GetCurrencyLimit returns nil, nil when the currency is not configured for
// the tenant.
func (r *TenantRepo) GetCurrencyLimit(ctx context.Context, tenantID, currency string) (*models.CurrencyLimit, error) {
	var l models.CurrencyLimit
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_id, currency_code, min_package_budget::float8, max_daily_package_spend::float8
		FROM currency_limits WHERE tenant_id = $1 AND currency_code = $2
	`, tenantID, currency).Scan(&l.TenantID, &l.CurrencyCode, &l.MinPackageBudget, &l.MaxDailyPackageSpend)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tenant: get currency limit %s/%s", tenantID, currency)
	}
	return &l, nil
}

// ListActiveTenantIDs is used by the worker to scope sweeps.
func (r *TenantRepo) ListActiveTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id FROM tenants WHERE is_active ORDER BY tenant_id`)
	if err != nil {
		return nil, eris.Wrap(err, "tenant: list active")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "tenant: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "tenant: iterate")
}
