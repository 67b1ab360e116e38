package services

import (
	"context"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"go.uber.org/zap"
)

// ResolvedAdapter is an adapter bound to one tenant and principal, together
// with the configuration it was built from.
type ResolvedAdapter struct {
	Adapter   adapters.Adapter
	Tenant    models.Tenant
	Principal models.Principal
	Config    models.AdapterConfig
}

type AdapterResolver struct {
	tenants  tenantStore
	registry *adapters.Registry
	dryRun   bool
	log      *zap.Logger
}

func NewAdapterResolver(tenants tenantStore, registry *adapters.Registry, dryRun bool, log *zap.Logger) *AdapterResolver {
	return &AdapterResolver{tenants: tenants, registry: registry, dryRun: dryRun, log: log}
}

func (r *AdapterResolver) Resolve(ctx context.Context, tenantID, principalID string) (*ResolvedAdapter, error) {
	tenant, err := r.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive {
		return nil, errs.Tenant("tenant " + tenantID + " is not active")
	}
	principal, err := r.tenants.GetPrincipal(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}
	cfg, err := r.tenants.GetAdapterConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	adapter, err := r.registry.Resolve(*tenant, cfg, *principal, r.dryRun)
	if err != nil {
		return nil, err
	}
	r.log.Debug("resolved adapter",
		zap.String("tenant_id", tenantID),
		zap.String("principal_id", principalID),
		zap.String("adapter", adapter.Name()),
	)

	effective := adapters.DefaultMockConfig(tenantID)
	if cfg != nil {
		effective = *cfg
	}
	return &ResolvedAdapter{Adapter: adapter, Tenant: *tenant, Principal: *principal, Config: effective}, nil
}
