package adapters

import (
	"sort"
	"sync"

	"github.com/adcp/salesagent/internal/models"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Factory builds an adapter for one tenant/principal.
type Factory func(cfg models.AdapterConfig, principal models.Principal, dryRun bool, tenantID string) (Adapter, error)

// ErrNoFallbackAdapter means the mock factory is missing. It is a startup
// misconfiguration, not a per-request condition.
var ErrNoFallbackAdapter = eris.New("adapter registry has no mock factory to fall back to")

// Registry maps adapter type tags to factories. It is built once at startup
// and passed to the services that need it.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	log       *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{factories: make(map[string]Factory), log: log}
}

func (r *Registry) Register(adapterType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[adapterType] = f
}

func (r *Registry) Unregister(adapterType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, adapterType)
}

func (r *Registry) Has(adapterType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[adapterType]
	return ok
}

// Types lists registered adapter types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Validate checks the registry can always produce an adapter.
func (r *Registry) Validate() error {
	if !r.Has(TypeMock) {
		return ErrNoFallbackAdapter
	}
	return nil
}

// DefaultMockConfig is used when a tenant has no adapter_config row.
func DefaultMockConfig(tenantID string) models.AdapterConfig {
	return models.AdapterConfig{TenantID: tenantID, AdapterType: TypeMock, DryRun: true}
}

// Resolve returns the adapter for tenant. A missing config falls back to a
// dry-run mock config; an unregistered type falls back to the mock factory.
func (r *Registry) Resolve(tenant models.Tenant, cfg *models.AdapterConfig, principal models.Principal, dryRun bool) (Adapter, error) {
	adapterType := tenant.AdServer
	var effective models.AdapterConfig
	if cfg != nil {
		effective = *cfg
		if adapterType == "" {
			adapterType = cfg.AdapterType
		}
	} else {
		effective = DefaultMockConfig(tenant.TenantID)
	}
	if adapterType == "" {
		adapterType = TypeMock
	}

	r.mu.RLock()
	factory, ok := r.factories[adapterType]
	if !ok {
		factory, ok = r.factories[TypeMock]
		if ok {
			r.log.Warn("adapter type not registered, falling back to mock",
				zap.String("tenant_id", tenant.TenantID),
				zap.String("adapter_type", adapterType),
			)
			adapterType = TypeMock
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNoFallbackAdapter
	}

	effective.AdapterType = adapterType
	adapter, err := factory(effective, principal, dryRun, tenant.TenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "build %s adapter", adapterType)
	}
	return adapter, nil
}

// NewDefaultRegistry registers all five backends. The mock shares one
// in-memory store across every adapter it builds.
func NewDefaultRegistry(opts ClientOptions, log *zap.Logger) *Registry {
	r := NewRegistry(log)
	mockStore := NewMockStore()

	r.Register(TypeMock, func(cfg models.AdapterConfig, p models.Principal, dryRun bool, tenantID string) (Adapter, error) {
		return NewMockAdapter(mockStore, cfg, p, dryRun, tenantID, log), nil
	})
	r.Register(TypeGoogleAdManager, func(cfg models.AdapterConfig, p models.Principal, dryRun bool, tenantID string) (Adapter, error) {
		a, err := NewGoogleAdManagerAdapter(cfg, p, dryRun, tenantID, opts, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	r.Register(TypeKevel, func(cfg models.AdapterConfig, p models.Principal, dryRun bool, tenantID string) (Adapter, error) {
		a, err := NewKevelAdapter(cfg, p, dryRun, tenantID, opts, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	r.Register(TypeTritonDigital, func(cfg models.AdapterConfig, p models.Principal, dryRun bool, tenantID string) (Adapter, error) {
		a, err := NewTritonAdapter(cfg, p, dryRun, tenantID, opts, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	r.Register(TypeBroadstreet, func(cfg models.AdapterConfig, p models.Principal, dryRun bool, tenantID string) (Adapter, error) {
		a, err := NewBroadstreetAdapter(cfg, p, dryRun, tenantID, opts, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	return r
}
