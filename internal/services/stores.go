package services

import (
	"context"
	"time"

	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/repositories"
)

// The services depend on these narrow views of the repositories so tests can
// substitute in-memory stores.

type tenantStore interface {
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	GetAdapterConfig(ctx context.Context, tenantID string) (*models.AdapterConfig, error)
	GetPrincipal(ctx context.Context, tenantID, principalID string) (*models.Principal, error)
	GetCurrencyLimit(ctx context.Context, tenantID, currency string) (*models.CurrencyLimit, error)
}

type mediaBuyStore interface {
	CreateWithPackages(ctx context.Context, b *models.MediaBuy, packages []models.MediaPackage) error
	GetByID(ctx context.Context, tenantID, mediaBuyID string) (*models.MediaBuy, error)
	GetPackages(ctx context.Context, tenantID, mediaBuyID string) ([]models.MediaPackage, error)
	UpdateStatus(ctx context.Context, tenantID, mediaBuyID, status string) error
	UpdatePackageBudget(ctx context.Context, tenantID, mediaBuyID, packageID string, budget float64) error
	UpdatePackageStatus(ctx context.Context, tenantID, mediaBuyID, packageID, status string) error
	SetPackageCreatives(ctx context.Context, tenantID, mediaBuyID, packageID string, creativeIDs []string) error
	ListByStatuses(ctx context.Context, statuses []string, limit int) ([]models.MediaBuy, error)
	List(ctx context.Context, f repositories.MediaBuyFilter) ([]models.MediaBuy, error)
	Touch(ctx context.Context, tenantID, mediaBuyID string, at time.Time) error
}

type workflowStore interface {
	CreateWithMapping(ctx context.Context, s *models.WorkflowStep, m *models.ObjectWorkflowMapping) error
	GetByID(ctx context.Context, tenantID, stepID string) (*models.WorkflowStep, error)
	Claim(ctx context.Context, tenantID, stepID string) (bool, error)
	Finish(ctx context.Context, tenantID, stepID, from, status string, response map[string]any, errorMessage *string, at time.Time) (bool, error)
	ListByStatus(ctx context.Context, tenantID, status string, limit, offset int) ([]models.WorkflowStep, error)
	ListStale(ctx context.Context, status string, cutoff time.Time, limit int) ([]models.WorkflowStep, error)
	ListByObject(ctx context.Context, tenantID, objectType, objectID string) ([]models.WorkflowStep, error)
	GetMappings(ctx context.Context, stepID string) ([]models.ObjectWorkflowMapping, error)
}

type productStore interface {
	ListByTenant(ctx context.Context, tenantID string) ([]models.Product, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.Product, error)
}

type creativeStore interface {
	Create(ctx context.Context, c *models.Creative) error
	GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.Creative, error)
	UpdateStatus(ctx context.Context, tenantID, creativeID, status string) error
}

type auditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

var (
	_ tenantStore   = (*repositories.TenantRepo)(nil)
	_ mediaBuyStore = (*repositories.MediaBuyRepo)(nil)
	_ workflowStore = (*repositories.WorkflowRepo)(nil)
	_ productStore  = (*repositories.ProductRepo)(nil)
	_ creativeStore = (*repositories.CreativeRepo)(nil)
	_ auditStore    = (*repositories.AuditRepo)(nil)
)
