package services

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/events"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/repositories"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

type memTenants struct {
	tenants    map[string]models.Tenant
	principals map[string]models.Principal
	configs    map[string]models.AdapterConfig
	limits     map[string]models.CurrencyLimit
}

func (m *memTenants) GetTenant(_ context.Context, tenantID string) (*models.Tenant, error) {
	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, errs.Tenant("tenant " + tenantID + " not found")
	}
	return &t, nil
}

func (m *memTenants) GetAdapterConfig(_ context.Context, tenantID string) (*models.AdapterConfig, error) {
	c, ok := m.configs[tenantID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memTenants) GetPrincipal(_ context.Context, tenantID, principalID string) (*models.Principal, error) {
	p, ok := m.principals[tenantID+"/"+principalID]
	if !ok {
		return nil, errs.NotFound("principal", principalID)
	}
	return &p, nil
}

func (m *memTenants) GetCurrencyLimit(_ context.Context, tenantID, currency string) (*models.CurrencyLimit, error) {
	l, ok := m.limits[tenantID+"/"+currency]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// memBuys keys rows by tenant and id and rejects duplicates like the
// (tenant_id, media_buy_id) primary key.
type memBuys struct {
	mu        sync.Mutex
	buys      map[string]models.MediaBuy
	packages  map[string][]models.MediaPackage
	createErr error
}

func buyKey(tenantID, id string) string { return tenantID + "/" + id }

func newMemBuys() *memBuys {
	return &memBuys{buys: map[string]models.MediaBuy{}, packages: map[string][]models.MediaPackage{}}
}

func (m *memBuys) CreateWithPackages(_ context.Context, b *models.MediaBuy, packages []models.MediaPackage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	key := buyKey(b.TenantID, b.MediaBuyID)
	if _, ok := m.buys[key]; ok {
		return errs.Validationf("duplicate_media_buy", "media buy %s already exists", b.MediaBuyID)
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.buys[key] = *b
	m.packages[key] = append([]models.MediaPackage(nil), packages...)
	return nil
}

func (m *memBuys) GetByID(_ context.Context, tenantID, id string) (*models.MediaBuy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buys[buyKey(tenantID, id)]
	if !ok {
		return nil, errs.NotFound("media_buy", id)
	}
	return &b, nil
}

func (m *memBuys) GetPackages(_ context.Context, tenantID, id string) ([]models.MediaPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.MediaPackage(nil), m.packages[buyKey(tenantID, id)]...), nil
}

func (m *memBuys) UpdateStatus(_ context.Context, tenantID, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := buyKey(tenantID, id)
	b := m.buys[key]
	b.Status = status
	m.buys[key] = b
	return nil
}

func (m *memBuys) updatePackage(tenantID, id, packageID string, fn func(*models.MediaPackage)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkgs := m.packages[buyKey(tenantID, id)]
	for i := range pkgs {
		if pkgs[i].PackageID == packageID {
			fn(&pkgs[i])
			return nil
		}
	}
	return errs.NotFound("package", packageID)
}

func (m *memBuys) UpdatePackageBudget(_ context.Context, tenantID, id, packageID string, budget float64) error {
	return m.updatePackage(tenantID, id, packageID, func(p *models.MediaPackage) { p.Budget = &budget })
}

func (m *memBuys) UpdatePackageStatus(_ context.Context, tenantID, id, packageID, status string) error {
	return m.updatePackage(tenantID, id, packageID, func(p *models.MediaPackage) { p.Status = status })
}

func (m *memBuys) SetPackageCreatives(_ context.Context, tenantID, id, packageID string, creativeIDs []string) error {
	return m.updatePackage(tenantID, id, packageID, func(p *models.MediaPackage) { p.CreativeIDs = creativeIDs })
}

func (m *memBuys) ListByStatuses(_ context.Context, statuses []string, _ int) ([]models.MediaBuy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MediaBuy
	for _, b := range m.buys {
		for _, s := range statuses {
			if b.Status == s {
				out = append(out, b)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MediaBuyID < out[j].MediaBuyID })
	return out, nil
}

func (m *memBuys) List(_ context.Context, f repositories.MediaBuyFilter) ([]models.MediaBuy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MediaBuy
	for _, b := range m.buys {
		if b.TenantID == f.TenantID && b.PrincipalID == f.PrincipalID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBuys) Touch(_ context.Context, tenantID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := buyKey(tenantID, id)
	b := m.buys[key]
	b.UpdatedAt = at
	m.buys[key] = b
	return nil
}

func (m *memBuys) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buys)
}

type memSteps struct {
	mu       sync.Mutex
	steps    map[string]models.WorkflowStep
	mappings map[string][]models.ObjectWorkflowMapping
	// beforeFinish runs inside Finish before the status check.
	beforeFinish func(stepID string)
}

func newMemSteps() *memSteps {
	return &memSteps{steps: map[string]models.WorkflowStep{}, mappings: map[string][]models.ObjectWorkflowMapping{}}
}

func (m *memSteps) CreateWithMapping(_ context.Context, s *models.WorkflowStep, mapping *models.ObjectWorkflowMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.steps[s.StepID] = *s
	if mapping != nil {
		mapping.StepID = s.StepID
		m.mappings[s.StepID] = append(m.mappings[s.StepID], *mapping)
	}
	return nil
}

func (m *memSteps) GetByID(_ context.Context, tenantID, id string) (*models.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok || s.TenantID != tenantID {
		return nil, errs.NotFound("workflow_step", id)
	}
	return &s, nil
}

func (m *memSteps) Claim(_ context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok || s.TenantID != tenantID || s.Status != models.StepStatusRequiresApproval {
		return false, nil
	}
	s.Status = models.StepStatusInProgress
	m.steps[id] = s
	return true, nil
}

func (m *memSteps) Finish(_ context.Context, tenantID, id, from, status string, response map[string]any, errorMessage *string, at time.Time) (bool, error) {
	if m.beforeFinish != nil {
		m.beforeFinish(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok || s.TenantID != tenantID || s.Status != from {
		return false, nil
	}
	s.Status = status
	s.ResponseData = response
	s.ErrorMessage = errorMessage
	s.CompletedAt = &at
	m.steps[id] = s
	return true, nil
}

func (m *memSteps) ListByStatus(_ context.Context, tenantID, status string, _, _ int) ([]models.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkflowStep
	for _, s := range m.steps {
		if s.TenantID == tenantID && s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSteps) ListStale(_ context.Context, status string, cutoff time.Time, _ int) ([]models.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkflowStep
	for _, s := range m.steps {
		if s.Status == status && s.CreatedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSteps) ListByObject(_ context.Context, tenantID, objectType, objectID string) ([]models.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkflowStep
	for id, ms := range m.mappings {
		for _, mp := range ms {
			if mp.ObjectType == objectType && mp.ObjectID == objectID && m.steps[id].TenantID == tenantID {
				out = append(out, m.steps[id])
			}
		}
	}
	return out, nil
}

func (m *memSteps) GetMappings(_ context.Context, id string) ([]models.ObjectWorkflowMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mappings[id], nil
}

type memProducts struct {
	products []models.Product
}

func (m *memProducts) ListByTenant(_ context.Context, tenantID string) ([]models.Product, error) {
	var out []models.Product
	for _, p := range m.products {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) GetByIDs(_ context.Context, tenantID string, ids []string) (map[string]models.Product, error) {
	out := map[string]models.Product{}
	for _, p := range m.products {
		for _, id := range ids {
			if p.TenantID == tenantID && p.ProductID == id {
				out[id] = p
			}
		}
	}
	return out, nil
}

type memCreatives struct {
	creatives map[string]models.Creative
}

func (m *memCreatives) Create(_ context.Context, c *models.Creative) error {
	m.creatives[c.CreativeID] = *c
	return nil
}

func (m *memCreatives) GetByIDs(_ context.Context, tenantID string, ids []string) (map[string]models.Creative, error) {
	out := map[string]models.Creative{}
	for _, id := range ids {
		if c, ok := m.creatives[id]; ok && c.TenantID == tenantID {
			out[id] = c
		}
	}
	return out, nil
}

func (m *memCreatives) UpdateStatus(_ context.Context, tenantID, creativeID, status string) error {
	c, ok := m.creatives[creativeID]
	if !ok || c.TenantID != tenantID {
		return errs.NotFound("creative", creativeID)
	}
	c.Status = status
	m.creatives[creativeID] = c
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *memAudit) Log(_ context.Context, entry models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type spyPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *spyPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *spyPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// spyAdapter counts side-effecting calls on top of the mock backend.
type spyAdapter struct {
	adapters.Adapter
	creates    atomic.Int32
	updates    atomic.Int32
	failCreate bool
}

func (s *spyAdapter) CreateMediaBuy(ctx context.Context, req adapters.CreateMediaBuyRequest, packages []models.MediaPackage, start, end time.Time) (*adapters.CreateMediaBuyResult, error) {
	s.creates.Add(1)
	if s.failCreate {
		return nil, errs.AdapterMessage(adapters.TypeMock, "create_failed", "order rejected", "")
	}
	return s.Adapter.CreateMediaBuy(ctx, req, packages, start, end)
}

func (s *spyAdapter) UpdateMediaBuy(ctx context.Context, req adapters.UpdateMediaBuyRequest, now time.Time) (*adapters.UpdateMediaBuyResult, error) {
	s.updates.Add(1)
	return s.Adapter.UpdateMediaBuy(ctx, req, now)
}

type harness struct {
	tenants   *memTenants
	buys      *memBuys
	steps     *memSteps
	products  *memProducts
	creatives *memCreatives
	audit     *memAudit
	pub       *spyPublisher
	spy       *spyAdapter
	registry  *adapters.Registry
	resolver  *AdapterResolver
	workflow  *WorkflowService
	svc       *MediaBuyService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()

	principal := models.Principal{PrincipalID: "p1", TenantID: "t1", Name: "Acme"}
	h := &harness{
		tenants: &memTenants{
			tenants: map[string]models.Tenant{
				"t1": {TenantID: "t1", Name: "Publisher One", AdServer: adapters.TypeMock, IsActive: true},
			},
			principals: map[string]models.Principal{"t1/p1": principal},
			configs:    map[string]models.AdapterConfig{},
			limits: map[string]models.CurrencyLimit{
				"t1/USD": {TenantID: "t1", CurrencyCode: "USD", MinPackageBudget: ptr(100.0), MaxDailyPackageSpend: ptr(1000.0)},
			},
		},
		buys:  newMemBuys(),
		steps: newMemSteps(),
		products: &memProducts{products: []models.Product{
			{ProductID: "prod_display", TenantID: "t1", Name: "Display", DeliveryType: models.DeliveryNonGuaranteed, PricingModel: "cpm", Rate: ptr(10.0), Currency: "USD"},
			{ProductID: "prod_premium", TenantID: "t1", Name: "Homepage takeover", DeliveryType: models.DeliveryGuaranteed, PricingModel: "flat_rate", Currency: "USD", MinSpendPerPackage: ptr(500.0)},
		}},
		creatives: &memCreatives{creatives: map[string]models.Creative{
			"c_ok":      {CreativeID: "c_ok", TenantID: "t1", PrincipalID: "p1", Name: "Banner", Format: "display_300x250", Status: models.CreativeStatusApproved},
			"c_pending": {CreativeID: "c_pending", TenantID: "t1", PrincipalID: "p1", Name: "Video", Format: "video", Status: models.CreativeStatusPendingReview},
		}},
		audit: &memAudit{},
		pub:   &spyPublisher{},
	}

	h.spy = &spyAdapter{Adapter: adapters.NewMockAdapter(nil, adapters.DefaultMockConfig("t1"), principal, true, "t1", log)}
	h.registry = adapters.NewRegistry(log)
	h.registry.Register(adapters.TypeMock, func(models.AdapterConfig, models.Principal, bool, string) (adapters.Adapter, error) {
		return h.spy, nil
	})

	h.resolver = NewAdapterResolver(h.tenants, h.registry, false, log)
	h.workflow = NewWorkflowService(h.steps, h.audit, h.pub, log)
	guardrail := NewGuardrail(h.tenants, h.creatives)
	h.svc = NewMediaBuyService(h.resolver, guardrail, h.workflow, h.buys, h.products, h.creatives, h.audit, h.pub, log)
	return h
}

func flight() (time.Time, time.Time) {
	start := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	return start, start.Add(10 * 24 * time.Hour)
}

func displayRequest(budget float64) CreateMediaBuyRequest {
	return CreateMediaBuyRequest{
		ProductIDs: []string{"prod_display"},
		Packages: []models.MediaPackage{
			{PackageID: "pkg_1", ProductID: "prod_display", Budget: &budget, Impressions: 50000},
		},
		Currency: "USD",
	}
}
