package services

import (
	"context"

	"github.com/adcp/salesagent/internal/adapters"
	"github.com/adcp/salesagent/internal/models"
	"github.com/adcp/salesagent/internal/pricing"
	"go.uber.org/zap"
)

type ProductService struct {
	resolver *AdapterResolver
	products productStore
	log      *zap.Logger
}

func NewProductService(resolver *AdapterResolver, products productStore, log *zap.Logger) *ProductService {
	return &ProductService{resolver: resolver, products: products, log: log}
}

// ListProducts returns the tenant's products with each pricing model mapped
// onto what the tenant's ad server can book. Unknown or unsupported models
// become cpm.
func (s *ProductService) ListProducts(ctx context.Context, tenantID, principalID string) ([]models.Product, error) {
	resolved, err := s.resolver.Resolve(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}
	products, err := s.products.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	caps := resolved.Adapter.Capabilities()
	for i, p := range products {
		m, err := pricing.ParseModel(p.PricingModel)
		if err != nil {
			m = pricing.CPM
		}
		normalized := adapters.NormalizePricingModel(caps, m)
		if string(normalized) != p.PricingModel {
			s.log.Debug("normalized product pricing model",
				zap.String("product_id", p.ProductID),
				zap.String("from", p.PricingModel),
				zap.String("to", string(normalized)),
				zap.String("adapter", resolved.Adapter.Name()),
			)
		}
		products[i].PricingModel = string(normalized)
	}
	return products, nil
}
