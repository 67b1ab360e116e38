package repositories

import (
	"context"

	"github.com/adcp/salesagent/internal/db"
	"github.com/adcp/salesagent/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

type ProductRepo struct {
	pool db.Pool
}

func NewProductRepo(pool db.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

const productColumns = `product_id, tenant_id, name, description, delivery_type, pricing_model,
	rate::float8, currency, min_spend_per_package::float8`

func (r *ProductRepo) ListByTenant(ctx context.Context, tenantID string) ([]models.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE tenant_id = $1 ORDER BY product_id
	`, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "product: list %s", tenantID)
	}
	return collectProducts(rows)
}

// GetByIDs returns the tenant's products keyed by id. Unknown ids are absent.
func (r *ProductRepo) GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE tenant_id = $1 AND product_id = ANY($2)
	`, tenantID, ids)
	if err != nil {
		return nil, eris.Wrapf(err, "product: get by ids %s", tenantID)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ProductID] = p
	}
	return out, nil
}

func collectProducts(rows pgx.Rows) ([]models.Product, error) {
	defer rows.Close()
	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ProductID, &p.TenantID, &p.Name, &p.Description, &p.DeliveryType, &p.PricingModel,
			&p.Rate, &p.Currency, &p.MinSpendPerPackage); err != nil {
			return nil, eris.Wrap(err, "product: scan")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "product: iterate")
}
