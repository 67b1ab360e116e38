package services

import (
	"context"
	"math"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
)

// Guardrail enforces the tenant's per-currency spend limits and the creative
// review gate. Every check runs against the database before any adapter call.
//
// The limits are read without locking, so two concurrent orders can each pass
// even when their combined spend exceeds what the tenant would accept.
type Guardrail struct {
	tenants   tenantStore
	creatives creativeStore
}

func NewGuardrail(tenants tenantStore, creatives creativeStore) *Guardrail {
	return &Guardrail{tenants: tenants, creatives: creatives}
}

// ValidateCreate checks a new order. products holds the tenant products the
// packages reference, keyed by id.
func (g *Guardrail) ValidateCreate(ctx context.Context, tenantID, currency string, packages []models.MediaPackage, products map[string]models.Product, totalBudget float64) error {
	limit, err := g.currencyLimit(ctx, tenantID, currency)
	if err != nil {
		return err
	}

	var creativeIDs []string
	for _, p := range packages {
		var product *models.Product
		if pr, ok := products[p.ProductID]; ok {
			product = &pr
		}
		if err := checkPackageBudget(limit, p.PackageID, p.BudgetValue(), product); err != nil {
			return err
		}
		creativeIDs = append(creativeIDs, p.CreativeIDs...)
	}

	if err := g.checkCreatives(ctx, tenantID, creativeIDs); err != nil {
		return err
	}

	if math.IsNaN(totalBudget) || math.IsInf(totalBudget, 0) || totalBudget <= 0 {
		return errs.Validation("invalid_total_budget", "total budget must be a positive number")
	}
	if limit.MaxDailyPackageSpend != nil {
		ceiling := *limit.MaxDailyPackageSpend * float64(len(packages))
		if totalBudget > ceiling {
			return errs.Validationf("total_budget_exceeds_limit",
				"total budget %.2f %s exceeds the limit of %.2f for %d packages", totalBudget, currency, ceiling, len(packages))
		}
	}
	return nil
}

// ValidateBudgetUpdate checks a new budget for one existing package against
// the currency the media buy was booked in.
func (g *Guardrail) ValidateBudgetUpdate(ctx context.Context, tenantID, currency string, pkg models.MediaPackage, budget float64, product *models.Product) error {
	limit, err := g.currencyLimit(ctx, tenantID, currency)
	if err != nil {
		return err
	}
	return checkPackageBudget(limit, pkg.PackageID, budget, product)
}

func (g *Guardrail) currencyLimit(ctx context.Context, tenantID, currency string) (*models.CurrencyLimit, error) {
	limit, err := g.tenants.GetCurrencyLimit(ctx, tenantID, currency)
	if err != nil {
		return nil, err
	}
	if limit == nil {
		return nil, errs.Validationf("unsupported_currency",
			"unsupported currency %s for tenant %s", currency, tenantID)
	}
	return limit, nil
}

func checkPackageBudget(limit *models.CurrencyLimit, packageID string, budget float64, product *models.Product) error {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget <= 0 {
		return errs.Validationf("invalid_budget", "package %s budget must be a positive number", packageID)
	}
	if limit.MaxDailyPackageSpend != nil && budget > *limit.MaxDailyPackageSpend {
		return errs.Validationf("budget_exceeds_daily_max",
			"package %s budget %.2f exceeds the maximum daily spend of %.2f %s",
			packageID, budget, *limit.MaxDailyPackageSpend, limit.CurrencyCode)
	}

	minimum := 0.0
	if limit.MinPackageBudget != nil {
		minimum = *limit.MinPackageBudget
	}
	if product != nil && product.MinSpendPerPackage != nil && *product.MinSpendPerPackage > minimum {
		minimum = *product.MinSpendPerPackage
	}
	if budget < minimum {
		return errs.Validationf("budget_below_minimum",
			"package %s budget %.2f is below the minimum of %.2f %s", packageID, budget, minimum, limit.CurrencyCode)
	}
	return nil
}

func (g *Guardrail) checkCreatives(ctx context.Context, tenantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := g.creatives.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		c, ok := found[id]
		if !ok {
			return errs.Validationf("creative_not_found", "creative %s does not exist", id)
		}
		if c.Status != models.CreativeStatusApproved {
			return errs.Validationf("creative_not_approved", "creative %s is %s, only approved creatives can be booked", id, c.Status)
		}
	}
	return nil
}
