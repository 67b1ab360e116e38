package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/adcp/salesagent/internal/db"
	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

type MediaBuyRepo struct {
	pool db.Pool
}

func NewMediaBuyRepo(pool db.Pool) *MediaBuyRepo {
	return &MediaBuyRepo{pool: pool}
}

const mediaBuyColumns = `media_buy_id, tenant_id, principal_id, COALESCE(buyer_ref, ''), order_name, advertiser_name,
	COALESCE(budget, 0)::float8, currency, start_date, end_date, status, raw_request, created_at, updated_at`

func scanMediaBuy(row pgx.Row, b *models.MediaBuy) error {
	return row.Scan(&b.MediaBuyID, &b.TenantID, &b.PrincipalID, &b.BuyerRef, &b.OrderName, &b.AdvertiserName,
		&b.Budget, &b.Currency, &b.StartDate, &b.EndDate, &b.Status, &b.RawRequest, &b.CreatedAt, &b.UpdatedAt)
}

// CreateWithPackages writes the buy and all its packages in one transaction.
func (r *MediaBuyRepo) CreateWithPackages(ctx context.Context, b *models.MediaBuy, packages []models.MediaPackage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "media buy: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO media_buys (media_buy_id, tenant_id, principal_id, buyer_ref, order_name, advertiser_name,
		                        budget, currency, start_date, end_date, status, raw_request)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, b.MediaBuyID, b.TenantID, b.PrincipalID, b.BuyerRef, b.OrderName, b.AdvertiserName,
		b.Budget, b.Currency, b.StartDate, b.EndDate, b.Status, b.RawRequest,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.Validationf("duplicate_media_buy", "media buy %s already exists", b.MediaBuyID)
	}
	if err != nil {
		return eris.Wrapf(err, "media buy: insert %s", b.MediaBuyID)
	}

	for _, p := range packages {
		cfg, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "media buy: encode package %s", p.PackageID)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO media_packages (tenant_id, media_buy_id, package_id, budget, package_config)
			VALUES ($1, $2, $3, $4, $5)
		`, b.TenantID, b.MediaBuyID, p.PackageID, p.Budget, cfg)
		if err != nil {
			return eris.Wrapf(err, "media buy: insert package %s", p.PackageID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "media buy: commit")
}

func (r *MediaBuyRepo) GetByID(ctx context.Context, tenantID, mediaBuyID string) (*models.MediaBuy, error) {
	var b models.MediaBuy
	err := scanMediaBuy(r.pool.QueryRow(ctx, `
		SELECT `+mediaBuyColumns+`
		FROM media_buys WHERE tenant_id = $1 AND media_buy_id = $2
	`, tenantID, mediaBuyID), &b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("media_buy", mediaBuyID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "media buy: get %s", mediaBuyID)
	}
	return &b, nil
}

func (r *MediaBuyRepo) GetPackages(ctx context.Context, tenantID, mediaBuyID string) ([]models.MediaPackage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT package_id, budget::float8, package_config
		FROM media_packages WHERE tenant_id = $1 AND media_buy_id = $2
		ORDER BY package_id
	`, tenantID, mediaBuyID)
	if err != nil {
		return nil, eris.Wrapf(err, "media buy: list packages %s", mediaBuyID)
	}
	defer rows.Close()

	var packages []models.MediaPackage
	for rows.Next() {
		var (
			id     string
			budget *float64
			raw    []byte
		)
		if err := rows.Scan(&id, &budget, &raw); err != nil {
			return nil, eris.Wrap(err, "media buy: scan package")
		}
		var p models.MediaPackage
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, eris.Wrapf(err, "media buy: decode package %s", id)
			}
		}
		p.MediaBuyID = mediaBuyID
		p.PackageID = id
		p.Budget = budget
		packages = append(packages, p)
	}
	return packages, eris.Wrap(rows.Err(), "media buy: iterate packages")
}

func (r *MediaBuyRepo) GetWithPackages(ctx context.Context, tenantID, mediaBuyID string) (*models.MediaBuyWithPackages, error) {
	b, err := r.GetByID(ctx, tenantID, mediaBuyID)
	if err != nil {
		return nil, err
	}
	packages, err := r.GetPackages(ctx, tenantID, mediaBuyID)
	if err != nil {
		return nil, err
	}
	return &models.MediaBuyWithPackages{MediaBuy: *b, Packages: packages}, nil
}

func (r *MediaBuyRepo) UpdateStatus(ctx context.Context, tenantID, mediaBuyID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE media_buys SET status = $1, updated_at = now()
		WHERE tenant_id = $2 AND media_buy_id = $3
	`, status, tenantID, mediaBuyID)
	return eris.Wrapf(err, "media buy: update status %s", mediaBuyID)
}

// UpdatePackageBudget keeps the budget column and the package_config copy in sync.
func (r *MediaBuyRepo) UpdatePackageBudget(ctx context.Context, tenantID, mediaBuyID, packageID string, budget float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE media_packages
		SET budget = $1, package_config = jsonb_set(package_config, '{budget}', to_jsonb($1::float8))
		WHERE tenant_id = $2 AND media_buy_id = $3 AND package_id = $4
	`, budget, tenantID, mediaBuyID, packageID)
	if err != nil {
		return eris.Wrapf(err, "media buy: update package budget %s/%s", mediaBuyID, packageID)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("package", packageID)
	}
	return nil
}

func (r *MediaBuyRepo) UpdatePackageStatus(ctx context.Context, tenantID, mediaBuyID, packageID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE media_packages
		SET package_config = jsonb_set(package_config, '{status}', to_jsonb($1::text))
		WHERE tenant_id = $2 AND media_buy_id = $3 AND package_id = $4
	`, status, tenantID, mediaBuyID, packageID)
	if err != nil {
		return eris.Wrapf(err, "media buy: update package status %s/%s", mediaBuyID, packageID)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("package", packageID)
	}
	return nil
}

// SetPackageCreatives records the creatives assigned to a package.
func (r *MediaBuyRepo) SetPackageCreatives(ctx context.Context, tenantID, mediaBuyID, packageID string, creativeIDs []string) error {
	ids, err := json.Marshal(creativeIDs)
	if err != nil {
		return eris.Wrap(err, "media buy: encode creative ids")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE media_packages
		SET package_config = jsonb_set(package_config, '{creative_ids}', $1::jsonb)
		WHERE tenant_id = $2 AND media_buy_id = $3 AND package_id = $4
	`, ids, tenantID, mediaBuyID, packageID)
	if err != nil {
		return eris.Wrapf(err, "media buy: set creatives %s/%s", mediaBuyID, packageID)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("package", packageID)
	}
	return nil
}

// ListByStatuses returns buys in any of statuses, oldest update first.
func (r *MediaBuyRepo) ListByStatuses(ctx context.Context, statuses []string, limit int) ([]models.MediaBuy, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+mediaBuyColumns+`
		FROM media_buys WHERE status = ANY($1)
		ORDER BY updated_at ASC LIMIT $2
	`, statuses, limit)
	if err != nil {
		return nil, eris.Wrap(err, "media buy: list by status")
	}
	return collectMediaBuys(rows)
}

type MediaBuyFilter struct {
	TenantID    string
	PrincipalID string
	Status      *string
	Limit       int
	Offset      int
}

func (r *MediaBuyRepo) List(ctx context.Context, f MediaBuyFilter) ([]models.MediaBuy, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+mediaBuyColumns+`
		FROM media_buys
		WHERE tenant_id = $1 AND principal_id = $2 AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC LIMIT $4 OFFSET $5
	`, f.TenantID, f.PrincipalID, f.Status, limit, f.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "media buy: list")
	}
	return collectMediaBuys(rows)
}

func collectMediaBuys(rows pgx.Rows) ([]models.MediaBuy, error) {
	defer rows.Close()
	var buys []models.MediaBuy
	for rows.Next() {
		var b models.MediaBuy
		if err := scanMediaBuy(rows, &b); err != nil {
			return nil, eris.Wrap(err, "media buy: scan")
		}
		buys = append(buys, b)
	}
	return buys, eris.Wrap(rows.Err(), "media buy: iterate")
}

// Touch bumps updated_at so the status poller rotates through buys.
func (r *MediaBuyRepo) Touch(ctx context.Context, tenantID, mediaBuyID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE media_buys SET updated_at = $1 WHERE tenant_id = $2 AND media_buy_id = $3`, at, tenantID, mediaBuyID)
	return eris.Wrapf(err, "media buy: touch %s", mediaBuyID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
