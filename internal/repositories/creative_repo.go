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

type CreativeRepo struct {
	pool db.Pool
}

func NewCreativeRepo(pool db.Pool) *CreativeRepo {
	return &CreativeRepo{pool: pool}
}

const creativeColumns = `creative_id, tenant_id, principal_id, name, format, url, width, height, status, created_at`

func scanCreative(row pgx.Row, c *models.Creative) error {
	return row.Scan(&c.CreativeID, &c.TenantID, &c.PrincipalID, &c.Name, &c.Format, &c.URL, &c.Width, &c.Height, &c.Status, &c.CreatedAt)
}

func (r *CreativeRepo) Create(ctx context.Context, c *models.Creative) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO creatives (tenant_id, creative_id, principal_id, name, format, url, width, height, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, creative_id) DO UPDATE SET
			name = EXCLUDED.name, format = EXCLUDED.format, url = EXCLUDED.url,
			width = EXCLUDED.width, height = EXCLUDED.height, status = EXCLUDED.status
		RETURNING created_at
	`, c.TenantID, c.CreativeID, c.PrincipalID, c.Name, c.Format, c.URL, c.Width, c.Height, c.Status).Scan(&c.CreatedAt)
	return eris.Wrapf(err, "creative: upsert %s", c.CreativeID)
}

func (r *CreativeRepo) GetByID(ctx context.Context, tenantID, creativeID string) (*models.Creative, error) {
	var c models.Creative
	err := scanCreative(r.pool.QueryRow(ctx, `
		SELECT `+creativeColumns+` FROM creatives WHERE tenant_id = $1 AND creative_id = $2
	`, tenantID, creativeID), &c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("creative", creativeID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "creative: get %s", creativeID)
	}
	return &c, nil
}

// GetByIDs returns the tenant's creatives keyed by id. Unknown ids are absent.
func (r *CreativeRepo) GetByIDs(ctx context.Context, tenantID string, ids []string) (map[string]models.Creative, error) {
	out := make(map[string]models.Creative, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+creativeColumns+` FROM creatives WHERE tenant_id = $1 AND creative_id = ANY($2)
	`, tenantID, ids)
	if err != nil {
		return nil, eris.Wrapf(err, "creative: get by ids %s", tenantID)
	}
	defer rows.Close()
	for rows.Next() {
		var c models.Creative
		if err := scanCreative(rows, &c); err != nil {
			return nil, eris.Wrap(err, "creative: scan")
		}
		out[c.CreativeID] = c
	}
	return out, eris.Wrap(rows.Err(), "creative: iterate")
}

func (r *CreativeRepo) UpdateStatus(ctx context.Context, tenantID, creativeID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE creatives SET status = $1 WHERE tenant_id = $2 AND creative_id = $3
	`, status, tenantID, creativeID)
	if err != nil {
		return eris.Wrapf(err, "creative: update status %s", creativeID)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("creative", creativeID)
	}
	return nil
}
