package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adcp/salesagent/internal/errs"
	"github.com/adcp/salesagent/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

// buyInsertArgs matches the twelve columns written for a media buy.
func buyInsertArgs() []any {
	args := make([]any, 12)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func testBuy() *models.MediaBuy {
	return &models.MediaBuy{
		MediaBuyID:  "buy_PO-1",
		TenantID:    "t1",
		PrincipalID: "p1",
		BuyerRef:    "ref-1",
		OrderName:   "Spring",
		Budget:      2000,
		Currency:    "USD",
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:      models.MediaBuyStatusDraft,
	}
}

func TestMediaBuyRepo_CreateWithPackages(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	budget := 1000.0

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO media_buys").
		WithArgs(buyInsertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO media_packages").
		WithArgs("t1", "buy_PO-1", "pkg_1", &budget, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO media_packages").
		WithArgs("t1", "buy_PO-1", "pkg_2", &budget, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	b := testBuy()
	packages := []models.MediaPackage{
		{PackageID: "pkg_1", Budget: &budget},
		{PackageID: "pkg_2", Budget: &budget},
	}
	require.NoError(t, NewMediaBuyRepo(mock).CreateWithPackages(context.Background(), b, packages))
	assert.Equal(t, now, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaBuyRepo_CreateWithPackages_RollsBack(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO media_buys").
		WithArgs(buyInsertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO media_packages").
		WithArgs("t1", "buy_PO-1", "pkg_1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := NewMediaBuyRepo(mock).CreateWithPackages(context.Background(), testBuy(), []models.MediaPackage{{PackageID: "pkg_1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert package pkg_1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaBuyRepo_CreateWithPackages_DuplicateID(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO media_buys").
		WithArgs(buyInsertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "media_buys_pkey"})
	mock.ExpectRollback()

	err := NewMediaBuyRepo(mock).CreateWithPackages(context.Background(), testBuy(), []models.MediaPackage{{PackageID: "pkg_1"}})
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Equal(t, "duplicate_media_buy", errs.Code(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaBuyRepo_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM media_buys WHERE tenant_id").
		WithArgs("t1", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewMediaBuyRepo(mock).GetByID(context.Background(), "t1", "missing")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, "media_buy_not_found", errs.Code(err))
}

func TestMediaBuyRepo_UpdatePackageBudget_UnknownPackage(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("UPDATE media_packages").
		WithArgs(1500.0, "t1", "buy_1", "pkg_9").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewMediaBuyRepo(mock).UpdatePackageBudget(context.Background(), "t1", "buy_1", "pkg_9", 1500)
	assert.Equal(t, "package_not_found", errs.Code(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaBuyRepo_GetPackagesDecodesConfig(t *testing.T) {
	mock := newMock(t)
	budget := 250.0
	mock.ExpectQuery("SELECT package_id").
		WithArgs("t1", "buy_1").
		WillReturnRows(pgxmock.NewRows([]string{"package_id", "budget", "package_config"}).
			AddRow("pkg_1", &budget, []byte(`{"name":"Display","pricing_model":"cpc","creative_ids":["c1"]}`)))

	packages, err := NewMediaBuyRepo(mock).GetPackages(context.Background(), "t1", "buy_1")
	require.NoError(t, err)
	require.Len(t, packages, 1)
	assert.Equal(t, "Display", packages[0].Name)
	assert.Equal(t, "cpc", packages[0].PricingModel)
	assert.Equal(t, []string{"c1"}, packages[0].CreativeIDs)
	assert.Equal(t, 250.0, *packages[0].Budget)
	assert.Equal(t, "buy_1", packages[0].MediaBuyID)
}

func TestWorkflowRepo_CreateWithMapping(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO workflow_steps").
		WithArgs("step_1", "t1", "ctx", models.StepTypeApproval, "activate", models.StepStatusRequiresApproval,
			models.StepOwnerHuman, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery("INSERT INTO object_workflow_mapping").
		WithArgs("media_buy", "buy_1", "step_1", "activate_order").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	step := &models.WorkflowStep{StepID: "step_1", TenantID: "t1", ContextID: "ctx", ToolName: "activate", StepType: models.StepTypeApproval, Status: models.StepStatusRequiresApproval, Owner: models.StepOwnerHuman}
	mapping := &models.ObjectWorkflowMapping{ObjectType: "media_buy", ObjectID: "buy_1", Action: "activate_order"}
	require.NoError(t, NewWorkflowRepo(mock).CreateWithMapping(context.Background(), step, mapping))
	assert.Equal(t, "step_1", mapping.StepID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepo_FinishReportsLostRace(t *testing.T) {
	mock := newMock(t)
	at := time.Now()

	mock.ExpectExec("UPDATE workflow_steps").
		WithArgs(models.StepStatusCompleted, pgxmock.AnyArg(), pgxmock.AnyArg(), at,
			"t1", "step_1", models.StepStatusInProgress).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE workflow_steps").
		WithArgs(models.StepStatusFailed, pgxmock.AnyArg(), pgxmock.AnyArg(), at,
			"t1", "step_1", models.StepStatusInProgress).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewWorkflowRepo(mock)
	ok, err := repo.Finish(context.Background(), "t1", "step_1", models.StepStatusInProgress, models.StepStatusCompleted, nil, nil, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Finish(context.Background(), "t1", "step_1", models.StepStatusInProgress, models.StepStatusFailed, nil, nil, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepo_ClaimOnce(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("UPDATE workflow_steps SET status = 'in_progress'").
		WithArgs("t1", "step_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE workflow_steps SET status = 'in_progress'").
		WithArgs("t1", "step_1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewWorkflowRepo(mock)
	ok, err := repo.Claim(context.Background(), "t1", "step_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(context.Background(), "t1", "step_1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepo_GetByID_OtherTenant(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM workflow_steps WHERE tenant_id").
		WithArgs("t1", "step_t2").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM workflow_steps WHERE tenant_id").
		WithArgs("t1", models.StepStatusRequiresApproval, 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"step_id"}))

	repo := NewWorkflowRepo(mock)
	_, err := repo.GetByID(context.Background(), "t1", "step_t2")
	assert.Equal(t, "workflow_step_not_found", errs.Code(err))

	steps, err := repo.ListByStatus(context.Background(), "t1", models.StepStatusRequiresApproval, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, steps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepo_MissingRows(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM currency_limits").
		WithArgs("t1", "JPY").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM adapter_config").
		WithArgs("t1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM tenants").
		WithArgs("t9").
		WillReturnError(pgx.ErrNoRows)

	repo := NewTenantRepo(mock)
	ctx := context.Background()

	limit, err := repo.GetCurrencyLimit(ctx, "t1", "JPY")
	require.NoError(t, err)
	assert.Nil(t, limit)

	cfg, err := repo.GetAdapterConfig(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = repo.GetTenant(ctx, "t9")
	assert.Equal(t, errs.KindTenant, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreativeRepo_GetByIDs_Empty(t *testing.T) {
	out, err := NewCreativeRepo(nil).GetByIDs(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
