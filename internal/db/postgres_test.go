package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostgresConfig(t *testing.T) {
	cfg, err := postgresConfig(PostgresOptions{
		DSN:             "postgres://u:p@db:5432/salesagent?sslmode=disable",
		MaxConns:        1,
		ApplicationName: "salesagent-worker",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, time.Minute, cfg.HealthCheckPeriod)
	assert.Equal(t, "salesagent-worker", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "salesagent", cfg.ConnConfig.Database)

	cfg, err = postgresConfig(PostgresOptions{DSN: "postgres://u:p@db:5432/salesagent"})
	require.NoError(t, err)
	assert.Equal(t, int32(20), cfg.MaxConns)

	_, err = postgresConfig(PostgresOptions{DSN: "postgres://u:p@db:5432/x?sslmode=sometimes"})
	assert.Error(t, err)
}

type flakyPinger struct {
	failures int
	calls    int
	err      error
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return p.err
	}
	return nil
}

func TestPingUntilReady(t *testing.T) {
	ctx := context.Background()

	starting := &flakyPinger{failures: 1, err: errors.New("dial tcp: connection refused")}
	require.NoError(t, pingUntilReady(ctx, starting, 3, zap.NewNop()))
	assert.Equal(t, 2, starting.calls)

	badAuth := &flakyPinger{failures: 5, err: errors.New("password authentication failed")}
	assert.Error(t, pingUntilReady(ctx, badAuth, 3, zap.NewNop()))
	assert.Equal(t, 1, badAuth.calls)
}
