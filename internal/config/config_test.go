package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APPROVAL_AUTO_SWEEP_HOURS", "")
	t.Setenv("REVIEWER_IDS", "")

	cfg := Load()
	assert.Equal(t, 24*time.Hour, cfg.ApprovalAutoSweepAge)
	assert.Equal(t, "3000", cfg.APIPort)
	assert.Empty(t, cfg.ReviewerIDs)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APPROVAL_AUTO_SWEEP_HOURS", "48")
	t.Setenv("REVIEWER_IDS", " ops_1, ,ops_2 ")
	t.Setenv("ADAPTER_RATE_PER_SECOND", "2.5")
	t.Setenv("DEFAULT_DRY_RUN", "true")
	t.Setenv("STATUS_POLL_CONCURRENCY", "not-a-number")

	cfg := Load()
	assert.Equal(t, 48*time.Hour, cfg.ApprovalAutoSweepAge)
	assert.Equal(t, []string{"ops_1", "ops_2"}, cfg.ReviewerIDs)
	assert.InDelta(t, 2.5, cfg.AdapterRatePerSecond, 0.0001)
	assert.True(t, cfg.DefaultDryRun)
	assert.Equal(t, 4, cfg.StatusPollConcurrency)
	assert.True(t, cfg.IsReviewer("ops_2"))
	assert.False(t, cfg.IsReviewer("buyer_1"))
}
