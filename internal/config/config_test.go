package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	cfg, err := New("test-instance")
	require.NoError(t, err)

	assert.Equal(t, "test-instance", cfg.Instance)
	assert.Equal(t, DefaultWorkerConcurrency, cfg.WorkerConcurrency)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultPromoteInterval, cfg.PromoteInterval)
	assert.Equal(t, DefaultSchedulerCheckInterval, cfg.SchedulerCheckInterval)
	assert.Equal(t, DefaultStaleThreshold, cfg.StaleThreshold)
	assert.Equal(t, DefaultRecoveryDelay, cfg.RecoveryDelay)
	assert.Equal(t, DefaultWebhookMaxAttempts, cfg.WebhookMaxAttempts)
	assert.Equal(t, DefaultWebhookRetryBaseDelay, cfg.WebhookRetryBaseDelay)
}

func TestNewRequiresInstance(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestOptionsApply(t *testing.T) {
	cfg, err := New("test",
		WithPostgresURL("host=localhost dbname=taskforge"),
		WithRedis("localhost:6380", "secret", 2),
		WithWorkerConcurrency(4),
		WithWorkerIntervals(500*time.Millisecond, 10*time.Second, 2*time.Second),
		WithHTTPAddr(":9090"),
	)
	require.NoError(t, err)

	assert.Equal(t, "host=localhost dbname=taskforge", cfg.PostgresURL)
	assert.Equal(t, "localhost:6380", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestOptionsAccumulateValidationErrors(t *testing.T) {
	_, err := New("test",
		WithPostgresURL(""),
		WithWorkerConcurrency(0),
		WithWebhookPolicy(0, 0, 0, 0),
	)
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), "postgres")
	assert.Contains(t, err.Error(), "concurrency")
	assert.Contains(t, err.Error(), "webhook")
}
