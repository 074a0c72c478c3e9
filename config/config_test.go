package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cnf := &Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/sellerdesk"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "SellerDesk Server", cnf.ProjectName)
	assert.Equal(t, 30, cnf.Sync.CallsPerMinute)
	assert.Equal(t, 500, cnf.Sync.InterPageDelayMs)
	assert.Equal(t, 2, cnf.Sync.OverlapSec)
	assert.Equal(t, 180, cnf.Sync.ReplyPendingWindowMin)
	assert.Equal(t, 45, cnf.Link.WindowDays)
	assert.Equal(t, 0.85, cnf.Link.ActionThreshold)
	assert.Equal(t, 0.65, cnf.Link.HintThreshold)
	assert.Equal(t, 30, cnf.SLA.SafetyMin)
	assert.Equal(t, 720, cnf.SLA.GeneralMin)
	assert.Equal(t, 2, cnf.Guardrail.MinLength)
	assert.Equal(t, 1000, cnf.Guardrail.MaxLength)
	assert.Equal(t, "sync_queue", cnf.Queue.SyncQueue)
}

func TestLoadConfigRequiredFields(t *testing.T) {
	cnf := &Configuration{}
	err := cnf.validateAndAddDefaults()
	assert.Error(t, err, "missing datasource DNS must fail validation")

	cnf = &Configuration{DataSource: DataSourceConfig{Dns: "postgres://localhost"}}
	err = cnf.validateAndAddDefaults()
	assert.Error(t, err, "missing redis DNS must fail validation")
}

func TestEnvOverride(t *testing.T) {
	require.NoError(t, os.Setenv("SELLERDESK_DATA_SOURCE_DNS", "postgres://env-host:5432/desk"))
	require.NoError(t, os.Setenv("SELLERDESK_REDIS_DNS", "env-redis:6379"))
	require.NoError(t, os.Setenv("SELLERDESK_SYNC_CALLS_PER_MINUTE", "12"))
	defer func() {
		_ = os.Unsetenv("SELLERDESK_DATA_SOURCE_DNS")
		_ = os.Unsetenv("SELLERDESK_REDIS_DNS")
		_ = os.Unsetenv("SELLERDESK_SYNC_CALLS_PER_MINUTE")
	}()

	require.NoError(t, loadConfigFromFile("does-not-exist.json"))
	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-host:5432/desk", cnf.DataSource.Dns)
	assert.Equal(t, "env-redis:6379", cnf.Redis.Dns)
	assert.Equal(t, 12, cnf.Sync.CallsPerMinute)
}
