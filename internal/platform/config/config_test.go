package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 3, cfg.Battle.CommitRetries)
	assert.Equal(t, int64(1000), cfg.Battle.EventLogMaxLen)
	assert.Equal(t, 30*24*time.Hour, cfg.Battle.RecordTTL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Health.CheckInterval)
	assert.Equal(t, 30*time.Minute, cfg.Battle.SessionIdleTimeout)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REDIS_ADDRESS", "redis.internal:6380")
	t.Setenv("BATTLE_COMMITRETRIES", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Address)
	assert.Equal(t, 5, cfg.Battle.CommitRetries)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := Config{
		Battle:   BattleConfig{CommitRetries: 1, CommitTimeout: time.Second, EventLogMaxLen: 10},
		Database: DatabaseConfig{Driver: "mongo"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo")
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, BattleConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, time.UTC, BattleConfig{}.Location())
}
