package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Service.Port)
	assert.Equal(t, RealtimeDriverPostgres, cfg.Realtime.Driver)
	assert.Equal(t, 64, cfg.Realtime.Buffer)
	assert.Equal(t, 15*time.Minute, cfg.Storage.PresignTTL)
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REALTIME_DRIVER", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_BUCKET", "avatars")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Service.Port)
	assert.Equal(t, RealtimeDriverRedis, cfg.Realtime.Driver)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Storage.Enabled())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("REALTIME_DRIVER", "kafka")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")
}
