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

	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 25*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, 30*time.Second, cfg.Room.GracePeriod)
	assert.Equal(t, "tictactoe_events", cfg.Redis.QueueName)
	assert.Equal(t, 20, cfg.Historian.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.Historian.Inactivity)
	assert.True(t, cfg.Database.Migrate)
	assert.False(t, cfg.Development())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ROOM_GRACE_PERIOD", "2s")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("APP_ENV", "development")
	t.Setenv("ACTION_LOG_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr())
	assert.Equal(t, 2*time.Second, cfg.Room.GracePeriod)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Development())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("grace period", func(t *testing.T) {
		t.Setenv("ROOM_GRACE_PERIOD", "0s")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("unparseable duration", func(t *testing.T) {
		t.Setenv("WS_PING_INTERVAL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("token expiry", func(t *testing.T) {
		t.Setenv("TOKEN_EXPIRE_TIME", "tomorrow")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		User:     "game",
		Password: "p@ss",
		Host:     "db",
		Port:     "5433",
		Name:     "ttt",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://game:p%40ss@db:5433/ttt?sslmode=disable", d.DSN())

	d.URL = "postgres://override/x"
	assert.Equal(t, "postgres://override/x", d.DSN())
}

func TestTokenTTL(t *testing.T) {
	for _, v := range []string{"", "0", "never"} {
		ttl, err := AuthConfig{TokenExpire: v}.TokenTTL()
		require.NoError(t, err)
		assert.Zero(t, ttl)
	}
	ttl, err := AuthConfig{TokenExpire: "90m"}.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, ttl)

	for _, v := range []string{"tomorrow", "-5m"} {
		_, err := AuthConfig{TokenExpire: v}.TokenTTL()
		assert.Error(t, err, v)
	}
}
