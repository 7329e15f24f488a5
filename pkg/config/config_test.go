package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 15*time.Second, cfg.Cache.PendingTTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 1, cfg.Audit.Workers)
	assert.Equal(t, 3, cfg.Audit.Retries)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORE_DRIVER", " SQLite ")
	v.Set("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	v.Set("PENDING_CACHE_TTL", "not-a-duration")
	v.Set("AUDIT_RETRY_DELAY", "250ms")
	v.Set("ENABLE_PENDING_CACHE", true)

	cfg := fromViper(v)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.Cache.PendingTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Audit.RetryDelay)
	assert.True(t, cfg.Cache.Enabled)
}
