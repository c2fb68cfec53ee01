package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.AppAddr)
	assert.Equal(t, "http://localhost:8080", cfg.UsersAPIURL)
	assert.Equal(t, 30*time.Second, cfg.SubmitLockTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("APP_ENV", "production")
	t.Setenv("USERS_API_URL", "http://users.internal:9000")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("SESSION_TTL", "1h")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "http://users.internal:9000", cfg.UsersAPIURL)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadClientConfigNeedsNoSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")
	t.Setenv("USERS_API_URL", "http://example.test")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://example.test", cfg.UsersAPIURL)
	assert.Equal(t, "pretty", cfg.LogFormat)
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv(testModeEnv, "true")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "maybe")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
}
