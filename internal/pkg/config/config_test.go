package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"OPENAQ_API_KEY", "OPENAQ_BASE_URL", "HTTP_TIMEOUT", "RETRY_ATTEMPTS",
		"RETRY_BACKOFF_BASE", "RETRY_BACKOFF_MULTIPLIER", "PAGE_LIMIT", "MAX_PAGES", "STATION_REGISTRY",
	} {
		unsetenv(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.openaq.org/v3", cfg.ApiCfg.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.ApiCfg.Timeout)
	assert.Equal(t, 3, cfg.RetryCfg.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryCfg.Base)
	assert.Equal(t, 2.0, cfg.RetryCfg.Multiplier)
	assert.Equal(t, 1000, cfg.FetchCfg.PageLimit)
	assert.Equal(t, 7, cfg.FetchCfg.DaysBack)
	assert.Equal(t, "configs/stations.yaml", cfg.RegistryPath)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("OPENAQ_API_KEY", "secret")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_BACKOFF_MULTIPLIER", "1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.ApiCfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.ApiCfg.Timeout)
	assert.Equal(t, 5, cfg.RetryCfg.Attempts)
	assert.Equal(t, 1.5, cfg.RetryCfg.Multiplier)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]struct {
		key, value string
	}{
		"unparseable timeout": {key: "HTTP_TIMEOUT", value: "soon"},
		"zero attempts":       {key: "RETRY_ATTEMPTS", value: "0"},
		"shrinking backoff":   {key: "RETRY_BACKOFF_MULTIPLIER", value: "0.5"},
		"zero page limit":     {key: "PAGE_LIMIT", value: "0"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestRequireAPIKey_Missing(t *testing.T) {
	unsetenv(t, "OPENAQ_API_KEY")

	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.RequireAPIKey(), ErrConfiguration)
}

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}
