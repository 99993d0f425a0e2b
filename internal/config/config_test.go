package config_test

import (
	"testing"
	"time"

	"github.com/seva-trust/donorportal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresBaseURL(t *testing.T) {
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORTAL_API_BASE_URL", "https://portal.example.org/api")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "https://portal.example.org/api", cfg.API.BaseURL)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
	require.Equal(t, 15*time.Minute, cfg.Gateway.CheckoutTimeout)
	require.Equal(t, 4, cfg.Gateway.RetryCount)
	require.Equal(t, "INR", cfg.Gateway.Currency)
	require.Equal(t, 25*time.Minute, cfg.Session.RenewalInterval)
	require.Equal(t, "info", cfg.LogLevel)
	require.NotEmpty(t, cfg.Cache.Dir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORTAL_API_BASE_URL", "http://localhost:8000")
	t.Setenv("PORTAL_SESSION_RENEWAL_INTERVAL", "5m")
	t.Setenv("PORTAL_GATEWAY_KEY_ID", "rzp_test_abc")
	t.Setenv("PORTAL_CACHE_DIR", t.TempDir())
	t.Setenv("PORTAL_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, 5*time.Minute, cfg.Session.RenewalInterval)
	require.Equal(t, "rzp_test_abc", cfg.Gateway.KeyID)
	require.Equal(t, "debug", cfg.LogLevel)
}
