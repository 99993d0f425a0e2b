// Package config loads portal configuration from the environment. Every
// knob has a PORTAL_ prefixed variable; only the backend base URL is
// mandatory.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

type Config struct {
	API      APIConfig     `env-prefix:"PORTAL_API_"`
	Gateway  GatewayConfig `env-prefix:"PORTAL_GATEWAY_"`
	Session  SessionConfig `env-prefix:"PORTAL_SESSION_"`
	Cache    CacheConfig   `env-prefix:"PORTAL_CACHE_"`
	LogLevel string        `env:"PORTAL_LOG_LEVEL" env-default:"info"`
}

type APIConfig struct {
	BaseURL string        `env:"BASE_URL" env-required:"true"`
	Timeout time.Duration `env:"TIMEOUT" env-default:"30s"`
}

type GatewayConfig struct {
	KeyID           string        `env:"KEY_ID"`
	ScriptURL       string        `env:"SCRIPT_URL" env-default:"https://checkout.razorpay.com/v1/checkout.js"`
	CheckoutTimeout time.Duration `env:"CHECKOUT_TIMEOUT" env-default:"900s"`
	RetryCount      int           `env:"RETRY_COUNT" env-default:"4"`
	ThemeColor      string        `env:"THEME_COLOR" env-default:"#0f766e"`
	Currency        string        `env:"CURRENCY" env-default:"INR"`
}

type SessionConfig struct {
	RenewalInterval time.Duration `env:"RENEWAL_INTERVAL" env-default:"25m"`
}

type CacheConfig struct {
	// Dir holds the profile cache. Empty means a "donorportal" folder
	// under the OS user cache directory.
	Dir string `env:"DIR"`
}

// Load reads configuration from the environment and fills defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load]")
	}
	if cfg.Cache.Dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, errors.Wrap(err, "[config.Load] resolve cache dir")
		}
		cfg.Cache.Dir = filepath.Join(base, "donorportal")
	}
	return &cfg, nil
}

// MustLoad is Load for program startup; it panics on a bad environment.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
