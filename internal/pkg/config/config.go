package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrConfiguration marks fatal, non-retryable setup problems such as a missing
// credential or an unreadable station registry.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	ApiCfg     *ApiConfig
	RetryCfg   *RetryConfig
	FetchCfg   *FetchConfig
	ArchiveCfg *ArchiveConfig

	RegistryPath   string `env:"STATION_REGISTRY" envDefault:"configs/stations.yaml"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"INFO"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
}

type ApiConfig struct {
	BaseURL string        `env:"OPENAQ_BASE_URL" envDefault:"https://api.openaq.org/v3"`
	APIKey  string        `env:"OPENAQ_API_KEY"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"20s"`
}

type RetryConfig struct {
	Attempts   int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	Base       time.Duration `env:"RETRY_BACKOFF_BASE" envDefault:"500ms"`
	Multiplier float64       `env:"RETRY_BACKOFF_MULTIPLIER" envDefault:"2"`
	Max        time.Duration `env:"RETRY_BACKOFF_MAX" envDefault:"10s"`
}

type FetchConfig struct {
	PageLimit int `env:"PAGE_LIMIT" envDefault:"1000"`
	MaxPages  int `env:"MAX_PAGES" envDefault:"50"`
	DaysBack  int `env:"DAYS_BACK" envDefault:"7"`
}

type ArchiveConfig struct {
	DatabaseURL      string `env:"DATABASE_URL"`
	MigrationsFolder string `env:"MIGRATIONS_FOLDER" envDefault:"migrations"`
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ApiCfg:     &ApiConfig{},
		RetryCfg:   &RetryConfig{},
		FetchCfg:   &FetchConfig{},
		ArchiveCfg: &ArchiveConfig{},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric settings. It does not require the API key,
// see RequireAPIKey.
func (c *Config) Validate() error {
	switch {
	case c.ApiCfg.Timeout <= 0:
		return fmt.Errorf("%w: http timeout must be positive, got %s", ErrConfiguration, c.ApiCfg.Timeout)
	case c.RetryCfg.Attempts < 1:
		return fmt.Errorf("%w: retry attempts must be at least 1, got %d", ErrConfiguration, c.RetryCfg.Attempts)
	case c.RetryCfg.Base <= 0:
		return fmt.Errorf("%w: retry backoff base must be positive, got %s", ErrConfiguration, c.RetryCfg.Base)
	case c.RetryCfg.Multiplier < 1:
		return fmt.Errorf("%w: retry backoff multiplier must be >= 1, got %g", ErrConfiguration, c.RetryCfg.Multiplier)
	case c.FetchCfg.PageLimit < 1:
		return fmt.Errorf("%w: page limit must be at least 1, got %d", ErrConfiguration, c.FetchCfg.PageLimit)
	case c.FetchCfg.MaxPages < 1:
		return fmt.Errorf("%w: max pages must be at least 1, got %d", ErrConfiguration, c.FetchCfg.MaxPages)
	}
	return nil
}

// RequireAPIKey fails when no credential was supplied. Commands that talk to
// the remote API call it before doing anything else.
func (c *Config) RequireAPIKey() error {
	if c.ApiCfg.APIKey == "" {
		return fmt.Errorf("%w: OPENAQ_API_KEY is not set", ErrConfiguration)
	}
	return nil
}
