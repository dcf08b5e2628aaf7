package config

import (
	"os"
	"strconv"

	"fundcast/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Sampler  SamplerConfig
	Paths    PathConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds query server settings
type ServerConfig struct {
	Port string
}

// SamplerConfig holds MCMC and fitting settings
type SamplerConfig struct {
	Chains       int
	Iterations   int
	WarmUp       int
	SubsampleCap int
	BaseSeed     int64
}

// PathConfig holds file system paths for flat-file artifacts
type PathConfig struct {
	ModelTable string // CSV flat table for the fitted model
	ReportFile string // xlsx diagnostic fit report
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port: envOr("PORT", "8080"),
		},
		Sampler: SamplerConfig{
			Chains:       envIntOr("SAMPLER_CHAINS", 3),
			Iterations:   envIntOr("SAMPLER_ITERATIONS", 2000),
			WarmUp:       envIntOr("SAMPLER_WARMUP", 500),
			SubsampleCap: envIntOr("SAMPLER_SUBSAMPLE_CAP", 25000),
			BaseSeed:     envInt64Or("SAMPLER_SEED", 42),
		},
		Paths: PathConfig{
			ModelTable: envOr("MODEL_TABLE", "fitted_model.csv"),
			ReportFile: os.Getenv("REPORT_FILE"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Sampler.Chains < 1 {
		return errors.ConfigInvalid("SAMPLER_CHAINS must be at least 1")
	}
	if c.Sampler.Iterations < 1 {
		return errors.ConfigInvalid("SAMPLER_ITERATIONS must be at least 1")
	}
	if c.Sampler.WarmUp < 0 || c.Sampler.WarmUp >= c.Sampler.Iterations {
		return errors.ConfigInvalid("SAMPLER_WARMUP must be in [0, SAMPLER_ITERATIONS)")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
