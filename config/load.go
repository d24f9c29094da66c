package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EXTCARE_"

// LoadConfig loads configuration from a YAML file at the specified path,
// applies defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	// Metrics are on unless the file says otherwise.
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads the file (or the defaults when path is
// empty) and applies EXTCARE_SECTION_FIELD environment variables on top.
// Environment variables always take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg, os.LookupEnv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Unparseable
// numeric or boolean values are ignored.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) {
	env := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return v, ok && v != ""
	}

	// Server overrides
	if val, ok := env("SERVER_PORT"); ok {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = i
		}
	}
	if val, ok := env("SERVER_READ_TIMEOUT"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val, ok := env("SERVER_WRITE_TIMEOUT"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val, ok := env("SERVER_SHUTDOWN_TIMEOUT"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val, ok := env("SERVER_ALLOWED_ORIGINS"); ok {
		cfg.Server.AllowedOrigins = splitList(val)
	}

	// Database overrides
	if val, ok := env("DATABASE_DRIVER"); ok {
		cfg.Database.Driver = val
	}
	if val, ok := env("DATABASE_PATH"); ok {
		cfg.Database.Path = val
	}

	// Billing overrides
	if val, ok := env("BILLING_DEFAULT_DROPOFF"); ok {
		cfg.Billing.DefaultDropoff = val
	}
	if val, ok := env("BILLING_DEFAULT_PICKUP"); ok {
		cfg.Billing.DefaultPickup = val
	}
	if val, ok := env("BILLING_TRANSPORT_PICKUP_CUTOFF"); ok {
		cfg.Billing.TransportPickupCutoff = val
	}

	// Logging overrides
	if val, ok := env("LOGGING_LEVEL"); ok {
		cfg.Logging.Level = val
	}
	if val, ok := env("LOGGING_FORMAT"); ok {
		cfg.Logging.Format = val
	}
	if val, ok := env("LOGGING_OUTPUT"); ok {
		cfg.Logging.Output = val
	}

	// Metrics overrides
	if val, ok := env("METRICS_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val, ok := env("METRICS_PATH"); ok {
		cfg.Metrics.Path = val
	}

	// Recalculation overrides
	if val, ok := env("RECALC_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Recalc.Enabled = b
		}
	}
	if val, ok := env("RECALC_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Recalc.Interval = d
		}
	}
	if val, ok := env("RECALC_CONCURRENCY"); ok {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Recalc.Concurrency = i
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
