package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// Database defaults
	DefaultDriver = "sqlite"
	DefaultDBPath = "./data/extcare.db"

	// Billing defaults
	DefaultDropoff               = "08:30"
	DefaultPickup                = "15:30"
	DefaultTransportPickupCutoff = "17:00"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stderr"

	// Metrics defaults
	DefaultMetricsPath = "/metrics"

	// Recalculation defaults
	DefaultRecalcInterval    = time.Hour
	DefaultRecalcConcurrency = 4
)

// Default returns a configuration with every default applied. Used when
// no config file is given.
func Default() *Config {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDriver
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDBPath
	}

	if cfg.Billing.DefaultDropoff == "" {
		cfg.Billing.DefaultDropoff = DefaultDropoff
	}
	if cfg.Billing.DefaultPickup == "" {
		cfg.Billing.DefaultPickup = DefaultPickup
	}
	if cfg.Billing.TransportPickupCutoff == "" {
		cfg.Billing.TransportPickupCutoff = DefaultTransportPickupCutoff
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLogOutput
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Recalc.Interval == 0 {
		cfg.Recalc.Interval = DefaultRecalcInterval
	}
	if cfg.Recalc.Concurrency == 0 {
		cfg.Recalc.Concurrency = DefaultRecalcConcurrency
	}
}
