// Package config loads the YAML configuration shared by the server and the CLI.
//
// Loading order: YAML file, then defaults for unset fields, then
// EXTCARE_SECTION_FIELD environment overrides, then validation.
package config

import (
	"fmt"
	"time"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
	"github.com/warp/extcare-billing/logging"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Billing  BillingConfig  `yaml:"billing"`
	Logging  logging.Config `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Recalc   RecalcConfig   `yaml:"recalc"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	// Path is the SQLite file; ":memory:" for a throwaway database.
	Path string `yaml:"path"`
}

// BillingConfig holds the organization-wide window defaults as HH:MM strings.
type BillingConfig struct {
	DefaultDropoff        string `yaml:"default_dropoff"`
	DefaultPickup         string `yaml:"default_pickup"`
	TransportPickupCutoff string `yaml:"transport_pickup_cutoff"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RecalcConfig configures the background month recalculation.
type RecalcConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// WindowPolicy converts the billing section into the engine's policy.
// Validate has already checked the times, so errors only surface when a
// Config was built by hand.
func (c BillingConfig) WindowPolicy() (billing.WindowPolicy, error) {
	var (
		p   billing.WindowPolicy
		err error
	)
	if p.DefaultDropoff, err = generic.ParseClockTime(c.DefaultDropoff); err != nil {
		return p, fmt.Errorf("billing.default_dropoff: %w", err)
	}
	if p.DefaultPickup, err = generic.ParseClockTime(c.DefaultPickup); err != nil {
		return p, fmt.Errorf("billing.default_pickup: %w", err)
	}
	if p.TransportPickupCutoff, err = generic.ParseClockTime(c.TransportPickupCutoff); err != nil {
		return p, fmt.Errorf("billing.transport_pickup_cutoff: %w", err)
	}
	return p, nil
}

// Addr returns the listen address for the server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
