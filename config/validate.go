package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/extcare-billing/generic"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "server.port").
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate returns a ValidationError listing every invalid field, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, FieldError{"server.port", fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.Port)})
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			errs = append(errs, FieldError{"database.path", "is required for the sqlite driver"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{"database.driver", fmt.Sprintf("must be sqlite or memory, got %q", cfg.Database.Driver)})
	}

	errs = append(errs, validateBilling(&cfg.Billing)...)

	switch cfg.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, FieldError{"logging.format", fmt.Sprintf("must be json or console, got %q", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"metrics.path", "must start with /"})
	}

	if cfg.Recalc.Enabled && cfg.Recalc.Interval < time.Minute {
		errs = append(errs, FieldError{"recalc.interval", fmt.Sprintf("must be at least 1m, got %s", cfg.Recalc.Interval)})
	}
	if cfg.Recalc.Concurrency < 1 {
		errs = append(errs, FieldError{"recalc.concurrency", "must be at least 1"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateBilling(cfg *BillingConfig) []FieldError {
	var errs []FieldError
	times := map[string]string{
		"billing.default_dropoff":         cfg.DefaultDropoff,
		"billing.default_pickup":          cfg.DefaultPickup,
		"billing.transport_pickup_cutoff": cfg.TransportPickupCutoff,
	}
	parsed := make(map[string]generic.ClockTime, len(times))
	for _, field := range []string{"billing.default_dropoff", "billing.default_pickup", "billing.transport_pickup_cutoff"} {
		c, err := generic.ParseClockTime(times[field])
		if err != nil {
			errs = append(errs, FieldError{field, fmt.Sprintf("invalid time %q, expected HH:MM", times[field])})
			continue
		}
		parsed[field] = c
	}
	if len(errs) > 0 {
		return errs
	}

	if parsed["billing.default_pickup"] < parsed["billing.default_dropoff"] {
		errs = append(errs, FieldError{"billing.default_pickup", "must not be before default_dropoff"})
	}
	return errs
}
