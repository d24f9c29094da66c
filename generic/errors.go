/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Domain packages wrap these with structured errors carrying context.

ERROR CATEGORIES:
  1. Configuration errors - reference data that must exist does not (fatal)
  2. Persistence errors   - the fee store failed to read or write
  3. Input errors         - malformed dates, times or weekdays at the edges

USAGE:
  Domain packages wrap generic errors:

    if errors.Is(err, generic.ErrConfigurationMissing) {
        // 422, never retried
    }

SEE ALSO:
  - billing/errors.go: ConfigurationMissingError, PersistenceError
  - api/handlers.go: Maps these to HTTP status codes
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfigurationMissing is returned when a student has no active
	// enrollment or the enrolled program has no billing configuration.
	// Fatal: no partial or default calculation is attempted.
	ErrConfigurationMissing = errors.New("billing configuration missing")

	// ErrPersistence is returned when a fee record cannot be stored or read.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a date, time or weekday cannot be parsed.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if re-running calculate-then-save might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
