package generic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLOCK TIME - Naive time of day
// =============================================================================

// ClockTime is a naive 24-hour time of day, stored as seconds since midnight.
type ClockTime int

const secondsPerMinute = 60

var sixty = decimal.NewFromInt(secondsPerMinute)

// NewClockTime builds a ClockTime from hours and minutes.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*3600 + minute*secondsPerMinute)
}

// ParseClockTime parses HH:MM or HH:MM:SS.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: time %q: expected HH:MM[:SS]", ErrInvalidInput, s)
	}
	limits := []int{24, 60, 60}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("%w: time %q: expected HH:MM[:SS]", ErrInvalidInput, s)
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	return ClockTime(total), nil
}

// MustParseClockTime is ParseClockTime for tests and fixtures.
func MustParseClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Seconds returns seconds since midnight.
func (c ClockTime) Seconds() int { return int(c) }

// Minutes returns minutes since midnight, fractional when seconds are set.
func (c ClockTime) Minutes() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(sixty)
}

func (c ClockTime) String() string {
	h, m, s := int(c)/3600, (int(c)%3600)/60, int(c)%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// MaxClock returns the later of two clock times.
func MaxClock(a, b ClockTime) ClockTime {
	if a > b {
		return a
	}
	return b
}

// MarshalText encodes the time as HH:MM[:SS] (JSON and YAML).
func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
