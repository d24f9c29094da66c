package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date abstraction (naive, single local calendar)
// =============================================================================

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TimePoint is a plain calendar date. The time-of-day part is always midnight
// UTC; no timezone conversion ever happens.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime drops the clock part of t, keeping its calendar date as-is.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("%w: date %q: expected YYYY-MM-DD", ErrInvalidInput, s)
	}
	return FromTime(t), nil
}

// MustParseDate is ParseDate for tests and fixtures.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool       { wd := tp.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string { return tp.Time.Format(DateLayout) }

// Later returns whichever of the two dates comes last.
func Later(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// HOLIDAY CALENDAR - Organization-scoped holiday ranges
// =============================================================================

// HolidayRange closes every date in [Start, End] (inclusive) for an
// organization. An empty OrganizationID marks a global range.
type HolidayRange struct {
	ID             string
	OrganizationID string
	Name           string
	Start          TimePoint
	End            TimePoint
}

// Covers reports whether date falls inside the range. Inverted ranges cover nothing.
func (h HolidayRange) Covers(date TimePoint) bool {
	return h.Period().Contains(date)
}

// Period returns the range as a Period.
func (h HolidayRange) Period() Period { return Period{Start: h.Start, End: h.End} }

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// IsHoliday checks if a date is closed.
	IsHoliday(date TimePoint) bool
}

// HolidayRanges is a HolidayCalendar over an in-memory set of ranges.
type HolidayRanges []HolidayRange

func (hr HolidayRanges) IsHoliday(date TimePoint) bool {
	for _, h := range hr {
		if h.Covers(date) {
			return true
		}
	}
	return false
}

// Overlapping returns the ranges that touch p.
func (hr HolidayRanges) Overlapping(p Period) HolidayRanges {
	var out HolidayRanges
	for _, h := range hr {
		if h.Period().Overlaps(p) {
			out = append(out, h)
		}
	}
	return out
}

// NoHolidays is a calendar with no closures.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(TimePoint) bool { return false }

// IsWorkdayWithHolidays checks if a date is a working day, considering holidays.
func (tp TimePoint) IsWorkdayWithHolidays(calendar HolidayCalendar) bool {
	if tp.IsWeekend() {
		return false
	}
	if calendar != nil && calendar.IsHoliday(tp) {
		return false
	}
	return true
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return FromTime(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}

// MarshalText encodes the date as YYYY-MM-DD (JSON and YAML).
func (tp TimePoint) MarshalText() ([]byte, error) {
	if tp.IsZero() {
		return []byte{}, nil
	}
	return []byte(tp.String()), nil
}

func (tp *TimePoint) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*tp = TimePoint{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}
