package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/extcare-billing/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func september2025() generic.Period {
	return generic.MonthOf(generic.NewTimePoint(2025, time.September, 17))
}

func laborDay() generic.HolidayRange {
	return generic.HolidayRange{
		ID:    "hol-labor-day",
		Name:  "Labor Day",
		Start: generic.NewTimePoint(2025, time.September, 1),
		End:   generic.NewTimePoint(2025, time.September, 1),
	}
}

// =============================================================================
// TIME POINT & PERIOD TESTS
// =============================================================================

func TestMonthOf(t *testing.T) {
	month := september2025()
	assert.Equal(t, "2025-09-01", month.Start.String())
	assert.Equal(t, "2025-09-30", month.End.String())

	feb := generic.MonthOf(generic.MustParseDate("2024-02-10"))
	assert.Equal(t, "2024-02-29", feb.End.String(), "leap year February")
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2025-13-01", "09/01/2025", "2025-09"} {
		_, err := generic.ParseDate(s)
		assert.ErrorIs(t, err, generic.ErrInvalidInput, s)
	}
}

func TestWorkingDays_September2025(t *testing.T) {
	// GIVEN: September 2025 starts on a Monday
	month := september2025()
	require.Equal(t, time.Monday, month.Start.Weekday())

	// THEN: 22 weekdays, 21 once Labor Day closes the 1st
	assert.Equal(t, 22, month.WorkingDays(generic.NoHolidays{}))
	assert.Equal(t, 21, month.WorkingDays(generic.HolidayRanges{laborDay()}))
}

func TestPeriodFrom(t *testing.T) {
	month := september2025()

	rest := month.From(generic.NewTimePoint(2025, time.September, 16))
	assert.Equal(t, 11, rest.WorkingDays(generic.NoHolidays{}))

	// A date before the month clips to the month start
	whole := month.From(generic.NewTimePoint(2025, time.August, 20))
	assert.True(t, whole.Start.Equal(month.Start))

	// A date past the month leaves nothing
	past := month.From(generic.NewTimePoint(2025, time.October, 2))
	assert.True(t, past.IsEmpty())
	assert.Equal(t, 0, past.WorkingDays(generic.NoHolidays{}))
}

func TestPeriod_Overlaps(t *testing.T) {
	month := september2025()
	span := func(from, to string) generic.Period {
		return generic.Period{Start: generic.MustParseDate(from), End: generic.MustParseDate(to)}
	}

	tests := []struct {
		name  string
		other generic.Period
		want  bool
	}{
		{"inside", span("2025-09-10", "2025-09-12"), true},
		{"ends on first day", span("2025-08-01", "2025-09-01"), true},
		{"starts on last day", span("2025-09-30", "2025-12-31"), true},
		{"ends the day before", span("2025-08-01", "2025-08-31"), false},
		{"starts the day after", span("2025-10-01", "2025-10-31"), false},
		{"inverted", span("2025-09-20", "2025-09-10"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, month.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(month))
		})
	}
}

func TestHolidayRange_Inclusive(t *testing.T) {
	// GIVEN: A winter break spanning two weeks
	h := generic.HolidayRange{
		Start: generic.MustParseDate("2025-12-22"),
		End:   generic.MustParseDate("2026-01-02"),
	}

	assert.True(t, h.Covers(generic.MustParseDate("2025-12-22")), "start is closed")
	assert.True(t, h.Covers(generic.MustParseDate("2026-01-02")), "end is closed")
	assert.False(t, h.Covers(generic.MustParseDate("2026-01-03")))

	dec := generic.MonthOf(generic.MustParseDate("2025-12-01"))
	assert.Len(t, generic.HolidayRanges{h}.Overlapping(dec), 1)
	nov := generic.MonthOf(generic.MustParseDate("2025-11-01"))
	assert.Empty(t, generic.HolidayRanges{h}.Overlapping(nov))
}

func TestHolidayRange_InvertedCoversNothing(t *testing.T) {
	h := generic.HolidayRange{
		Start: generic.MustParseDate("2025-09-10"),
		End:   generic.MustParseDate("2025-09-05"),
	}
	assert.False(t, h.Covers(generic.MustParseDate("2025-09-08")))
	assert.Equal(t, 22, september2025().WorkingDays(generic.HolidayRanges{h}))
}

func TestRatio(t *testing.T) {
	assert.True(t, generic.Ratio(11, 22).Equal(decimal.RequireFromString("0.5")))
	assert.True(t, generic.Ratio(0, 22).IsZero())
	assert.True(t, generic.Ratio(5, 0).IsZero(), "no working days means no fee")
	assert.True(t, generic.Ratio(22, 22).Equal(decimal.NewFromInt(1)))
}

// =============================================================================
// CLOCK TIME TESTS
// =============================================================================

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in   string
		want generic.ClockTime
	}{
		{"07:30", generic.NewClockTime(7, 30)},
		{"17:00", generic.NewClockTime(17, 0)},
		{"00:00", 0},
		{"08:15:30", generic.NewClockTime(8, 15) + 30},
		{" 15:30 ", generic.NewClockTime(15, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseClockTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseClockTime_Invalid(t *testing.T) {
	for _, s := range []string{"", "7", "24:00", "12:60", "ab:cd", "1:2:3:4"} {
		_, err := generic.ParseClockTime(s)
		assert.True(t, errors.Is(err, generic.ErrInvalidInput), "expected invalid input for %q", s)
	}
}

func TestClockTime_String(t *testing.T) {
	assert.Equal(t, "07:05", generic.NewClockTime(7, 5).String())
	assert.Equal(t, "08:15:30", (generic.NewClockTime(8, 15) + 30).String())
	assert.True(t, generic.NewClockTime(0, 10).Minutes().Equal(decimal.NewFromInt(10)))
}

// =============================================================================
// INTERVAL TESTS
// =============================================================================

func iv(from, to string) generic.Interval {
	return generic.ClockInterval(generic.MustParseClockTime(from), generic.MustParseClockTime(to))
}

func TestInterval_HalfOpen(t *testing.T) {
	// GIVEN: Two ranges that touch at 08:30
	morning := iv("07:30", "08:30")
	activity := iv("08:30", "09:00")

	// THEN: They do not overlap
	assert.False(t, morning.Overlaps(activity))
	assert.Equal(t, []generic.Interval{morning}, morning.Subtract(activity))
}

func TestInterval_Subtract(t *testing.T) {
	base := iv("07:30", "08:30")

	tests := []struct {
		name  string
		other generic.Interval
		want  []generic.Interval
	}{
		{"disjoint", iv("09:00", "10:00"), []generic.Interval{base}},
		{"covers entirely", iv("07:00", "09:00"), nil},
		{"left edge", iv("07:00", "07:45"), []generic.Interval{iv("07:45", "08:30")}},
		{"right edge", iv("08:15", "09:00"), []generic.Interval{iv("07:30", "08:15")}},
		{"strictly inside", iv("07:45", "08:15"), []generic.Interval{iv("07:30", "07:45"), iv("08:15", "08:30")}},
		{"empty exclusion", iv("08:00", "08:00"), []generic.Interval{base}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Subtract(tt.other))
		})
	}
}

func TestSubtractAll(t *testing.T) {
	// GIVEN: A morning and an afternoon range with two exclusions
	ranges := []generic.Interval{iv("07:30", "08:30"), iv("15:30", "17:00")}
	exclusions := []generic.Interval{iv("07:45", "08:15"), iv("16:00", "18:00")}

	// WHEN: Subtracting every exclusion
	remaining := generic.SubtractAll(ranges, exclusions)

	// THEN: 30 min + 30 min remain in three pieces
	assert.Equal(t, []generic.Interval{iv("07:30", "07:45"), iv("08:15", "08:30"), iv("15:30", "16:00")}, remaining)
	assert.Equal(t, 60*60, generic.TotalLength(remaining))
}

func TestSubtractAll_DropsEmptyRanges(t *testing.T) {
	ranges := []generic.Interval{iv("09:00", "08:30"), iv("15:30", "16:00")}
	remaining := generic.SubtractAll(ranges, nil)
	assert.Equal(t, []generic.Interval{iv("15:30", "16:00")}, remaining)
	assert.Equal(t, 0, iv("09:00", "08:30").Length())
}

// =============================================================================
// AMOUNT TESTS
// =============================================================================

func TestAmount_FloorZero(t *testing.T) {
	neg := generic.Money(decimal.NewFromInt(-40))
	assert.True(t, neg.FloorZero().Value.IsZero())

	pos := generic.Money(decimal.NewFromInt(25))
	assert.True(t, pos.FloorZero().Value.Equal(pos.Value))
	assert.Equal(t, generic.UnitCurrency, neg.FloorZero().Unit)
}
