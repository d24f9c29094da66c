package generic

import "github.com/shopspring/decimal"

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is the inclusive date range [Start, End]. Billing always works on
// whole calendar months, built with MonthOf.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MonthOf returns the calendar month containing date.
func MonthOf(date TimePoint) Period {
	return Period{
		Start: StartOfMonth(date.Year(), date.Month()),
		End:   EndOfMonth(date.Year(), date.Month()),
	}
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	if p.IsEmpty() || other.IsEmpty() {
		return false
	}
	return p.Start.BeforeOrEqual(other.End) && p.End.AfterOrEqual(other.Start)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// From clips the period so it starts no earlier than date. The result is
// empty (Start after End) when date is past the period.
func (p Period) From(date TimePoint) Period {
	return Period{Start: Later(p.Start, date), End: p.End}
}

// IsEmpty reports whether the period contains no days.
func (p Period) IsEmpty() bool { return p.Start.After(p.End) }

// WorkingDays counts weekdays in the period not closed by the calendar.
func (p Period) WorkingDays(calendar HolidayCalendar) int {
	n := 0
	for _, d := range p.Days() {
		if d.IsWorkdayWithHolidays(calendar) {
			n++
		}
	}
	return n
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PRORATION
// =============================================================================

// Ratio returns part/whole as a decimal, or zero when whole is zero.
func Ratio(part, whole int) decimal.Decimal {
	if whole <= 0 || part <= 0 {
		return decimal.Zero
	}
	if part >= whole {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(part)).Div(decimal.NewFromInt(int64(whole)))
}
