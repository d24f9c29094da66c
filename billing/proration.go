package billing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/extcare-billing/generic"
)

// Proration scales a month's recurring schedule to a mid-month start.
type Proration struct {
	Month                generic.Period
	EffectiveStart       generic.TimePoint
	TotalWorkingDays     int
	RemainingWorkingDays int
	Factor               decimal.Decimal
}

// Prorate counts working days in the month, and those on or after
// max(start, month start). The factor is remaining/total, or zero when the
// month has no working days at all.
//
// The factor is a flat day-count ratio applied to the whole weekly schedule;
// it does not skip the specific weekday occurrences before the start date.
func Prorate(month generic.Period, start generic.TimePoint, calendar generic.HolidayCalendar) Proration {
	if calendar == nil {
		calendar = generic.NoHolidays{}
	}
	total := month.WorkingDays(calendar)
	remaining := 0
	if rest := month.From(start); !rest.IsEmpty() {
		remaining = rest.WorkingDays(calendar)
	}
	return Proration{
		Month:                month,
		EffectiveStart:       generic.Later(month.Start, start),
		TotalWorkingDays:     total,
		RemainingWorkingDays: remaining,
		Factor:               generic.Ratio(remaining, total),
	}
}
