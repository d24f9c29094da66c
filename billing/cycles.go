package billing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/extcare-billing/generic"
)

// CycleSeconds is the length of one billing cycle (30 minutes).
const CycleSeconds = 30 * 60

var cycleSeconds = decimal.NewFromInt(CycleSeconds)

// secondsToCycles keeps the fractional part: 10 minutes is 1/3 of a cycle.
func secondsToCycles(seconds int) generic.Amount {
	if seconds <= 0 {
		return generic.Cycles(decimal.Zero)
	}
	return generic.Cycles(decimal.NewFromInt(int64(seconds)).Div(cycleSeconds))
}

func secondsToMinutes(seconds int) decimal.Decimal {
	return generic.ClockTime(seconds).Minutes()
}

// CycleCount is the per-day extended-care time outside the baseline window.
type CycleCount struct {
	MorningMinutes   decimal.Decimal
	AfternoonMinutes decimal.Decimal
	Morning          generic.Amount
	Afternoon        generic.Amount
	Daily            generic.Amount
}

// CountCycles compares requested times with the baseline window.
// Arriving after the baseline or leaving before it yields zero, never a credit.
func CountCycles(w Window, dropoff, pickup generic.ClockTime) CycleCount {
	morning := max(0, w.Dropoff.Seconds()-dropoff.Seconds())
	afternoon := max(0, pickup.Seconds()-w.Pickup.Seconds())

	c := CycleCount{
		MorningMinutes:   secondsToMinutes(morning),
		AfternoonMinutes: secondsToMinutes(afternoon),
		Morning:          secondsToCycles(morning),
		Afternoon:        secondsToCycles(afternoon),
	}
	c.Daily = c.Morning.Add(c.Afternoon)
	return c
}

// GrossFee is daily cycles × rate × number of selected weekdays, unprorated.
func GrossFee(daily generic.Amount, rate generic.Amount, days int) generic.Amount {
	return rate.Mul(daily.Value).Mul(decimalFromInt(days))
}

func decimalFromInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }
