package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/extcare-billing/generic"
)

// OverlapResult is the weekly schedule after activity time is removed.
type OverlapResult struct {
	Days            []DayBreakdown
	NetWeeklyCycles generic.Amount
	RefinedGrossFee generic.Amount
	// Activities lists every activity that removed billable time.
	Activities []ScheduledActivity
}

// BillableRanges returns the morning and afternoon extended-care ranges.
// Empty or inverted ranges are left out.
func BillableRanges(w Window, dropoff, pickup generic.ClockTime) []generic.Interval {
	var out []generic.Interval
	for _, r := range []generic.Interval{
		generic.ClockInterval(dropoff, w.Dropoff),
		generic.ClockInterval(w.Pickup, pickup),
	} {
		if !r.IsEmpty() {
			out = append(out, r)
		}
	}
	return out
}

// DeductOverlaps subtracts activities (own and siblings') from the billable
// ranges of each selected weekday and prices what survives.
func DeductOverlaps(w Window, dropoff, pickup generic.ClockTime, days Weekdays, activities []ScheduledActivity, rate generic.Amount) OverlapResult {
	billable := BillableRanges(w, dropoff, pickup)
	billableSeconds := generic.TotalLength(billable)

	byDay := make(map[time.Weekday][]ScheduledActivity)
	for _, a := range activities {
		byDay[a.Weekday] = append(byDay[a.Weekday], a)
	}

	res := OverlapResult{
		NetWeeklyCycles: generic.Cycles(decimal.Zero),
		RefinedGrossFee: generic.Money(decimal.Zero),
	}
	contributing := make(map[string]ScheduledActivity)

	for _, day := range days {
		var exclusions []generic.Interval
		for _, a := range byDay[day] {
			iv := a.Interval()
			exclusions = append(exclusions, iv)
			for _, b := range billable {
				if b.Overlaps(iv) {
					contributing[activityKey(a)] = a
					break
				}
			}
		}

		remaining := generic.SubtractAll(billable, exclusions)
		netSeconds := generic.TotalLength(remaining)
		netCycles := secondsToCycles(netSeconds)

		res.Days = append(res.Days, DayBreakdown{
			Weekday:         day,
			BillableMinutes: secondsToMinutes(billableSeconds),
			NetMinutes:      secondsToMinutes(netSeconds),
			NetCycles:       netCycles,
			Remaining:       remaining,
		})
		res.NetWeeklyCycles = res.NetWeeklyCycles.Add(netCycles)
	}

	res.RefinedGrossFee = rate.Mul(res.NetWeeklyCycles.Value)
	res.Activities = sortedActivities(contributing)
	return res
}

func activityKey(a ScheduledActivity) string {
	return string(a.Origin) + "/" + string(a.StudentID) + "/" + a.ID
}

func sortedActivities(m map[string]ScheduledActivity) []ScheduledActivity {
	out := make([]ScheduledActivity, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return activityKey(out[i]) < activityKey(out[j])
	})
	return out
}
