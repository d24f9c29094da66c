package billing

import (
	"github.com/warp/extcare-billing/generic"
)

// ReferenceData is everything a calculation reads besides the request.
type ReferenceData struct {
	Profile    Profile
	Holidays   generic.HolidayRanges
	Activities []ScheduledActivity
}

// Compute runs stages 2 to 5 on already-resolved reference data. It is a
// pure function: same request and reference data give an identical result.
func Compute(req Request, ref ReferenceData) FeeBreakdown {
	days := req.Weekdays.Normalize()
	p := ref.Profile

	cycles := CountCycles(p.Window, req.RequestedDropoff, req.RequestedPickup)
	gross := GrossFee(cycles.Daily, p.RatePerCycle, len(days))
	proration := Prorate(req.Month(), req.StartDate(), ref.Holidays)
	overlap := DeductOverlaps(p.Window, req.RequestedDropoff, req.RequestedPickup, days, ref.Activities, p.RatePerCycle)

	b := FeeBreakdown{
		StudentID:          req.StudentID,
		OrganizationID:     req.OrganizationID,
		ProgramID:          p.Program.ProgramID,
		BillingMonth:       req.Month().Start,
		EffectiveStartDate: req.StartDate(),
		Weekdays:           days,
		TransportMode:      req.TransportMode,
		RatePerCycle:       p.RatePerCycle,
		Window:             p.Window,
		RequestedDropoff:   req.RequestedDropoff,
		RequestedPickup:    req.RequestedPickup,
		MorningCycles:      cycles.Morning,
		AfternoonCycles:    cycles.Afternoon,
		DailyCycles:        cycles.Daily,
		NetWeeklyCycles:    overlap.NetWeeklyCycles,
		Days:               overlap.Days,
		Activities:         overlap.Activities,
	}
	Assemble(&b, gross, overlap.RefinedGrossFee, proration, generic.Money(req.ManualAdjustment))
	return b
}

// Assemble fills in the fee totals:
//
//	prorated_gross   = gross × factor
//	prorated_refined = refined × factor
//	final            = max(0, prorated_refined + adjustment)
//
// The overlap deduction is reported as one aggregate line item.
func Assemble(b *FeeBreakdown, gross, refined generic.Amount, proration Proration, adjustment generic.Amount) {
	b.GrossFee = gross
	b.RefinedGrossFee = refined
	b.TotalWorkingDays = proration.TotalWorkingDays
	b.RemainingWorkingDays = proration.RemainingWorkingDays
	b.ProrationFactor = proration.Factor
	b.ProratedGrossFee = gross.Mul(proration.Factor)
	b.ProratedRefinedFee = refined.Mul(proration.Factor)
	b.ManualAdjustment = adjustment
	b.FinalFee = b.ProratedRefinedFee.Add(adjustment).FloorZero()

	b.Deductions = nil
	if unprorated := gross.Sub(refined); unprorated.IsPositive() {
		weekly := b.DailyCycles.Mul(decimalFromInt(len(b.Weekdays)))
		b.Deductions = []Deduction{{
			Label:      DeductionLabel,
			Cycles:     weekly.Sub(b.NetWeeklyCycles),
			Unprorated: unprorated,
			Amount:     b.ProratedGrossFee.Sub(b.ProratedRefinedFee),
		}}
	}
}
