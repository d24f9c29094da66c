package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/warp/extcare-billing/api"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBreakdown(w io.Writer, b api.BreakdownDTO) error {
	if jsonOut {
		return printJSON(w, b)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Student\t%s (%s)\n", b.StudentID, b.OrganizationID)
	fmt.Fprintf(tw, "Program\t%s\n", b.ProgramID)
	fmt.Fprintf(tw, "Month\t%s from %s\n", b.BillingMonth, b.EffectiveStartDate)
	fmt.Fprintf(tw, "Schedule\t%s-%s %s (%s)\n",
		b.RequestedDropoff, b.RequestedPickup, strings.Join(b.Weekdays, ","), b.TransportMode)
	window := fmt.Sprintf("%s-%s", b.BaselineDropoff, b.BaselinePickup)
	if b.PickupExtended {
		window += " (pickup extended)"
	}
	fmt.Fprintf(tw, "Free window\t%s\n", window)
	fmt.Fprintf(tw, "Rate per cycle\t%s\n", b.RatePerCycle)
	fmt.Fprintf(tw, "Cycles per day\t%s morning + %s afternoon = %s\n",
		b.MorningCycles, b.AfternoonCycles, b.DailyCycles)
	fmt.Fprintf(tw, "Net weekly cycles\t%s\n", b.NetWeeklyCycles)
	fmt.Fprintf(tw, "Gross fee\t%s\n", b.GrossFee)
	fmt.Fprintf(tw, "Working days\t%d of %d (factor %s)\n",
		b.RemainingWorkingDays, b.TotalWorkingDays, b.ProrationFactor)
	fmt.Fprintf(tw, "Prorated gross\t%s\n", b.ProratedGrossFee)
	for _, d := range b.Deductions {
		fmt.Fprintf(tw, "  - %s\t-%s (%s cycles)\n", d.Label, d.Amount, d.Cycles)
	}
	for _, a := range b.Activities {
		fmt.Fprintf(tw, "    %s\t%s %s-%s\n", a.DisplayName, a.Weekday, a.StartTime, a.EndTime)
	}
	fmt.Fprintf(tw, "Prorated refined\t%s\n", b.ProratedRefinedFee)
	if b.ManualAdjustment != "0.00" {
		fmt.Fprintf(tw, "Manual adjustment\t%s\n", b.ManualAdjustment)
	}
	fmt.Fprintf(tw, "Final fee\t%s\n", b.FinalFee)
	return tw.Flush()
}

func printRecords(w io.Writer, recs []api.FeeRecordDTO) error {
	if jsonOut {
		return printJSON(w, recs)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTUDENT\tMONTH\tSTART\tGROSS\tDISCOUNT\tFINAL\tREASON")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StudentID, r.BillingMonth, r.EffectiveStartDate,
			r.GrossFee, r.Discount, r.FinalFee, r.AdjustmentReason)
	}
	return tw.Flush()
}
