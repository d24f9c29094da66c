// Package billing implements the extended-care fee calculation.
// It composes the generic calendar and interval primitives into the
// resolver → cycles → proration → overlap → assembly pipeline.
package billing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/extcare-billing/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudentID string
type OrganizationID string
type ProgramID string

// =============================================================================
// WEEKDAYS
// =============================================================================

// Weekdays is a set of school days. Only Monday through Friday are billable.
type Weekdays []time.Weekday

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
}

// ParseWeekday accepts short or long English names, any case.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: weekday %q: expected mon..fri", generic.ErrInvalidInput, s)
	}
	return wd, nil
}

// ParseWeekdays parses a list of names; an empty list is valid.
func ParseWeekdays(names []string) (Weekdays, error) {
	out := make(Weekdays, 0, len(names))
	for _, n := range names {
		wd, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		out = append(out, wd)
	}
	return out.Normalize(), nil
}

// AllWeekdays returns Monday through Friday.
func AllWeekdays() Weekdays {
	return Weekdays{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// Normalize drops weekend days and duplicates and sorts Monday first.
func (w Weekdays) Normalize() Weekdays {
	seen := make(map[time.Weekday]bool, len(w))
	out := make(Weekdays, 0, len(w))
	for _, d := range w {
		if d < time.Monday || d > time.Friday || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (w Weekdays) Contains(d time.Weekday) bool {
	for _, x := range w {
		if x == d {
			return true
		}
	}
	return false
}

func (w Weekdays) Strings() []string {
	out := make([]string, len(w))
	for i, d := range w {
		out[i] = strings.ToLower(d.String()[:3])
	}
	return out
}

// =============================================================================
// TRANSPORT
// =============================================================================

// TransportMode describes how the student leaves school. Chauffeured and
// third-party services pick up late, so the free pickup window is extended.
type TransportMode string

const (
	TransportParent     TransportMode = "parent"
	TransportSchoolBus  TransportMode = "school_bus"
	TransportChauffeur  TransportMode = "chauffeur"
	TransportThirdParty TransportMode = "third_party"
)

// ExtendsPickup reports whether the mode moves the pickup baseline later.
func (m TransportMode) ExtendsPickup() bool {
	return m == TransportChauffeur || m == TransportThirdParty
}

func ParseTransportMode(s string) (TransportMode, error) {
	switch m := TransportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return TransportParent, nil
	case TransportParent, TransportSchoolBus, TransportChauffeur, TransportThirdParty:
		return m, nil
	default:
		return "", fmt.Errorf("%w: transport mode %q", generic.ErrInvalidInput, s)
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Student is the minimal roster view the engine needs: siblings share a FamilyID.
type Student struct {
	ID             StudentID
	OrganizationID OrganizationID
	FamilyID       string
	Name           string
}

// Enrollment links a student to a program for a date range.
type Enrollment struct {
	ID             string
	StudentID      StudentID
	OrganizationID OrganizationID
	ProgramID      ProgramID
	Active         bool
	StartDate      generic.TimePoint
	EndDate        *generic.TimePoint
}

// ActiveDuring reports whether the enrollment is flagged active and its
// [StartDate, EndDate] span shares a day with p. A nil EndDate is open-ended.
func (e Enrollment) ActiveDuring(p generic.Period) bool {
	if !e.Active {
		return false
	}
	span := generic.Period{Start: e.StartDate, End: p.End}
	if e.EndDate != nil {
		span.End = *e.EndDate
	}
	return span.Overlaps(p)
}

// ProgramBillingConfig is the read-only per-program rate card. Baseline
// times are optional; Window applies the organization defaults.
type ProgramBillingConfig struct {
	ProgramID       ProgramID
	OrganizationID  OrganizationID
	Name            string
	MonthlyRate     decimal.Decimal
	BaselineDropoff *generic.ClockTime
	BaselinePickup  *generic.ClockTime
}

// ActivityOrigin says whose schedule an activity comes from.
type ActivityOrigin string

const (
	OriginSelf    ActivityOrigin = "self"
	OriginSibling ActivityOrigin = "sibling"
)

// ScheduledActivity is a weekly recurring activity that takes the student
// out of extended care, either their own or a sibling's.
type ScheduledActivity struct {
	ID          string            `json:"id"`
	StudentID   StudentID         `json:"student_id"`
	DisplayName string            `json:"display_name"`
	Weekday     time.Weekday      `json:"weekday"`
	Start       generic.ClockTime `json:"start_time"`
	End         generic.ClockTime `json:"end_time"`
	Origin      ActivityOrigin    `json:"origin"`
}

func (a ScheduledActivity) Interval() generic.Interval {
	return generic.ClockInterval(a.Start, a.End)
}

// =============================================================================
// REQUEST
// =============================================================================

// Request is one fee calculation. It is built per call and never stored.
type Request struct {
	StudentID          StudentID
	OrganizationID     OrganizationID
	BillingMonth       generic.TimePoint
	EffectiveStartDate *generic.TimePoint
	RequestedDropoff   generic.ClockTime
	RequestedPickup    generic.ClockTime
	Weekdays           Weekdays
	TransportMode      TransportMode

	// ManualAdjustment is signed: positive is a surcharge, negative a discount.
	ManualAdjustment decimal.Decimal
}

// Month returns the calendar month being billed.
func (r Request) Month() generic.Period { return generic.MonthOf(r.BillingMonth) }

// StartDate returns the effective start date, defaulting to the first of the month.
func (r Request) StartDate() generic.TimePoint {
	if r.EffectiveStartDate == nil {
		return r.Month().Start
	}
	return *r.EffectiveStartDate
}

// Key identifies the fee record this request would be saved under.
func (r Request) Key() FeeRecordKey {
	return FeeRecordKey{
		StudentID:          r.StudentID,
		BillingMonth:       r.Month().Start,
		EffectiveStartDate: r.StartDate(),
	}
}

// =============================================================================
// BREAKDOWN
// =============================================================================

// DeductionLabel is the single line item for all overlap deductions.
const DeductionLabel = "Activities/Sibling/Transport"

// Deduction is a line item subtracted from the gross fee.
type Deduction struct {
	Label      string         `json:"label"`
	Cycles     generic.Amount `json:"cycles"`
	Unprorated generic.Amount `json:"unprorated"`
	Amount     generic.Amount `json:"amount"`
}

// DayBreakdown is the overlap result for one selected weekday.
type DayBreakdown struct {
	Weekday         time.Weekday       `json:"weekday"`
	BillableMinutes decimal.Decimal    `json:"billable_minutes"`
	NetMinutes      decimal.Decimal    `json:"net_minutes"`
	NetCycles       generic.Amount     `json:"net_cycles"`
	Remaining       []generic.Interval `json:"remaining"`
}

// FeeBreakdown is the full, auditable result of one calculation. It is
// produced fresh on every call and only ever replaced wholesale.
type FeeBreakdown struct {
	StudentID          StudentID         `json:"student_id"`
	OrganizationID     OrganizationID    `json:"organization_id"`
	ProgramID          ProgramID         `json:"program_id"`
	BillingMonth       generic.TimePoint `json:"billing_month"`
	EffectiveStartDate generic.TimePoint `json:"effective_start_date"`
	Weekdays           Weekdays          `json:"weekdays"`
	TransportMode      TransportMode     `json:"transport_mode"`

	RatePerCycle     generic.Amount    `json:"rate_per_cycle"`
	Window           Window            `json:"window"`
	RequestedDropoff generic.ClockTime `json:"requested_dropoff"`
	RequestedPickup  generic.ClockTime `json:"requested_pickup"`

	MorningCycles   generic.Amount `json:"morning_cycles"`
	AfternoonCycles generic.Amount `json:"afternoon_cycles"`
	DailyCycles     generic.Amount `json:"daily_cycles"`
	NetWeeklyCycles generic.Amount `json:"net_weekly_cycles"`

	GrossFee        generic.Amount `json:"gross_fee"`
	RefinedGrossFee generic.Amount `json:"refined_gross_fee"`

	TotalWorkingDays     int             `json:"total_working_days"`
	RemainingWorkingDays int             `json:"remaining_working_days"`
	ProrationFactor      decimal.Decimal `json:"proration_factor"`

	ProratedGrossFee   generic.Amount `json:"prorated_gross_fee"`
	ProratedRefinedFee generic.Amount `json:"prorated_refined_fee"`

	Deductions []Deduction         `json:"deductions"`
	Days       []DayBreakdown      `json:"days"`
	Activities []ScheduledActivity `json:"activities"`

	ManualAdjustment generic.Amount `json:"manual_adjustment"`
	FinalFee         generic.Amount `json:"final_fee"`
}
