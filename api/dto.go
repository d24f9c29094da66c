/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the billing model from the external contract: dates travel as
  "YYYY-MM-DD" strings, clock times as "HH:MM", weekdays as short names,
  and money as fixed two-decimal strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

PARSING:
  CalculateRequest.ToRequest is the only place request strings are turned
  into billing values. Unparseable input wraps generic.ErrInvalidInput and
  maps to 400. Semantically odd but well-formed input (pickup before
  dropoff, an effective start outside the month) is passed through; the
  engine treats it as zero billable time.

  The same request struct is read from YAML files by the CLI.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: FeeBreakdown
*/
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/factory"
	"github.com/warp/extcare-billing/generic"
)

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateRequest is the body of /api/billing/calculate and /api/billing/save.
type CalculateRequest struct {
	StudentID      string `json:"student_id" yaml:"student_id"`
	OrganizationID string `json:"organization_id" yaml:"organization_id"`
	// BillingMonth is "YYYY-MM" or any date inside the month.
	BillingMonth       string   `json:"billing_month" yaml:"billing_month"`
	EffectiveStartDate string   `json:"effective_start_date,omitempty" yaml:"effective_start_date,omitempty"`
	RequestedDropoff   string   `json:"requested_dropoff" yaml:"requested_dropoff"`
	RequestedPickup    string   `json:"requested_pickup" yaml:"requested_pickup"`
	Weekdays           []string `json:"weekdays" yaml:"weekdays"`
	TransportMode      string   `json:"transport_mode,omitempty" yaml:"transport_mode,omitempty"`
	// ManualAdjustment is a signed decimal string: "25" surcharge, "-40" discount.
	ManualAdjustment string `json:"manual_adjustment,omitempty" yaml:"manual_adjustment,omitempty"`
	// AdjustmentReason is only used by save.
	AdjustmentReason string `json:"adjustment_reason,omitempty" yaml:"adjustment_reason,omitempty"`
}

// ToRequest parses the wire format into a billing.Request.
func (r CalculateRequest) ToRequest() (billing.Request, error) {
	var req billing.Request
	if strings.TrimSpace(r.StudentID) == "" {
		return req, fmt.Errorf("%w: student_id is required", generic.ErrInvalidInput)
	}
	if strings.TrimSpace(r.OrganizationID) == "" {
		return req, fmt.Errorf("%w: organization_id is required", generic.ErrInvalidInput)
	}
	req.StudentID = billing.StudentID(r.StudentID)
	req.OrganizationID = billing.OrganizationID(r.OrganizationID)

	var err error
	if req.BillingMonth, err = ParseMonth(r.BillingMonth); err != nil {
		return req, fmt.Errorf("billing_month: %w", err)
	}
	if r.EffectiveStartDate != "" {
		start, err := generic.ParseDate(r.EffectiveStartDate)
		if err != nil {
			return req, fmt.Errorf("effective_start_date: %w", err)
		}
		req.EffectiveStartDate = &start
	}
	if req.RequestedDropoff, err = generic.ParseClockTime(r.RequestedDropoff); err != nil {
		return req, fmt.Errorf("requested_dropoff: %w", err)
	}
	if req.RequestedPickup, err = generic.ParseClockTime(r.RequestedPickup); err != nil {
		return req, fmt.Errorf("requested_pickup: %w", err)
	}
	if req.Weekdays, err = billing.ParseWeekdays(r.Weekdays); err != nil {
		return req, err
	}
	if req.TransportMode, err = billing.ParseTransportMode(r.TransportMode); err != nil {
		return req, err
	}
	if req.ManualAdjustment, err = parseOptionalDecimal(r.ManualAdjustment); err != nil {
		return req, fmt.Errorf("manual_adjustment: %w", err)
	}
	return req, nil
}

// ParseMonth accepts "YYYY-MM" or "YYYY-MM-DD" and returns the first of the month.
func ParseMonth(s string) (generic.TimePoint, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01", s); err == nil {
		return generic.FromTime(t), nil
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, fmt.Errorf("%w: month %q: expected YYYY-MM", generic.ErrInvalidInput, s)
	}
	return generic.MonthOf(d).Start, nil
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal", generic.ErrInvalidInput, s)
	}
	return d, nil
}

// BreakdownDTO is the client view of a billing.FeeBreakdown.
type BreakdownDTO struct {
	StudentID          string   `json:"student_id"`
	OrganizationID     string   `json:"organization_id"`
	ProgramID          string   `json:"program_id"`
	BillingMonth       string   `json:"billing_month"`
	EffectiveStartDate string   `json:"effective_start_date"`
	Weekdays           []string `json:"weekdays"`
	TransportMode      string   `json:"transport_mode"`

	RatePerCycle     string `json:"rate_per_cycle"`
	BaselineDropoff  string `json:"baseline_dropoff"`
	BaselinePickup   string `json:"baseline_pickup"`
	PickupExtended   bool   `json:"pickup_extended"`
	RequestedDropoff string `json:"requested_dropoff"`
	RequestedPickup  string `json:"requested_pickup"`

	MorningCycles   string `json:"morning_cycles"`
	AfternoonCycles string `json:"afternoon_cycles"`
	DailyCycles     string `json:"daily_cycles"`
	NetWeeklyCycles string `json:"net_weekly_cycles"`

	GrossFee        string `json:"gross_fee"`
	RefinedGrossFee string `json:"refined_gross_fee"`

	TotalWorkingDays     int    `json:"total_working_days"`
	RemainingWorkingDays int    `json:"remaining_working_days"`
	ProrationFactor      string `json:"proration_factor"`

	ProratedGrossFee   string `json:"prorated_gross_fee"`
	ProratedRefinedFee string `json:"prorated_refined_fee"`

	Deductions []DeductionDTO `json:"deductions"`
	Activities []ActivityDTO  `json:"contributing_activities"`

	ManualAdjustment string `json:"manual_adjustment"`
	FinalFee         string `json:"final_fee"`
}

// DeductionDTO is one deduction line item.
type DeductionDTO struct {
	Label      string `json:"label"`
	Cycles     string `json:"cycles"`
	Unprorated string `json:"unprorated"`
	Amount     string `json:"amount"`
}

// ActivityDTO is a scheduled activity in requests and responses.
type ActivityDTO struct {
	ID          string `json:"id,omitempty"`
	StudentID   string `json:"student_id"`
	DisplayName string `json:"display_name"`
	Weekday     string `json:"weekday"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Origin      string `json:"origin,omitempty"`
}

func money(a generic.Amount) string { return a.Value.StringFixed(2) }

// ToBreakdownDTO renders a breakdown with money fixed to two decimals.
func ToBreakdownDTO(b billing.FeeBreakdown) BreakdownDTO {
	dto := BreakdownDTO{
		StudentID:            string(b.StudentID),
		OrganizationID:       string(b.OrganizationID),
		ProgramID:            string(b.ProgramID),
		BillingMonth:         b.BillingMonth.String(),
		EffectiveStartDate:   b.EffectiveStartDate.String(),
		Weekdays:             b.Weekdays.Strings(),
		TransportMode:        string(b.TransportMode),
		RatePerCycle:         money(b.RatePerCycle),
		BaselineDropoff:      b.Window.Dropoff.String(),
		BaselinePickup:       b.Window.Pickup.String(),
		PickupExtended:       b.Window.Extended,
		RequestedDropoff:     b.RequestedDropoff.String(),
		RequestedPickup:      b.RequestedPickup.String(),
		MorningCycles:        b.MorningCycles.Value.String(),
		AfternoonCycles:      b.AfternoonCycles.Value.String(),
		DailyCycles:          b.DailyCycles.Value.String(),
		NetWeeklyCycles:      b.NetWeeklyCycles.Value.String(),
		GrossFee:             money(b.GrossFee),
		RefinedGrossFee:      money(b.RefinedGrossFee),
		TotalWorkingDays:     b.TotalWorkingDays,
		RemainingWorkingDays: b.RemainingWorkingDays,
		ProrationFactor:      b.ProrationFactor.String(),
		ProratedGrossFee:     money(b.ProratedGrossFee),
		ProratedRefinedFee:   money(b.ProratedRefinedFee),
		Deductions:           []DeductionDTO{},
		Activities:           []ActivityDTO{},
		ManualAdjustment:     money(b.ManualAdjustment),
		FinalFee:             money(b.FinalFee),
	}
	for _, d := range b.Deductions {
		dto.Deductions = append(dto.Deductions, DeductionDTO{
			Label:      d.Label,
			Cycles:     d.Cycles.Value.String(),
			Unprorated: money(d.Unprorated),
			Amount:     money(d.Amount),
		})
	}
	for _, a := range b.Activities {
		dto.Activities = append(dto.Activities, toActivityDTO(a))
	}
	return dto
}

func toActivityDTO(a billing.ScheduledActivity) ActivityDTO {
	return ActivityDTO{
		ID:          a.ID,
		StudentID:   string(a.StudentID),
		DisplayName: a.DisplayName,
		Weekday:     strings.ToLower(a.Weekday.String()[:3]),
		StartTime:   a.Start.String(),
		EndTime:     a.End.String(),
		Origin:      string(a.Origin),
	}
}

// =============================================================================
// FEE RECORDS
// =============================================================================

// FeeRecordDTO is a saved fee record.
type FeeRecordDTO struct {
	ID                 string       `json:"id"`
	StudentID          string       `json:"student_id"`
	OrganizationID     string       `json:"organization_id"`
	ProgramID          string       `json:"program_id"`
	BillingMonth       string       `json:"billing_month"`
	EffectiveStartDate string       `json:"effective_start_date"`
	GrossFee           string       `json:"gross_fee"`
	Discount           string       `json:"discount"`
	FinalFee           string       `json:"final_fee"`
	AdjustmentReason   string       `json:"adjustment_reason,omitempty"`
	Breakdown          BreakdownDTO `json:"breakdown"`
	CreatedAt          string       `json:"created_at"`
	UpdatedAt          string       `json:"updated_at"`
}

// ToFeeRecordDTO renders a saved record.
func ToFeeRecordDTO(rec billing.FeeRecord) FeeRecordDTO {
	return FeeRecordDTO{
		ID:                 rec.ID,
		StudentID:          string(rec.Key.StudentID),
		OrganizationID:     string(rec.OrganizationID),
		ProgramID:          string(rec.ProgramID),
		BillingMonth:       rec.Key.BillingMonth.String(),
		EffectiveStartDate: rec.Key.EffectiveStartDate.String(),
		GrossFee:           money(rec.GrossFee),
		Discount:           money(rec.Discount),
		FinalFee:           money(rec.FinalFee),
		AdjustmentReason:   rec.AdjustmentReason,
		Breakdown:          ToBreakdownDTO(rec.Breakdown),
		CreatedAt:          rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          rec.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// StudentDTO is a roster entry.
type StudentDTO struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	FamilyID       string `json:"family_id,omitempty"`
	Name           string `json:"name"`
}

// EnrollmentRequest creates an enrollment.
type EnrollmentRequest struct {
	ID             string `json:"id,omitempty"`
	StudentID      string `json:"student_id"`
	OrganizationID string `json:"organization_id"`
	ProgramID      string `json:"program_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
	Active         *bool  `json:"active,omitempty"`
}

// ProgramDTO wraps the factory JSON form of a rate card.
type ProgramDTO = factory.ProgramJSON

// HolidayDTO is a holiday range.
type HolidayDTO struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
}

// CreateHolidayRequest creates a holiday range. EndDate defaults to StartDate.
type CreateHolidayRequest struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date,omitempty"`
}

func toHolidayDTO(h generic.HolidayRange) HolidayDTO {
	return HolidayDTO{
		ID:             h.ID,
		OrganizationID: h.OrganizationID,
		Name:           h.Name,
		StartDate:      h.Start.String(),
		EndDate:        h.End.String(),
	}
}

// RecalculateRequest triggers a month recalculation.
type RecalculateRequest struct {
	Month string `json:"month"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Request     CalculateRequest `json:"request"`
	Expected    string           `json:"expected_final_fee"`
}

// LoadScenarioRequest is the body of /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
