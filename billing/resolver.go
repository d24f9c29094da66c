package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/extcare-billing/generic"
)

// CyclesPerMonthlyRate is how many daily cycles the monthly rate buys.
var CyclesPerMonthlyRate = decimal.NewFromInt(5)

// =============================================================================
// WINDOW POLICY - Organization-wide defaults
// =============================================================================

// WindowPolicy holds the organization-wide defaults used when a program's
// rate card leaves baseline times unset, and the late pickup cutoff for
// chauffeured transport.
type WindowPolicy struct {
	DefaultDropoff        generic.ClockTime
	DefaultPickup         generic.ClockTime
	TransportPickupCutoff generic.ClockTime
}

func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{
		DefaultDropoff:        generic.NewClockTime(8, 30),
		DefaultPickup:         generic.NewClockTime(15, 30),
		TransportPickupCutoff: generic.NewClockTime(17, 0),
	}
}

// =============================================================================
// WINDOW - Resolved baseline times
// =============================================================================

// Window is the free (non-billed) part of the school day for one
// calculation. Every fallback for baseline times is applied in NewWindow;
// later stages only read Dropoff and Pickup.
type Window struct {
	Dropoff generic.ClockTime `json:"baseline_dropoff"`
	// Pickup is the effective baseline after any transport extension.
	Pickup generic.ClockTime `json:"baseline_pickup"`
	// ProgramPickup is the baseline before the transport extension.
	ProgramPickup generic.ClockTime `json:"program_pickup"`
	Extended      bool              `json:"extended"`
}

// NewWindow resolves baseline times from the rate card, the organization
// defaults and the transport mode.
func NewWindow(cfg ProgramBillingConfig, policy WindowPolicy, mode TransportMode) Window {
	w := Window{Dropoff: policy.DefaultDropoff, Pickup: policy.DefaultPickup}
	if cfg.BaselineDropoff != nil {
		w.Dropoff = *cfg.BaselineDropoff
	}
	if cfg.BaselinePickup != nil {
		w.Pickup = *cfg.BaselinePickup
	}
	w.ProgramPickup = w.Pickup
	if mode.ExtendsPickup() {
		w.Pickup = generic.MaxClock(w.Pickup, policy.TransportPickupCutoff)
		w.Extended = w.Pickup != w.ProgramPickup
	}
	return w
}

// =============================================================================
// RESOLVER
// =============================================================================

// Profile is the resolved billing configuration for one calculation.
type Profile struct {
	Enrollment   Enrollment
	Program      ProgramBillingConfig
	RatePerCycle generic.Amount
	Window       Window
}

// Resolver turns a student into a Profile.
type Resolver struct {
	Source ReferenceSource
	Policy WindowPolicy
}

func NewResolver(source ReferenceSource, policy WindowPolicy) *Resolver {
	return &Resolver{Source: source, Policy: policy}
}

// Resolve looks up the enrollment active during the billed month, then the
// program's rate card. A missing enrollment or rate card is a
// ConfigurationMissingError; any other lookup failure is returned as-is.
func (r *Resolver) Resolve(ctx context.Context, studentID StudentID, orgID OrganizationID, month generic.Period, mode TransportMode) (Profile, error) {
	enrollment, err := r.Source.ActiveEnrollment(ctx, studentID, orgID, month)
	if errors.Is(err, generic.ErrNotFound) || (err == nil && enrollment == nil) {
		return Profile{}, &ConfigurationMissingError{
			StudentID: studentID, OrganizationID: orgID,
			Reason: fmt.Sprintf("no active enrollment during %s", month),
		}
	}
	if err != nil {
		return Profile{}, err
	}

	cfg, err := r.Source.ProgramBillingConfig(ctx, orgID, enrollment.ProgramID)
	if errors.Is(err, generic.ErrNotFound) || (err == nil && cfg == nil) {
		return Profile{}, &ConfigurationMissingError{
			StudentID: studentID, OrganizationID: orgID, ProgramID: enrollment.ProgramID,
			Reason: "no billing configuration for program",
		}
	}
	if err != nil {
		return Profile{}, err
	}

	return Profile{
		Enrollment:   *enrollment,
		Program:      *cfg,
		RatePerCycle: generic.Money(cfg.MonthlyRate.Div(CyclesPerMonthlyRate)),
		Window:       NewWindow(*cfg, r.Policy, mode),
	}, nil
}
