/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with reference data
	(rate card, students, enrollments, holidays, activities) plus the request
	that demonstrates each billing rule. All scenarios bill September 2025,
	which starts on a Monday and has 22 working days.

AVAILABLE SCENARIOS:

	full-month:         07:30 dropoff, Mon-Fri, no holidays          -> 160.00
	mid-month-start:    Same, starting the 16th (11 of 22 days)      ->  80.00
	activity-overlap:   Monday 07:45-08:15 activity                  -> 144.00
	adjustment-floor:   Full month with a -200 manual adjustment     ->   0.00
	sibling-chauffeur:  Chauffeur pickup 17:30, sibling activity Wed ->  72.00
	holiday-proration:  Labor Day closed, starting the 16th          ->  83.81

HOW SCENARIOS WORK:
 1. Reset the store
 2. Create the rate card via the program factory
 3. Create students and enrollments
 4. Add holidays and activities

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "activity-overlap"}

	then POST the returned "request" to /api/billing/calculate.

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Calculate handler
  - cmd/extcare: "seed" command
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/factory"
	"github.com/warp/extcare-billing/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	demoOrg     = "demo-school"
	demoProgram = "extended-care"
	demoStudent = "student-ava"
	demoSibling = "student-leo"
	demoFamily  = "family-martin"
	demoMonth   = "2025-09"
)

// baseRequest is the full-month request: two morning cycles a day, five days a week.
func baseRequest() CalculateRequest {
	return CalculateRequest{
		StudentID:        demoStudent,
		OrganizationID:   demoOrg,
		BillingMonth:     demoMonth,
		RequestedDropoff: "07:30",
		RequestedPickup:  "15:30",
		Weekdays:         []string{"mon", "tue", "wed", "thu", "fri"},
		TransportMode:    string(billing.TransportParent),
	}
}

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, s Store) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "full-month",
			Name:        "Full Month",
			Description: "Early 07:30 dropoff every weekday, no holidays, starting the 1st",
			Request:     baseRequest(),
			Expected:    "160.00",
		},
		load: seedBase,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "mid-month-start",
			Name:        "Mid-Month Start",
			Description: "Same schedule starting the 16th: 11 of 22 working days remain",
			Request: func() CalculateRequest {
				r := baseRequest()
				r.EffectiveStartDate = "2025-09-16"
				return r
			}(),
			Expected: "80.00",
		},
		load: seedBase,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "activity-overlap",
			Name:        "Activity Overlap",
			Description: "Monday 07:45-08:15 swim club removes one of Monday's two cycles",
			Request:     baseRequest(),
			Expected:    "144.00",
		},
		load: func(ctx context.Context, s Store) error {
			if err := seedBase(ctx, s); err != nil {
				return err
			}
			return s.SaveActivity(ctx, billing.ScheduledActivity{
				ID:          "act-swim",
				StudentID:   demoStudent,
				DisplayName: "Swim Club",
				Weekday:     time.Monday,
				Start:       generic.NewClockTime(7, 45),
				End:         generic.NewClockTime(8, 15),
			})
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "adjustment-floor",
			Name:        "Adjustment Floor",
			Description: "A -200 manual adjustment on a 160 fee bills zero, never a credit",
			Request: func() CalculateRequest {
				r := baseRequest()
				r.ManualAdjustment = "-200"
				r.AdjustmentReason = "Hardship waiver"
				return r
			}(),
			Expected: "0.00",
		},
		load: seedBase,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "sibling-chauffeur",
			Name:        "Sibling & Chauffeur",
			Description: "Chauffeur pickup moves the free window to 17:00; a sibling's Wednesday 16:45-17:15 activity covers half of Wednesday's late cycle",
			Request: func() CalculateRequest {
				r := baseRequest()
				r.RequestedDropoff = "08:30"
				r.RequestedPickup = "17:30"
				r.TransportMode = string(billing.TransportChauffeur)
				return r
			}(),
			Expected: "72.00",
		},
		load: func(ctx context.Context, s Store) error {
			if err := seedBase(ctx, s); err != nil {
				return err
			}
			if err := s.SaveStudent(ctx, billing.Student{
				ID: demoSibling, OrganizationID: demoOrg, FamilyID: demoFamily, Name: "Leo Martin",
			}); err != nil {
				return err
			}
			return s.SaveActivity(ctx, billing.ScheduledActivity{
				ID:          "act-violin",
				StudentID:   demoSibling,
				DisplayName: "Violin",
				Weekday:     time.Wednesday,
				Start:       generic.NewClockTime(16, 45),
				End:         generic.NewClockTime(17, 15),
			})
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "holiday-proration",
			Name:        "Holiday Proration",
			Description: "Labor Day closure leaves 21 working days; starting the 16th bills 11/21 of the month",
			Request: func() CalculateRequest {
				r := baseRequest()
				r.EffectiveStartDate = "2025-09-16"
				return r
			}(),
			Expected: "83.81",
		},
		load: func(ctx context.Context, s Store) error {
			if err := seedBase(ctx, s); err != nil {
				return err
			}
			return s.SaveHoliday(ctx, generic.HolidayRange{
				ID:             "hol-labor-day",
				OrganizationID: demoOrg,
				Name:           "Labor Day",
				Start:          generic.NewTimePoint(2025, time.September, 1),
				End:            generic.NewTimePoint(2025, time.September, 1),
			})
		},
	},
}

// Scenarios returns the available demo scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	for i, sc := range scenarios {
		out[i] = sc.ScenarioDTO
	}
	return out
}

// LoadScenario resets the store and seeds the named scenario.
func LoadScenario(ctx context.Context, s Store, id string) (ScenarioDTO, error) {
	for _, sc := range scenarios {
		if sc.ID != id {
			continue
		}
		if err := s.Reset(ctx); err != nil {
			return sc.ScenarioDTO, fmt.Errorf("reset store: %w", err)
		}
		if err := sc.load(ctx, s); err != nil {
			return sc.ScenarioDTO, fmt.Errorf("load scenario %s: %w", id, err)
		}
		return sc.ScenarioDTO, nil
	}
	return ScenarioDTO{}, fmt.Errorf("%w: unknown scenario %q", generic.ErrNotFound, id)
}

// seedBase creates the rate card ($80/month, $16/cycle, 08:30-15:30), the
// student, and the enrollment every scenario starts from.
func seedBase(ctx context.Context, s Store) error {
	cfg, err := factory.NewProgramFactory().ParseProgram(
		factory.CustomWindowProgramJSON(demoProgram, demoOrg, "Extended Care", "80.00", "08:30", "15:30"))
	if err != nil {
		return err
	}
	if err := s.SaveProgram(ctx, *cfg); err != nil {
		return err
	}
	if err := s.SaveStudent(ctx, billing.Student{
		ID: demoStudent, OrganizationID: demoOrg, FamilyID: demoFamily, Name: "Ava Martin",
	}); err != nil {
		return err
	}
	return s.SaveEnrollment(ctx, billing.Enrollment{
		ID:             "enr-ava",
		StudentID:      demoStudent,
		OrganizationID: demoOrg,
		ProgramID:      demoProgram,
		Active:         true,
		StartDate:      generic.NewTimePoint(2025, time.August, 25),
	})
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario_id": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario_id": current})
}

// LoadScenario loads a demo scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var body LoadScenarioRequest
	if !decodeBody(w, r, &body) {
		return
	}

	sc, err := LoadScenario(r.Context(), h.Store, body.ScenarioID)
	if err != nil {
		writeBillingError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = sc.ID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": sc,
	})
}
