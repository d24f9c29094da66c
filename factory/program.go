/*
Package factory provides JSON to Go rate card conversion.

PURPOSE:
  Converts JSON program definitions into billing.ProgramBillingConfig.
  Finance staff maintain rate cards as JSON (admin UI, seed files); the
  factory validates them and produces the struct the engine reads.

JSON SCHEMA:
  {
    "program_id": "extended-care",
    "organization_id": "org-1",
    "name": "Extended Care",
    "monthly_rate": "80.00",
    "baseline_dropoff": "08:30",
    "baseline_pickup": "15:30"
  }

  monthly_rate is a decimal string (a JSON number is accepted too) and
  must not be negative. Baseline times are optional; when absent the
  engine applies the organization defaults at calculation time.

USAGE:
  f := factory.NewProgramFactory()
  cfg, err := f.ParseProgram(jsonString)
  if err != nil {
      return err
  }
  store.SaveProgram(ctx, *cfg)

SEE ALSO:
  - billing/types.go: ProgramBillingConfig definition
  - billing/resolver.go: Baseline fallbacks (NewWindow)
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProgramJSON is the JSON representation of a program rate card.
type ProgramJSON struct {
	ProgramID       string      `json:"program_id"`
	OrganizationID  string      `json:"organization_id"`
	Name            string      `json:"name,omitempty"`
	MonthlyRate     json.Number `json:"monthly_rate"`
	BaselineDropoff string      `json:"baseline_dropoff,omitempty"`
	BaselinePickup  string      `json:"baseline_pickup,omitempty"`
}

// =============================================================================
// PROGRAM FACTORY
// =============================================================================

// ProgramFactory converts JSON rate cards to Go structs.
type ProgramFactory struct{}

// NewProgramFactory creates a new program factory.
func NewProgramFactory() *ProgramFactory {
	return &ProgramFactory{}
}

// ParseProgram parses a JSON string into a ProgramBillingConfig.
func (f *ProgramFactory) ParseProgram(jsonStr string) (*billing.ProgramBillingConfig, error) {
	dec := json.NewDecoder(strings.NewReader(jsonStr))
	dec.UseNumber()

	var pj ProgramJSON
	if err := dec.Decode(&pj); err != nil {
		return nil, fmt.Errorf("%w: failed to parse program JSON: %v", generic.ErrInvalidInput, err)
	}
	return f.FromJSON(pj)
}

// FromJSON validates ProgramJSON and converts it.
func (f *ProgramFactory) FromJSON(pj ProgramJSON) (*billing.ProgramBillingConfig, error) {
	if strings.TrimSpace(pj.ProgramID) == "" {
		return nil, fmt.Errorf("%w: program_id is required", generic.ErrInvalidInput)
	}
	if strings.TrimSpace(pj.OrganizationID) == "" {
		return nil, fmt.Errorf("%w: organization_id is required", generic.ErrInvalidInput)
	}

	rate, err := parseRate(pj.MonthlyRate)
	if err != nil {
		return nil, err
	}

	cfg := &billing.ProgramBillingConfig{
		ProgramID:      billing.ProgramID(pj.ProgramID),
		OrganizationID: billing.OrganizationID(pj.OrganizationID),
		Name:           pj.Name,
		MonthlyRate:    rate,
	}
	if cfg.Name == "" {
		cfg.Name = pj.ProgramID
	}

	if cfg.BaselineDropoff, err = parseOptionalClock("baseline_dropoff", pj.BaselineDropoff); err != nil {
		return nil, err
	}
	if cfg.BaselinePickup, err = parseOptionalClock("baseline_pickup", pj.BaselinePickup); err != nil {
		return nil, err
	}
	if cfg.BaselineDropoff != nil && cfg.BaselinePickup != nil && *cfg.BaselinePickup < *cfg.BaselineDropoff {
		return nil, fmt.Errorf("%w: baseline_pickup %s is before baseline_dropoff %s",
			generic.ErrInvalidInput, cfg.BaselinePickup, cfg.BaselineDropoff)
	}

	return cfg, nil
}

// ToJSON converts a rate card back to its JSON representation.
func (f *ProgramFactory) ToJSON(cfg billing.ProgramBillingConfig) ProgramJSON {
	pj := ProgramJSON{
		ProgramID:      string(cfg.ProgramID),
		OrganizationID: string(cfg.OrganizationID),
		Name:           cfg.Name,
		MonthlyRate:    json.Number(cfg.MonthlyRate.String()),
	}
	if cfg.BaselineDropoff != nil {
		pj.BaselineDropoff = cfg.BaselineDropoff.String()
	}
	if cfg.BaselinePickup != nil {
		pj.BaselinePickup = cfg.BaselinePickup.String()
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRate(n json.Number) (decimal.Decimal, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: monthly_rate is required", generic.ErrInvalidInput)
	}
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: monthly_rate %q is not a decimal", generic.ErrInvalidInput, s)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: monthly_rate %s is negative", generic.ErrInvalidInput, rate)
	}
	return rate, nil
}

func parseOptionalClock(field, s string) (*generic.ClockTime, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	c, err := generic.ParseClockTime(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &c, nil
}

// =============================================================================
// PRESETS
// =============================================================================

// StandardProgramJSON returns a rate card JSON using the organization
// default baseline window.
func StandardProgramJSON(programID, orgID, name string, monthlyRate string) string {
	return fmt.Sprintf(`{
  "program_id": %q,
  "organization_id": %q,
  "name": %q,
  "monthly_rate": %q
}`, programID, orgID, name, monthlyRate)
}

// CustomWindowProgramJSON returns a rate card JSON with explicit baselines.
func CustomWindowProgramJSON(programID, orgID, name, monthlyRate, dropoff, pickup string) string {
	return fmt.Sprintf(`{
  "program_id": %q,
  "organization_id": %q,
  "name": %q,
  "monthly_rate": %q,
  "baseline_dropoff": %q,
  "baseline_pickup": %q
}`, programID, orgID, name, monthlyRate, dropoff, pickup)
}
