/*
Package generic provides the domain-agnostic building blocks of the billing engine.

PURPOSE:
  This package contains the calendar and clock arithmetic every billing rule
  is built from. Nothing in here knows about students, programs or fees;
  the billing package composes these primitives into the fee calculation.

KEY CONCEPTS:
  - Amount:        A decimal quantity with a unit (cycles or currency)
  - TimePoint:     A plain calendar date (time.go)
  - HolidayRange:  An inclusive closure range, organization-scoped (time.go)
  - Period:        An inclusive date range with working-day counting (period.go)
  - ClockTime:     A naive time of day (clock.go)
  - Interval:      A half-open range with subtraction (interval.go)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift on invoices
  2. Naive calendar: no timezone conversion anywhere, dates are UTC midnights
  3. Pure functions: no I/O, safe to share across goroutines

USAGE:
  month := generic.MonthOf(generic.MustParseDate("2025-09-01"))
  total := month.WorkingDays(holidays)
  remaining := month.From(startDate).WorkingDays(holidays)
  factor := generic.Ratio(remaining, total)

SEE ALSO:
  - billing/engine.go: Composes these primitives into a fee
  - errors.go: Sentinel errors shared by every package
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitCycles   Unit = "cycles"
	UnitCurrency Unit = "currency"
)

func Money(value decimal.Decimal) Amount { return Amount{Value: value, Unit: UnitCurrency} }
func Cycles(value decimal.Decimal) Amount { return Amount{Value: value, Unit: UnitCycles} }

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Div(s decimal.Decimal) Amount { return Amount{Value: a.Value.Div(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// FloorZero clamps negative amounts to zero.
func (a Amount) FloorZero() Amount { return a.Max(a.Zero()) }

func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }
