/*
engine.go - Fee calculation entry point

PURPOSE:
  Calculate fetches reference data and runs the pure pipeline in Compute.

PIPELINE:
  1. Resolve      rate card + baseline window (resolver.go)
  2. Cycles       requested vs baseline, fractional 30-minute cycles (cycles.go)
  3. Prorate      working-day ratio from the effective start date (proration.go)
  4. Overlaps     billable ranges minus activity ranges (overlap.go)
  5. Assemble     prorated totals, adjustment, zero floor (assembler.go)

CONCURRENCY:
  The four reference lookups (enrollment → rate card, holidays, own
  activities, sibling activities) have no ordering between them and run in
  an errgroup. The first failure cancels the rest and aborts the whole
  calculation; no partial breakdown is ever returned. Stages 2-5 run on the
  calling goroutine.

  An Engine holds no mutable state, so one instance serves any number of
  concurrent calculations.
*/
package billing

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/extcare-billing/generic"
)

// Calculator is the calculate() contract used by the writer and the API.
type Calculator interface {
	Calculate(ctx context.Context, req Request) (*FeeBreakdown, error)
}

// Engine computes fee breakdowns from a ReferenceSource.
type Engine struct {
	Source   ReferenceSource
	Resolver *Resolver
	Logger   *zap.Logger
}

var _ Calculator = (*Engine)(nil)

func NewEngine(source ReferenceSource, policy WindowPolicy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Source:   source,
		Resolver: NewResolver(source, policy),
		Logger:   logger,
	}
}

// Calculate returns a fresh breakdown for the request. It fails with a
// ConfigurationMissingError when the student cannot be billed, or with the
// lookup error when any reference read fails.
func (e *Engine) Calculate(ctx context.Context, req Request) (*FeeBreakdown, error) {
	started := time.Now()
	ref, err := e.fetch(ctx, req)
	if err != nil {
		e.Logger.Warn("fee calculation aborted",
			zap.String("student_id", string(req.StudentID)),
			zap.String("organization_id", string(req.OrganizationID)),
			zap.Stringer("billing_month", req.BillingMonth),
			zap.Error(err))
		return nil, err
	}

	b := Compute(req, ref)
	e.Logger.Debug("fee calculated",
		zap.String("student_id", string(req.StudentID)),
		zap.String("program_id", string(b.ProgramID)),
		zap.Stringer("billing_month", b.BillingMonth),
		zap.String("proration_factor", b.ProrationFactor.String()),
		zap.String("final_fee", b.FinalFee.Value.String()),
		zap.Duration("elapsed", time.Since(started)))
	return &b, nil
}

func (e *Engine) fetch(ctx context.Context, req Request) (ReferenceData, error) {
	var (
		ref      ReferenceData
		holidays []generic.HolidayRange
		own      []ScheduledActivity
		siblings []ScheduledActivity
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := e.Resolver.Resolve(ctx, req.StudentID, req.OrganizationID, req.Month(), req.TransportMode)
		ref.Profile = p
		return err
	})
	g.Go(func() error {
		var err error
		holidays, err = e.Source.HolidayRanges(ctx, req.OrganizationID, req.Month())
		return err
	})
	g.Go(func() error {
		var err error
		own, err = e.Source.StudentActivities(ctx, req.StudentID)
		return err
	})
	g.Go(func() error {
		var err error
		siblings, err = e.Source.SiblingActivities(ctx, req.StudentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ReferenceData{}, err
	}

	ref.Holidays = generic.HolidayRanges(holidays)
	ref.Activities = make([]ScheduledActivity, 0, len(own)+len(siblings))
	ref.Activities = append(ref.Activities, own...)
	ref.Activities = append(ref.Activities, siblings...)
	return ref, nil
}
