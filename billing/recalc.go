package billing

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/extcare-billing/generic"
)

// DefaultRecalcConcurrency bounds concurrent saves in RecalculateMonth.
const DefaultRecalcConcurrency = 4

// RequestFromRecord rebuilds the request a saved record was computed from.
// The breakdown carries every request input, including the signed
// adjustment that the record's Discount column may no longer reproduce
// once the zero floor applied.
func RequestFromRecord(rec FeeRecord) Request {
	b := rec.Breakdown
	start := rec.Key.EffectiveStartDate
	return Request{
		StudentID:          rec.Key.StudentID,
		OrganizationID:     rec.OrganizationID,
		BillingMonth:       rec.Key.BillingMonth,
		EffectiveStartDate: &start,
		RequestedDropoff:   b.RequestedDropoff,
		RequestedPickup:    b.RequestedPickup,
		Weekdays:           b.Weekdays,
		TransportMode:      b.TransportMode,
		ManualAdjustment:   b.ManualAdjustment.Value,
	}
}

// RecalcResult summarizes one RecalculateMonth run.
type RecalcResult struct {
	Month        generic.TimePoint `json:"month"`
	Recalculated int               `json:"recalculated"`
	Changed      int               `json:"changed"`
	Failed       int               `json:"failed"`
}

// Recalculator re-saves every record of a month so that holiday, rate card
// or activity changes made after the first save are reflected.
type Recalculator struct {
	Store       FeeStore
	Writer      *Writer
	Concurrency int
	Logger      *zap.Logger
}

func NewRecalculator(store FeeStore, writer *Writer, logger *zap.Logger) *Recalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recalculator{Store: store, Writer: writer, Concurrency: DefaultRecalcConcurrency, Logger: logger}
}

// RecalculateMonth recomputes and upserts each saved record of the month.
// A failing record is logged and counted but does not stop the others;
// only a listing failure or cancellation returns an error.
func (r *Recalculator) RecalculateMonth(ctx context.Context, month generic.TimePoint) (RecalcResult, error) {
	month = generic.MonthOf(month).Start
	result := RecalcResult{Month: month}

	records, err := r.Store.ListFeeRecordsForMonth(ctx, month)
	if err != nil {
		return result, err
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.Concurrency))
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			saved, err := r.Writer.Save(ctx, RequestFromRecord(rec), rec.AdjustmentReason)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				r.Logger.Warn("recalculation failed", zap.Stringer("key", rec.Key), zap.Error(err))
				return nil
			}
			result.Recalculated++
			if !saved.FinalFee.Value.Equal(rec.FinalFee.Value) {
				result.Changed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	r.Logger.Info("month recalculated",
		zap.Stringer("month", month),
		zap.Int("recalculated", result.Recalculated),
		zap.Int("changed", result.Changed),
		zap.Int("failed", result.Failed))
	return result, nil
}
