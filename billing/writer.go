package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Writer recomputes and saves fee records. It never accepts a breakdown
// from the caller: the stored numbers always come from a fresh calculation.
type Writer struct {
	Calculator Calculator
	Store      FeeStore
	Logger     *zap.Logger
	Now        func() time.Time
}

func NewWriter(calc Calculator, store FeeStore, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{Calculator: calc, Store: store, Logger: logger, Now: time.Now}
}

// Save calculates the request and upserts the result under
// (student, billing month, effective start date). A later save for the same
// key replaces the earlier record wholesale (last write wins).
//
// The signed manual adjustment is stored negated, as Discount, so that
// GrossFee - Discount reproduces the final fee.
func (w *Writer) Save(ctx context.Context, req Request, reason string) (*FeeRecord, error) {
	b, err := w.Calculator.Calculate(ctx, req)
	if err != nil {
		return nil, err
	}

	now := w.Now().UTC()
	rec := FeeRecord{
		ID:               uuid.NewString(),
		Key:              req.Key(),
		OrganizationID:   b.OrganizationID,
		ProgramID:        b.ProgramID,
		GrossFee:         b.ProratedRefinedFee,
		Discount:         b.ManualAdjustment.Neg(),
		FinalFee:         b.FinalFee,
		AdjustmentReason: reason,
		Breakdown:        *b,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	saved, err := w.Store.UpsertFeeRecord(ctx, rec)
	if err != nil {
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			err = &PersistenceError{Key: rec.Key, Op: "upsert", Err: err}
		}
		w.Logger.Error("fee record save failed", zap.Stringer("key", rec.Key), zap.Error(err))
		return nil, err
	}

	w.Logger.Info("fee record saved",
		zap.String("record_id", saved.ID),
		zap.Stringer("key", saved.Key),
		zap.String("gross_fee", saved.GrossFee.Value.String()),
		zap.String("discount", saved.Discount.Value.String()),
		zap.String("final_fee", saved.FinalFee.Value.String()))
	return &saved, nil
}
