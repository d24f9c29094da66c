/*
store.go - Interfaces between the billing engine and its collaborators

PURPOSE:
  The engine performs no data-store queries of its own. Reference data
  (enrollments, rate cards, holidays, activity schedules) arrives through
  ReferenceSource; saved fees leave through FeeStore.

KEY INTERFACES:
  ReferenceSource: read-only lookups feeding the resolver, prorator and
                   overlap deductor. Lookups have no ordering between them.
  FeeStore:        idempotent upsert of one record per
                   (student, billing month, effective start date).

DISCOUNT SIGN CONVENTION:
  FeeRecord.Discount holds the NEGATED manual adjustment. A surcharge of
  +25 is stored as Discount = -25; a discount of -40 as Discount = +40.
  Any reader computing max(0, GrossFee - Discount) gets FinalFee back.
  Inside the engine the adjustment stays additive and signed.

IMPLEMENTATIONS:
  - store/sqlite: SQLite
  - store/memory: in-memory for tests and demos
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/extcare-billing/generic"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ReferenceSource supplies already-resolved reference data. Lookups that
// find nothing return generic.ErrNotFound (single records) or an empty
// slice (collections).
type ReferenceSource interface {
	// ActiveEnrollment returns the student's enrollment for the period: the
	// active one whose dates overlap it, latest start first.
	ActiveEnrollment(ctx context.Context, studentID StudentID, orgID OrganizationID, period generic.Period) (*Enrollment, error)

	// ProgramBillingConfig returns the rate card for a program in an organization.
	ProgramBillingConfig(ctx context.Context, orgID OrganizationID, programID ProgramID) (*ProgramBillingConfig, error)

	// HolidayRanges returns organization and global ranges touching the period.
	HolidayRanges(ctx context.Context, orgID OrganizationID, period generic.Period) ([]generic.HolidayRange, error)

	// StudentActivities returns the student's own schedule, Origin = self.
	StudentActivities(ctx context.Context, studentID StudentID) ([]ScheduledActivity, error)

	// SiblingActivities returns every sibling's schedule, Origin = sibling.
	SiblingActivities(ctx context.Context, studentID StudentID) ([]ScheduledActivity, error)
}

// =============================================================================
// FEE RECORDS
// =============================================================================

// FeeRecordKey is the idempotency key for saved fees.
type FeeRecordKey struct {
	StudentID          StudentID
	BillingMonth       generic.TimePoint
	EffectiveStartDate generic.TimePoint
}

func (k FeeRecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.StudentID, k.BillingMonth, k.EffectiveStartDate)
}

// FeeRecord is the persisted form of a breakdown.
type FeeRecord struct {
	ID             string
	Key            FeeRecordKey
	OrganizationID OrganizationID
	ProgramID      ProgramID

	// GrossFee is the prorated, overlap-refined fee before adjustment.
	GrossFee generic.Amount
	// Discount is the negated manual adjustment (see DISCOUNT SIGN CONVENTION).
	Discount         generic.Amount
	FinalFee         generic.Amount
	AdjustmentReason string
	Breakdown        FeeBreakdown

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NetFee recomputes the final fee the way downstream readers do.
func (r FeeRecord) NetFee() generic.Amount {
	return r.GrossFee.Sub(r.Discount).FloorZero()
}

// FeeStore persists fee records. Writes for an existing key replace the
// record wholesale; the record ID and CreatedAt of the first write are kept.
type FeeStore interface {
	UpsertFeeRecord(ctx context.Context, rec FeeRecord) (FeeRecord, error)
	GetFeeRecord(ctx context.Context, key FeeRecordKey) (*FeeRecord, error)
	ListFeeRecords(ctx context.Context, studentID StudentID) ([]FeeRecord, error)
	// ListFeeRecordsForMonth returns every record saved for a billing month
	// (the first of the month).
	ListFeeRecordsForMonth(ctx context.Context, month generic.TimePoint) ([]FeeRecord, error)
}
