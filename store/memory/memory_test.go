package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
	"github.com/warp/extcare-billing/store/memory"
)

func TestActiveEnrollment(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	september := generic.MonthOf(generic.MustParseDate("2025-09-01"))
	_, err := s.ActiveEnrollment(ctx, "stu-1", "org-1", september)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	require.NoError(t, s.SaveEnrollment(ctx, billing.Enrollment{
		ID: "old", StudentID: "stu-1", OrganizationID: "org-1", ProgramID: "p-old",
		Active: true, StartDate: generic.MustParseDate("2024-09-02"),
	}))
	require.NoError(t, s.SaveEnrollment(ctx, billing.Enrollment{
		ID: "new", StudentID: "stu-1", OrganizationID: "org-1", ProgramID: "p-new",
		Active: true, StartDate: generic.MustParseDate("2025-09-01"),
	}))
	require.NoError(t, s.SaveEnrollment(ctx, billing.Enrollment{
		ID: "elsewhere", StudentID: "stu-1", OrganizationID: "org-2", ProgramID: "p-x",
		Active: true, StartDate: generic.MustParseDate("2025-10-01"),
	}))

	e, err := s.ActiveEnrollment(ctx, "stu-1", "org-1", september)
	require.NoError(t, err)
	assert.Equal(t, "new", e.ID)
}

func TestActiveEnrollment_DateWindow(t *testing.T) {
	// GIVEN: A current enrollment, one starting next year and one that ended
	ctx := context.Background()
	s := memory.New()
	ended := generic.MustParseDate("2025-06-27")
	for _, e := range []billing.Enrollment{
		{ID: "current", StartDate: generic.MustParseDate("2025-08-25")},
		{ID: "future", StartDate: generic.MustParseDate("2026-01-05")},
		{ID: "ended", StartDate: generic.MustParseDate("2025-01-06"), EndDate: &ended},
	} {
		e.StudentID, e.OrganizationID, e.ProgramID, e.Active = "stu-1", "org-1", billing.ProgramID("p-"+e.ID), true
		require.NoError(t, s.SaveEnrollment(ctx, e))
	}

	// WHEN / THEN: Each month resolves to the enrollment covering it
	tests := []struct {
		month string
		want  string
	}{
		{"2025-06-01", "ended"},
		{"2025-09-01", "current"},
		{"2025-12-01", "current"},
		{"2026-01-01", "future"},
	}
	for _, tt := range tests {
		e, err := s.ActiveEnrollment(ctx, "stu-1", "org-1", generic.MonthOf(generic.MustParseDate(tt.month)))
		require.NoError(t, err, tt.month)
		assert.Equal(t, tt.want, e.ID, tt.month)
	}

	_, err := s.ActiveEnrollment(ctx, "stu-1", "org-1", generic.MonthOf(generic.MustParseDate("2025-07-01")))
	assert.ErrorIs(t, err, generic.ErrNotFound, "the ended enrollment never overlaps")
}

func TestSiblingActivities(t *testing.T) {
	// GIVEN: Two siblings and an unrelated student, each with an activity
	ctx := context.Background()
	s := memory.New()
	for _, st := range []billing.Student{
		{ID: "ava", FamilyID: "fam"},
		{ID: "leo", FamilyID: "fam"},
		{ID: "max"},
	} {
		require.NoError(t, s.SaveStudent(ctx, st))
	}
	for _, id := range []billing.StudentID{"ava", "leo", "max"} {
		require.NoError(t, s.SaveActivity(ctx, billing.ScheduledActivity{
			ID: "act-" + string(id), StudentID: id, Weekday: time.Tuesday,
			Start: generic.NewClockTime(16, 0), End: generic.NewClockTime(17, 0),
			Origin: billing.OriginSibling,
		}))
	}

	// THEN: Own activities are self, the sibling's are sibling
	own, err := s.StudentActivities(ctx, "ava")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, billing.OriginSelf, own[0].Origin)

	sib, err := s.SiblingActivities(ctx, "ava")
	require.NoError(t, err)
	require.Len(t, sib, 1)
	assert.Equal(t, "act-leo", sib[0].ID)
	assert.Equal(t, billing.OriginSibling, sib[0].Origin)

	none, err := s.SiblingActivities(ctx, "max")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertFeeRecord_KeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	month := generic.MustParseDate("2025-09-01")
	key := billing.FeeRecordKey{StudentID: "ava", BillingMonth: month, EffectiveStartDate: month}
	t0 := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

	_, err := s.UpsertFeeRecord(ctx, billing.FeeRecord{ID: "first", Key: key, CreatedAt: t0, UpdatedAt: t0})
	require.NoError(t, err)
	saved, err := s.UpsertFeeRecord(ctx, billing.FeeRecord{
		ID: "second", Key: key, AdjustmentReason: "redo",
		CreatedAt: t0.Add(time.Hour), UpdatedAt: t0.Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, "first", saved.ID)
	assert.True(t, saved.CreatedAt.Equal(t0))

	got, err := s.GetFeeRecord(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "redo", got.AdjustmentReason)
}

func TestHolidays(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.SaveHoliday(ctx, generic.HolidayRange{
		ID: "h1", OrganizationID: "org-1",
		Start: generic.MustParseDate("2025-12-22"), End: generic.MustParseDate("2026-01-02"),
	}))

	jan := generic.MonthOf(generic.MustParseDate("2026-01-15"))
	got, err := s.HolidayRanges(ctx, "org-1", jan)
	require.NoError(t, err)
	assert.Len(t, got, 1, "a range spanning the month boundary touches both months")

	got, err = s.HolidayRanges(ctx, "org-2", jan)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.DeleteHoliday(ctx, "h1"))
	assert.ErrorIs(t, s.DeleteHoliday(ctx, "h1"), generic.ErrNotFound)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.SaveStudent(ctx, billing.Student{ID: "ava", OrganizationID: "org-1"}))
	require.NoError(t, s.Reset(ctx))

	students, err := s.ListStudents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, students)
}
