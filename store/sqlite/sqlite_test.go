package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
	"github.com/warp/extcare-billing/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func seedReference(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	dropoff := generic.MustParseClockTime("08:30")
	require.NoError(t, s.SaveProgram(ctx, billing.ProgramBillingConfig{
		ProgramID:       "prog-1",
		OrganizationID:  "org-1",
		Name:            "Extended Care",
		MonthlyRate:     decimal.RequireFromString("80.00"),
		BaselineDropoff: &dropoff,
	}))
	for _, st := range []billing.Student{
		{ID: "stu-ava", OrganizationID: "org-1", FamilyID: "fam-1", Name: "Ava"},
		{ID: "stu-leo", OrganizationID: "org-1", FamilyID: "fam-1", Name: "Leo"},
		{ID: "stu-max", OrganizationID: "org-1", Name: "Max"},
		{ID: "stu-zoe", OrganizationID: "org-2", Name: "Zoe"},
	} {
		require.NoError(t, s.SaveStudent(ctx, st))
	}
	require.NoError(t, s.SaveEnrollment(ctx, billing.Enrollment{
		ID: "enr-1", StudentID: "stu-ava", OrganizationID: "org-1", ProgramID: "prog-1",
		Active: true, StartDate: generic.MustParseDate("2025-01-06"),
	}))
}

var september = generic.MonthOf(generic.MustParseDate("2025-09-01"))

func sampleRecord(adjustment string) billing.FeeRecord {
	month := generic.MustParseDate("2025-09-01")
	now := time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC)
	adj := generic.Money(decimal.RequireFromString(adjustment))
	gross := generic.Money(decimal.RequireFromString("160"))
	return billing.FeeRecord{
		ID:             "rec-1",
		Key:            billing.FeeRecordKey{StudentID: "stu-ava", BillingMonth: month, EffectiveStartDate: month},
		OrganizationID: "org-1",
		ProgramID:      "prog-1",
		GrossFee:       gross,
		Discount:       adj.Neg(),
		FinalFee:       gross.Add(adj).FloorZero(),
		Breakdown: billing.FeeBreakdown{
			StudentID:          "stu-ava",
			BillingMonth:       month,
			EffectiveStartDate: month,
			Weekdays:           billing.AllWeekdays(),
			RequestedDropoff:   generic.MustParseClockTime("07:30"),
			RequestedPickup:    generic.MustParseClockTime("15:30"),
			ManualAdjustment:   adj,
			FinalFee:           gross.Add(adj).FloorZero(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestProgramBillingConfig(t *testing.T) {
	s := newTestStore(t)
	seedReference(t, s)
	ctx := context.Background()

	p, err := s.ProgramBillingConfig(ctx, "org-1", "prog-1")
	require.NoError(t, err)
	assert.Equal(t, "80", p.MonthlyRate.String())
	require.NotNil(t, p.BaselineDropoff)
	assert.Equal(t, "08:30", p.BaselineDropoff.String())
	assert.Nil(t, p.BaselinePickup, "unset baseline stays unset")

	_, err = s.ProgramBillingConfig(ctx, "org-2", "prog-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestActiveEnrollment_MostRecentWins(t *testing.T) {
	// GIVEN: Two active enrollments and an inactive newer one
	s := newTestStore(t)
	seedReference(t, s)
	ctx := context.Background()
	require.NoError(t, s.SaveEnrollment(ctx, billing.Enrollment{
		ID: "enr-2", StudentID: "stu-ava", OrganizationID: "org-1", ProgramID: "prog-2",
		Active: true, StartDate: generic.MustParseDate("2025-08-25"),
	}))
	require.NoError(t, s.SaveEnrollment(ctx, billing.Enrollment{
		ID: "enr-3", StudentID: "stu-ava", OrganizationID: "org-1", ProgramID: "prog-3",
		Active: false, StartDate: generic.MustParseDate("2025-09-01"),
	}))

	// WHEN
	e, err := s.ActiveEnrollment(ctx, "stu-ava", "org-1", september)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "enr-2", e.ID)
	assert.Equal(t, billing.ProgramID("prog-2"), e.ProgramID)

	_, err = s.ActiveEnrollment(ctx, "stu-max", "org-1", september)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestActiveEnrollment_DateWindow(t *testing.T) {
	// GIVEN: A current enrollment, a future one and one that ended in August
	s := newTestStore(t)
	seedReference(t, s)
	ctx := context.Background()
	ended := generic.MustParseDate("2025-08-29")
	require.NoError(t, s.SaveEnrollment(ctx, billing.Enrollment{
		ID: "enr-future", StudentID: "stu-ava", OrganizationID: "org-1", ProgramID: "prog-2026",
		Active: true, StartDate: generic.MustParseDate("2026-01-05"),
	}))
	require.NoError(t, s.SaveEnrollment(ctx, billing.Enrollment{
		ID: "enr-summer", StudentID: "stu-ava", OrganizationID: "org-1", ProgramID: "prog-summer",
		Active: true, StartDate: generic.MustParseDate("2025-07-01"), EndDate: &ended,
	}))

	// WHEN: Looking up September 2025
	e, err := s.ActiveEnrollment(ctx, "stu-ava", "org-1", september)

	// THEN: Neither the future nor the ended enrollment is picked
	require.NoError(t, err)
	assert.Equal(t, "enr-1", e.ID)

	// The summer enrollment covers August, the future one January
	e, err = s.ActiveEnrollment(ctx, "stu-ava", "org-1", generic.MonthOf(generic.MustParseDate("2025-08-01")))
	require.NoError(t, err)
	assert.Equal(t, "enr-summer", e.ID)
	require.NotNil(t, e.EndDate)
	assert.Equal(t, "2025-08-29", e.EndDate.String())

	e, err = s.ActiveEnrollment(ctx, "stu-ava", "org-1", generic.MonthOf(generic.MustParseDate("2026-01-01")))
	require.NoError(t, err)
	assert.Equal(t, "enr-future", e.ID)

	// Before any enrollment started
	_, err = s.ActiveEnrollment(ctx, "stu-ava", "org-1", generic.MonthOf(generic.MustParseDate("2024-12-01")))
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestHolidayRanges_OrgAndGlobal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, h := range []generic.HolidayRange{
		{ID: "h-org", OrganizationID: "org-1", Start: generic.MustParseDate("2025-09-01"), End: generic.MustParseDate("2025-09-01")},
		{ID: "h-global", Start: generic.MustParseDate("2025-08-28"), End: generic.MustParseDate("2025-09-02")},
		{ID: "h-other", OrganizationID: "org-2", Start: generic.MustParseDate("2025-09-10"), End: generic.MustParseDate("2025-09-10")},
		{ID: "h-october", OrganizationID: "org-1", Start: generic.MustParseDate("2025-10-13"), End: generic.MustParseDate("2025-10-13")},
	} {
		require.NoError(t, s.SaveHoliday(ctx, h))
	}

	month := generic.MonthOf(generic.MustParseDate("2025-09-01"))
	got, err := s.HolidayRanges(ctx, "org-1", month)
	require.NoError(t, err)

	ids := []string{}
	for _, h := range got {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"h-global", "h-org"}, ids)

	all, err := s.ListHolidays(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteHoliday(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveHoliday(ctx, generic.HolidayRange{
		ID: "h-1", OrganizationID: "org-1",
		Start: generic.MustParseDate("2025-09-01"), End: generic.MustParseDate("2025-09-01"),
	}))

	require.NoError(t, s.DeleteHoliday(ctx, "h-1"))
	assert.ErrorIs(t, s.DeleteHoliday(ctx, "h-1"), generic.ErrNotFound)
}

func TestActivities_SelfAndSiblings(t *testing.T) {
	s := newTestStore(t)
	seedReference(t, s)
	ctx := context.Background()
	for _, a := range []billing.ScheduledActivity{
		{ID: "a-ava", StudentID: "stu-ava", DisplayName: "Swim", Weekday: time.Monday,
			Start: generic.MustParseClockTime("07:45"), End: generic.MustParseClockTime("08:15")},
		{ID: "a-leo", StudentID: "stu-leo", DisplayName: "Violin", Weekday: time.Wednesday,
			Start: generic.MustParseClockTime("16:45"), End: generic.MustParseClockTime("17:15")},
		{ID: "a-max", StudentID: "stu-max", DisplayName: "Chess", Weekday: time.Friday,
			Start: generic.MustParseClockTime("16:00"), End: generic.MustParseClockTime("17:00")},
	} {
		require.NoError(t, s.SaveActivity(ctx, a))
	}

	own, err := s.StudentActivities(ctx, "stu-ava")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, billing.OriginSelf, own[0].Origin)
	assert.Equal(t, time.Monday, own[0].Weekday)
	assert.Equal(t, "07:45", own[0].Start.String())

	sib, err := s.SiblingActivities(ctx, "stu-ava")
	require.NoError(t, err)
	require.Len(t, sib, 1)
	assert.Equal(t, "a-leo", sib[0].ID)
	assert.Equal(t, billing.OriginSibling, sib[0].Origin)

	// No family, no siblings
	none, err := s.SiblingActivities(ctx, "stu-max")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListStudents(t *testing.T) {
	s := newTestStore(t)
	seedReference(t, s)

	org1, err := s.ListStudents(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Len(t, org1, 3)

	all, err := s.ListStudents(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	seedReference(t, s)
	ctx := context.Background()

	require.NoError(t, s.Reset(ctx))

	students, err := s.ListStudents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, students)
	_, err = s.ActiveEnrollment(ctx, "stu-ava", "org-1", september)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// FEE RECORDS
// =============================================================================

func TestUpsertFeeRecord_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("-40")
	rec.AdjustmentReason = "Hardship waiver"

	saved, err := s.UpsertFeeRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", saved.ID)

	got, err := s.GetFeeRecord(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, "160.00", got.GrossFee.Value.StringFixed(2))
	assert.Equal(t, "40.00", got.Discount.Value.StringFixed(2))
	assert.Equal(t, "120.00", got.FinalFee.Value.StringFixed(2))
	assert.Equal(t, "120.00", got.NetFee().Value.StringFixed(2))
	assert.Equal(t, "Hardship waiver", got.AdjustmentReason)
	assert.Equal(t, billing.AllWeekdays(), got.Breakdown.Weekdays)
	assert.Equal(t, "07:30", got.Breakdown.RequestedDropoff.String())
	assert.True(t, got.Breakdown.ManualAdjustment.Value.Equal(decimal.NewFromInt(-40)))
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
}

func TestUpsertFeeRecord_LastWriteWins(t *testing.T) {
	// GIVEN: A saved record
	s := newTestStore(t)
	ctx := context.Background()
	first := sampleRecord("0")
	_, err := s.UpsertFeeRecord(ctx, first)
	require.NoError(t, err)

	// WHEN: A second write for the same key arrives with a new id
	second := sampleRecord("25")
	second.ID = "rec-2"
	second.AdjustmentReason = "Late pickups"
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	second.UpdatedAt = first.UpdatedAt.Add(time.Hour)
	saved, err := s.UpsertFeeRecord(ctx, second)
	require.NoError(t, err)

	// THEN: The row keeps its first id and created_at, everything else is replaced
	assert.Equal(t, "rec-1", saved.ID)
	assert.True(t, saved.CreatedAt.Equal(first.CreatedAt))

	recs, err := s.ListFeeRecords(ctx, "stu-ava")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "185.00", recs[0].FinalFee.Value.StringFixed(2))
	assert.Equal(t, "-25.00", recs[0].Discount.Value.StringFixed(2))
	assert.Equal(t, "Late pickups", recs[0].AdjustmentReason)
	assert.True(t, recs[0].UpdatedAt.Equal(second.UpdatedAt))
}

func TestListFeeRecordsForMonth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleRecord("0")
	b := sampleRecord("0")
	b.ID = "rec-b"
	b.Key.StudentID = "stu-leo"
	c := sampleRecord("0")
	c.ID = "rec-c"
	c.Key.BillingMonth = generic.MustParseDate("2025-10-01")
	c.Key.EffectiveStartDate = c.Key.BillingMonth
	for _, r := range []billing.FeeRecord{b, a, c} {
		_, err := s.UpsertFeeRecord(ctx, r)
		require.NoError(t, err)
	}

	recs, err := s.ListFeeRecordsForMonth(ctx, generic.MustParseDate("2025-09-01"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, billing.StudentID("stu-ava"), recs[0].Key.StudentID)
	assert.Equal(t, billing.StudentID("stu-leo"), recs[1].Key.StudentID)
}

func TestGetFeeRecord_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetFeeRecord(context.Background(), sampleRecord("0").Key)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// DRIVER FAILURES (sqlmock)
// =============================================================================

func newMockStore(t *testing.T) (*sqlite.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS students").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := sqlite.NewWithDB(db)
	require.NoError(t, err)
	return s, mock
}

func TestUpsertFeeRecord_DriverError(t *testing.T) {
	// GIVEN: The database rejects the write
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO fee_records").
		WillReturnError(errors.New("database is locked"))

	// WHEN
	rec := sampleRecord("0")
	_, err := s.UpsertFeeRecord(context.Background(), rec)

	// THEN: A PersistenceError carrying the key
	var pe *billing.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "upsert", pe.Op)
	assert.Equal(t, rec.Key, pe.Key)
	assert.ErrorIs(t, err, generic.ErrPersistence)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFeeRecords_DriverError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .+ FROM fee_records").
		WithArgs("stu-ava").
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.ListFeeRecords(context.Background(), "stu-ava")
	assert.ErrorIs(t, err, generic.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFeeRecords_CorruptRow(t *testing.T) {
	columns := []string{"id", "student_id", "organization_id", "program_id", "billing_month",
		"effective_start_date", "gross_fee", "discount", "final_fee", "adjustment_reason",
		"breakdown_json", "created_at", "updated_at"}
	stamp := "2025-09-02T08:00:00Z"

	tests := []struct {
		name     string
		gross    string
		final    string
		created  string
		updated  string
		contains string
	}{
		{"final_fee not a number", "160", "n/a", stamp, stamp, "final_fee"},
		{"gross_fee empty", "", "160", stamp, stamp, "gross_fee"},
		{"created_at garbled", "160", "160", "yesterday", stamp, "created_at"},
		{"updated_at garbled", "160", "160", stamp, "2025-13-45", "updated_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: A stored row that no longer parses
			s, mock := newMockStore(t)
			rows := sqlmock.NewRows(columns).AddRow("rec-1", "stu-ava", "org-1", "prog-1",
				"2025-09-01", "2025-09-01", tt.gross, "0", tt.final, nil, "{}", tt.created, tt.updated)
			mock.ExpectQuery("SELECT .+ FROM fee_records").
				WithArgs("stu-ava").
				WillReturnRows(rows)

			// WHEN
			recs, err := s.ListFeeRecords(context.Background(), "stu-ava")

			// THEN: The read fails instead of reporting zero money or a zero timestamp
			assert.Nil(t, recs)
			assert.ErrorIs(t, err, generic.ErrPersistence)
			assert.ErrorContains(t, err, tt.contains)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsertFeeRecord_CorruptCreatedAt(t *testing.T) {
	// GIVEN: The existing row's created_at is garbled
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO fee_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("rec-0", "not-a-time"))

	// WHEN
	_, err := s.UpsertFeeRecord(context.Background(), sampleRecord("0"))

	// THEN
	assert.ErrorIs(t, err, generic.ErrPersistence)
	assert.ErrorContains(t, err, "created_at")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithDB_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("read-only database"))

	_, err = sqlite.NewWithDB(db)
	assert.ErrorContains(t, err, "failed to migrate database")
}
