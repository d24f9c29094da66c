/*
Package sqlite provides a SQLite-backed implementation of the billing stores.

PURPOSE:
  Implements billing.ReferenceSource (roster, enrollments, rate cards,
  holiday ranges, activity schedules) and billing.FeeStore (saved fees).
  The same SQL runs on PostgreSQL with only placeholder changes.

KEY TABLES:
  students:                Roster; siblings share family_id
  enrollments:             Student-to-program links
  program_billing_configs: Rate cards, keyed by (organization_id, program_id)
  holiday_ranges:          Inclusive closure ranges; organization_id '' = global
  activities:              Weekly recurring activities per student
  fee_records:             One row per (student_id, billing_month, effective_start_date)

IDEMPOTENT SAVES:
  fee_records has a UNIQUE key on (student_id, billing_month,
  effective_start_date). UpsertFeeRecord uses ON CONFLICT DO UPDATE, so a
  later save fully replaces the earlier one while keeping its id and
  created_at. Concurrent saves for the same key are last-write-wins.

DISCOUNT COLUMN:
  fee_records.discount holds the NEGATED manual adjustment, so that
  max(0, gross_fee - discount) = final_fee for any SQL reader.

DATE/TIME FORMATS:
  Dates are TEXT 'YYYY-MM-DD' (sortable); clock times TEXT 'HH:MM[:SS]';
  money TEXT decimals to avoid REAL rounding.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/extcare.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := billing.NewEngine(store, billing.DefaultWindowPolicy(), logger)

SEE ALSO:
  - billing/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ billing.ReferenceSource = (*Store)(nil)
	_ billing.FeeStore        = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an open database and migrates the schema.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		family_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_family
		ON students(family_id) WHERE family_id <> '';

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		program_id TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		start_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Active enrollment lookup (hot path)
	CREATE INDEX IF NOT EXISTS idx_enrollments_student_active
		ON enrollments(student_id, organization_id, active, start_date DESC);

	CREATE TABLE IF NOT EXISTS program_billing_configs (
		organization_id TEXT NOT NULL,
		program_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		monthly_rate TEXT NOT NULL,
		baseline_dropoff TEXT,
		baseline_pickup TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (organization_id, program_id)
	);

	CREATE TABLE IF NOT EXISTS holiday_ranges (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holiday_ranges_org_dates
		ON holiday_ranges(organization_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		weekday INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_student
		ON activities(student_id, weekday);

	CREATE TABLE IF NOT EXISTS fee_records (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		program_id TEXT NOT NULL,
		billing_month TEXT NOT NULL,
		effective_start_date TEXT NOT NULL,
		gross_fee TEXT NOT NULL,
		discount TEXT NOT NULL,
		final_fee TEXT NOT NULL,
		adjustment_reason TEXT,
		breakdown_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(student_id, billing_month, effective_start_date)
	);

	CREATE INDEX IF NOT EXISTS idx_fee_records_student
		ON fee_records(student_id, billing_month);

	CREATE INDEX IF NOT EXISTS idx_fee_records_month
		ON fee_records(billing_month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for testing/demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"fee_records", "activities", "holiday_ranges", "program_billing_configs", "enrollments", "students"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// ROSTER
// =============================================================================

// SaveStudent creates or updates a student.
func (s *Store) SaveStudent(ctx context.Context, st billing.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO students (id, organization_id, family_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organization_id = excluded.organization_id,
			family_id = excluded.family_id,
			name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query,
		string(st.ID), string(st.OrganizationID), st.FamilyID, st.Name,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListStudents returns students of an organization (all when orgID is empty).
func (s *Store) ListStudents(ctx context.Context, orgID billing.OrganizationID) ([]billing.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, family_id, name
		FROM students
		WHERE ? = '' OR organization_id = ?
		ORDER BY id
	`, string(orgID), string(orgID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Student
	for rows.Next() {
		var st billing.Student
		var id, org string
		if err := rows.Scan(&id, &org, &st.FamilyID, &st.Name); err != nil {
			return nil, err
		}
		st.ID, st.OrganizationID = billing.StudentID(id), billing.OrganizationID(org)
		out = append(out, st)
	}
	return out, rows.Err()
}

// SaveEnrollment creates or updates an enrollment.
func (s *Store) SaveEnrollment(ctx context.Context, e billing.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endDate *string
	if e.EndDate != nil {
		d := e.EndDate.String()
		endDate = &d
	}

	query := `
		INSERT INTO enrollments (id, student_id, organization_id, program_id, active, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			program_id = excluded.program_id,
			active = excluded.active,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, string(e.StudentID), string(e.OrganizationID), string(e.ProgramID),
		e.Active, e.StartDate.String(), endDate,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// PROGRAM BILLING CONFIG
// =============================================================================

// SaveProgram creates or replaces a program rate card.
func (s *Store) SaveProgram(ctx context.Context, p billing.ProgramBillingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO program_billing_configs
		(organization_id, program_id, name, monthly_rate, baseline_dropoff, baseline_pickup, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, program_id) DO UPDATE SET
			name = excluded.name,
			monthly_rate = excluded.monthly_rate,
			baseline_dropoff = excluded.baseline_dropoff,
			baseline_pickup = excluded.baseline_pickup,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		string(p.OrganizationID), string(p.ProgramID), p.Name, p.MonthlyRate.String(),
		nullClock(p.BaselineDropoff), nullClock(p.BaselinePickup),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListPrograms returns the rate cards of an organization (all when orgID is empty).
func (s *Store) ListPrograms(ctx context.Context, orgID billing.OrganizationID) ([]billing.ProgramBillingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT organization_id, program_id, name, monthly_rate, baseline_dropoff, baseline_pickup
		FROM program_billing_configs
		WHERE ? = '' OR organization_id = ?
		ORDER BY organization_id, program_id
	`, string(orgID), string(orgID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.ProgramBillingConfig
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProgramBillingConfig implements billing.ReferenceSource.
func (s *Store) ProgramBillingConfig(ctx context.Context, orgID billing.OrganizationID, programID billing.ProgramID) (*billing.ProgramBillingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT organization_id, program_id, name, monthly_rate, baseline_dropoff, baseline_pickup
		FROM program_billing_configs
		WHERE organization_id = ? AND program_id = ?
	`, string(orgID), string(programID))

	p, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(row scanner) (billing.ProgramBillingConfig, error) {
	var p billing.ProgramBillingConfig
	var org, program, rate string
	var dropoff, pickup sql.NullString
	if err := row.Scan(&org, &program, &p.Name, &rate, &dropoff, &pickup); err != nil {
		return p, err
	}
	p.OrganizationID, p.ProgramID = billing.OrganizationID(org), billing.ProgramID(program)

	var err error
	if p.MonthlyRate, err = decimal.NewFromString(rate); err != nil {
		return p, fmt.Errorf("program %s: monthly_rate %q: %w", program, rate, err)
	}
	if p.BaselineDropoff, err = parseNullClock(dropoff); err != nil {
		return p, fmt.Errorf("program %s: %w", program, err)
	}
	if p.BaselinePickup, err = parseNullClock(pickup); err != nil {
		return p, fmt.Errorf("program %s: %w", program, err)
	}
	return p, nil
}

// =============================================================================
// ENROLLMENT LOOKUP
// =============================================================================

// ActiveEnrollment implements billing.ReferenceSource. Among active
// enrollments overlapping the period, the most recently started wins.
// Dates are stored as YYYY-MM-DD, so text comparison orders them.
func (s *Store) ActiveEnrollment(ctx context.Context, studentID billing.StudentID, orgID billing.OrganizationID, period generic.Period) (*billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, organization_id, program_id, active, start_date, end_date
		FROM enrollments
		WHERE student_id = ? AND organization_id = ? AND active = TRUE
		  AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY start_date DESC, id
		LIMIT 1
	`, string(studentID), string(orgID), period.End.String(), period.Start.String())

	var e billing.Enrollment
	var student, org, program, start string
	var end sql.NullString
	err := row.Scan(&e.ID, &student, &org, &program, &e.Active, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.StudentID, e.OrganizationID, e.ProgramID = billing.StudentID(student), billing.OrganizationID(org), billing.ProgramID(program)
	if e.StartDate, err = generic.ParseDate(start); err != nil {
		return nil, err
	}
	if end.Valid {
		d, err := generic.ParseDate(end.String)
		if err != nil {
			return nil, err
		}
		e.EndDate = &d
	}
	return &e, nil
}

// =============================================================================
// HOLIDAY RANGES
// =============================================================================

// SaveHoliday creates or updates a holiday range.
func (s *Store) SaveHoliday(ctx context.Context, h generic.HolidayRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holiday_ranges (id, organization_id, name, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organization_id = excluded.organization_id,
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID, h.OrganizationID, h.Name, h.Start.String(), h.End.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteHoliday deletes a holiday range by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holiday_ranges WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return generic.ErrNotFound
	}
	return nil
}

// ListHolidays returns every range visible to an organization (for admin UI).
func (s *Store) ListHolidays(ctx context.Context, orgID billing.OrganizationID) ([]generic.HolidayRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryHolidays(ctx, `
		SELECT id, organization_id, name, start_date, end_date
		FROM holiday_ranges
		WHERE organization_id = ? OR organization_id = ''
		ORDER BY start_date ASC, id
	`, string(orgID))
}

// HolidayRanges implements billing.ReferenceSource: organization and global
// ranges that touch the period.
func (s *Store) HolidayRanges(ctx context.Context, orgID billing.OrganizationID, period generic.Period) ([]generic.HolidayRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryHolidays(ctx, `
		SELECT id, organization_id, name, start_date, end_date
		FROM holiday_ranges
		WHERE (organization_id = ? OR organization_id = '')
		  AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC, id
	`, string(orgID), period.End.String(), period.Start.String())
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]generic.HolidayRange, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.HolidayRange
	for rows.Next() {
		var h generic.HolidayRange
		var start, end string
		if err := rows.Scan(&h.ID, &h.OrganizationID, &h.Name, &start, &end); err != nil {
			return nil, err
		}
		if h.Start, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if h.End, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// ACTIVITIES
// =============================================================================

// SaveActivity creates or updates a student's scheduled activity.
func (s *Store) SaveActivity(ctx context.Context, a billing.ScheduledActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO activities (id, student_id, display_name, weekday, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			student_id = excluded.student_id,
			display_name = excluded.display_name,
			weekday = excluded.weekday,
			start_time = excluded.start_time,
			end_time = excluded.end_time
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, string(a.StudentID), a.DisplayName, int(a.Weekday),
		a.Start.String(), a.End.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// StudentActivities implements billing.ReferenceSource.
func (s *Store) StudentActivities(ctx context.Context, studentID billing.StudentID) ([]billing.ScheduledActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryActivities(ctx, billing.OriginSelf, `
		SELECT id, student_id, display_name, weekday, start_time, end_time
		FROM activities
		WHERE student_id = ?
		ORDER BY id
	`, string(studentID))
}

// SiblingActivities implements billing.ReferenceSource. Siblings are other
// students with the same non-empty family_id.
func (s *Store) SiblingActivities(ctx context.Context, studentID billing.StudentID) ([]billing.ScheduledActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryActivities(ctx, billing.OriginSibling, `
		SELECT a.id, a.student_id, a.display_name, a.weekday, a.start_time, a.end_time
		FROM activities a
		JOIN students sib ON sib.id = a.student_id
		JOIN students me ON me.id = ?
		WHERE me.family_id <> ''
		  AND sib.family_id = me.family_id
		  AND sib.id <> me.id
		ORDER BY a.id
	`, string(studentID))
}

func (s *Store) queryActivities(ctx context.Context, origin billing.ActivityOrigin, query string, args ...any) ([]billing.ScheduledActivity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.ScheduledActivity
	for rows.Next() {
		var a billing.ScheduledActivity
		var student, start, end string
		var weekday int
		if err := rows.Scan(&a.ID, &student, &a.DisplayName, &weekday, &start, &end); err != nil {
			return nil, err
		}
		a.StudentID = billing.StudentID(student)
		a.Weekday = time.Weekday(weekday)
		a.Origin = origin
		if a.Start, err = generic.ParseClockTime(start); err != nil {
			return nil, err
		}
		if a.End, err = generic.ParseClockTime(end); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// FEE RECORDS
// =============================================================================

// UpsertFeeRecord implements billing.FeeStore. On conflict every column but
// id and created_at is replaced.
func (s *Store) UpsertFeeRecord(ctx context.Context, rec billing.FeeRecord) (billing.FeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return rec, persistenceError(rec.Key, "encode", err)
	}

	query := `
		INSERT INTO fee_records
		(id, student_id, organization_id, program_id, billing_month, effective_start_date,
		 gross_fee, discount, final_fee, adjustment_reason, breakdown_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, billing_month, effective_start_date) DO UPDATE SET
			organization_id = excluded.organization_id,
			program_id = excluded.program_id,
			gross_fee = excluded.gross_fee,
			discount = excluded.discount,
			final_fee = excluded.final_fee,
			adjustment_reason = excluded.adjustment_reason,
			breakdown_json = excluded.breakdown_json,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	var createdAt string
	err = s.db.QueryRowContext(ctx, query,
		rec.ID, string(rec.Key.StudentID), string(rec.OrganizationID), string(rec.ProgramID),
		rec.Key.BillingMonth.String(), rec.Key.EffectiveStartDate.String(),
		rec.GrossFee.Value.String(), rec.Discount.Value.String(), rec.FinalFee.Value.String(),
		nullString(rec.AdjustmentReason), string(breakdown),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&rec.ID, &createdAt)
	if err != nil {
		return rec, persistenceError(rec.Key, "upsert", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return rec, persistenceError(rec.Key, "upsert", fmt.Errorf("fee record %s: created_at: %w", rec.ID, err))
	}
	return rec, nil
}

// GetFeeRecord implements billing.FeeStore.
func (s *Store) GetFeeRecord(ctx context.Context, key billing.FeeRecordKey) (*billing.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.queryFeeRecords(ctx, `
		SELECT `+feeRecordColumns+`
		FROM fee_records
		WHERE student_id = ? AND billing_month = ? AND effective_start_date = ?
	`, string(key.StudentID), key.BillingMonth.String(), key.EffectiveStartDate.String())
	if err != nil {
		return nil, persistenceError(key, "get", err)
	}
	if len(recs) == 0 {
		return nil, generic.ErrNotFound
	}
	return &recs[0], nil
}

// ListFeeRecords implements billing.FeeStore.
func (s *Store) ListFeeRecords(ctx context.Context, studentID billing.StudentID) ([]billing.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.queryFeeRecords(ctx, `
		SELECT `+feeRecordColumns+`
		FROM fee_records
		WHERE student_id = ?
		ORDER BY billing_month, effective_start_date
	`, string(studentID))
	if err != nil {
		return nil, persistenceError(billing.FeeRecordKey{StudentID: studentID}, "list", err)
	}
	return recs, nil
}

// ListFeeRecordsForMonth implements billing.FeeStore.
func (s *Store) ListFeeRecordsForMonth(ctx context.Context, month generic.TimePoint) ([]billing.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.queryFeeRecords(ctx, `
		SELECT `+feeRecordColumns+`
		FROM fee_records
		WHERE billing_month = ?
		ORDER BY student_id, effective_start_date
	`, month.String())
	if err != nil {
		return nil, persistenceError(billing.FeeRecordKey{BillingMonth: month}, "list", err)
	}
	return recs, nil
}

const feeRecordColumns = `id, student_id, organization_id, program_id, billing_month, effective_start_date,
		gross_fee, discount, final_fee, adjustment_reason, breakdown_json, created_at, updated_at`

func (s *Store) queryFeeRecords(ctx context.Context, query string, args ...any) ([]billing.FeeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.FeeRecord
	for rows.Next() {
		rec, err := scanFeeRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanFeeRecord(rows *sql.Rows) (billing.FeeRecord, error) {
	var rec billing.FeeRecord
	var student, org, program, month, start, gross, discount, final, breakdown, created, updated string
	var reason sql.NullString
	if err := rows.Scan(&rec.ID, &student, &org, &program, &month, &start,
		&gross, &discount, &final, &reason, &breakdown, &created, &updated); err != nil {
		return rec, err
	}

	var err error
	rec.Key.StudentID = billing.StudentID(student)
	if rec.Key.BillingMonth, err = generic.ParseDate(month); err != nil {
		return rec, err
	}
	if rec.Key.EffectiveStartDate, err = generic.ParseDate(start); err != nil {
		return rec, err
	}
	rec.OrganizationID, rec.ProgramID = billing.OrganizationID(org), billing.ProgramID(program)
	for _, col := range []struct {
		name string
		raw  string
		dst  *generic.Amount
	}{
		{"gross_fee", gross, &rec.GrossFee},
		{"discount", discount, &rec.Discount},
		{"final_fee", final, &rec.FinalFee},
	} {
		d, err := decimal.NewFromString(col.raw)
		if err != nil {
			return rec, fmt.Errorf("fee record %s: %s %q: %w", rec.ID, col.name, col.raw, err)
		}
		*col.dst = generic.Money(d)
	}
	rec.AdjustmentReason = reason.String
	if err := json.Unmarshal([]byte(breakdown), &rec.Breakdown); err != nil {
		return rec, fmt.Errorf("decode breakdown: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return rec, fmt.Errorf("fee record %s: created_at: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return rec, fmt.Errorf("fee record %s: updated_at: %w", rec.ID, err)
	}
	return rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func persistenceError(key billing.FeeRecordKey, op string, err error) error {
	return &billing.PersistenceError{Key: key, Op: op, Err: err}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullClock(c *generic.ClockTime) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}

func parseNullClock(ns sql.NullString) (*generic.ClockTime, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	c, err := generic.ParseClockTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
