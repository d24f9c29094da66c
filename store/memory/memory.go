// Package memory provides an in-memory implementation of the billing stores.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	students    map[billing.StudentID]billing.Student
	enrollments map[string]billing.Enrollment
	programs    map[programKey]billing.ProgramBillingConfig
	holidays    map[string]generic.HolidayRange
	activities  map[string]billing.ScheduledActivity
	fees        map[billing.FeeRecordKey]billing.FeeRecord
}

type programKey struct {
	OrganizationID billing.OrganizationID
	ProgramID      billing.ProgramID
}

var (
	_ billing.ReferenceSource = (*Store)(nil)
	_ billing.FeeStore        = (*Store)(nil)
)

func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.students = make(map[billing.StudentID]billing.Student)
	s.enrollments = make(map[string]billing.Enrollment)
	s.programs = make(map[programKey]billing.ProgramBillingConfig)
	s.holidays = make(map[string]generic.HolidayRange)
	s.activities = make(map[string]billing.ScheduledActivity)
	s.fees = make(map[billing.FeeRecordKey]billing.FeeRecord)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Reset clears all data.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// =============================================================================
// ADMIN WRITES
// =============================================================================

func (s *Store) SaveStudent(_ context.Context, st billing.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = st
	return nil
}

func (s *Store) ListStudents(_ context.Context, orgID billing.OrganizationID) ([]billing.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.Student
	for _, st := range s.students {
		if orgID == "" || st.OrganizationID == orgID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveEnrollment(_ context.Context, e billing.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[e.ID] = e
	return nil
}

func (s *Store) SaveProgram(_ context.Context, p billing.ProgramBillingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[programKey{p.OrganizationID, p.ProgramID}] = p
	return nil
}

func (s *Store) ListPrograms(_ context.Context, orgID billing.OrganizationID) ([]billing.ProgramBillingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.ProgramBillingConfig
	for k, p := range s.programs {
		if orgID == "" || k.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProgramID < out[j].ProgramID })
	return out, nil
}

func (s *Store) SaveHoliday(_ context.Context, h generic.HolidayRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays[h.ID] = h
	return nil
}

func (s *Store) DeleteHoliday(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holidays[id]; !ok {
		return generic.ErrNotFound
	}
	delete(s.holidays, id)
	return nil
}

func (s *Store) ListHolidays(_ context.Context, orgID billing.OrganizationID) ([]generic.HolidayRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holidaysLocked(orgID, nil), nil
}

func (s *Store) SaveActivity(_ context.Context, a billing.ScheduledActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Origin = ""
	s.activities[a.ID] = a
	return nil
}

// =============================================================================
// REFERENCE SOURCE
// =============================================================================

func (s *Store) ActiveEnrollment(_ context.Context, studentID billing.StudentID, orgID billing.OrganizationID, period generic.Period) (*billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *billing.Enrollment
	for _, e := range s.enrollments {
		if e.StudentID != studentID || e.OrganizationID != orgID || !e.ActiveDuring(period) {
			continue
		}
		if best == nil || e.StartDate.After(best.StartDate) {
			e := e
			best = &e
		}
	}
	if best == nil {
		return nil, generic.ErrNotFound
	}
	return best, nil
}

func (s *Store) ProgramBillingConfig(_ context.Context, orgID billing.OrganizationID, programID billing.ProgramID) (*billing.ProgramBillingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.programs[programKey{orgID, programID}]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &p, nil
}

func (s *Store) HolidayRanges(_ context.Context, orgID billing.OrganizationID, period generic.Period) ([]generic.HolidayRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holidaysLocked(orgID, &period), nil
}

func (s *Store) holidaysLocked(orgID billing.OrganizationID, period *generic.Period) []generic.HolidayRange {
	var all generic.HolidayRanges
	for _, h := range s.holidays {
		if h.OrganizationID == "" || h.OrganizationID == string(orgID) {
			all = append(all, h)
		}
	}
	if period != nil {
		all = all.Overlapping(*period)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.Before(all[j].Start)
		}
		return all[i].ID < all[j].ID
	})
	return all
}

func (s *Store) StudentActivities(_ context.Context, studentID billing.StudentID) ([]billing.ScheduledActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activitiesLocked(func(id billing.StudentID) bool { return id == studentID }, billing.OriginSelf), nil
}

func (s *Store) SiblingActivities(_ context.Context, studentID billing.StudentID) ([]billing.ScheduledActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[studentID]
	if !ok || st.FamilyID == "" {
		return nil, nil
	}
	isSibling := func(id billing.StudentID) bool {
		other, ok := s.students[id]
		return ok && id != studentID && other.FamilyID == st.FamilyID
	}
	return s.activitiesLocked(isSibling, billing.OriginSibling), nil
}

func (s *Store) activitiesLocked(match func(billing.StudentID) bool, origin billing.ActivityOrigin) []billing.ScheduledActivity {
	var out []billing.ScheduledActivity
	for _, a := range s.activities {
		if match(a.StudentID) {
			a.Origin = origin
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// FEE STORE
// =============================================================================

func (s *Store) UpsertFeeRecord(_ context.Context, rec billing.FeeRecord) (billing.FeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.fees[rec.Key]; ok {
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
	}
	s.fees[rec.Key] = rec
	return rec, nil
}

func (s *Store) GetFeeRecord(_ context.Context, key billing.FeeRecordKey) (*billing.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.fees[key]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) ListFeeRecords(_ context.Context, studentID billing.StudentID) ([]billing.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.FeeRecord
	for k, rec := range s.fees {
		if k.StudentID == studentID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if !a.BillingMonth.Equal(b.BillingMonth) {
			return a.BillingMonth.Before(b.BillingMonth)
		}
		return a.EffectiveStartDate.Before(b.EffectiveStartDate)
	})
	return out, nil
}

func (s *Store) ListFeeRecordsForMonth(_ context.Context, month generic.TimePoint) ([]billing.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []billing.FeeRecord
	for k, rec := range s.fees {
		if k.BillingMonth.Equal(month) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.EffectiveStartDate.Before(b.EffectiveStartDate)
	})
	return out, nil
}
