/*
handlers_test.go - HTTP tests for the billing API

Tests for:
- Calculate / Save status codes and payloads
- Error mapping (400, 404, 422, 503)
- Reference data endpoints (programs, holidays, activities)
- Metrics endpoint
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/generic"
	"github.com/warp/extcare-billing/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	s := memory.New()
	h := NewHandler(s, billing.DefaultWindowPolicy(), nil, NewMetrics())
	return h, NewRouter(h, RouterOptions{MetricsPath: "/metrics"})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func loadScenario(t *testing.T, h *Handler, id string) ScenarioDTO {
	t.Helper()
	sc, err := LoadScenario(context.Background(), h.Store, id)
	require.NoError(t, err)
	return sc
}

// =============================================================================
// CALCULATE
// =============================================================================

func TestCalculate_ActivityOverlap(t *testing.T) {
	// GIVEN: The activity-overlap scenario
	h, router := setupTestServer(t)
	sc := loadScenario(t, h, "activity-overlap")

	// WHEN: Posting its request
	rr := do(t, router, http.MethodPost, "/api/billing/calculate", sc.Request)

	// THEN: 144.00 with one aggregate deduction
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	b := decode[BreakdownDTO](t, rr)
	assert.Equal(t, "144.00", b.FinalFee)
	assert.Equal(t, "160.00", b.GrossFee)
	require.Len(t, b.Deductions, 1)
	assert.Equal(t, billing.DeductionLabel, b.Deductions[0].Label)
	assert.Equal(t, "16.00", b.Deductions[0].Amount)
	require.Len(t, b.Activities, 1)
	assert.Equal(t, "Swim Club", b.Activities[0].DisplayName)
	assert.Equal(t, "mon", b.Activities[0].Weekday)
}

func TestCalculate_DoesNotSave(t *testing.T) {
	h, router := setupTestServer(t)
	sc := loadScenario(t, h, "full-month")

	rr := do(t, router, http.MethodPost, "/api/billing/calculate", sc.Request)
	require.Equal(t, http.StatusOK, rr.Code)

	recs, err := h.Store.ListFeeRecords(context.Background(), billing.StudentID(sc.Request.StudentID))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCalculate_ConfigurationMissing(t *testing.T) {
	// GIVEN: An empty store
	_, router := setupTestServer(t)

	// WHEN
	rr := do(t, router, http.MethodPost, "/api/billing/calculate", baseRequest())

	// THEN: 422, not a zero fee
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decode[ErrorResponse](t, rr)
	assert.Contains(t, resp.Details, "no active enrollment")
}

func TestCalculate_BadInput(t *testing.T) {
	_, router := setupTestServer(t)

	tests := []struct {
		name   string
		mutate func(*CalculateRequest)
	}{
		{"bad month", func(r *CalculateRequest) { r.BillingMonth = "September" }},
		{"bad time", func(r *CalculateRequest) { r.RequestedDropoff = "7h30" }},
		{"bad weekday", func(r *CalculateRequest) { r.Weekdays = []string{"mon", "funday"} }},
		{"bad transport", func(r *CalculateRequest) { r.TransportMode = "rocket" }},
		{"bad adjustment", func(r *CalculateRequest) { r.ManualAdjustment = "ten" }},
		{"missing student", func(r *CalculateRequest) { r.StudentID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(&req)
			rr := do(t, router, http.MethodPost, "/api/billing/calculate", req)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestCalculate_UnknownField(t *testing.T) {
	_, router := setupTestServer(t)
	rr := do(t, router, http.MethodPost, "/api/billing/calculate", `{"student_id":"x","gross_fee":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// SAVE
// =============================================================================

func TestSave_AndFetch(t *testing.T) {
	// GIVEN: The adjustment-floor scenario
	h, router := setupTestServer(t)
	sc := loadScenario(t, h, "adjustment-floor")

	// WHEN: Saving twice
	rr := do(t, router, http.MethodPost, "/api/billing/save", sc.Request)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[FeeRecordDTO](t, rr)

	rr = do(t, router, http.MethodPost, "/api/billing/save", sc.Request)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[FeeRecordDTO](t, rr)

	// THEN: One record with the negated adjustment as discount
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "160.00", second.GrossFee)
	assert.Equal(t, "200.00", second.Discount)
	assert.Equal(t, "0.00", second.FinalFee)
	assert.Equal(t, "Hardship waiver", second.AdjustmentReason)

	rr = do(t, router, http.MethodGet, "/api/students/student-ava/fees/2025-09", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[FeeRecordDTO](t, rr)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "-200.00", got.Breakdown.ManualAdjustment)

	rr = do(t, router, http.MethodGet, "/api/students/student-ava/fees", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]FeeRecordDTO](t, rr), 1)
}

func TestGetStudentFee_ByStartDate(t *testing.T) {
	h, router := setupTestServer(t)
	sc := loadScenario(t, h, "mid-month-start")

	rr := do(t, router, http.MethodPost, "/api/billing/save", sc.Request)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/students/student-ava/fees/2025-09", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "record is keyed by its effective start")

	rr = do(t, router, http.MethodGet, "/api/students/student-ava/fees/2025-09?start=2025-09-16", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "80.00", decode[FeeRecordDTO](t, rr).FinalFee)
}

// failingFeeStore fails every fee record write.
type failingFeeStore struct {
	*memory.Store
}

func (failingFeeStore) UpsertFeeRecord(context.Context, billing.FeeRecord) (billing.FeeRecord, error) {
	return billing.FeeRecord{}, errors.New("database is locked")
}

func TestSave_PersistenceFailure(t *testing.T) {
	// GIVEN: A store that cannot write fee records
	s := failingFeeStore{Store: memory.New()}
	h := NewHandler(s, billing.DefaultWindowPolicy(), nil, nil)
	router := NewRouter(h, RouterOptions{})
	sc := loadScenario(t, h, "full-month")

	// WHEN
	rr := do(t, router, http.MethodPost, "/api/billing/save", sc.Request)

	// THEN: 503 so the client retries
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, decode[ErrorResponse](t, rr).Details, "database is locked")
}

// =============================================================================
// RECALCULATE
// =============================================================================

func TestRecalculate(t *testing.T) {
	h, router := setupTestServer(t)
	sc := loadScenario(t, h, "mid-month-start")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/billing/save", sc.Request).Code)

	// A holiday added after saving
	rr := do(t, router, http.MethodPost, "/api/holidays", CreateHolidayRequest{
		OrganizationID: demoOrg, Name: "Labor Day", StartDate: "2025-09-01",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, router, http.MethodPost, "/api/billing/recalculate", RecalculateRequest{Month: "2025-09"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	result := decode[billing.RecalcResult](t, rr)
	assert.Equal(t, 1, result.Recalculated)
	assert.Equal(t, 1, result.Changed)

	rr = do(t, router, http.MethodGet, "/api/students/student-ava/fees/2025-09?start=2025-09-16", nil)
	assert.Equal(t, "83.81", decode[FeeRecordDTO](t, rr).FinalFee)
}

func TestRecalculate_BadMonth(t *testing.T) {
	_, router := setupTestServer(t)
	rr := do(t, router, http.MethodPost, "/api/billing/recalculate", RecalculateRequest{Month: "next month"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestPrograms(t *testing.T) {
	_, router := setupTestServer(t)

	rr := do(t, router, http.MethodPost, "/api/programs",
		`{"program_id":"after-school","organization_id":"org-1","monthly_rate":95.00,"baseline_pickup":"16:00"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, router, http.MethodPost, "/api/programs", `{"program_id":"x","organization_id":"org-1","monthly_rate":-5}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/programs?organization_id=org-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	programs := decode[[]ProgramDTO](t, rr)
	require.Len(t, programs, 1)
	assert.Equal(t, "16:00", programs[0].BaselinePickup)
	assert.Empty(t, programs[0].BaselineDropoff)
}

func TestStudentsAndEnrollment(t *testing.T) {
	// GIVEN: A student, rate card and enrollment created through the API
	_, router := setupTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/programs",
		`{"program_id":"p","organization_id":"org-1","monthly_rate":100}`).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/students",
		StudentDTO{ID: "s1", OrganizationID: "org-1", Name: "Sam"}).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/enrollments",
		EnrollmentRequest{StudentID: "s1", OrganizationID: "org-1", ProgramID: "p", StartDate: "2025-09-01"}).Code)

	rr := do(t, router, http.MethodGet, "/api/students?organization_id=org-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]StudentDTO](t, rr), 1)

	// WHEN: Calculating with the default window (08:30-15:30) and a 16:30 pickup
	rr = do(t, router, http.MethodPost, "/api/billing/calculate", CalculateRequest{
		StudentID: "s1", OrganizationID: "org-1", BillingMonth: "2025-09",
		RequestedDropoff: "08:30", RequestedPickup: "16:30", Weekdays: []string{"tue", "thu"},
	})

	// THEN: 2 cycles × 20.00 × 2 days
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "80.00", decode[BreakdownDTO](t, rr).FinalFee)
}

func TestHolidays(t *testing.T) {
	_, router := setupTestServer(t)

	rr := do(t, router, http.MethodPost, "/api/holidays", CreateHolidayRequest{
		OrganizationID: "org-1", Name: "Winter Break", StartDate: "2025-12-22", EndDate: "2026-01-02",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[HolidayDTO](t, rr)
	assert.NotEmpty(t, created.ID)

	rr = do(t, router, http.MethodPost, "/api/holidays", CreateHolidayRequest{
		Name: "Backwards", StartDate: "2025-12-22", EndDate: "2025-12-01",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/holidays?organization_id=org-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[map[string][]HolidayDTO](t, rr)
	assert.Len(t, list["holidays"], 1)

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodDelete, "/api/holidays/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/api/holidays/"+created.ID, nil).Code)
}

func TestCreateActivity(t *testing.T) {
	h, router := setupTestServer(t)
	sc := loadScenario(t, h, "full-month")

	rr := do(t, router, http.MethodPost, "/api/activities", ActivityDTO{
		StudentID: demoStudent, DisplayName: "Swim Club", Weekday: "monday", StartTime: "07:45", EndTime: "08:15",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, router, http.MethodPost, "/api/activities", ActivityDTO{
		StudentID: demoStudent, Weekday: "sunday", StartTime: "07:45", EndTime: "08:15",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/billing/calculate", sc.Request)
	assert.Equal(t, "144.00", decode[BreakdownDTO](t, rr).FinalFee)
}

// =============================================================================
// HEALTH & METRICS
// =============================================================================

func TestHealth(t *testing.T) {
	_, router := setupTestServer(t)
	rr := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, router := setupTestServer(t)
	sc := loadScenario(t, h, "full-month")
	do(t, router, http.MethodPost, "/api/billing/calculate", sc.Request)
	do(t, router, http.MethodPost, "/api/billing/calculate", sc.Request)
	require.NoError(t, h.Store.Reset(context.Background()))
	do(t, router, http.MethodPost, "/api/billing/calculate", sc.Request)

	rr := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, `extcare_billing_calculations_total{outcome="ok"} 2`)
	assert.Contains(t, body, `extcare_billing_calculations_total{outcome="configuration_missing"} 1`)
	assert.True(t, strings.Contains(body, `route="/api/billing/calculate"`), "requests are labelled by route pattern")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&billing.ConfigurationMissingError{}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&billing.PersistenceError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("weekday: %w", generic.ErrInvalidInput)))
	assert.Equal(t, http.StatusNotFound, statusFor(generic.ErrNotFound))
}
