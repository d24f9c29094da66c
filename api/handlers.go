/*
handlers.go - HTTP API handlers for the extended-care billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and writer.

ENDPOINTS:
  Billing:
    POST   /api/billing/calculate           Calculate a fee breakdown (no save)
    POST   /api/billing/save                Recalculate and save a fee record
    POST   /api/billing/recalculate         Re-save every record of a month

  Students:
    GET    /api/students                    List students
    POST   /api/students                    Create or update a student
    GET    /api/students/{id}/fees          Saved fee records
    GET    /api/students/{id}/fees/{month}  One record (?start=YYYY-MM-DD)

  Reference data:
    GET    /api/programs                    List rate cards
    POST   /api/programs                    Create rate card from JSON
    POST   /api/enrollments                 Enroll a student
    GET    /api/holidays                    List holiday ranges
    POST   /api/holidays                    Create holiday range
    DELETE /api/holidays/{id}               Delete holiday range
    POST   /api/activities                  Add a scheduled activity

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    GET    /api/scenarios/current           Currently loaded scenario
    POST   /api/scenarios/load              Load a demo scenario
    POST   /api/scenarios/reset             Clear all data (dev only)

  Ops:
    GET    /healthz                         Liveness

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Unparseable input (generic.ErrInvalidInput)
  - 404: Record or reference data not found
  - 422: Student cannot be billed (ConfigurationMissingError)
  - 503: Fee store failure (PersistenceError); safe to retry
  - 500: Anything else

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/extcare-billing/billing"
	"github.com/warp/extcare-billing/factory"
	"github.com/warp/extcare-billing/generic"
	"github.com/warp/extcare-billing/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the storage the handlers need; see store.Store.
type Store = store.Store

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          Store
	Engine         billing.Calculator
	Writer         *billing.Writer
	Recalculator   *billing.Recalculator
	ProgramFactory *factory.ProgramFactory
	Logger         *zap.Logger
	Metrics        *Metrics

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the engine, writer and recalculator over one store.
func NewHandler(s Store, policy billing.WindowPolicy, logger *zap.Logger, metrics *Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	engine := billing.NewEngine(s, policy, logger.Named("engine"))
	writer := billing.NewWriter(engine, s, logger.Named("writer"))
	return &Handler{
		Store:          s,
		Engine:         engine,
		Writer:         writer,
		Recalculator:   billing.NewRecalculator(s, writer, logger.Named("recalc")),
		ProgramFactory: factory.NewProgramFactory(),
		Logger:         logger,
		Metrics:        metrics,
	}
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// Calculate returns a fresh breakdown without saving it.
// POST /api/billing/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var body CalculateRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		writeBillingError(w, "Invalid calculation request", err)
		return
	}

	started := time.Now()
	b, err := h.Engine.Calculate(r.Context(), req)
	if err != nil {
		h.Metrics.ObserveCalculation(started, 0, err)
		writeBillingError(w, "Calculation failed", err)
		return
	}
	fee, _ := b.FinalFee.Value.Float64()
	h.Metrics.ObserveCalculation(started, fee, nil)

	writeJSON(w, http.StatusOK, ToBreakdownDTO(*b))
}

// Save recalculates and upserts the fee record. Any numbers the client
// computed earlier are ignored.
// POST /api/billing/save
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var body CalculateRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		writeBillingError(w, "Invalid save request", err)
		return
	}

	rec, err := h.Writer.Save(r.Context(), req, body.AdjustmentReason)
	h.Metrics.ObserveSave(err)
	if err != nil {
		writeBillingError(w, "Save failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ToFeeRecordDTO(*rec))
}

// Recalculate re-saves every record of a month.
// POST /api/billing/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var body RecalculateRequest
	if !decodeBody(w, r, &body) {
		return
	}
	month, err := ParseMonth(body.Month)
	if err != nil {
		writeBillingError(w, "Invalid month", err)
		return
	}

	result, err := h.Recalculator.RecalculateMonth(r.Context(), month)
	if err != nil {
		writeBillingError(w, "Recalculation failed", err)
		return
	}
	h.Metrics.ObserveRecalc(result)
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns the roster, optionally filtered by organization_id.
// GET /api/students
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	orgID := billing.OrganizationID(r.URL.Query().Get("organization_id"))
	students, err := h.Store.ListStudents(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, 0, len(students))
	for _, st := range students {
		dtos = append(dtos, StudentDTO{
			ID:             string(st.ID),
			OrganizationID: string(st.OrganizationID),
			FamilyID:       st.FamilyID,
			Name:           st.Name,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStudent creates or updates a student.
// POST /api/students
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var body StudentDTO
	if !decodeBody(w, r, &body) {
		return
	}
	if body.OrganizationID == "" || body.Name == "" {
		writeError(w, http.StatusBadRequest, "organization_id and name are required", nil)
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}

	st := billing.Student{
		ID:             billing.StudentID(body.ID),
		OrganizationID: billing.OrganizationID(body.OrganizationID),
		FamilyID:       body.FamilyID,
		Name:           body.Name,
	}
	if err := h.Store.SaveStudent(r.Context(), st); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save student", err)
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

// ListStudentFees returns every saved record for a student.
// GET /api/students/{id}/fees
func (h *Handler) ListStudentFees(w http.ResponseWriter, r *http.Request) {
	studentID := billing.StudentID(chi.URLParam(r, "id"))
	recs, err := h.Store.ListFeeRecords(r.Context(), studentID)
	if err != nil {
		writeBillingError(w, "Failed to list fee records", err)
		return
	}

	dtos := make([]FeeRecordDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, ToFeeRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStudentFee returns one saved record. The effective start date defaults
// to the first of the month, matching how records are keyed.
// GET /api/students/{id}/fees/{month}?start=YYYY-MM-DD
func (h *Handler) GetStudentFee(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeBillingError(w, "Invalid month", err)
		return
	}

	key := billing.FeeRecordKey{
		StudentID:          billing.StudentID(chi.URLParam(r, "id")),
		BillingMonth:       month,
		EffectiveStartDate: month,
	}
	if s := r.URL.Query().Get("start"); s != "" {
		if key.EffectiveStartDate, err = generic.ParseDate(s); err != nil {
			writeBillingError(w, "Invalid start date", err)
			return
		}
	}

	rec, err := h.Store.GetFeeRecord(r.Context(), key)
	if err != nil {
		writeBillingError(w, "Fee record not found", err)
		return
	}
	writeJSON(w, http.StatusOK, ToFeeRecordDTO(*rec))
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

// ListPrograms returns the rate cards, optionally filtered by organization_id.
// GET /api/programs
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	orgID := billing.OrganizationID(r.URL.Query().Get("organization_id"))
	programs, err := h.Store.ListPrograms(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list programs", err)
		return
	}

	dtos := make([]ProgramDTO, 0, len(programs))
	for _, p := range programs {
		dtos = append(dtos, h.ProgramFactory.ToJSON(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProgram creates or replaces a rate card from its JSON definition.
// POST /api/programs
func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	cfg, err := h.ProgramFactory.ParseProgram(string(body))
	if err != nil {
		writeBillingError(w, "Invalid program JSON", err)
		return
	}
	if err := h.Store.SaveProgram(r.Context(), *cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save program", err)
		return
	}

	h.Logger.Info("program saved",
		zap.String("program_id", string(cfg.ProgramID)),
		zap.String("organization_id", string(cfg.OrganizationID)),
		zap.String("monthly_rate", cfg.MonthlyRate.String()))
	writeJSON(w, http.StatusCreated, h.ProgramFactory.ToJSON(*cfg))
}

// CreateEnrollment enrolls a student in a program.
// POST /api/enrollments
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var body EnrollmentRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.StudentID == "" || body.OrganizationID == "" || body.ProgramID == "" {
		writeError(w, http.StatusBadRequest, "student_id, organization_id and program_id are required", nil)
		return
	}

	e := billing.Enrollment{
		ID:             body.ID,
		StudentID:      billing.StudentID(body.StudentID),
		OrganizationID: billing.OrganizationID(body.OrganizationID),
		ProgramID:      billing.ProgramID(body.ProgramID),
		Active:         body.Active == nil || *body.Active,
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var err error
	if e.StartDate, err = generic.ParseDate(body.StartDate); err != nil {
		writeBillingError(w, "Invalid start_date", err)
		return
	}
	if body.EndDate != "" {
		end, err := generic.ParseDate(body.EndDate)
		if err != nil {
			writeBillingError(w, "Invalid end_date", err)
			return
		}
		e.EndDate = &end
	}

	if err := h.Store.SaveEnrollment(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save enrollment", err)
		return
	}
	body.ID = e.ID
	writeJSON(w, http.StatusCreated, body)
}

// ListHolidays returns holiday ranges visible to an organization,
// including global ones.
// GET /api/holidays?organization_id=
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	orgID := billing.OrganizationID(r.URL.Query().Get("organization_id"))
	holidays, err := h.Store.ListHolidays(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday creates a holiday range.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var body CreateHolidayRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.StartDate == "" || body.Name == "" {
		writeError(w, http.StatusBadRequest, "start_date and name are required", nil)
		return
	}

	start, err := generic.ParseDate(body.StartDate)
	if err != nil {
		writeBillingError(w, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end := start
	if body.EndDate != "" {
		if end, err = generic.ParseDate(body.EndDate); err != nil {
			writeBillingError(w, "Invalid end_date (use YYYY-MM-DD)", err)
			return
		}
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_date is before start_date", nil)
		return
	}

	holiday := generic.HolidayRange{
		ID:             uuid.NewString(),
		OrganizationID: body.OrganizationID,
		Name:           body.Name,
		Start:          start,
		End:            end,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}

	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// DeleteHoliday deletes a holiday range.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		writeBillingError(w, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// CreateActivity adds a weekly scheduled activity for a student.
// POST /api/activities
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var body ActivityDTO
	if !decodeBody(w, r, &body) {
		return
	}
	if body.StudentID == "" {
		writeError(w, http.StatusBadRequest, "student_id is required", nil)
		return
	}

	a := billing.ScheduledActivity{
		ID:          body.ID,
		StudentID:   billing.StudentID(body.StudentID),
		DisplayName: body.DisplayName,
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	var err error
	if a.Weekday, err = billing.ParseWeekday(body.Weekday); err != nil {
		writeBillingError(w, "Invalid weekday", err)
		return
	}
	if a.Start, err = generic.ParseClockTime(body.StartTime); err != nil {
		writeBillingError(w, "Invalid start_time", err)
		return
	}
	if a.End, err = generic.ParseClockTime(body.EndTime); err != nil {
		writeBillingError(w, "Invalid end_time", err)
		return
	}

	if err := h.Store.SaveActivity(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(a))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetDatabase clears all data (dev only).
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeBillingError picks the status from the error chain.
func writeBillingError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	var missing *billing.ConfigurationMissingError
	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid request body"
		if strings.Contains(err.Error(), "unknown field") {
			msg = fmt.Sprintf("Invalid request body: %s", strings.TrimPrefix(err.Error(), "json: "))
		}
		writeError(w, http.StatusBadRequest, msg, err)
		return false
	}
	return true
}
