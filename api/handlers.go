/*
handlers.go - HTTP handler implementations

PURPOSE:
  Implements the HTTP endpoints. Handlers decode and validate the request,
  call the owning service, and translate domain errors into status codes.
  No business logic lives here.

ERROR MAPPING:
  ValidationError   -> 400 Bad Request
  NotFoundError     -> 404 Not Found
  InvalidStateError -> 409 Conflict
  ErrConflict       -> 409 Conflict
  anything else     -> 500 Internal Server Error

RESPONSE FORMAT:
  Success: JSON of the relevant DTO
  Error:   {"error": "message"}

SEE ALSO:
  - dto.go: Request/response types and validation tags
  - server.go: Route wiring
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rosterly/attendance-engine/attendance"
	"github.com/rosterly/attendance-engine/engine"
	"github.com/rosterly/attendance-engine/excuse"
	"github.com/rosterly/attendance-engine/payroll"
	"github.com/rosterly/attendance-engine/schedule"
	"github.com/rosterly/attendance-engine/sweep"
)

// Handler holds the services behind the HTTP surface.
type Handler struct {
	Schedule   *schedule.Service
	Attendance *attendance.Service
	Excuses    *excuse.Service
	Payroll    *payroll.Aggregator
	Absence    *sweep.AbsenceSweeper
	Checkout   *sweep.CheckoutSweeper

	Store engine.TxStore
	Clock engine.Clock

	// Lookback window for manually triggered sweeps.
	SweepLookback time.Duration
}

// NewHandler wires every service against one store. The dispatcher may be
// nil, which disables milestone notifications.
func NewHandler(store engine.TxStore, clock engine.Clock, loc *time.Location, dispatch *engine.Dispatcher) *Handler {
	att := attendance.NewService(store, clock)
	att.Location = loc
	att.Dispatch = dispatch

	return &Handler{
		Schedule:   schedule.NewService(store, clock),
		Attendance: att,
		Excuses:    excuse.NewService(store, clock),
		Payroll:    payroll.NewAggregator(store),
		Absence:    &sweep.AbsenceSweeper{Store: store, Clock: clock, Location: loc},
		Checkout: &sweep.CheckoutSweeper{
			Attendance: att,
			Store:      store,
			Clock:      clock,
			Location:   loc,
		},
		Store:         store,
		Clock:         clock,
		SweepLookback: 24 * time.Hour,
	}
}

// =============================================================================
// PLUMBING
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsValidation(err):
		status = http.StatusBadRequest
	case engine.IsNotFound(err):
		status = http.StatusNotFound
	case engine.IsInvalidState(err), engine.IsConflict(err):
		status = http.StatusConflict
	}
	if !engine.IsClientError(err) {
		log.Printf("[API] internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode parses the body into dst and runs its validation tags.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &engine.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return &engine.ValidationError{Field: verrs[0].Field(), Reason: "failed " + verrs[0].Tag() + " validation"}
		}
		return &engine.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(engine.DateLayout, value)
	if err != nil {
		return time.Time{}, &engine.ValidationError{Field: field, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// =============================================================================
// EVENTS
// =============================================================================

// CreateEvent handles POST /api/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validateTimes(); err != nil {
		writeError(w, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeError(w, err)
		return
	}

	ev, err := h.Schedule.CreateEvent(r.Context(), engine.Event{
		OrganizationID: engine.OrgID(req.OrganizationID),
		Title:          req.Title,
		Date:           date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(*ev))
}

// GetEvent handles GET /api/events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := engine.EventID(chi.URLParam(r, "id"))
	ev, err := h.Store.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if ev == nil {
		writeError(w, &engine.NotFoundError{Kind: "event", ID: string(id)})
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(*ev))
}

// ListEventAttendance handles GET /api/events/{id}/attendance
func (h *Handler) ListEventAttendance(w http.ResponseWriter, r *http.Request) {
	id := engine.EventID(chi.URLParam(r, "id"))
	recs, err := h.Attendance.ByEvent(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(recs))
}

// CreateRecurring handles POST /api/recurring
func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req CreateRecurringRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validateTimes(); err != nil {
		writeError(w, err)
		return
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}

	days := make([]time.Weekday, len(req.DaysOfWeek))
	for i, d := range req.DaysOfWeek {
		days[i] = time.Weekday(d)
	}

	re, events, err := h.Schedule.CreateRecurring(r.Context(), engine.RecurringEvent{
		OrganizationID: engine.OrgID(req.OrganizationID),
		Title:          req.Title,
		Frequency:      engine.Frequency(req.Frequency),
		DaysOfWeek:     days,
		StartDate:      start,
		EndDate:        end,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringDTO(*re, len(events)))
}

// DeleteRecurring handles DELETE /api/recurring/{id}
func (h *Handler) DeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := h.Schedule.DeleteSeries(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// CheckIn handles POST /api/attendance/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.Attendance.CheckIn(r.Context(), engine.UserID(req.UserID), engine.EventID(req.EventID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(*rec))
}

// CheckOut handles POST /api/attendance/check-out
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req CheckOutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.Attendance.CheckOut(r.Context(), req.CheckInID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(*rec))
}

// Override handles POST /api/attendance/override
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.Attendance.Override(r.Context(), attendance.OverrideInput{
		UserID:   engine.UserID(req.UserID),
		EventID:  engine.EventID(req.EventID),
		Status:   engine.AttendanceStatus(req.Status),
		CheckIn:  req.CheckInTime.patch(),
		CheckOut: req.CheckOutTime.patch(),
		Note:     req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(*rec))
}

// Clear handles POST /api/attendance/clear
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	var req ClearRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Attendance.Clear(r.Context(), engine.UserID(req.UserID), engine.EventID(req.EventID)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserAttendance handles GET /api/users/{id}/attendance
func (h *Handler) ListUserAttendance(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Attendance.ByUser(r.Context(), engine.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(recs))
}

// GetUserStats handles GET /api/users/{id}/stats
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	user := engine.UserID(chi.URLParam(r, "id"))
	counts, err := h.Attendance.Stats(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceStatsDTO{
		UserID:  string(user),
		OnTime:  counts[engine.StatusOnTime],
		Late:    counts[engine.StatusLate],
		Absent:  counts[engine.StatusAbsent],
		Excused: counts[engine.StatusExcused],
	})
}

// =============================================================================
// EXCUSES
// =============================================================================

// SubmitExcuse handles POST /api/excuses
func (h *Handler) SubmitExcuse(w http.ResponseWriter, r *http.Request) {
	var req SubmitExcuseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ex, err := h.Excuses.Submit(r.Context(), engine.UserID(req.UserID), engine.EventID(req.EventID), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExcuseDTO(*ex))
}

// GetExcuse handles GET /api/excuses?userId=&eventId=
func (h *Handler) GetExcuse(w http.ResponseWriter, r *http.Request) {
	user := engine.UserID(r.URL.Query().Get("userId"))
	event := engine.EventID(r.URL.Query().Get("eventId"))
	if user == "" || event == "" {
		writeError(w, &engine.ValidationError{Field: "userId", Reason: "userId and eventId are required"})
		return
	}
	ex, err := h.Excuses.Get(r.Context(), user, event)
	if err != nil {
		writeError(w, err)
		return
	}
	if ex == nil {
		writeError(w, &engine.NotFoundError{Kind: "excuse request", ID: string(user) + "/" + string(event)})
		return
	}
	writeJSON(w, http.StatusOK, toExcuseDTO(*ex))
}

// ApproveExcuse handles POST /api/excuses/approve
func (h *Handler) ApproveExcuse(w http.ResponseWriter, r *http.Request) {
	var req ExcuseDecisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ex, err := h.Excuses.Approve(r.Context(), engine.UserID(req.UserID), engine.EventID(req.EventID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExcuseDTO(*ex))
}

// DenyExcuse handles POST /api/excuses/deny
func (h *Handler) DenyExcuse(w http.ResponseWriter, r *http.Request) {
	var req ExcuseDecisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ex, err := h.Excuses.Deny(r.Context(), engine.UserID(req.UserID), engine.EventID(req.EventID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExcuseDTO(*ex))
}

// RSVPDecline handles POST /api/rsvp/decline
func (h *Handler) RSVPDecline(w http.ResponseWriter, r *http.Request) {
	var req RSVPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ex, err := h.Excuses.RSVPDecline(r.Context(), engine.UserID(req.UserID), engine.EventID(req.EventID))
	if err != nil {
		writeError(w, err)
		return
	}
	if ex == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toExcuseDTO(*ex))
}

// RSVPRevert handles POST /api/rsvp/revert
func (h *Handler) RSVPRevert(w http.ResponseWriter, r *http.Request) {
	var req RSVPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Excuses.RSVPRevert(r.Context(), engine.UserID(req.UserID), engine.EventID(req.EventID)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ROSTER AND PAY CONFIGURATION
// =============================================================================

// UpsertMember handles POST /api/roster
func (h *Handler) UpsertMember(w http.ResponseWriter, r *http.Request) {
	var req UpsertMemberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	member := engine.RosterMember{
		OrganizationID: engine.OrgID(req.OrganizationID),
		UserID:         engine.UserID(req.UserID),
		Role:           req.Role,
	}
	if err := h.Store.UpsertRosterMember(r.Context(), member); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// SetPayRate handles POST /api/payroll/rates
func (h *Handler) SetPayRate(w http.ResponseWriter, r *http.Request) {
	var req SetPayRateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validateModes(); err != nil {
		writeError(w, err)
		return
	}
	cfg := engine.PayRateConfig{
		OrganizationID: engine.OrgID(req.OrganizationID),
		UserID:         engine.UserID(req.UserID),
	}
	if req.HourlyRate != nil {
		d := decimal.NewFromFloat(*req.HourlyRate)
		cfg.HourlyRate = &d
	}
	if req.SalaryAmount != nil {
		d := decimal.NewFromFloat(*req.SalaryAmount)
		cfg.SalaryAmount = &d
	}
	if err := h.Store.SavePayRate(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// AddDeduction handles POST /api/payroll/deductions
func (h *Handler) AddDeduction(w http.ResponseWriter, r *http.Request) {
	var req AddDeductionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d := engine.Deduction{
		ID:             engine.NewID(),
		OrganizationID: engine.OrgID(req.OrganizationID),
		UserID:         engine.UserID(req.UserID),
		Name:           req.Name,
		Type:           engine.DeductionType(req.Type),
		Value:          decimal.NewFromFloat(req.Value),
	}
	if err := h.Store.SaveDeduction(r.Context(), d); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": d.ID})
}

// =============================================================================
// PAYROLL
// =============================================================================

// GetPayroll handles GET /api/payroll/{org}?month=&year=
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	org := engine.OrgID(chi.URLParam(r, "org"))
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, &engine.ValidationError{Field: "month", Reason: "must be an integer 1-12"})
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, &engine.ValidationError{Field: "year", Reason: "must be an integer"})
		return
	}

	summaries, err := h.Payroll.ComputeSummary(r.Context(), org, time.Month(month), year)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]PayrollSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN
// =============================================================================

// TriggerSweep handles POST /api/admin/sweep. It runs one full pass:
// auto-checkout, then auto-absence for every known organization.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	closed, err := h.Checkout.Run(ctx, h.SweepLookback)
	if err != nil {
		writeError(w, err)
		return
	}

	orgs, err := h.Store.ListOrganizations(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	created := 0
	for _, org := range orgs {
		n, err := h.Absence.Run(ctx, org, h.SweepLookback)
		if err != nil {
			writeError(w, err)
			return
		}
		created += n
	}

	writeJSON(w, http.StatusOK, SweepResultDTO{AbsencesCreated: created, CheckoutsClosed: closed})
}
