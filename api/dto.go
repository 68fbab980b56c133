/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry go-playground/validator struct tags and are checked
  by decode() in handlers.go before any service call. Cross-field rules
  that the tags cannot express (start before end, mutually exclusive pay
  modes) live in the Request type's validate hook.

MONEY AND HOURS:
  Internally everything is decimal.Decimal. DTOs expose JSON numbers
  rounded to two decimals at this boundary only, so rounding never
  compounds inside the engine.

SEE ALSO:
  - handlers.go: decode/validate plumbing and handler implementations
  - engine/types.go: the domain records these mirror
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rosterly/attendance-engine/attendance"
	"github.com/rosterly/attendance-engine/engine"
)

var validate = validator.New()

// =============================================================================
// EVENTS
// =============================================================================

// CreateEventRequest creates a single, non-recurring event.
type CreateEventRequest struct {
	OrganizationID string `json:"organizationId" validate:"required"`
	Title          string `json:"title" validate:"required"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime      string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime        string `json:"endTime" validate:"required,datetime=15:04"`
}

func (r CreateEventRequest) validateTimes() error {
	if r.EndTime <= r.StartTime {
		return &engine.ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}
	return nil
}

// CreateRecurringRequest creates a pattern plus all of its occurrences.
type CreateRecurringRequest struct {
	OrganizationID string `json:"organizationId" validate:"required"`
	Title          string `json:"title" validate:"required"`
	Frequency      string `json:"frequency" validate:"required,oneof=DAILY WEEKLY BIWEEKLY MONTHLY"`
	DaysOfWeek     []int  `json:"daysOfWeek" validate:"omitempty,dive,min=0,max=6"`
	StartDate      string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"endDate" validate:"required,datetime=2006-01-02"`
	StartTime      string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime        string `json:"endTime" validate:"required,datetime=15:04"`
}

func (r CreateRecurringRequest) validateTimes() error {
	if r.EndTime <= r.StartTime {
		return &engine.ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}
	return nil
}

// EventDTO represents one concrete occurrence in API responses.
type EventDTO struct {
	ID               string  `json:"id"`
	OrganizationID   string  `json:"organizationId"`
	Title            string  `json:"title"`
	Date             string  `json:"date"`
	StartTime        string  `json:"startTime"`
	EndTime          string  `json:"endTime"`
	RecurringEventID *string `json:"recurringEventId,omitempty"`
}

// RecurringEventDTO wraps the pattern with how many occurrences it produced.
type RecurringEventDTO struct {
	ID              string `json:"id"`
	OrganizationID  string `json:"organizationId"`
	Title           string `json:"title"`
	Frequency       string `json:"frequency"`
	DaysOfWeek      []int  `json:"daysOfWeek,omitempty"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	OccurrenceCount int    `json:"occurrenceCount"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// CheckInRequest records an arrival.
type CheckInRequest struct {
	UserID  string `json:"userId" validate:"required"`
	EventID string `json:"eventId" validate:"required"`
}

// CheckOutRequest closes an open check-in by record ID.
type CheckOutRequest struct {
	CheckInID string `json:"checkInId" validate:"required"`
}

// OptTime distinguishes an omitted JSON field from an explicit null or
// value, mapping onto attendance.TimePatch.
type OptTime struct {
	Set  bool
	Time *time.Time
}

func (o *OptTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Time = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	o.Time = &t
	return nil
}

func (o OptTime) patch() attendance.TimePatch {
	return attendance.TimePatch{Set: o.Set, Time: o.Time}
}

// OverrideRequest is the admin upsert of a (user, event) record.
type OverrideRequest struct {
	UserID       string  `json:"userId" validate:"required"`
	EventID      string  `json:"eventId" validate:"required"`
	Status       string  `json:"status" validate:"required,oneof=ON_TIME LATE ABSENT EXCUSED"`
	CheckInTime  OptTime `json:"checkInTime"`
	CheckOutTime OptTime `json:"checkOutTime"`
	Note         *string `json:"note,omitempty"`
}

// ClearRequest removes a record entirely, returning the pair to no-record.
type ClearRequest struct {
	UserID  string `json:"userId" validate:"required"`
	EventID string `json:"eventId" validate:"required"`
}

// AttendanceDTO represents an attendance record in API responses.
type AttendanceDTO struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	EventID      string  `json:"eventId"`
	Status       string  `json:"status"`
	CheckInTime  *string `json:"checkInTime,omitempty"`
	CheckOutTime *string `json:"checkOutTime,omitempty"`
	HoursLogged  float64 `json:"hoursLogged"`
	Note         string  `json:"note,omitempty"`
}

// AttendanceStatsDTO is a user's lifetime record counts per status.
type AttendanceStatsDTO struct {
	UserID  string `json:"userId"`
	OnTime  int    `json:"onTime"`
	Late    int    `json:"late"`
	Absent  int    `json:"absent"`
	Excused int    `json:"excused"`
}

// =============================================================================
// EXCUSES
// =============================================================================

// SubmitExcuseRequest submits or resubmits an excuse for review.
type SubmitExcuseRequest struct {
	UserID  string `json:"userId" validate:"required"`
	EventID string `json:"eventId" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

// ExcuseDecisionRequest identifies the pending request to approve or deny.
type ExcuseDecisionRequest struct {
	UserID  string `json:"userId" validate:"required"`
	EventID string `json:"eventId" validate:"required"`
}

// RSVPRequest marks a user as not attending (or reverses that mark).
type RSVPRequest struct {
	UserID  string `json:"userId" validate:"required"`
	EventID string `json:"eventId" validate:"required"`
}

// ExcuseDTO represents an excuse request in API responses.
type ExcuseDTO struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	EventID      string `json:"eventId"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
	AttemptCount int    `json:"attemptCount"`
	AutoCreated  bool   `json:"autoCreated"`
}

// =============================================================================
// ROSTER AND PAY CONFIGURATION
// =============================================================================

// UpsertMemberRequest adds or updates one roster membership.
type UpsertMemberRequest struct {
	OrganizationID string `json:"organizationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
	Role           string `json:"role" validate:"required"`
}

// SetPayRateRequest configures a member's pay mode. Exactly one of
// hourlyRate and salaryAmount must be set.
type SetPayRateRequest struct {
	OrganizationID string   `json:"organizationId" validate:"required"`
	UserID         string   `json:"userId" validate:"required"`
	HourlyRate     *float64 `json:"hourlyRate,omitempty" validate:"omitempty,gte=0"`
	SalaryAmount   *float64 `json:"salaryAmount,omitempty" validate:"omitempty,gte=0"`
}

func (r SetPayRateRequest) validateModes() error {
	if (r.HourlyRate == nil) == (r.SalaryAmount == nil) {
		return &engine.ValidationError{Field: "hourlyRate", Reason: "exactly one of hourlyRate and salaryAmount must be set"}
	}
	return nil
}

// AddDeductionRequest attaches a recurring deduction to a member.
type AddDeductionRequest struct {
	OrganizationID string  `json:"organizationId" validate:"required"`
	UserID         string  `json:"userId" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Type           string  `json:"type" validate:"required,oneof=PERCENT FLAT"`
	Value          float64 `json:"value" validate:"gte=0"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// AppliedDeductionDTO is one deduction with its computed amount.
type AppliedDeductionDTO struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Amount float64 `json:"amount"`
}

// PayrollSummaryDTO is the per-staff monthly figure. GrossPay and NetPay
// are absent (not 0) for members with no configured pay mode.
type PayrollSummaryDTO struct {
	UserID     string                `json:"userId"`
	Month      int                   `json:"month"`
	Year       int                   `json:"year"`
	TotalHours float64               `json:"totalHours"`
	GrossPay   *float64              `json:"grossPay,omitempty"`
	Deductions []AppliedDeductionDTO `json:"deductions,omitempty"`
	NetPay     *float64              `json:"netPay,omitempty"`
}

// SweepResultDTO reports what a manually triggered sweep pass did.
type SweepResultDTO struct {
	AbsencesCreated int `json:"absencesCreated"`
	CheckoutsClosed int `json:"checkoutsClosed"`
}

// =============================================================================
// DOMAIN -> DTO CONVERTERS
// =============================================================================

func toEventDTO(ev engine.Event) EventDTO {
	return EventDTO{
		ID:               string(ev.ID),
		OrganizationID:   string(ev.OrganizationID),
		Title:            ev.Title,
		Date:             ev.Date.Format(engine.DateLayout),
		StartTime:        ev.StartTime,
		EndTime:          ev.EndTime,
		RecurringEventID: ev.RecurringEventID,
	}
}

func toRecurringDTO(re engine.RecurringEvent, occurrences int) RecurringEventDTO {
	days := make([]int, len(re.DaysOfWeek))
	for i, d := range re.DaysOfWeek {
		days[i] = int(d)
	}
	return RecurringEventDTO{
		ID:              re.ID,
		OrganizationID:  string(re.OrganizationID),
		Title:           re.Title,
		Frequency:       string(re.Frequency),
		DaysOfWeek:      days,
		StartDate:       re.StartDate.Format(engine.DateLayout),
		EndDate:         re.EndDate.Format(engine.DateLayout),
		StartTime:       re.StartTime,
		EndTime:         re.EndTime,
		OccurrenceCount: occurrences,
	}
}

func toAttendanceDTO(rec engine.AttendanceRecord) AttendanceDTO {
	dto := AttendanceDTO{
		ID:          rec.ID,
		UserID:      string(rec.UserID),
		EventID:     string(rec.EventID),
		Status:      string(rec.Status),
		HoursLogged: round2f(rec.HoursLogged),
		Note:        rec.Note,
	}
	if rec.CheckInTime != nil {
		s := rec.CheckInTime.Format(time.RFC3339)
		dto.CheckInTime = &s
	}
	if rec.CheckOutTime != nil {
		s := rec.CheckOutTime.Format(time.RFC3339)
		dto.CheckOutTime = &s
	}
	return dto
}

func toAttendanceDTOs(recs []engine.AttendanceRecord) []AttendanceDTO {
	dtos := make([]AttendanceDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toAttendanceDTO(rec)
	}
	return dtos
}

func toExcuseDTO(req engine.ExcuseRequest) ExcuseDTO {
	return ExcuseDTO{
		ID:           req.ID,
		UserID:       string(req.UserID),
		EventID:      string(req.EventID),
		Status:       string(req.Status),
		Reason:       req.Reason,
		AttemptCount: req.AttemptCount,
		AutoCreated:  req.AutoCreated,
	}
}

func toSummaryDTO(s engine.PayrollSummary) PayrollSummaryDTO {
	dto := PayrollSummaryDTO{
		UserID:     string(s.UserID),
		Month:      int(s.Month),
		Year:       s.Year,
		TotalHours: round2f(s.TotalHours),
		GrossPay:   round2p(s.GrossPay),
		NetPay:     round2p(s.NetPay),
	}
	for _, d := range s.AppliedDeductions {
		dto.Deductions = append(dto.Deductions, AppliedDeductionDTO{
			Name:   d.Name,
			Type:   string(d.Type),
			Value:  round2f(d.Value),
			Amount: round2f(d.Amount),
		})
	}
	return dto
}

// round2f renders a decimal as a two-decimal JSON number.
func round2f(d decimal.Decimal) float64 {
	f, _ := engine.Round2(d).Float64()
	return f
}

func round2p(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := round2f(*d)
	return &f
}
