/*
Package engine provides the core types shared by the attendance and payroll
computation engine.

PURPOSE:
  This package contains the domain records and identifiers that flow between
  the occurrence generator, the attendance state machine, the excuse workflow,
  the payroll aggregator, and the periodic sweepers. It has no knowledge of
  HTTP or SQL; those live at the edges.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event / RecurringEvent: one concrete dated occurrence and the pattern
    that generated it
  - AttendanceRecord: at most one per (user, event) pair, the unit the
    payroll aggregator consumes
  - ExcuseRequest: the bounded-retry approval record
  - PayRateConfig / Deduction: per-staff pay configuration

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for hours and money, never float64
  2. Type Safety: strong typing for IDs prevents mixing user/event/org IDs
  3. Uniqueness: (UserID, EventID) is the natural key for both attendance
     and excuses, enforced by the storage layer

SEE ALSO:
  - errors.go: Error taxonomy shared by every operation
  - store.go: Persistence interfaces
  - clock.go: Wall-clock time handling for event instants
*/
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type EventID string
type OrgID string

// NewID returns a fresh unique identifier for generated records.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// EVENTS - Concrete occurrences and their recurrence patterns
// =============================================================================

type Frequency string

const (
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
)

// Event is a single dated occurrence. Date is a calendar day; StartTime and
// EndTime are wall-clock strings ("HH:MM") interpreted in the organization's
// local time and combined with Date to produce absolute instants.
type Event struct {
	ID               EventID
	OrganizationID   OrgID
	Title            string
	Date             time.Time // day granularity, UTC midnight
	StartTime        string    // "HH:MM"
	EndTime          string    // "HH:MM"
	RecurringEventID *string
	CreatedAt        time.Time
}

// RecurringEvent owns the generated Event rows for a pattern. Deleting a
// series cascades to its events, attendance records, and excuse requests.
type RecurringEvent struct {
	ID             string
	OrganizationID OrgID
	Title          string
	Frequency      Frequency
	DaysOfWeek     []time.Weekday // required for WEEKLY and BIWEEKLY
	StartDate      time.Time
	EndDate        time.Time
	StartTime      string // "HH:MM", copied onto each generated event
	EndTime        string // "HH:MM"
	CreatedAt      time.Time
}

// =============================================================================
// ATTENDANCE - One record per (user, event), the payroll input
// =============================================================================

type AttendanceStatus string

const (
	StatusOnTime  AttendanceStatus = "ON_TIME"
	StatusLate    AttendanceStatus = "LATE"
	StatusAbsent  AttendanceStatus = "ABSENT"
	StatusExcused AttendanceStatus = "EXCUSED"
)

// AttendanceRecord tracks one person's attendance for one event.
//
// INVARIANTS:
//   - CheckOutTime implies CheckInTime was set at or before it
//   - ABSENT and EXCUSED carry HoursLogged = 0 and nil times
//   - HoursLogged is non-negative with two-decimal precision
type AttendanceRecord struct {
	ID           string
	UserID       UserID
	EventID      EventID
	Status       AttendanceStatus
	CheckInTime  *time.Time
	CheckOutTime *time.Time
	HoursLogged  decimal.Decimal
	Note         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Present reports whether the record counts as attended for milestone and
// perfect-attendance purposes.
func (r AttendanceRecord) Present() bool {
	return r.Status == StatusOnTime || r.Status == StatusLate
}

// OpenCheckIn pairs an un-checked-out attendance record with its event, as
// returned by the store for the auto-checkout sweep.
type OpenCheckIn struct {
	Record AttendanceRecord
	Event  Event
}

// =============================================================================
// EXCUSES - Bounded-retry approval workflow
// =============================================================================

type ExcuseStatus string

const (
	ExcusePending  ExcuseStatus = "PENDING"
	ExcuseApproved ExcuseStatus = "APPROVED"
	ExcuseDenied   ExcuseStatus = "DENIED"
)

// MaxExcuseAttempts bounds resubmission after denial.
const MaxExcuseAttempts = 3

// ExcuseRequest is keyed uniquely by (UserID, EventID). At most one
// non-terminal (PENDING) request exists per pair at a time.
type ExcuseRequest struct {
	ID           string
	UserID       UserID
	EventID      EventID
	Status       ExcuseStatus
	Reason       string
	AttemptCount int  // 1..MaxExcuseAttempts
	AutoCreated  bool // created by an RSVP decline, retractable until handled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// ROSTER - Minimal membership, enough for the absence sweeper
// =============================================================================

type RosterMember struct {
	OrganizationID OrgID
	UserID         UserID
	Role           string
}

// =============================================================================
// PAY CONFIGURATION
// =============================================================================

// PayRateConfig holds one staff member's pay mode for an organization.
// HourlyRate and SalaryAmount are mutually exclusive; SalaryAmount wins
// when both are somehow present.
type PayRateConfig struct {
	OrganizationID OrgID
	UserID         UserID
	HourlyRate     *decimal.Decimal
	SalaryAmount   *decimal.Decimal
}

type DeductionType string

const (
	DeductionPercent DeductionType = "PERCENT"
	DeductionFlat    DeductionType = "FLAT"
)

// Deduction is applied against gross pay. All deductions for a member are
// computed off the same gross base and then summed; they never compound.
type Deduction struct {
	ID             string
	OrganizationID OrgID
	UserID         UserID
	Name           string
	Type           DeductionType
	Value          decimal.Decimal
}

// =============================================================================
// PAYROLL SUMMARY - Derived projection, never persisted
// =============================================================================

// AppliedDeduction is one deduction with its computed amount.
type AppliedDeduction struct {
	Name   string
	Type   DeductionType
	Value  decimal.Decimal
	Amount decimal.Decimal
}

// PayrollSummary is the per-staff result of aggregating a month of
// attendance against pay configuration. GrossPay and NetPay are nil when
// the member has no pay mode configured, which is distinct from $0.
type PayrollSummary struct {
	UserID            UserID
	Month             time.Month
	Year              int
	TotalHours        decimal.Decimal
	GrossPay          *decimal.Decimal
	AppliedDeductions []AppliedDeduction
	NetPay            *decimal.Decimal
}

// Round2 rounds to two decimal places, the precision used for logged hours
// and for presenting monetary figures.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
