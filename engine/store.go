/*
store.go - Persistence interfaces for the engine

PURPOSE:
  Defines the interface between domain logic and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   All read/write operations, grouped by concern
  TxStore: Store plus WithTx for atomic multi-record operations

UNIQUENESS CONTRACT:
  The storage layer enforces at most one AttendanceRecord and at most one
  ExcuseRequest per (user_id, event_id). Upserts are true atomic
  insert-or-update operations, never read-then-write: concurrent check-in
  attempts for the same pair must not produce duplicates, and a lost race
  surfaces as ErrConflict for the caller to retry.

ATOMIC UNITS:
  Operations that touch more than one record run inside WithTx:
  - recurring-event creation + bulk event insert
  - excuse approval + attendance upsert to EXCUSED
  - series deletion + cascade of events, attendance, excuses
  Partial application is a correctness bug, not a degraded state.

IMPLEMENTATIONS:
  - store/sqlite:     Production SQLite
  - engine/store:     In-memory for unit tests

SEE ALSO:
  - errors.go: Error kinds returned by these methods
  - store/sqlite/sqlite.go: Concrete implementation and schema
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Grouped by concern
// =============================================================================

// EventStore persists events and recurring-event patterns.
type EventStore interface {
	SaveEvent(ctx context.Context, ev Event) error
	GetEvent(ctx context.Context, id EventID) (*Event, error)

	// ListEventsBetween returns events whose Date falls in [from, to],
	// for one organization. Used by the absence sweeper and payroll.
	ListEventsBetween(ctx context.Context, org OrgID, from, to time.Time) ([]Event, error)

	SaveRecurringEvent(ctx context.Context, re RecurringEvent) error
	GetRecurringEvent(ctx context.Context, id string) (*RecurringEvent, error)

	// DeleteRecurringSeries removes the pattern and cascades to its
	// generated events, their attendance records, and their excuse
	// requests. Orphaned occurrences are never left behind.
	DeleteRecurringSeries(ctx context.Context, id string) error
}

// AttendanceStore persists attendance records, keyed by (user, event).
type AttendanceStore interface {
	// UpsertAttendance inserts or updates by the unique (UserID, EventID)
	// key atomically. Returns the stored record.
	UpsertAttendance(ctx context.Context, rec AttendanceRecord) (*AttendanceRecord, error)

	// InsertAttendanceIfMissing inserts only when no record exists for the
	// pair, returning whether a row was created. Existing records of any
	// status are left untouched. This is the absence sweeper's primitive.
	InsertAttendanceIfMissing(ctx context.Context, rec AttendanceRecord) (bool, error)

	GetAttendance(ctx context.Context, user UserID, event EventID) (*AttendanceRecord, error)
	GetAttendanceByID(ctx context.Context, id string) (*AttendanceRecord, error)
	DeleteAttendance(ctx context.Context, user UserID, event EventID) error

	ListAttendanceByEvent(ctx context.Context, event EventID) ([]AttendanceRecord, error)
	ListAttendanceByUser(ctx context.Context, user UserID) ([]AttendanceRecord, error)

	// ListAttendanceForPeriod returns records whose event's Date falls in
	// [from, to] for one organization. The payroll aggregator's input.
	ListAttendanceForPeriod(ctx context.Context, org OrgID, from, to time.Time) ([]AttendanceRecord, error)

	// ListOpenCheckIns returns records with CheckInTime set and
	// CheckOutTime unset whose event Date falls in [from, to], joined
	// with their events. The auto-checkout sweeper's input.
	ListOpenCheckIns(ctx context.Context, from, to time.Time) ([]OpenCheckIn, error)

	// CountAttendanceByStatus returns the user's lifetime record counts
	// per status. Feeds milestone detection.
	CountAttendanceByStatus(ctx context.Context, user UserID) (map[AttendanceStatus]int, error)
}

// ExcuseStore persists excuse requests, keyed by (user, event).
type ExcuseStore interface {
	UpsertExcuse(ctx context.Context, req ExcuseRequest) (*ExcuseRequest, error)
	GetExcuse(ctx context.Context, user UserID, event EventID) (*ExcuseRequest, error)
	DeleteExcuse(ctx context.Context, user UserID, event EventID) error
}

// RosterStore persists the minimal membership the sweepers need.
type RosterStore interface {
	UpsertRosterMember(ctx context.Context, m RosterMember) error
	ListRosterMembers(ctx context.Context, org OrgID) ([]RosterMember, error)
	ListOrganizations(ctx context.Context) ([]OrgID, error)
}

// PayStore persists pay-rate configuration and deductions.
type PayStore interface {
	SavePayRate(ctx context.Context, cfg PayRateConfig) error
	GetPayRate(ctx context.Context, org OrgID, user UserID) (*PayRateConfig, error)
	SaveDeduction(ctx context.Context, d Deduction) error
	ListDeductions(ctx context.Context, org OrgID, user UserID) ([]Deduction, error)
}

// Store is the full persistence surface.
type Store interface {
	EventStore
	AttendanceStore
	ExcuseStore
	RosterStore
	PayStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
