/*
Package attendance owns the lifecycle of attendance records: check-in,
check-out, administrative override, clear, and the milestone side effects
of checking in.

STATE MACHINE:
  NONE --check-in--> ON_TIME | LATE --check-out--> (times closed, terminal)
  NONE --sweeper/admin--> ABSENT
  NONE --excuse approval/admin--> EXCUSED
  Admin override can move any state to any other state directly.

TIME SEMANTICS:
  Event instants come from combining the event's calendar day with its
  "HH:MM" wall-clock strings in the service's location. Check-out credits
  duration from the EFFECTIVE START (the later of the scheduled start and
  the actual check-in) to the EFFECTIVE END (the earlier of the check-out
  and the scheduled end). Time outside the scheduled window is never
  credited: not early arrival, not overstaying.

SIDE EFFECTS:
  Milestone detection runs after a successful check-in and emits
  notifications through an async dispatcher. It is best-effort: failures
  are logged and never affect the primary transition.

SEE ALSO:
  - policy.go: ON_TIME vs LATE classification
  - milestones.go: Milestone table and detection
*/
package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rosterly/attendance-engine/engine"
)

// Service executes attendance state transitions against the store.
type Service struct {
	Store    engine.TxStore
	Clock    engine.Clock
	Policy   LatenessPolicy
	Location *time.Location    // org-local interpretation of wall-clock strings
	Dispatch *engine.Dispatcher // optional; nil disables milestone notifications
}

func NewService(store engine.TxStore, clock engine.Clock) *Service {
	return &Service{
		Store:    store,
		Clock:    clock,
		Policy:   StrictLateness,
		Location: time.UTC,
	}
}

func (s *Service) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// eventStart resolves the event's scheduled start instant.
func (s *Service) eventStart(ev *engine.Event) (time.Time, error) {
	return engine.CombineWallClock(ev.Date, ev.StartTime, s.loc())
}

// eventWindow resolves both scheduled instants.
func (s *Service) eventWindow(ev *engine.Event) (start, end time.Time, err error) {
	start, err = engine.CombineWallClock(ev.Date, ev.StartTime, s.loc())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = engine.CombineWallClock(ev.Date, ev.EndTime, s.loc())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// =============================================================================
// CHECK-IN
// =============================================================================

// CheckIn records a user's arrival for an event, classifying ON_TIME or
// LATE against the scheduled start. Checking in twice for the same event
// returns the existing record unchanged, which makes retries safe.
func (s *Service) CheckIn(ctx context.Context, user engine.UserID, event engine.EventID) (*engine.AttendanceRecord, error) {
	ev, err := s.Store.GetEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, &engine.NotFoundError{Kind: "event", ID: string(event)}
	}

	start, err := s.eventStart(ev)
	if err != nil {
		return nil, err
	}

	existing, err := s.Store.GetAttendance(ctx, user, event)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.CheckInTime != nil {
		return existing, nil
	}

	now := s.Clock.Now()
	checkIn := now
	rec := engine.AttendanceRecord{
		ID:          engine.NewID(),
		UserID:      user,
		EventID:     event,
		Status:      s.Policy.Classify(now, start),
		CheckInTime: &checkIn,
		HoursLogged: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.Note = existing.Note
		rec.CreatedAt = existing.CreatedAt
	}

	saved, err := s.Store.UpsertAttendance(ctx, rec)
	if err != nil {
		return nil, err
	}

	// Best-effort, after the primary write.
	s.fireMilestones(ctx, user)

	return saved, nil
}

// =============================================================================
// CHECK-OUT
// =============================================================================

// CheckOut closes an open check-in, logging hours from the effective
// start (the later of scheduled start and actual check-in) to the
// effective end (the earlier of now and the scheduled end).
func (s *Service) CheckOut(ctx context.Context, checkInID string) (*engine.AttendanceRecord, error) {
	rec, err := s.Store.GetAttendanceByID(ctx, checkInID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &engine.NotFoundError{Kind: "attendance record", ID: checkInID}
	}
	if rec.CheckInTime == nil {
		return nil, &engine.InvalidStateError{Op: "check-out", Reason: "no check-in time recorded"}
	}
	if rec.CheckOutTime != nil {
		return nil, &engine.InvalidStateError{Op: "check-out", Reason: "already checked out"}
	}

	ev, err := s.Store.GetEvent(ctx, rec.EventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, &engine.NotFoundError{Kind: "event", ID: string(rec.EventID)}
	}
	start, end, err := s.eventWindow(ev)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	return s.closeCheckIn(ctx, *rec, start, end, now)
}

// closeCheckIn applies the check-out math at a given instant. Shared with
// the auto-checkout sweeper, which passes the event's scheduled end.
func (s *Service) closeCheckIn(ctx context.Context, rec engine.AttendanceRecord, eventStart, eventEnd, at time.Time) (*engine.AttendanceRecord, error) {
	out := at
	rec.CheckOutTime = &out
	rec.HoursLogged = logHours(*rec.CheckInTime, eventStart, eventEnd, at)
	rec.UpdatedAt = s.Clock.Now()
	return s.Store.UpsertAttendance(ctx, rec)
}

// CloseAt closes an open check-in as of an explicit instant, used by the
// auto-checkout sweeper with the event's scheduled end.
func (s *Service) CloseAt(ctx context.Context, rec engine.AttendanceRecord, ev engine.Event, at time.Time) (*engine.AttendanceRecord, error) {
	if rec.CheckInTime == nil {
		return nil, &engine.InvalidStateError{Op: "check-out", Reason: "no check-in time recorded"}
	}
	if rec.CheckOutTime != nil {
		return nil, &engine.InvalidStateError{Op: "check-out", Reason: "already checked out"}
	}
	start, end, err := s.eventWindow(&ev)
	if err != nil {
		return nil, err
	}
	return s.closeCheckIn(ctx, rec, start, end, at)
}

// logHours computes billable hours clamped to the scheduled window,
// rounded to two decimals and floored at zero.
func logHours(checkIn, eventStart, eventEnd, checkOut time.Time) decimal.Decimal {
	from := checkIn
	if eventStart.After(from) {
		from = eventStart
	}
	to := checkOut
	if to.After(eventEnd) {
		to = eventEnd
	}
	dur := to.Sub(from)
	if dur < 0 {
		dur = 0
	}
	return engine.Round2(decimal.NewFromFloat(dur.Hours()))
}

// =============================================================================
// ADMIN OVERRIDE
// =============================================================================

// TimePatch distinguishes "field omitted" from "field explicitly cleared"
// from "field set to a value".
type TimePatch struct {
	Set  bool
	Time *time.Time // nil with Set=true clears the field
}

// OverrideInput is the admin's upsert of a (user, event) record.
type OverrideInput struct {
	UserID   engine.UserID
	EventID  engine.EventID
	Status   engine.AttendanceStatus
	CheckIn  TimePatch
	CheckOut TimePatch
	Note     *string
}

// Override upserts a record with teleport authority: any state can be
// reached from any other. ABSENT and EXCUSED force null times and zero
// hours regardless of any explicit times supplied.
func (s *Service) Override(ctx context.Context, in OverrideInput) (*engine.AttendanceRecord, error) {
	ev, err := s.Store.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, &engine.NotFoundError{Kind: "event", ID: string(in.EventID)}
	}

	existing, err := s.Store.GetAttendance(ctx, in.UserID, in.EventID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	rec := engine.AttendanceRecord{
		ID:          engine.NewID(),
		UserID:      in.UserID,
		EventID:     in.EventID,
		Status:      in.Status,
		HoursLogged: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.Note = existing.Note
		rec.CreatedAt = existing.CreatedAt
		rec.CheckInTime = existing.CheckInTime
		rec.CheckOutTime = existing.CheckOutTime
	}
	if in.Note != nil {
		rec.Note = *in.Note
	}

	switch in.Status {
	case engine.StatusAbsent, engine.StatusExcused:
		// Null times and zero hours, regardless of supplied times.
		rec.CheckInTime = nil
		rec.CheckOutTime = nil
		rec.HoursLogged = decimal.Zero

	default:
		if in.CheckIn.Set {
			rec.CheckInTime = in.CheckIn.Time
		} else if rec.CheckInTime == nil {
			t := now
			rec.CheckInTime = &t
		}
		if in.CheckOut.Set {
			rec.CheckOutTime = in.CheckOut.Time
		}

		if rec.CheckOutTime != nil && rec.CheckInTime == nil {
			return nil, &engine.ValidationError{Field: "checkOutTime", Reason: "requires a check-in time"}
		}
		if rec.CheckOutTime != nil && rec.CheckOutTime.Before(*rec.CheckInTime) {
			return nil, &engine.ValidationError{Field: "checkOutTime", Reason: "before check-in time"}
		}

		if rec.CheckInTime != nil && rec.CheckOutTime != nil {
			start, end, err := s.eventWindow(ev)
			if err != nil {
				return nil, err
			}
			rec.HoursLogged = logHours(*rec.CheckInTime, start, end, *rec.CheckOutTime)
		} else {
			rec.HoursLogged = decimal.Zero
		}
	}

	return s.Store.UpsertAttendance(ctx, rec)
}

// =============================================================================
// CLEAR
// =============================================================================

// Clear deletes the record entirely, returning the pair to NONE.
func (s *Service) Clear(ctx context.Context, user engine.UserID, event engine.EventID) error {
	return s.Store.DeleteAttendance(ctx, user, event)
}

// =============================================================================
// QUERIES
// =============================================================================

// ByEvent lists all attendance records for one event.
func (s *Service) ByEvent(ctx context.Context, event engine.EventID) ([]engine.AttendanceRecord, error) {
	return s.Store.ListAttendanceByEvent(ctx, event)
}

// ByUser lists one user's full attendance history.
func (s *Service) ByUser(ctx context.Context, user engine.UserID) ([]engine.AttendanceRecord, error) {
	return s.Store.ListAttendanceByUser(ctx, user)
}

// Stats returns a user's lifetime record counts per status.
func (s *Service) Stats(ctx context.Context, user engine.UserID) (map[engine.AttendanceStatus]int, error) {
	return s.Store.CountAttendanceByStatus(ctx, user)
}
