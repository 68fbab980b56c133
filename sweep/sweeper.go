/*
Package sweep contains the two idempotent batch jobs that apply the
attendance state machine to already-elapsed events: auto-absence and
auto-checkout. Both are guarded against overlapping runs by a
compare-and-swap flag owned by the sweeper value itself, and both log and
continue past single-pair failures rather than aborting the batch.
*/
package sweep

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rosterly/attendance-engine/attendance"
	"github.com/rosterly/attendance-engine/engine"
)

// ErrSweepRunning is returned when a sweep is invoked while a previous
// invocation is still in flight. The overlapping call is a no-op and can
// be retried once the in-flight pass finishes, so it wraps ErrConflict.
var ErrSweepRunning = fmt.Errorf("%w: sweep already running", engine.ErrConflict)

// =============================================================================
// AUTO-ABSENCE - Fill gaps with ABSENT for elapsed events
// =============================================================================

// AbsenceSweeper creates ABSENT records for roster members who have no
// record at all for an event that has ended. Pairs with any existing
// record, including EXCUSED and prior ABSENT, are never touched, which
// makes the sweep idempotent.
type AbsenceSweeper struct {
	Store    engine.Store
	Clock    engine.Clock
	Location *time.Location

	running atomic.Bool
}

// Run sweeps one organization over the lookback window and returns how
// many ABSENT records it created.
func (s *AbsenceSweeper) Run(ctx context.Context, org engine.OrgID, lookback time.Duration) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrSweepRunning
	}
	defer s.running.Store(false)

	now := s.Clock.Now()
	from := now.Add(-lookback)

	events, err := s.Store.ListEventsBetween(ctx, org, from, now)
	if err != nil {
		return 0, err
	}
	members, err := s.Store.ListRosterMembers(ctx, org)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, ev := range events {
		endAt, err := engine.CombineWallClock(ev.Date, ev.EndTime, s.loc())
		if err != nil {
			log.Printf("[AbsenceSweep] event=%s has bad end time %q: %v", ev.ID, ev.EndTime, err)
			continue
		}
		if endAt.After(now) {
			continue // not elapsed yet
		}

		for _, member := range members {
			ok, err := s.Store.InsertAttendanceIfMissing(ctx, engine.AttendanceRecord{
				ID:          engine.NewID(),
				UserID:      member.UserID,
				EventID:     ev.ID,
				Status:      engine.StatusAbsent,
				HoursLogged: decimal.Zero,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				// One bad pair must not sink the batch.
				log.Printf("[AbsenceSweep] user=%s event=%s: %v", member.UserID, ev.ID, err)
				continue
			}
			if ok {
				created++
			}
		}
	}
	return created, nil
}

func (s *AbsenceSweeper) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// =============================================================================
// AUTO-CHECKOUT - Close forgotten check-ins at the scheduled end
// =============================================================================

// CheckoutSweeper closes every open check-in whose event has ended,
// performing the equivalent of a check-out with the event's scheduled end
// instant as "now".
type CheckoutSweeper struct {
	Attendance *attendance.Service
	Store      engine.Store
	Clock      engine.Clock
	Location   *time.Location

	running atomic.Bool
}

// Run sweeps open check-ins in the lookback window and returns how many
// it closed.
func (s *CheckoutSweeper) Run(ctx context.Context, lookback time.Duration) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrSweepRunning
	}
	defer s.running.Store(false)

	now := s.Clock.Now()
	from := now.Add(-lookback)

	open, err := s.Store.ListOpenCheckIns(ctx, from, now)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, oc := range open {
		endAt, err := engine.CombineWallClock(oc.Event.Date, oc.Event.EndTime, s.loc())
		if err != nil {
			log.Printf("[CheckoutSweep] event=%s has bad end time %q: %v", oc.Event.ID, oc.Event.EndTime, err)
			continue
		}
		if endAt.After(now) {
			continue // event still in progress
		}
		if _, err := s.Attendance.CloseAt(ctx, oc.Record, oc.Event, endAt); err != nil {
			log.Printf("[CheckoutSweep] record=%s: %v", oc.Record.ID, err)
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *CheckoutSweeper) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}
