/*
Package excuse implements the bounded-retry excuse approval workflow.

STATES:
  PENDING -> APPROVED (terminal)
  PENDING -> DENIED -> (resubmit) -> PENDING -> ... up to 3 attempts

RULES:
  - At most one PENDING request per (user, event) at a time; submitting
    while one exists fails with InvalidState.
  - Submitting after APPROVED fails.
  - Resubmission after the 3rd denial fails with a maximum-attempts error.
  - Approval upserts the attendance record to EXCUSED with zeroed times
    and hours IN THE SAME TRANSACTION as the excuse status change. The
    two records are never observable in an intermediate state.

RSVP COUPLING:
  An RSVP of "not attending" auto-creates (or refreshes) a PENDING excuse
  with a default reason. Reversing the RSVP before the excuse is handled
  retracts the auto-created PENDING request, but never one that has
  already been approved or denied.
*/
package excuse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rosterly/attendance-engine/engine"
)

// DefaultRSVPReason is attached to excuses auto-created by an RSVP decline.
const DefaultRSVPReason = "Marked as not attending via RSVP"

// Service executes excuse transitions against the store.
type Service struct {
	Store engine.TxStore
	Clock engine.Clock
}

func NewService(store engine.TxStore, clock engine.Clock) *Service {
	return &Service{Store: store, Clock: clock}
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit creates a PENDING excuse, or resubmits after a denial while
// attempts remain.
func (s *Service) Submit(ctx context.Context, user engine.UserID, event engine.EventID, reason string) (*engine.ExcuseRequest, error) {
	req, err := s.prepareSubmission(ctx, user, event, reason, false)
	if err != nil {
		return nil, err
	}
	return s.Store.UpsertExcuse(ctx, *req)
}

// prepareSubmission applies the submission rules against the current
// request state and returns the record to persist.
func (s *Service) prepareSubmission(ctx context.Context, user engine.UserID, event engine.EventID, reason string, auto bool) (*engine.ExcuseRequest, error) {
	ev, err := s.Store.GetEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, &engine.NotFoundError{Kind: "event", ID: string(event)}
	}

	existing, err := s.Store.GetExcuse(ctx, user, event)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	if existing == nil {
		return &engine.ExcuseRequest{
			ID:           engine.NewID(),
			UserID:       user,
			EventID:      event,
			Status:       engine.ExcusePending,
			Reason:       reason,
			AttemptCount: 1,
			AutoCreated:  auto,
			CreatedAt:    now,
			UpdatedAt:    now,
		}, nil
	}

	switch existing.Status {
	case engine.ExcusePending:
		return nil, &engine.InvalidStateError{Op: "submit excuse", Reason: "a pending request already exists"}
	case engine.ExcuseApproved:
		return nil, &engine.InvalidStateError{Op: "submit excuse", Reason: "request already approved"}
	case engine.ExcuseDenied:
		if existing.AttemptCount >= engine.MaxExcuseAttempts {
			return nil, &engine.InvalidStateError{
				Op:     "submit excuse",
				Reason: fmt.Sprintf("maximum of %d attempts reached", engine.MaxExcuseAttempts),
			}
		}
		resubmit := *existing
		resubmit.Status = engine.ExcusePending
		resubmit.Reason = reason
		resubmit.AttemptCount++
		resubmit.AutoCreated = auto
		resubmit.UpdatedAt = now
		return &resubmit, nil
	default:
		return nil, &engine.InvalidStateError{Op: "submit excuse", Reason: "unknown status " + string(existing.Status)}
	}
}

// =============================================================================
// APPROVE / DENY
// =============================================================================

// Approve marks a PENDING request APPROVED and, atomically, upserts the
// attendance record to EXCUSED with zeroed times and hours.
func (s *Service) Approve(ctx context.Context, user engine.UserID, event engine.EventID) (*engine.ExcuseRequest, error) {
	req, err := s.requirePending(ctx, user, event, "approve excuse")
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	approved := *req
	approved.Status = engine.ExcuseApproved
	approved.UpdatedAt = now

	err = s.Store.WithTx(ctx, func(tx engine.Store) error {
		if _, err := tx.UpsertExcuse(ctx, approved); err != nil {
			return err
		}
		record := engine.AttendanceRecord{
			ID:          engine.NewID(),
			UserID:      user,
			EventID:     event,
			Status:      engine.StatusExcused,
			HoursLogged: decimal.Zero,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		// An admin note on the existing record survives the excusal.
		existing, err := tx.GetAttendance(ctx, user, event)
		if err != nil {
			return err
		}
		if existing != nil {
			record.Note = existing.Note
		}
		_, err = tx.UpsertAttendance(ctx, record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &approved, nil
}

// Deny marks a PENDING request DENIED. The attendance record is untouched.
func (s *Service) Deny(ctx context.Context, user engine.UserID, event engine.EventID) (*engine.ExcuseRequest, error) {
	req, err := s.requirePending(ctx, user, event, "deny excuse")
	if err != nil {
		return nil, err
	}
	denied := *req
	denied.Status = engine.ExcuseDenied
	denied.UpdatedAt = s.Clock.Now()
	return s.Store.UpsertExcuse(ctx, denied)
}

func (s *Service) requirePending(ctx context.Context, user engine.UserID, event engine.EventID, op string) (*engine.ExcuseRequest, error) {
	req, err := s.Store.GetExcuse(ctx, user, event)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &engine.NotFoundError{Kind: "excuse request", ID: string(user) + "/" + string(event)}
	}
	if req.Status != engine.ExcusePending {
		return nil, &engine.InvalidStateError{Op: op, Reason: "request is " + string(req.Status) + ", not pending"}
	}
	return req, nil
}

// =============================================================================
// RSVP COUPLING
// =============================================================================

// RSVPDecline auto-creates or refreshes a PENDING excuse for a "not
// attending" RSVP. Unlike Submit it is a no-op (not an error) when the
// existing request cannot accept a new submission.
func (s *Service) RSVPDecline(ctx context.Context, user engine.UserID, event engine.EventID) (*engine.ExcuseRequest, error) {
	existing, err := s.Store.GetExcuse(ctx, user, event)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == engine.ExcusePending {
		refreshed := *existing
		refreshed.Reason = DefaultRSVPReason
		refreshed.AutoCreated = true
		refreshed.UpdatedAt = s.Clock.Now()
		return s.Store.UpsertExcuse(ctx, refreshed)
	}

	req, err := s.prepareSubmission(ctx, user, event, DefaultRSVPReason, true)
	if err != nil {
		if engine.IsInvalidState(err) {
			return existing, nil
		}
		return nil, err
	}
	return s.Store.UpsertExcuse(ctx, *req)
}

// RSVPRevert retracts an auto-created PENDING excuse after the RSVP is
// reversed. Requests already handled, or submitted manually, stay put.
// A pair with prior denials falls back to its last DENIED state rather
// than being deleted, so the attempt count survives the round trip.
func (s *Service) RSVPRevert(ctx context.Context, user engine.UserID, event engine.EventID) error {
	existing, err := s.Store.GetExcuse(ctx, user, event)
	if err != nil {
		return err
	}
	if existing == nil || existing.Status != engine.ExcusePending || !existing.AutoCreated {
		return nil
	}
	if existing.AttemptCount > 1 {
		restored := *existing
		restored.Status = engine.ExcuseDenied
		restored.AttemptCount--
		restored.AutoCreated = false
		restored.UpdatedAt = s.Clock.Now()
		_, err := s.Store.UpsertExcuse(ctx, restored)
		return err
	}
	return s.Store.DeleteExcuse(ctx, user, event)
}

// Get returns the current excuse request for a pair, if any.
func (s *Service) Get(ctx context.Context, user engine.UserID, event engine.EventID) (*engine.ExcuseRequest, error) {
	return s.Store.GetExcuse(ctx, user, event)
}
