package schedule

import (
	"context"
	"fmt"

	"github.com/rosterly/attendance-engine/engine"
)

// =============================================================================
// SERVICE - Atomic persistence of patterns and their occurrences
// =============================================================================

// Service orchestrates recurring-event creation and deletion. Creation of
// the pattern and its occurrences is atomic: either both are persisted or
// neither is. Deletion cascades to generated events, attendance records,
// and excuse requests, since orphaned occurrences are meaningless.
type Service struct {
	Store engine.TxStore
	Clock engine.Clock
}

func NewService(store engine.TxStore, clock engine.Clock) *Service {
	return &Service{Store: store, Clock: clock}
}

// CreateRecurring validates the pattern, expands it, and persists the
// pattern plus one event per occurrence in a single transaction.
func (s *Service) CreateRecurring(ctx context.Context, re engine.RecurringEvent) (*engine.RecurringEvent, []engine.Event, error) {
	dates, err := Generate(re.StartDate, re.EndDate, re.Frequency, re.DaysOfWeek)
	if err != nil {
		return nil, nil, err
	}

	now := s.Clock.Now()
	if re.ID == "" {
		re.ID = engine.NewID()
	}
	re.StartDate = engine.DateOnly(re.StartDate)
	re.EndDate = engine.DateOnly(re.EndDate)
	re.CreatedAt = now

	events := make([]engine.Event, len(dates))
	for i, date := range dates {
		seriesID := re.ID
		events[i] = engine.Event{
			ID:               engine.EventID(engine.NewID()),
			OrganizationID:   re.OrganizationID,
			Title:            re.Title,
			Date:             date,
			StartTime:        re.StartTime,
			EndTime:          re.EndTime,
			RecurringEventID: &seriesID,
			CreatedAt:        now,
		}
	}

	err = s.Store.WithTx(ctx, func(tx engine.Store) error {
		if err := tx.SaveRecurringEvent(ctx, re); err != nil {
			return fmt.Errorf("save recurring event: %w", err)
		}
		for _, ev := range events {
			if err := tx.SaveEvent(ctx, ev); err != nil {
				return fmt.Errorf("save occurrence %s: %w", ev.Date.Format(engine.DateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &re, events, nil
}

// CreateEvent persists a single, non-recurring event.
func (s *Service) CreateEvent(ctx context.Context, ev engine.Event) (*engine.Event, error) {
	if ev.ID == "" {
		ev.ID = engine.EventID(engine.NewID())
	}
	ev.Date = engine.DateOnly(ev.Date)
	ev.CreatedAt = s.Clock.Now()
	if err := s.Store.SaveEvent(ctx, ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DeleteSeries removes a recurring pattern and everything generated from
// it in one atomic unit.
func (s *Service) DeleteSeries(ctx context.Context, id string) error {
	re, err := s.Store.GetRecurringEvent(ctx, id)
	if err != nil {
		return err
	}
	if re == nil {
		return &engine.NotFoundError{Kind: "recurring event", ID: id}
	}
	return s.Store.WithTx(ctx, func(tx engine.Store) error {
		return tx.DeleteRecurringSeries(ctx, id)
	})
}
