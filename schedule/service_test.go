package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/rosterly/attendance-engine/engine"
	"github.com/rosterly/attendance-engine/engine/store"
	"github.com/rosterly/attendance-engine/schedule"
)

func newService() (*schedule.Service, *store.Memory) {
	mem := store.NewMemory()
	clock := &engine.FixedClock{Instant: time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)}
	return schedule.NewService(mem, clock), mem
}

func weeklyPattern() engine.RecurringEvent {
	return engine.RecurringEvent{
		OrganizationID: "org-1",
		Title:          "Morning Shift",
		Frequency:      engine.FrequencyWeekly,
		DaysOfWeek:     []time.Weekday{time.Monday},
		StartDate:      day(2025, time.September, 1),
		EndDate:        day(2025, time.September, 28),
		StartTime:      "10:00",
		EndTime:        "12:00",
	}
}

func TestCreateRecurring_PersistsPatternAndOccurrences(t *testing.T) {
	// GIVEN: A weekly Monday pattern over four weeks
	// WHEN: Creating it
	// THEN: The pattern and all four occurrences are persisted, each
	//       occurrence carrying the pattern's times and a back-reference

	ctx := context.Background()
	svc, mem := newService()

	re, events, err := svc.CreateRecurring(ctx, weeklyPattern())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 occurrences, got %d", len(events))
	}

	stored, err := mem.GetRecurringEvent(ctx, re.ID)
	if err != nil || stored == nil {
		t.Fatalf("pattern not persisted: %v", err)
	}

	for _, ev := range events {
		got, err := mem.GetEvent(ctx, ev.ID)
		if err != nil || got == nil {
			t.Fatalf("occurrence %s not persisted: %v", ev.ID, err)
		}
		if got.StartTime != "10:00" || got.EndTime != "12:00" {
			t.Errorf("occurrence times not copied: %s-%s", got.StartTime, got.EndTime)
		}
		if got.RecurringEventID == nil || *got.RecurringEventID != re.ID {
			t.Errorf("occurrence missing series back-reference")
		}
	}
}

func TestCreateRecurring_InvalidPattern_NothingPersisted(t *testing.T) {
	// GIVEN: A pattern that fails validation (no daysOfWeek)
	// WHEN: Creating it
	// THEN: The error is ValidationError and nothing was written

	ctx := context.Background()
	svc, mem := newService()

	re := weeklyPattern()
	re.DaysOfWeek = nil
	_, _, err := svc.CreateRecurring(ctx, re)
	if !engine.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	events, err := mem.ListEventsBetween(ctx, "org-1", day(2025, time.August, 1), day(2025, time.October, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events persisted, got %d", len(events))
	}
}

func TestDeleteSeries_CascadesToOccurrencesAndRecords(t *testing.T) {
	// GIVEN: A persisted series with an attendance record on one occurrence
	// WHEN: Deleting the series
	// THEN: The pattern, its events, and the attendance record are all gone

	ctx := context.Background()
	svc, mem := newService()

	re, events, err := svc.CreateRecurring(ctx, weeklyPattern())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = mem.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID:      engine.NewID(),
		UserID:  "user-1",
		EventID: events[0].ID,
		Status:  engine.StatusOnTime,
	})
	if err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}

	if err := svc.DeleteSeries(ctx, re.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if got, _ := mem.GetRecurringEvent(ctx, re.ID); got != nil {
		t.Error("pattern still present after delete")
	}
	if got, _ := mem.GetEvent(ctx, events[0].ID); got != nil {
		t.Error("occurrence still present after delete")
	}
	if got, _ := mem.GetAttendance(ctx, "user-1", events[0].ID); got != nil {
		t.Error("attendance record still present after delete")
	}
}

func TestDeleteSeries_Unknown_NotFound(t *testing.T) {
	svc, _ := newService()
	err := svc.DeleteSeries(context.Background(), "missing")
	if !engine.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCreateEvent_SingleOccurrence(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService()

	ev, err := svc.CreateEvent(ctx, engine.Event{
		OrganizationID: "org-1",
		Title:          "One-off Training",
		Date:           day(2025, time.September, 12),
		StartTime:      "14:00",
		EndTime:        "16:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID == "" {
		t.Error("expected a generated ID")
	}

	got, err := mem.GetEvent(ctx, ev.ID)
	if err != nil || got == nil {
		t.Fatalf("event not persisted: %v", err)
	}
	if got.RecurringEventID != nil {
		t.Error("one-off event should not reference a series")
	}
}
