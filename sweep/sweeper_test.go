package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rosterly/attendance-engine/attendance"
	"github.com/rosterly/attendance-engine/engine"
	"github.com/rosterly/attendance-engine/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const testOrg = engine.OrgID("org-1")

// Fixture clock: the evening of 2025-09-08.
func fixtureClock() *engine.FixedClock {
	return &engine.FixedClock{Instant: time.Date(2025, time.September, 8, 18, 0, 0, 0, time.UTC)}
}

func seedMember(t *testing.T, mem *store.Memory, user engine.UserID) {
	t.Helper()
	err := mem.UpsertRosterMember(context.Background(), engine.RosterMember{
		OrganizationID: testOrg, UserID: user, Role: "staff",
	})
	if err != nil {
		t.Fatalf("seeding member: %v", err)
	}
}

// seedEventAt writes an event on 2025-09-08 with the given wall-clock span.
func seedEventAt(t *testing.T, mem *store.Memory, start, end string) engine.EventID {
	t.Helper()
	ev := engine.Event{
		ID:             engine.EventID(engine.NewID()),
		OrganizationID: testOrg,
		Title:          "Shift",
		Date:           time.Date(2025, time.September, 8, 0, 0, 0, 0, time.UTC),
		StartTime:      start,
		EndTime:        end,
	}
	if err := mem.SaveEvent(context.Background(), ev); err != nil {
		t.Fatalf("seeding event: %v", err)
	}
	return ev.ID
}

// =============================================================================
// AUTO-ABSENCE
// =============================================================================

func TestAbsenceSweep_FillsGapsForElapsedEvents(t *testing.T) {
	// GIVEN: An elapsed event, two roster members, one already checked in
	// WHEN: Running the absence sweep
	// THEN: Only the member with no record gets an ABSENT row

	ctx := context.Background()
	mem := store.NewMemory()
	clock := fixtureClock()
	event := seedEventAt(t, mem, "10:00", "12:00")
	seedMember(t, mem, "user-1")
	seedMember(t, mem, "user-2")

	checkIn := time.Date(2025, time.September, 8, 10, 0, 0, 0, time.UTC)
	if _, err := mem.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: event,
		Status: engine.StatusOnTime, CheckInTime: &checkIn,
		HoursLogged: decimal.Zero,
	}); err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}

	sweeper := &AbsenceSweeper{Store: mem, Clock: clock}
	created, err := sweeper.Run(ctx, testOrg, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 absence created, got %d", created)
	}

	rec, err := mem.GetAttendance(ctx, "user-2", event)
	if err != nil || rec == nil {
		t.Fatalf("absence record missing: %v", err)
	}
	if rec.Status != engine.StatusAbsent {
		t.Errorf("expected ABSENT, got %s", rec.Status)
	}

	existing, _ := mem.GetAttendance(ctx, "user-1", event)
	if existing.Status != engine.StatusOnTime {
		t.Errorf("existing record must not be touched, got %s", existing.Status)
	}
}

func TestAbsenceSweep_Idempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedEventAt(t, mem, "10:00", "12:00")
	seedMember(t, mem, "user-1")

	sweeper := &AbsenceSweeper{Store: mem, Clock: fixtureClock()}
	first, err := sweeper.Run(ctx, testOrg, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := sweeper.Run(ctx, testOrg, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != 1 || second != 0 {
		t.Errorf("expected 1 then 0 creations, got %d then %d", first, second)
	}
}

func TestAbsenceSweep_SkipsEventsStillRunning(t *testing.T) {
	// The 18:00 clock is inside the 17:00-19:00 event, so no absence yet.
	ctx := context.Background()
	mem := store.NewMemory()
	seedEventAt(t, mem, "17:00", "19:00")
	seedMember(t, mem, "user-1")

	sweeper := &AbsenceSweeper{Store: mem, Clock: fixtureClock()}
	created, err := sweeper.Run(ctx, testOrg, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 0 {
		t.Errorf("expected no absences for an in-progress event, got %d", created)
	}
}

func TestAbsenceSweep_PreservesExcusedRecords(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	event := seedEventAt(t, mem, "10:00", "12:00")
	seedMember(t, mem, "user-1")

	if _, err := mem.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: event,
		Status: engine.StatusExcused, HoursLogged: decimal.Zero,
	}); err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}

	sweeper := &AbsenceSweeper{Store: mem, Clock: fixtureClock()}
	created, err := sweeper.Run(ctx, testOrg, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 0 {
		t.Errorf("expected excused record untouched, got %d creations", created)
	}

	rec, _ := mem.GetAttendance(ctx, "user-1", event)
	if rec.Status != engine.StatusExcused {
		t.Errorf("expected EXCUSED, got %s", rec.Status)
	}
}

func TestAbsenceSweep_SingleFlight(t *testing.T) {
	sweeper := &AbsenceSweeper{Store: store.NewMemory(), Clock: fixtureClock()}
	sweeper.running.Store(true)

	_, err := sweeper.Run(context.Background(), testOrg, 24*time.Hour)
	if err != ErrSweepRunning {
		t.Fatalf("expected ErrSweepRunning, got %v", err)
	}
	if !engine.IsConflict(err) {
		t.Error("an overlapping sweep must classify as a conflict")
	}

	sweeper.running.Store(false)
	if _, err := sweeper.Run(context.Background(), testOrg, 24*time.Hour); err != nil {
		t.Fatalf("sweep should run once the flag clears: %v", err)
	}
}

// =============================================================================
// AUTO-CHECKOUT
// =============================================================================

func newCheckoutSweeper(mem *store.Memory, clock engine.Clock) *CheckoutSweeper {
	att := attendance.NewService(mem, clock)
	return &CheckoutSweeper{Attendance: att, Store: mem, Clock: clock}
}

func TestCheckoutSweep_ClosesAtScheduledEnd(t *testing.T) {
	// GIVEN: A 10:00-12:00 event with a 10:00 check-in never closed
	// WHEN: Sweeping at 18:00
	// THEN: The record is closed at 12:00 with 2 hours logged

	ctx := context.Background()
	mem := store.NewMemory()
	clock := fixtureClock()
	event := seedEventAt(t, mem, "10:00", "12:00")

	checkIn := time.Date(2025, time.September, 8, 10, 0, 0, 0, time.UTC)
	rec, err := mem.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: event,
		Status: engine.StatusOnTime, CheckInTime: &checkIn,
		HoursLogged: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}

	closed, err := newCheckoutSweeper(mem, clock).Run(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed check-in, got %d", closed)
	}

	got, _ := mem.GetAttendanceByID(ctx, rec.ID)
	wantEnd := time.Date(2025, time.September, 8, 12, 0, 0, 0, time.UTC)
	if got.CheckOutTime == nil || !got.CheckOutTime.Equal(wantEnd) {
		t.Errorf("expected check-out at scheduled end, got %v", got.CheckOutTime)
	}
	if !got.HoursLogged.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected 2 hours, got %s", got.HoursLogged)
	}
}

func TestCheckoutSweep_SkipsEventsStillRunning(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	clock := fixtureClock()
	event := seedEventAt(t, mem, "17:00", "19:00")

	checkIn := time.Date(2025, time.September, 8, 17, 0, 0, 0, time.UTC)
	if _, err := mem.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: event,
		Status: engine.StatusOnTime, CheckInTime: &checkIn,
		HoursLogged: decimal.Zero,
	}); err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}

	closed, err := newCheckoutSweeper(mem, clock).Run(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != 0 {
		t.Errorf("expected no closes for an in-progress event, got %d", closed)
	}
}

func TestCheckoutSweep_Idempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	clock := fixtureClock()
	event := seedEventAt(t, mem, "10:00", "12:00")

	checkIn := time.Date(2025, time.September, 8, 10, 0, 0, 0, time.UTC)
	if _, err := mem.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: event,
		Status: engine.StatusOnTime, CheckInTime: &checkIn,
		HoursLogged: decimal.Zero,
	}); err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}

	sweeper := newCheckoutSweeper(mem, clock)
	first, err := sweeper.Run(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := sweeper.Run(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != 1 || second != 0 {
		t.Errorf("expected 1 then 0 closes, got %d then %d", first, second)
	}
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestScheduler_RunNow_ExecutesBothSweeps(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	clock := fixtureClock()
	event := seedEventAt(t, mem, "10:00", "12:00")
	seedMember(t, mem, "user-1")
	seedMember(t, mem, "user-2")

	checkIn := time.Date(2025, time.September, 8, 10, 0, 0, 0, time.UTC)
	if _, err := mem.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: event,
		Status: engine.StatusOnTime, CheckInTime: &checkIn,
		HoursLogged: decimal.Zero,
	}); err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}

	sched := NewScheduler(mem,
		&AbsenceSweeper{Store: mem, Clock: clock},
		newCheckoutSweeper(mem, clock),
	)
	sched.RunNow()

	// user-1's open check-in was closed; user-2 got an ABSENT record.
	rec1, _ := mem.GetAttendance(ctx, "user-1", event)
	if rec1.CheckOutTime == nil {
		t.Error("open check-in not closed by scheduler pass")
	}
	rec2, _ := mem.GetAttendance(ctx, "user-2", event)
	if rec2 == nil || rec2.Status != engine.StatusAbsent {
		t.Error("missing record not filled by scheduler pass")
	}
}
