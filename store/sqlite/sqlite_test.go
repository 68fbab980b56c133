package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterly/attendance-engine/engine"
	"github.com/rosterly/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedEvent(t *testing.T, s *sqlite.Store) engine.Event {
	t.Helper()
	ev := engine.Event{
		ID:             engine.EventID(engine.NewID()),
		OrganizationID: "org-1",
		Title:          "Morning Shift",
		Date:           time.Date(2025, time.September, 8, 0, 0, 0, 0, time.UTC),
		StartTime:      "10:00",
		EndTime:        "12:00",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.SaveEvent(context.Background(), ev))
	return ev
}

// =============================================================================
// EVENTS
// =============================================================================

func TestSQLite_EventRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ev := seedEvent(t, s)
	got, err := s.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.Title, got.Title)
	assert.True(t, got.Date.Equal(ev.Date))
	assert.Equal(t, "10:00", got.StartTime)
	assert.Equal(t, "12:00", got.EndTime)
	assert.Nil(t, got.RecurringEventID)
}

func TestSQLite_GetEvent_Missing_ReturnsNil(t *testing.T) {
	s := newStore(t)
	got, err := s.GetEvent(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ListEventsBetween_FiltersByOrgAndDate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedEvent(t, s)

	other := engine.Event{
		ID: engine.EventID(engine.NewID()), OrganizationID: "org-2", Title: "Other",
		Date:      time.Date(2025, time.September, 8, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00", EndTime: "12:00",
	}
	require.NoError(t, s.SaveEvent(ctx, other))

	events, err := s.ListEventsBetween(ctx, "org-1",
		time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, engine.OrgID("org-1"), events[0].OrganizationID)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestSQLite_AttendanceUpsert_NaturalKey(t *testing.T) {
	// Upserting the same (user, event) twice updates in place.
	s := newStore(t)
	ctx := context.Background()
	ev := seedEvent(t, s)

	checkIn := time.Date(2025, time.September, 8, 9, 50, 0, 0, time.UTC)
	first, err := s.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: ev.ID,
		Status: engine.StatusOnTime, CheckInTime: &checkIn,
		HoursLogged: decimal.Zero,
	})
	require.NoError(t, err)

	checkOut := time.Date(2025, time.September, 8, 12, 0, 0, 0, time.UTC)
	_, err = s.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: first.ID, UserID: "user-1", EventID: ev.ID,
		Status: engine.StatusOnTime, CheckInTime: &checkIn, CheckOutTime: &checkOut,
		HoursLogged: decimal.RequireFromString("2"),
	})
	require.NoError(t, err)

	recs, err := s.ListAttendanceByEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, first.ID, recs[0].ID)
	require.NotNil(t, recs[0].CheckOutTime)
	assert.True(t, recs[0].CheckOutTime.Equal(checkOut))
	assert.True(t, recs[0].HoursLogged.Equal(decimal.RequireFromString("2")))
}

func TestSQLite_InsertAttendanceIfMissing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ev := seedEvent(t, s)

	rec := engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: ev.ID,
		Status: engine.StatusAbsent, HoursLogged: decimal.Zero,
	}
	created, err := s.InsertAttendanceIfMissing(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)

	rec.ID = engine.NewID()
	rec.Status = engine.StatusLate
	created, err = s.InsertAttendanceIfMissing(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetAttendance(ctx, "user-1", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusAbsent, got.Status)
}

func TestSQLite_ListOpenCheckIns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ev := seedEvent(t, s)

	checkIn := time.Date(2025, time.September, 8, 10, 0, 0, 0, time.UTC)
	open, err := s.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: ev.ID,
		Status: engine.StatusOnTime, CheckInTime: &checkIn,
		HoursLogged: decimal.Zero,
	})
	require.NoError(t, err)

	checkOut := checkIn.Add(2 * time.Hour)
	_, err = s.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-2", EventID: ev.ID,
		Status: engine.StatusOnTime, CheckInTime: &checkIn, CheckOutTime: &checkOut,
		HoursLogged: decimal.RequireFromString("2"),
	})
	require.NoError(t, err)

	got, err := s.ListOpenCheckIns(ctx,
		time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].Record.ID)
	assert.Equal(t, ev.ID, got[0].Event.ID)
}

func TestSQLite_AttendanceForUnknownEvent_Conflict(t *testing.T) {
	// The foreign key on event_id surfaces as a conflict error.
	s := newStore(t)
	_, err := s.UpsertAttendance(context.Background(), engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: "missing",
		Status: engine.StatusOnTime, HoursLogged: decimal.Zero,
	})
	require.Error(t, err)
	assert.True(t, engine.IsConflict(err))
}

// =============================================================================
// CASCADE DELETE
// =============================================================================

func TestSQLite_DeleteSeries_Cascades(t *testing.T) {
	// GIVEN: A series with one event, one attendance record, one excuse
	// WHEN: Deleting the series row
	// THEN: The whole chain is gone

	s := newStore(t)
	ctx := context.Background()

	re := engine.RecurringEvent{
		ID: engine.NewID(), OrganizationID: "org-1", Title: "Weekly",
		Frequency:  engine.FrequencyWeekly,
		DaysOfWeek: []time.Weekday{time.Monday},
		StartDate:  time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, time.September, 28, 0, 0, 0, 0, time.UTC),
		StartTime:  "10:00", EndTime: "12:00",
	}
	require.NoError(t, s.SaveRecurringEvent(ctx, re))

	seriesID := re.ID
	ev := engine.Event{
		ID: engine.EventID(engine.NewID()), OrganizationID: "org-1", Title: "Weekly",
		Date:      time.Date(2025, time.September, 8, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00", EndTime: "12:00",
		RecurringEventID: &seriesID,
	}
	require.NoError(t, s.SaveEvent(ctx, ev))

	_, err := s.UpsertAttendance(ctx, engine.AttendanceRecord{
		ID: engine.NewID(), UserID: "user-1", EventID: ev.ID,
		Status: engine.StatusOnTime, HoursLogged: decimal.Zero,
	})
	require.NoError(t, err)

	_, err = s.UpsertExcuse(ctx, engine.ExcuseRequest{
		ID: engine.NewID(), UserID: "user-2", EventID: ev.ID,
		Status: engine.ExcusePending, Reason: "sick", AttemptCount: 1,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecurringSeries(ctx, re.ID))

	gotEv, err := s.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Nil(t, gotEv)

	gotRec, err := s.GetAttendance(ctx, "user-1", ev.ID)
	require.NoError(t, err)
	assert.Nil(t, gotRec)

	gotEx, err := s.GetExcuse(ctx, "user-2", ev.ID)
	require.NoError(t, err)
	assert.Nil(t, gotEx)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := s.WithTx(ctx, func(tx engine.Store) error {
		if err := tx.SaveEvent(ctx, engine.Event{
			ID: "ev-tx", OrganizationID: "org-1", Title: "Doomed",
			Date:      time.Date(2025, time.September, 8, 0, 0, 0, 0, time.UTC),
			StartTime: "10:00", EndTime: "12:00",
		}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	got, err := s.GetEvent(ctx, "ev-tx")
	require.NoError(t, err)
	assert.Nil(t, got, "rolled-back write must not be visible")
}

func TestSQLite_WithTx_CommitsOnSuccess(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx engine.Store) error {
		return tx.SaveEvent(ctx, engine.Event{
			ID: "ev-tx", OrganizationID: "org-1", Title: "Committed",
			Date:      time.Date(2025, time.September, 8, 0, 0, 0, 0, time.UTC),
			StartTime: "10:00", EndTime: "12:00",
		})
	})
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, "ev-tx")
	require.NoError(t, err)
	require.NotNil(t, got)
}

// =============================================================================
// ROSTER AND PAY CONFIGURATION
// =============================================================================

func TestSQLite_RosterRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRosterMember(ctx, engine.RosterMember{
		OrganizationID: "org-1", UserID: "user-1", Role: "staff",
	}))
	// Upsert updates the role in place.
	require.NoError(t, s.UpsertRosterMember(ctx, engine.RosterMember{
		OrganizationID: "org-1", UserID: "user-1", Role: "manager",
	}))

	members, err := s.ListRosterMembers(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "manager", members[0].Role)

	orgs, err := s.ListOrganizations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []engine.OrgID{"org-1"}, orgs)
}

func TestSQLite_PayRateAndDeductions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rate := decimal.RequireFromString("22.50")
	require.NoError(t, s.SavePayRate(ctx, engine.PayRateConfig{
		OrganizationID: "org-1", UserID: "user-1", HourlyRate: &rate,
	}))

	got, err := s.GetPayRate(ctx, "org-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.HourlyRate)
	assert.True(t, got.HourlyRate.Equal(rate))
	assert.Nil(t, got.SalaryAmount)

	// Switching to salary replaces the mode entirely.
	salary := decimal.RequireFromString("3000")
	require.NoError(t, s.SavePayRate(ctx, engine.PayRateConfig{
		OrganizationID: "org-1", UserID: "user-1", SalaryAmount: &salary,
	}))
	got, err = s.GetPayRate(ctx, "org-1", "user-1")
	require.NoError(t, err)
	assert.Nil(t, got.HourlyRate)
	require.NotNil(t, got.SalaryAmount)
	assert.True(t, got.SalaryAmount.Equal(salary))

	require.NoError(t, s.SaveDeduction(ctx, engine.Deduction{
		ID: engine.NewID(), OrganizationID: "org-1", UserID: "user-1",
		Name: "tax", Type: engine.DeductionPercent,
		Value: decimal.RequireFromString("10"),
	}))
	deductions, err := s.ListDeductions(ctx, "org-1", "user-1")
	require.NoError(t, err)
	require.Len(t, deductions, 1)
	assert.Equal(t, "tax", deductions[0].Name)
}

// =============================================================================
// RECURRING EVENTS
// =============================================================================

func TestSQLite_RecurringEventRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	re := engine.RecurringEvent{
		ID: engine.NewID(), OrganizationID: "org-1", Title: "Standup",
		Frequency:  engine.FrequencyBiweekly,
		DaysOfWeek: []time.Weekday{time.Monday, time.Thursday},
		StartDate:  time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
		StartTime:  "09:30", EndTime: "09:45",
	}
	require.NoError(t, s.SaveRecurringEvent(ctx, re))

	got, err := s.GetRecurringEvent(ctx, re.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, engine.FrequencyBiweekly, got.Frequency)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, got.DaysOfWeek)
	assert.True(t, got.StartDate.Equal(re.StartDate))
}
