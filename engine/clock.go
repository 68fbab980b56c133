package engine

import (
	"time"
)

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock abstracts "now" so services and sweepers are testable against
// fixed instants.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Tests advance it explicitly.
type FixedClock struct {
	Instant time.Time
}

func (c *FixedClock) Now() time.Time          { return c.Instant }
func (c *FixedClock) Advance(d time.Duration) { c.Instant = c.Instant.Add(d) }

// =============================================================================
// WALL-CLOCK TIME - "HH:MM" strings combined with calendar days
// =============================================================================

// WallClockLayout is the format of Event.StartTime and Event.EndTime.
const WallClockLayout = "15:04"

// DateLayout is the format of calendar-day fields in storage and DTOs.
const DateLayout = "2006-01-02"

// CombineWallClock resolves a calendar day plus an "HH:MM" wall-clock string
// into an absolute instant in the given location. The date's own clock
// component is ignored; only its year/month/day matter.
func CombineWallClock(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.Parse(WallClockLayout, hhmm)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "time", Reason: "expected HH:MM, got " + hhmm}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// DateOnly truncates an instant to UTC midnight of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthBounds returns the first and last calendar day of a month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).AddDate(0, 0, -1)
	return start, end
}

// WeekStart returns the Sunday-aligned start of the week containing the day.
func WeekStart(day time.Time) time.Time {
	d := DateOnly(day)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// DaysBetween returns whole days from one day to another.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}
