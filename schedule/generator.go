/*
Package schedule expands recurrence patterns into concrete event
occurrences and orchestrates their atomic persistence.

PURPOSE:
  The occurrence generator is a pure function of its inputs: given a date
  range, a frequency, and (for weekly patterns) a set of weekdays, it
  returns the ordered calendar dates the pattern produces. No hidden
  state, restartable, finite.

ALGORITHM (per frequency, iterating the inclusive range at day granularity):
  DAILY:    every date in range
  WEEKLY:   dates whose weekday is in daysOfWeek
  BIWEEKLY: Sunday-aligned week index relative to the week containing
            startDate; even week indexes only, weekday in daysOfWeek
  MONTHLY:  the startDate's day-of-month in each month that actually has
            that day (day 31 naturally skips short months)

VALIDATION:
  Rejected before any generation or persistence, with ValidationError:
  - endDate not after startDate
  - empty daysOfWeek for WEEKLY/BIWEEKLY
  - resulting occurrence count of 0 or more than MaxOccurrences

SEE ALSO:
  - service.go: Atomic create of pattern + occurrences, cascade delete
*/
package schedule

import (
	"time"

	"github.com/rosterly/attendance-engine/engine"
)

// MaxOccurrences caps how many events a single pattern may expand into.
const MaxOccurrences = 365

// Generate expands a recurrence pattern into ordered calendar dates.
// Dates are UTC midnights; both endpoints of the range are inclusive.
func Generate(startDate, endDate time.Time, freq engine.Frequency, daysOfWeek []time.Weekday) ([]time.Time, error) {
	start := engine.DateOnly(startDate)
	end := engine.DateOnly(endDate)

	if !end.After(start) {
		return nil, &engine.ValidationError{Field: "endDate", Reason: "must be after startDate"}
	}
	if (freq == engine.FrequencyWeekly || freq == engine.FrequencyBiweekly) && len(daysOfWeek) == 0 {
		return nil, &engine.ValidationError{Field: "daysOfWeek", Reason: "required for weekly and biweekly patterns"}
	}

	var dates []time.Time
	switch freq {
	case engine.FrequencyDaily:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}

	case engine.FrequencyWeekly:
		include := weekdaySet(daysOfWeek)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if include[d.Weekday()] {
				dates = append(dates, d)
			}
		}

	case engine.FrequencyBiweekly:
		include := weekdaySet(daysOfWeek)
		anchor := engine.WeekStart(start)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			week := engine.DaysBetween(anchor, engine.WeekStart(d)) / 7
			if week%2 == 0 && include[d.Weekday()] {
				dates = append(dates, d)
			}
		}

	case engine.FrequencyMonthly:
		dayOfMonth := start.Day()
		for month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !month.After(end); month = month.AddDate(0, 1, 0) {
			if daysInMonth(month.Year(), month.Month()) < dayOfMonth {
				continue // e.g. day 31 in February
			}
			d := time.Date(month.Year(), month.Month(), dayOfMonth, 0, 0, 0, 0, time.UTC)
			if !d.Before(start) && !d.After(end) {
				dates = append(dates, d)
			}
		}

	default:
		return nil, &engine.ValidationError{Field: "frequency", Reason: "unknown frequency " + string(freq)}
	}

	if len(dates) == 0 {
		return nil, &engine.ValidationError{Field: "pattern", Reason: "pattern produces no occurrences"}
	}
	if len(dates) > MaxOccurrences {
		return nil, &engine.ValidationError{Field: "pattern", Reason: "pattern produces more than 365 occurrences"}
	}
	return dates, nil
}

func weekdaySet(days []time.Weekday) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
