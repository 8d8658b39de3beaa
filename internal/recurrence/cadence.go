// Package recurrence holds the pure date arithmetic behind recurring task
// rules: advancing a run date by a cadence and resolving how far a dormant
// rule has fallen behind.
package recurrence

import (
	"fmt"
	"time"

	"github.com/tmkelly/choreboard/internal/model"
)

// Safety limit for catch-up stepping (a daily rule dormant ~27 years).
const maxSteps = 10000

// Advance returns the occurrence after from for the given cadence. Monthly
// keeps the day of month, clamped to the last valid day of the target month
// (Jan 31 -> Feb 28).
func Advance(freq model.Frequency, from time.Time) time.Time {
	switch freq {
	case model.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case model.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case model.FrequencyMonthly:
		year, month, day := from.Date()
		month++
		if last := daysInMonth(year, month); day > last {
			day = last
		}
		return time.Date(year, month, day, 0, 0, 0, 0, from.Location())
	}
	return time.Time{}
}

// CatchUp resolves a due rule against asOf. It returns the latest scheduled
// occurrence on or before asOf (the due date of the one task to create) and
// the first occurrence strictly after asOf (the rule's new next run date).
// A dormant rule therefore yields a single catch-up task, never a backlog.
func CatchUp(freq model.Frequency, nextRun, asOf time.Time) (due, next time.Time, err error) {
	switch freq {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly:
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown frequency %q", freq)
	}

	due = StartOfDay(nextRun)
	asOf = StartOfDay(asOf)
	if due.After(asOf) {
		return time.Time{}, time.Time{}, fmt.Errorf("rule not due until %s", due.Format(model.DateLayout))
	}

	for i := 0; i < maxSteps; i++ {
		n := Advance(freq, due)
		if n.After(asOf) {
			return due, n, nil
		}
		due = n
	}
	return time.Time{}, time.Time{}, fmt.Errorf("catch-up exceeded %d steps from %s", maxSteps, nextRun.Format(model.DateLayout))
}

// StartOfDay truncates t to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
