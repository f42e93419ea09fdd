// Package hours computes presence totals from session sets. Everything here
// is a pure function of the sessions and the boundary instants passed in, so
// totals are reproducible in tests without a clock or store.
package hours

import (
	"math"
	"time"

	"rollcall/internal/attendance/models"
)

// Window sums the hours each session contributes inside [start, end).
// Open sessions are clipped to now. The result is rounded half away from
// zero to two decimals; this is the user-visible totals figure, so the
// rounding mode is part of the contract.
func Window(sessions []*models.Session, start, end, now time.Time) float64 {
	var total time.Duration
	for _, s := range sessions {
		total += overlap(s, start, end, now)
	}
	return round2(total.Hours())
}

// Summary is the all-time rollup for one track since a reference start.
type Summary struct {
	TotalHours          float64
	WeeksElapsed        int
	AverageHoursPerWeek float64
}

// AllTimeSince computes total hours from start to now plus the weekly
// average. Weeks elapsed counts partial weeks as whole ones and is never
// less than one, so a track in its first days still averages sanely.
func AllTimeSince(sessions []*models.Session, start, now time.Time) Summary {
	total := Window(sessions, start, now, now)

	days := int(now.Sub(start).Hours() / 24)
	weeks := days/7 + 1
	if weeks < 1 {
		weeks = 1
	}

	return Summary{
		TotalHours:          total,
		WeeksElapsed:        weeks,
		AverageHoursPerWeek: round2(total / float64(weeks)),
	}
}

// WeekBounds returns the Monday 00:00 starting the week containing now and
// the following Monday, in now's location.
func WeekBounds(now time.Time) (start, end time.Time) {
	weekday := int(now.Weekday()+6) % 7 // Monday = 0
	day := now.AddDate(0, 0, -weekday)
	start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 7)
}

// EarliestCheckIn returns the smallest check-in among sessions, or ok=false
// for an empty set. Used as the all-time start when a program has no start
// date on record.
func EarliestCheckIn(sessions []*models.Session) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, s := range sessions {
		if !found || s.CheckIn.Before(earliest) {
			earliest = s.CheckIn
			found = true
		}
	}
	return earliest, found
}

func overlap(s *models.Session, start, end, now time.Time) time.Duration {
	from := s.CheckIn
	if from.Before(start) {
		from = start
	}
	to := now
	if s.CheckOut != nil {
		to = *s.CheckOut
	}
	if to.After(end) {
		to = end
	}
	if d := to.Sub(from); d > 0 {
		return d
	}
	return 0
}

func round2(h float64) float64 {
	return math.Round(h*100) / 100
}
