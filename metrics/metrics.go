// Package metrics computes habit statistics from completion records. It is
// pure calculation: no storage, no caching, no clock. Callers pass the
// records and the day to treat as "today", which keeps every function
// deterministic and trivially testable.
package metrics

import (
	"time"

	"github.com/habitkit/go-habit-engine/habit"
)

// Result is the per-habit statistics bundle.
type Result struct {
	// WeekTicks is the number of done days in the current week.
	WeekTicks int

	// TotalTicks is the number of done days up to and including today.
	TotalTicks int

	// ConsecutiveWeeks is the length of the streak of weeks meeting the
	// weekly goal, counted backwards from the current week. A habit with no
	// goal has no streak.
	ConsecutiveWeeks int

	// LastWeekComplete reports whether last week met the goal. A habit
	// created after last week ended gets the benefit of the doubt.
	LastWeekComplete bool
}

// Option adjusts calculation parameters.
type Option func(*options)

type options struct {
	weekStart time.Weekday
}

// WithWeekStart sets the first day of the week. The default is Monday.
func WithWeekStart(d time.Weekday) Option {
	return func(o *options) { o.weekStart = d }
}

// WeekStartOf returns the first day of the week containing t.
func WeekStartOf(t time.Time, weekStart time.Weekday) time.Time {
	day := habit.DateOf(t)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// Calculate derives the statistics for one habit. Records may arrive in any
// order; days in the future and days marked not-done are ignored.
func Calculate(h *habit.Habit, records []*habit.CheckedRecord, today time.Time, opts ...Option) Result {
	o := options{weekStart: time.Monday}
	for _, opt := range opts {
		opt(&o)
	}

	today = habit.DateOf(today)
	done := doneDays(records, today)

	weekStart := WeekStartOf(today, o.weekStart)
	res := Result{
		TotalTicks: len(done),
		WeekTicks:  ticksInWeek(done, weekStart),
	}

	created := habit.DateOf(h.CreatedAt)
	lastWeekStart := weekStart.AddDate(0, 0, -7)
	lastWeekEnd := weekStart.AddDate(0, 0, -1)

	if h.WeeklyGoal <= 0 {
		// No goal means every week trivially counts, which would make the
		// streak meaningless. Report no streak and a complete last week.
		res.LastWeekComplete = true
		return res
	}

	if created.After(lastWeekEnd) {
		res.LastWeekComplete = true
	} else {
		res.LastWeekComplete = ticksInWeek(done, lastWeekStart) >= h.WeeklyGoal
	}

	// Walk full weeks backwards from last week while each meets the goal.
	// Weeks before the habit existed end the walk.
	streak := 0
	for ws := lastWeekStart; !ws.AddDate(0, 0, 6).Before(created); ws = ws.AddDate(0, 0, -7) {
		if ticksInWeek(done, ws) < h.WeeklyGoal {
			break
		}
		streak++
	}

	// The current week joins the streak as soon as it meets the goal, even
	// when it is the first complete week.
	if res.WeekTicks >= h.WeeklyGoal {
		streak++
	}
	res.ConsecutiveWeeks = streak
	return res
}

// CurrentDayStreak counts consecutive done days ending at today. A streak
// still counts when today is unchecked but yesterday closed a run, so the
// streak does not read as broken before the day is over.
func CurrentDayStreak(records []*habit.CheckedRecord, today time.Time) int {
	today = habit.DateOf(today)
	done := doneDays(records, today)
	if len(done) == 0 {
		return 0
	}

	day := today
	if _, ok := done[habit.DayKey(day)]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		if _, ok := done[habit.DayKey(day)]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// doneDays builds the set of done days up to and including today, keyed by
// habit.DayKey.
func doneDays(records []*habit.CheckedRecord, today time.Time) map[string]struct{} {
	done := make(map[string]struct{}, len(records))
	for _, r := range records {
		if !r.Done {
			continue
		}
		day := habit.DateOf(r.Day)
		if day.After(today) {
			continue
		}
		done[habit.DayKey(day)] = struct{}{}
	}
	return done
}

// ticksInWeek counts done days in the week starting at weekStart.
func ticksInWeek(done map[string]struct{}, weekStart time.Time) int {
	n := 0
	for i := 0; i < 7; i++ {
		if _, ok := done[habit.DayKey(weekStart.AddDate(0, 0, i))]; ok {
			n++
		}
	}
	return n
}
