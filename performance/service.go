// Package performance is the read-heavy aggregation layer: it merges habits
// with their computed metrics, produces the dashboard rollup, and applies
// bulk check updates in one transaction. It leans on the bulk query paths so
// a user's whole dashboard costs a fixed number of queries regardless of how
// many habits they track.
package performance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/habitkit/go-habit-engine/habit"
	"github.com/habitkit/go-habit-engine/metrics"
	"github.com/habitkit/go-habit-engine/store"
)

// Config tunes the service's query windows and batching.
type Config struct {
	// PreloadDays is the recent-check window loaded with each habit list.
	PreloadDays int

	// StreakWindowDays bounds how far back streak calculations look.
	StreakWindowDays int

	// SummaryDays is the default trailing window of the dashboard rollup.
	SummaryDays int

	// WeekStart is the first day of the week for all metric calculations.
	WeekStart time.Weekday

	// BulkBatchSize chunks bulk check queries to keep IN clauses bounded.
	BulkBatchSize int
}

// DefaultConfig returns the windows the engine was tuned with.
func DefaultConfig() Config {
	return Config{
		PreloadDays:      90,
		StreakWindowDays: 365,
		SummaryDays:      30,
		WeekStart:        time.Monday,
		BulkBatchSize:    200,
	}
}

// Validate reports the first unusable configuration value.
func (c Config) Validate() error {
	if c.PreloadDays <= 0 {
		return fmt.Errorf("performance: PreloadDays must be greater than 0")
	}
	if c.StreakWindowDays <= 0 {
		return fmt.Errorf("performance: StreakWindowDays must be greater than 0")
	}
	if c.SummaryDays <= 0 {
		return fmt.Errorf("performance: SummaryDays must be greater than 0")
	}
	if c.BulkBatchSize <= 0 {
		return fmt.Errorf("performance: BulkBatchSize must be greater than 0")
	}
	return nil
}

// HabitMetrics is one habit merged with its computed statistics.
type HabitMetrics struct {
	Habit *habit.Habit
	metrics.Result

	// CompletionRate is WeekTicks over the weekly goal, capped at 1. Zero
	// when the habit has no goal.
	CompletionRate float64

	// WeekGoalMet reports whether the current week already meets the goal.
	WeekGoalMet bool
}

// Summary is the dashboard rollup over a trailing window. Per-habit rates
// divide by the days the habit existed within the window, not the full window,
// so recently created habits are not penalized.
type Summary struct {
	TotalHabits int

	// CompletionRate is done days over possible days, summed across habits.
	CompletionRate float64

	TotalCompletions int

	// AverageStreak is the mean consecutive-day streak across all habits.
	AverageStreak float64

	HabitsMeetingGoals  int
	MostConsistentHabit string
	PeriodDays          int
}

// CheckUpdate is one entry of a bulk check write.
type CheckUpdate struct {
	HabitID int64
	UserID  uuid.UUID
	Day     time.Time
	Done    bool
	Note    *string
}

// Service aggregates habits, metrics, and caching behind the operations the
// UI layer calls.
type Service struct {
	store store.Store
	calc  *CalculationCache
	mon   *Monitor
	cfg   Config
	log   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger routes service logs somewhere other than the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New wires the service. The store is expected to be the cache-decorated one
// so repeated reads within an operation stay cheap; calc and mon may be nil,
// disabling calculation caching and monitoring respectively.
func New(st store.Store, calc *CalculationCache, mon *Monitor, cfg Config, opts ...Option) *Service {
	s := &Service{
		store: st,
		calc:  calc,
		mon:   mon,
		cfg:   cfg,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HabitsWithMetrics returns the user's habits merged with their statistics
// for the given reference date, optionally filtered to one list. Three
// storage round trips total: the habit list with preloaded recent checks and
// the chunked bulk check load over the streak window.
func (s *Service) HabitsWithMetrics(ctx context.Context, userID uuid.UUID, listID *int64, today time.Time) ([]HabitMetrics, error) {
	defer s.trackOp("habits_with_metrics", userID)()
	today = habit.DateOf(today)

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	track := s.trackQuery("list_with_recent_checks", userID)
	habits, err := uow.Habits().ListWithRecentChecks(ctx, userID, s.cfg.PreloadDays, listID)
	if err != nil {
		return nil, err
	}
	track(len(habits), false)

	records, err := s.bulkChecks(ctx, uow, userID, habitIDs(habits),
		today.AddDate(0, 0, -s.cfg.StreakWindowDays), today)
	if err != nil {
		return nil, err
	}

	out := make([]HabitMetrics, 0, len(habits))
	for _, h := range habits {
		res, err := s.habitResult(ctx, userID, h, records[h.ID], today)
		if err != nil {
			return nil, err
		}
		out = append(out, merge(h, res))
	}
	return out, nil
}

// habitResult computes one habit's metrics through the calculation cache
// when one is wired.
func (s *Service) habitResult(ctx context.Context, userID uuid.UUID, h *habit.Habit, records []*habit.CheckedRecord, today time.Time) (metrics.Result, error) {
	compute := func(context.Context) (metrics.Result, error) {
		return metrics.Calculate(h, records, today, metrics.WithWeekStart(s.cfg.WeekStart)), nil
	}
	if s.calc == nil {
		return compute(ctx)
	}
	return s.calc.HabitStats(ctx, userID, h.ID, today, compute)
}

func merge(h *habit.Habit, res metrics.Result) HabitMetrics {
	hm := HabitMetrics{Habit: h, Result: res}
	if h.WeeklyGoal > 0 {
		hm.CompletionRate = float64(res.WeekTicks) / float64(h.WeeklyGoal)
		if hm.CompletionRate > 1 {
			hm.CompletionRate = 1
		}
		hm.WeekGoalMet = res.WeekTicks >= h.WeeklyGoal
	}
	return hm
}

// Summary computes the dashboard rollup for the trailing window ending at
// today. days <= 0 uses the configured default.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID, days int, today time.Time) (Summary, error) {
	defer s.trackOp("dashboard_summary", userID)()
	if days <= 0 {
		days = s.cfg.SummaryDays
	}
	today = habit.DateOf(today)
	windowStart := today.AddDate(0, 0, -(days - 1))

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer uow.Close()

	track := s.trackQuery("list_by_user", userID)
	habits, err := uow.Habits().ListByUser(ctx, userID, nil)
	if err != nil {
		return Summary{}, err
	}
	track(len(habits), false)

	sum := Summary{TotalHabits: len(habits), PeriodDays: days}
	if len(habits) == 0 {
		return sum, nil
	}

	ids := habitIDs(habits)
	// One wide load serves both the streak calculations and the in-window
	// completion counts.
	records, err := s.bulkChecks(ctx, uow, userID, ids,
		today.AddDate(0, 0, -s.cfg.StreakWindowDays), today)
	if err != nil {
		return Summary{}, err
	}

	weeksInPeriod := days/7 + 1
	currentWeekStart := metrics.WeekStartOf(today, s.cfg.WeekStart)

	streakTotal := 0.0
	bestRatio := -1.0
	totalPossible := 0
	for _, h := range habits {
		recs := records[h.ID]
		streakTotal += float64(metrics.CurrentDayStreak(recs, today))

		// Rates divide by the days the habit actually existed for within
		// the window, so a young habit with a perfect record is not scored
		// against days before its creation.
		habitStart := windowStart
		if created := habit.DateOf(h.CreatedAt); created.After(habitStart) {
			habitStart = created
		}
		possibleDays := daysBetween(habitStart, today)
		if possibleDays < 1 {
			possibleDays = 1
		}
		totalPossible += possibleDays

		inWindow := 0
		for _, r := range recs {
			day := habit.DateOf(r.Day)
			if r.Done && !day.Before(windowStart) && !day.After(today) {
				inWindow++
			}
		}
		sum.TotalCompletions += inWindow

		ratio := float64(inWindow) / float64(possibleDays)
		if ratio > bestRatio {
			bestRatio = ratio
			sum.MostConsistentHabit = h.Name
		}

		if h.WeeklyGoal > 0 {
			eligible, met := 0, 0
			for w := 0; w < weeksInPeriod; w++ {
				weekStart := currentWeekStart.AddDate(0, 0, -7*w)
				weekEnd := weekStart.AddDate(0, 0, 6)
				// Weeks that ended before the habit existed in the window
				// do not count against it.
				if weekEnd.Before(habitStart) {
					continue
				}
				ticks := 0
				for _, r := range recs {
					day := habit.DateOf(r.Day)
					if r.Done && !day.Before(weekStart) && !day.After(weekEnd) &&
						!day.Before(windowStart) {
						ticks++
					}
				}
				eligible++
				if ticks >= h.WeeklyGoal {
					met++
				}
			}
			if eligible > 0 && float64(met) >= 0.8*float64(eligible) {
				sum.HabitsMeetingGoals++
			}
		}
	}

	if totalPossible > 0 {
		sum.CompletionRate = float64(sum.TotalCompletions) / float64(totalPossible)
	}
	sum.AverageStreak = streakTotal / float64(len(habits))
	return sum, nil
}

// BulkUpdateChecks applies a batch of check updates in one transaction and
// returns how many were applied. Updates against habits the stated user does
// not own are skipped, not failed; a storage error rolls back the whole
// batch. Affected habits' cached calculations are invalidated after commit.
func (s *Service) BulkUpdateChecks(ctx context.Context, updates []CheckUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	defer s.trackOp("bulk_update_checks", updates[0].UserID)()

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer uow.Close()

	applied := 0
	touched := make(map[int64]struct{})
	for _, u := range updates {
		if u.Done {
			rec, err := uow.Habits().AddCheck(ctx, u.HabitID, u.UserID, u.Day, u.Note)
			if err != nil {
				return 0, err
			}
			if rec == nil {
				s.log.Debug("skipped unowned habit in bulk update", "habit_id", u.HabitID)
				continue
			}
		} else {
			ok, err := uow.Habits().RemoveCheck(ctx, u.HabitID, u.UserID, u.Day)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
		}
		applied++
		touched[u.HabitID] = struct{}{}
	}

	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}

	if s.calc != nil {
		for id := range touched {
			if err := s.calc.InvalidateHabit(ctx, id); err != nil {
				s.log.Warn("calc cache invalidation failed", "habit_id", id, "error", err)
			}
		}
	}
	s.log.Info("applied bulk check updates", "requested", len(updates), "applied", applied)
	return applied, nil
}

// bulkChecks loads check records for the habit ids in configured batches and
// merges the chunk results.
func (s *Service) bulkChecks(ctx context.Context, uow store.UnitOfWork, userID uuid.UUID, ids []int64, start, end time.Time) (map[int64][]*habit.CheckedRecord, error) {
	out := make(map[int64][]*habit.CheckedRecord, len(ids))
	for i := 0; i < len(ids); i += s.cfg.BulkBatchSize {
		chunk := ids[i:min(i+s.cfg.BulkBatchSize, len(ids))]
		track := s.trackQuery("bulk_checks", userID)
		part, err := uow.Habits().BulkChecks(ctx, chunk, start, end)
		if err != nil {
			return nil, err
		}
		n := 0
		for id, recs := range part {
			out[id] = recs
			n += len(recs)
		}
		track(n, false)
	}
	return out, nil
}

func (s *Service) trackOp(name string, userID uuid.UUID) func() {
	if s.mon == nil {
		return func() {}
	}
	return s.mon.TrackOperation(name, userID)
}

func (s *Service) trackQuery(name string, userID uuid.UUID) func(int, bool) {
	if s.mon == nil {
		return func(int, bool) {}
	}
	return s.mon.TrackQuery(name, userID)
}

// daysBetween counts calendar days from start to end inclusive. Both inputs
// are midnight-UTC days.
func daysBetween(start, end time.Time) int {
	return int(end.Sub(start)/(24*time.Hour)) + 1
}

func habitIDs(habits []*habit.Habit) []int64 {
	ids := make([]int64, len(habits))
	for i, h := range habits {
		ids[i] = h.ID
	}
	return ids
}
