// Package service holds the business operations the outer application layer
// calls: validation, ownership checks, and transaction management around the
// store. Every operation opens one unit of work, releases it on all exit
// paths, and commits only after its writes succeeded.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/habitkit/go-habit-engine/habit"
	"github.com/habitkit/go-habit-engine/metrics"
	"github.com/habitkit/go-habit-engine/store"
)

// CalcInvalidator drops cached calculations for a habit whose inputs changed.
// performance.CalculationCache satisfies it.
type CalcInvalidator interface {
	InvalidateHabit(ctx context.Context, habitID int64) error
}

// HabitService exposes habit CRUD and per-habit statistics.
type HabitService struct {
	store store.Store
	calc  CalcInvalidator
	log   *slog.Logger

	weekStart  time.Weekday
	windowDays int
}

// HabitOption configures a HabitService.
type HabitOption func(*HabitService)

// WithHabitLogger overrides the default logger.
func WithHabitLogger(log *slog.Logger) HabitOption {
	return func(s *HabitService) { s.log = log }
}

// WithWeekStart sets the first day of the week for streak stats.
func WithWeekStart(d time.Weekday) HabitOption {
	return func(s *HabitService) { s.weekStart = d }
}

// WithStreakWindowDays bounds how far back streak stats look.
func WithStreakWindowDays(days int) HabitOption {
	return func(s *HabitService) { s.windowDays = days }
}

// WithCalcInvalidator makes writes that change a habit's metric inputs drop
// that habit's cached calculations. Without it, cached metrics stay stale
// until their TTL expires.
func WithCalcInvalidator(calc CalcInvalidator) HabitOption {
	return func(s *HabitService) { s.calc = calc }
}

// NewHabitService wires the service onto a store.
func NewHabitService(st store.Store, opts ...HabitOption) *HabitService {
	s := &HabitService{
		store:      st,
		log:        slog.Default(),
		weekStart:  time.Monday,
		windowDays: 365,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetHabit returns the habit, or nil when it does not exist or belongs to a
// different user. Callers cannot distinguish the two cases.
func (s *HabitService) GetHabit(ctx context.Context, userID uuid.UUID, id int64) (*habit.Habit, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	h, err := uow.Habits().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h == nil || h.UserID != userID {
		return nil, nil
	}
	return h, nil
}

// UserHabits lists the user's habits, optionally restricted to one list.
func (s *HabitService) UserHabits(ctx context.Context, userID uuid.UUID, listID *int64) ([]*habit.Habit, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()
	return uow.Habits().ListByUser(ctx, userID, listID)
}

// CreateHabit validates and persists a new habit.
func (s *HabitService) CreateHabit(ctx context.Context, userID uuid.UUID, input habit.NewHabit) (*habit.Habit, error) {
	if err := habit.WrapValidation("create habit", input.Validate()); err != nil {
		return nil, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	h, err := uow.Habits().Create(ctx, userID, input)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// UpdateHabit validates and applies a patch. Returns nil when the habit does
// not exist or is not owned by the user.
func (s *HabitService) UpdateHabit(ctx context.Context, userID uuid.UUID, id int64, patch habit.HabitPatch) (*habit.Habit, error) {
	if patch.IsZero() {
		return nil, habit.NewValidationError("update habit", "empty patch")
	}
	if err := habit.WrapValidation("update habit", patch.Validate()); err != nil {
		return nil, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	h, err := uow.Habits().Update(ctx, id, userID, patch)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	// A goal change alters what counts as a complete week.
	s.invalidateCalc(ctx, id)
	return h, nil
}

// DeleteHabit soft-deletes the habit and reports whether anything changed.
func (s *HabitService) DeleteHabit(ctx context.Context, userID uuid.UUID, id int64) (bool, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer uow.Close()

	ok, err := uow.Habits().Delete(ctx, id, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ToggleCheck marks or unmarks one day for the habit. It reports whether the
// change applied; false without error means the habit is missing or unowned.
func (s *HabitService) ToggleCheck(ctx context.Context, userID uuid.UUID, habitID int64, day time.Time, done bool, note *string) (bool, error) {
	if note != nil && len(*note) > habit.MaxNoteLength {
		return false, habit.NewValidationError("toggle check", "note too long")
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer uow.Close()

	applied := false
	if done {
		rec, err := uow.Habits().AddCheck(ctx, habitID, userID, day, note)
		if err != nil {
			return false, err
		}
		applied = rec != nil
	} else {
		applied, err = uow.Habits().RemoveCheck(ctx, habitID, userID, day)
		if err != nil {
			return false, err
		}
	}
	if !applied {
		return false, nil
	}
	if err := uow.Commit(ctx); err != nil {
		return false, err
	}
	s.invalidateCalc(ctx, habitID)
	return true, nil
}

// invalidateCalc drops the habit's cached calculations after a committed
// write. Failures are logged, not surfaced; the cache heals on TTL expiry.
func (s *HabitService) invalidateCalc(ctx context.Context, habitID int64) {
	if s.calc == nil {
		return
	}
	if err := s.calc.InvalidateHabit(ctx, habitID); err != nil {
		s.log.Warn("calc cache invalidation failed", "habit_id", habitID, "error", err)
	}
}

// HabitChecks returns the habit's completion records within [start, end],
// empty when the habit is missing or unowned.
func (s *HabitService) HabitChecks(ctx context.Context, userID uuid.UUID, habitID int64, start, end time.Time) ([]*habit.CheckedRecord, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	h, err := uow.Habits().GetByID(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if h == nil || h.UserID != userID {
		return nil, nil
	}
	return uow.Habits().Checks(ctx, habitID, start, end)
}

// StreakStats is the per-habit detail-view statistics bundle.
type StreakStats struct {
	// CurrentStreak is the consecutive-day run ending at today.
	CurrentStreak int

	// CompletedWeeks is the consecutive-week streak against the goal.
	CompletedWeeks int

	// TotalCompletions counts every done day up to today.
	TotalCompletions int
}

// HabitStreakStats computes the detail-view statistics for one habit, or nil
// when the habit is missing or unowned.
func (s *HabitService) HabitStreakStats(ctx context.Context, userID uuid.UUID, habitID int64, today time.Time) (*StreakStats, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	h, err := uow.Habits().GetByID(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if h == nil || h.UserID != userID {
		return nil, nil
	}

	today = habit.DateOf(today)
	records, err := uow.Habits().Checks(ctx, habitID, today.AddDate(0, 0, -s.windowDays), today)
	if err != nil {
		return nil, err
	}

	res := metrics.Calculate(h, records, today, metrics.WithWeekStart(s.weekStart))
	return &StreakStats{
		CurrentStreak:    metrics.CurrentDayStreak(records, today),
		CompletedWeeks:   res.ConsecutiveWeeks,
		TotalCompletions: res.TotalTicks,
	}, nil
}

// DeleteAllUserHabits soft-deletes every habit the user owns.
func (s *HabitService) DeleteAllUserHabits(ctx context.Context, userID uuid.UUID) (int64, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer uow.Close()

	n, err := uow.Habits().DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}
	s.log.Info("deleted all habits", "user_id", userID, "count", n)
	return n, nil
}
