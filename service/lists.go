package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/habitkit/go-habit-engine/habit"
	"github.com/habitkit/go-habit-engine/store"
)

// ListService exposes list CRUD, reordering, and list-level statistics.
type ListService struct {
	store store.Store
	log   *slog.Logger
}

// ListOption configures a ListService.
type ListOption func(*ListService)

// WithListLogger overrides the default logger.
func WithListLogger(log *slog.Logger) ListOption {
	return func(s *ListService) { s.log = log }
}

// NewListService wires the service onto a store.
func NewListService(st store.Store, opts ...ListOption) *ListService {
	s := &ListService{store: st, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserLists returns the user's lists in display order.
func (s *ListService) UserLists(ctx context.Context, userID uuid.UUID) ([]*habit.List, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()
	return uow.Lists().ListByUser(ctx, userID)
}

// GetList returns the list, or nil when it is missing or unowned.
func (s *ListService) GetList(ctx context.Context, userID uuid.UUID, id int64) (*habit.List, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	l, err := uow.Lists().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil || l.UserID != userID {
		return nil, nil
	}
	return l, nil
}

// CreateList validates and persists a new list.
func (s *ListService) CreateList(ctx context.Context, userID uuid.UUID, input habit.NewList) (*habit.List, error) {
	if err := habit.WrapValidation("create list", input.Validate()); err != nil {
		return nil, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	l, err := uow.Lists().Create(ctx, userID, input)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateList validates and applies a patch. Returns nil when the list is
// missing or unowned.
func (s *ListService) UpdateList(ctx context.Context, userID uuid.UUID, id int64, patch habit.ListPatch) (*habit.List, error) {
	if patch.IsZero() {
		return nil, habit.NewValidationError("update list", "empty patch")
	}
	if err := habit.WrapValidation("update list", patch.Validate()); err != nil {
		return nil, err
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	l, err := uow.Lists().Update(ctx, id, userID, patch)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteList soft-deletes the list, cascading to its habits.
func (s *ListService) DeleteList(ctx context.Context, userID uuid.UUID, id int64) (bool, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer uow.Close()

	ok, err := uow.Lists().Delete(ctx, id, userID)
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

// Reorder assigns new display orders to the user's lists in one transaction.
// Entries for lists the user does not own are skipped.
func (s *ListService) Reorder(ctx context.Context, userID uuid.UUID, orders map[int64]int) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer uow.Close()

	applied := 0
	for id, order := range orders {
		o := order
		l, err := uow.Lists().Update(ctx, id, userID, habit.ListPatch{DisplayOrder: &o})
		if err != nil {
			return 0, err
		}
		if l != nil {
			applied++
		}
	}
	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}
	return applied, nil
}

// ToggleLetterFilter flips the list's letter-filter flag and returns the new
// state; nil when the list is missing or unowned.
func (s *ListService) ToggleLetterFilter(ctx context.Context, userID uuid.UUID, id int64) (*habit.List, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	l, err := uow.Lists().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil || l.UserID != userID {
		return nil, nil
	}

	enabled := !l.EnableLetterFilter
	l, err = uow.Lists().Update(ctx, id, userID, habit.ListPatch{EnableLetterFilter: &enabled})
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// ListStats summarizes the habits inside one list.
type ListStats struct {
	HabitCount   int
	StarredCount int
}

// GetListStats counts the list's habits, or returns nil when the list is
// missing or unowned.
func (s *ListService) GetListStats(ctx context.Context, userID uuid.UUID, id int64) (*ListStats, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	l, err := uow.Lists().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil || l.UserID != userID {
		return nil, nil
	}

	habits, err := uow.Habits().ListByUser(ctx, userID, &id)
	if err != nil {
		return nil, err
	}
	stats := &ListStats{HabitCount: len(habits)}
	for _, h := range habits {
		if h.Starred {
			stats.StarredCount++
		}
	}
	return stats, nil
}

// DeleteAllUserLists soft-deletes every list the user owns. Habits keep their
// list references; they are reachable through the unfiltered listing.
func (s *ListService) DeleteAllUserLists(ctx context.Context, userID uuid.UUID) (int64, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer uow.Close()

	n, err := uow.Lists().DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}
	s.log.Info("deleted all lists", "user_id", userID, "count", n)
	return n, nil
}
