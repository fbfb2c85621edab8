// Package store defines the data-access contracts for the habit engine: three
// entity repositories and the unit of work that binds them to one transaction.
// Implementations live in internal/bunstore; uowcache layers a
// transaction-scoped cache on top without changing these contracts.
//
// Read methods that find nothing return absent results (nil pointer, empty
// slice) rather than errors. Mutating methods take the owning user id and
// collapse an ownership mismatch into the same absent result as a missing row,
// so existence never leaks across users.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/habitkit/go-habit-engine/habit"
)

// HabitRepository is the data-access contract for habits and their
// completion records.
type HabitRepository interface {
	// GetByID returns the habit, or nil if it does not exist or is deleted.
	GetByID(ctx context.Context, id int64) (*habit.Habit, error)

	// ListByUser returns the user's non-deleted habits ordered by display
	// order, optionally restricted to one non-deleted list.
	ListByUser(ctx context.Context, userID uuid.UUID, listID *int64) ([]*habit.Habit, error)

	// ListWithRecentChecks is ListByUser with each habit's CheckedRecords
	// preloaded for the window [today-days, today], in one round trip per
	// entity kind instead of one query per habit.
	ListWithRecentChecks(ctx context.Context, userID uuid.UUID, days int, listID *int64) ([]*habit.Habit, error)

	// BulkChecks returns the completion records of every listed habit within
	// [start, end] inclusive. Every input id is present in the result, mapped
	// to an empty slice when the habit has no records in range.
	BulkChecks(ctx context.Context, habitIDs []int64, start, end time.Time) (map[int64][]*habit.CheckedRecord, error)

	// Create inserts a habit for the user. The referenced list, if any, must
	// be a non-deleted list owned by the same user.
	Create(ctx context.Context, userID uuid.UUID, input habit.NewHabit) (*habit.Habit, error)

	// Update applies the patch and returns the updated habit, or nil if the
	// habit does not exist or is not owned by userID.
	Update(ctx context.Context, id int64, userID uuid.UUID, patch habit.HabitPatch) (*habit.Habit, error)

	// Delete soft-deletes the habit. It reports whether a row was affected.
	Delete(ctx context.Context, id int64, userID uuid.UUID) (bool, error)

	// Checks returns the habit's completion records within [start, end].
	Checks(ctx context.Context, habitID int64, start, end time.Time) ([]*habit.CheckedRecord, error)

	// AddCheck marks the day done, creating the record or flipping an
	// existing one. The note is updated only when non-nil. Returns nil when
	// the habit is missing, deleted, or not owned by userID.
	AddCheck(ctx context.Context, habitID int64, userID uuid.UUID, day time.Time, note *string) (*habit.CheckedRecord, error)

	// RemoveCheck deletes the day's record entirely, returning the record to
	// the "unset by absence" state. Idempotent.
	RemoveCheck(ctx context.Context, habitID int64, userID uuid.UUID, day time.Time) (bool, error)

	// DeleteAllForUser soft-deletes every habit the user owns and returns the
	// number of habits affected.
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ListRepository is the data-access contract for habit lists.
type ListRepository interface {
	GetByID(ctx context.Context, id int64) (*habit.List, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*habit.List, error)
	Create(ctx context.Context, userID uuid.UUID, input habit.NewList) (*habit.List, error)

	// Update applies the patch. Patching Deleted=true cascades the soft
	// delete to every habit referencing the list.
	Update(ctx context.Context, id int64, userID uuid.UUID, patch habit.ListPatch) (*habit.List, error)

	Delete(ctx context.Context, id int64, userID uuid.UUID) (bool, error)
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// UserRepository reads users. User creation and mutation belong to the
// external identity provider.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*habit.User, error)
	GetByEmail(ctx context.Context, email string) (*habit.User, error)
	Count(ctx context.Context) (int, error)
}

// UnitOfWork scopes the three repositories to a single transaction. All
// repository calls share that transaction: a failure in one invalidates the
// whole scope, and the caller must roll back rather than retry a single call.
//
// Close releases the underlying transaction, rolling back if neither Commit
// nor Rollback ran; it is safe to defer unconditionally and to call after
// Commit. A unit of work serves exactly one logical operation at a time.
type UnitOfWork interface {
	Habits() HabitRepository
	Lists() ListRepository
	Users() UserRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// Store opens units of work.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
