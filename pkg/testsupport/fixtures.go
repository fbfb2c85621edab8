// Package testsupport provides sqlite-backed fixtures and seeding helpers
// for package tests. Every helper takes *testing.T and fails the test on
// error, keeping call sites to one line.
package testsupport

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/habitkit/go-habit-engine/habit"
	"github.com/habitkit/go-habit-engine/internal/bunstore"
)

// NewDB opens an in-memory sqlite database with the schema created and
// registers cleanup. Each call is a fully isolated database.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bunstore.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := bunstore.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

// NewStore builds a plain bun-backed store over a fresh in-memory database.
func NewStore(t *testing.T) *bunstore.Store {
	t.Helper()
	return bunstore.New(NewDB(t), bunstore.WithLogger(QuietLogger()))
}

// QuietLogger discards log output so test runs stay readable.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SeedUser inserts a user with a fresh id and returns it.
func SeedUser(t *testing.T, db *bun.DB, email string) *habit.User {
	t.Helper()

	now := time.Now().UTC()
	u := &habit.User{
		ID:        uuid.New(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := db.NewInsert().Model(u).Exec(context.Background()); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

// SeedList inserts a list owned by the user and returns it.
func SeedList(t *testing.T, db *bun.DB, userID uuid.UUID, name string) *habit.List {
	t.Helper()

	now := time.Now().UTC()
	l := &habit.List{
		Name:               name,
		EnableLetterFilter: true,
		UserID:             userID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := db.NewInsert().Model(l).Exec(context.Background()); err != nil {
		t.Fatalf("seed list %s: %v", name, err)
	}
	return l
}

// SeedHabit inserts a habit owned by the user and returns it. createdAt
// matters for streak calculations, so it is explicit.
func SeedHabit(t *testing.T, db *bun.DB, userID uuid.UUID, name string, weeklyGoal int, createdAt time.Time) *habit.Habit {
	t.Helper()

	h := &habit.Habit{
		Name:       name,
		WeeklyGoal: weeklyGoal,
		UserID:     userID,
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  createdAt.UTC(),
	}
	if _, err := db.NewInsert().Model(h).Exec(context.Background()); err != nil {
		t.Fatalf("seed habit %s: %v", name, err)
	}
	return h
}

// SeedCheck inserts a completion record for the habit on the given day.
func SeedCheck(t *testing.T, db *bun.DB, habitID int64, day time.Time, done bool) *habit.CheckedRecord {
	t.Helper()

	now := time.Now().UTC()
	rec := &habit.CheckedRecord{
		ID:        uuid.NewString(),
		HabitID:   habitID,
		Day:       habit.DateOf(day),
		Done:      done,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := db.NewInsert().Model(rec).Exec(context.Background()); err != nil {
		t.Fatalf("seed check habit %d day %s: %v", habitID, habit.DayKey(day), err)
	}
	return rec
}

// SeedChecks marks each day done for the habit.
func SeedChecks(t *testing.T, db *bun.DB, habitID int64, days ...time.Time) {
	t.Helper()
	for _, day := range days {
		SeedCheck(t, db, habitID, day, true)
	}
}

// Date is shorthand for a UTC calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return habit.Date(year, month, day)
}

// DaysAgo returns the calendar day n days before from.
func DaysAgo(from time.Time, n int) time.Time {
	return habit.DateOf(from).AddDate(0, 0, -n)
}
