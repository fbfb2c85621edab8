package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/habitkit/go-habit-engine/cache"
	"github.com/habitkit/go-habit-engine/habit"
	"github.com/habitkit/go-habit-engine/pkg/testsupport"
	"github.com/habitkit/go-habit-engine/service"
	"github.com/habitkit/go-habit-engine/uowcache"
)

func habitService(t *testing.T) (*service.HabitService, *bun.DB) {
	t.Helper()
	base := testsupport.NewStore(t)
	st := uowcache.NewStore(base, cache.NewKeySerializer(),
		uowcache.WithLogger(testsupport.QuietLogger()))
	return service.NewHabitService(st,
		service.WithHabitLogger(testsupport.QuietLogger())), base.DB()
}

func TestCreateHabitValidation(t *testing.T) {
	svc, _ := habitService(t)
	user := uuid.New()
	ctx := context.Background()

	tests := []struct {
		name  string
		input habit.NewHabit
	}{
		{"empty name", habit.NewHabit{Name: "", WeeklyGoal: 3}},
		{"goal above cap", habit.NewHabit{Name: "read", WeeklyGoal: 8}},
		{"negative goal", habit.NewHabit{Name: "read", WeeklyGoal: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateHabit(ctx, user, tt.input)
			if !habit.IsValidation(err) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateAndGetHabit(t *testing.T) {
	svc, db := habitService(t)
	user := testsupport.SeedUser(t, db, "a@example.com")
	ctx := context.Background()

	created, err := svc.CreateHabit(ctx, user.ID, habit.NewHabit{Name: "read", WeeklyGoal: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.GetHabit(ctx, user.ID, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "read" {
		t.Fatalf("get = %+v", got)
	}
}

func TestGetHabitOwnershipCollapse(t *testing.T) {
	svc, db := habitService(t)
	owner := testsupport.SeedUser(t, db, "owner@example.com")
	other := testsupport.SeedUser(t, db, "other@example.com")
	h := testsupport.SeedHabit(t, db, owner.ID, "read", 3, time.Now())
	ctx := context.Background()

	got, err := svc.GetHabit(ctx, other.ID, h.ID)
	if err != nil {
		t.Fatalf("cross-user get errored: %v", err)
	}
	if got != nil {
		t.Errorf("cross-user get = %+v, want nil (indistinguishable from absent)", got)
	}
}

func TestUpdateHabitEmptyPatch(t *testing.T) {
	svc, db := habitService(t)
	user := testsupport.SeedUser(t, db, "a@example.com")
	h := testsupport.SeedHabit(t, db, user.ID, "read", 3, time.Now())

	_, err := svc.UpdateHabit(context.Background(), user.ID, h.ID, habit.HabitPatch{})
	if !habit.IsValidation(err) {
		t.Errorf("empty patch err = %v, want ValidationError", err)
	}
}

func TestUpdateHabitListAssignment(t *testing.T) {
	svc, db := habitService(t)
	user := testsupport.SeedUser(t, db, "a@example.com")
	list := testsupport.SeedList(t, db, user.ID, "morning")
	h := testsupport.SeedHabit(t, db, user.ID, "read", 3, time.Now())
	ctx := context.Background()

	moved, err := svc.UpdateHabit(ctx, user.ID, h.ID, habit.HabitPatch{ListID: habit.AssignList(list.ID)})
	if err != nil {
		t.Fatalf("assign list: %v", err)
	}
	if moved.ListID == nil || *moved.ListID != list.ID {
		t.Fatalf("ListID = %v, want %d", moved.ListID, list.ID)
	}

	cleared, err := svc.UpdateHabit(ctx, user.ID, h.ID, habit.HabitPatch{ListID: habit.ClearList()})
	if err != nil {
		t.Fatalf("clear list: %v", err)
	}
	if cleared.ListID != nil {
		t.Errorf("ListID = %v after clear, want nil", cleared.ListID)
	}
}

func TestToggleCheck(t *testing.T) {
	svc, db := habitService(t)
	user := testsupport.SeedUser(t, db, "a@example.com")
	h := testsupport.SeedHabit(t, db, user.ID, "read", 3, time.Now())
	day := habit.DateOf(time.Now())
	ctx := context.Background()

	ok, err := svc.ToggleCheck(ctx, user.ID, h.ID, day, true, nil)
	if err != nil || !ok {
		t.Fatalf("toggle on = (%v, %v)", ok, err)
	}

	records, err := svc.HabitChecks(ctx, user.ID, h.ID, day, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || !records[0].Done {
		t.Fatalf("records = %+v", records)
	}

	ok, err = svc.ToggleCheck(ctx, user.ID, h.ID, day, false, nil)
	if err != nil || !ok {
		t.Fatalf("toggle off = (%v, %v)", ok, err)
	}
	records, err = svc.HabitChecks(ctx, user.ID, h.ID, day, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("records after untoggle = %d, want 0", len(records))
	}
}

func TestToggleCheckUnowned(t *testing.T) {
	svc, db := habitService(t)
	owner := testsupport.SeedUser(t, db, "owner@example.com")
	other := testsupport.SeedUser(t, db, "other@example.com")
	h := testsupport.SeedHabit(t, db, owner.ID, "read", 3, time.Now())

	ok, err := svc.ToggleCheck(context.Background(), other.ID, h.ID, time.Now(), true, nil)
	if err != nil {
		t.Fatalf("cross-user toggle errored: %v", err)
	}
	if ok {
		t.Error("cross-user toggle reported applied")
	}
}

func TestHabitStreakStats(t *testing.T) {
	svc, db := habitService(t)
	user := testsupport.SeedUser(t, db, "a@example.com")
	today := habit.DateOf(time.Now())
	h := testsupport.SeedHabit(t, db, user.ID, "read", 2, testsupport.DaysAgo(today, 30))
	testsupport.SeedChecks(t, db, h.ID,
		today,
		testsupport.DaysAgo(today, 1),
		testsupport.DaysAgo(today, 2))
	ctx := context.Background()

	stats, err := svc.HabitStreakStats(ctx, user.ID, h.ID, today)
	if err != nil {
		t.Fatalf("streak stats: %v", err)
	}
	if stats == nil {
		t.Fatal("stats = nil for owned habit")
	}
	if stats.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3", stats.CurrentStreak)
	}
	if stats.TotalCompletions != 3 {
		t.Errorf("TotalCompletions = %d, want 3", stats.TotalCompletions)
	}

	missing, err := svc.HabitStreakStats(ctx, user.ID, 9999, today)
	if err != nil || missing != nil {
		t.Errorf("absent stats = (%+v, %v), want (nil, nil)", missing, err)
	}
}

type recordingInvalidator struct {
	habitIDs []int64
}

func (r *recordingInvalidator) InvalidateHabit(ctx context.Context, habitID int64) error {
	r.habitIDs = append(r.habitIDs, habitID)
	return nil
}

func TestWritesInvalidateCalculations(t *testing.T) {
	base := testsupport.NewStore(t)
	st := uowcache.NewStore(base, cache.NewKeySerializer(),
		uowcache.WithLogger(testsupport.QuietLogger()))
	inv := &recordingInvalidator{}
	svc := service.NewHabitService(st,
		service.WithHabitLogger(testsupport.QuietLogger()),
		service.WithCalcInvalidator(inv))

	user := testsupport.SeedUser(t, base.DB(), "a@example.com")
	h := testsupport.SeedHabit(t, base.DB(), user.ID, "read", 3, time.Now())
	ctx := context.Background()

	if _, err := svc.ToggleCheck(ctx, user.ID, h.ID, time.Now(), true, nil); err != nil {
		t.Fatal(err)
	}
	goal := 2
	if _, err := svc.UpdateHabit(ctx, user.ID, h.ID, habit.HabitPatch{WeeklyGoal: &goal}); err != nil {
		t.Fatal(err)
	}
	if len(inv.habitIDs) != 2 || inv.habitIDs[0] != h.ID || inv.habitIDs[1] != h.ID {
		t.Errorf("invalidated habit ids = %v, want [%d %d]", inv.habitIDs, h.ID, h.ID)
	}

	// An unowned toggle applies nothing, so nothing is invalidated.
	other := testsupport.SeedUser(t, base.DB(), "b@example.com")
	if _, err := svc.ToggleCheck(ctx, other.ID, h.ID, time.Now(), true, nil); err != nil {
		t.Fatal(err)
	}
	if len(inv.habitIDs) != 2 {
		t.Errorf("unowned toggle invalidated: %v", inv.habitIDs)
	}
}

func TestDeleteHabit(t *testing.T) {
	svc, db := habitService(t)
	user := testsupport.SeedUser(t, db, "a@example.com")
	h := testsupport.SeedHabit(t, db, user.ID, "read", 3, time.Now())
	ctx := context.Background()

	ok, err := svc.DeleteHabit(ctx, user.ID, h.ID)
	if err != nil || !ok {
		t.Fatalf("delete = (%v, %v)", ok, err)
	}
	got, err := svc.GetHabit(ctx, user.ID, h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("deleted habit still visible: %+v", got)
	}
}

func TestDeleteAllUserHabits(t *testing.T) {
	svc, db := habitService(t)
	user := testsupport.SeedUser(t, db, "a@example.com")
	testsupport.SeedHabit(t, db, user.ID, "read", 3, time.Now())
	testsupport.SeedHabit(t, db, user.ID, "run", 2, time.Now())
	ctx := context.Background()

	n, err := svc.DeleteAllUserHabits(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	habits, err := svc.UserHabits(ctx, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 0 {
		t.Errorf("remaining habits = %d, want 0", len(habits))
	}
}
