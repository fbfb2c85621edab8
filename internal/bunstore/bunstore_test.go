package bunstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/habitkit/go-habit-engine/habit"
	"github.com/habitkit/go-habit-engine/internal/bunstore"
	"github.com/habitkit/go-habit-engine/pkg/testsupport"
	"github.com/habitkit/go-habit-engine/store"
)

func begin(t *testing.T, st *bunstore.Store) store.UnitOfWork {
	t.Helper()
	uow, err := st.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	t.Cleanup(func() { uow.Close() })
	return uow
}

func TestHabitCRUD(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	ctx := context.Background()

	uow := begin(t, st)
	h, err := uow.Habits().Create(ctx, user.ID, habit.NewHabit{Name: "  read  ", WeeklyGoal: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if h.ID == 0 {
		t.Fatal("create did not assign an id")
	}
	if h.Name != "read" {
		t.Errorf("name = %q, want trimmed %q", h.Name, "read")
	}

	got, err := uow.Habits().GetByID(ctx, h.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Name != "read" || got.WeeklyGoal != 3 {
		t.Fatalf("get = %+v", got)
	}

	name := "read books"
	goal := 5
	updated, err := uow.Habits().Update(ctx, h.ID, user.ID, habit.HabitPatch{Name: &name, WeeklyGoal: &goal})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil || updated.Name != "read books" || updated.WeeklyGoal != 5 {
		t.Fatalf("update = %+v", updated)
	}

	ok, err := uow.Habits().Delete(ctx, h.ID, user.ID)
	if err != nil || !ok {
		t.Fatalf("delete = (%v, %v)", ok, err)
	}
	got, err = uow.Habits().GetByID(ctx, h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("deleted habit still visible: %+v", got)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestGetByIDAbsentReturnsNilNil(t *testing.T) {
	st := testsupport.NewStore(t)
	uow := begin(t, st)

	h, err := uow.Habits().GetByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("absent get returned error: %v", err)
	}
	if h != nil {
		t.Errorf("absent get = %+v, want nil", h)
	}
}

func TestUpdateOwnershipCollapse(t *testing.T) {
	st := testsupport.NewStore(t)
	owner := testsupport.SeedUser(t, st.DB(), "owner@example.com")
	other := testsupport.SeedUser(t, st.DB(), "other@example.com")
	h := testsupport.SeedHabit(t, st.DB(), owner.ID, "read", 3, time.Now())
	ctx := context.Background()

	uow := begin(t, st)
	name := "stolen"
	got, err := uow.Habits().Update(ctx, h.ID, other.ID, habit.HabitPatch{Name: &name})
	if err != nil {
		t.Fatalf("cross-user update errored: %v", err)
	}
	if got != nil {
		t.Errorf("cross-user update returned %+v, want nil (same as absent)", got)
	}

	ok, err := uow.Habits().Delete(ctx, h.ID, other.ID)
	if err != nil || ok {
		t.Errorf("cross-user delete = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestCreateRejectsForeignList(t *testing.T) {
	st := testsupport.NewStore(t)
	owner := testsupport.SeedUser(t, st.DB(), "owner@example.com")
	other := testsupport.SeedUser(t, st.DB(), "other@example.com")
	list := testsupport.SeedList(t, st.DB(), other.ID, "their list")
	ctx := context.Background()

	uow := begin(t, st)
	_, err := uow.Habits().Create(ctx, owner.ID, habit.NewHabit{Name: "read", ListID: &list.ID})
	if !habit.IsValidation(err) {
		t.Errorf("foreign-list create err = %v, want ValidationError", err)
	}
}

func TestListFilterAndOrdering(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	list := testsupport.SeedList(t, st.DB(), user.ID, "morning")
	ctx := context.Background()

	uow := begin(t, st)
	inList, err := uow.Habits().Create(ctx, user.ID, habit.NewHabit{Name: "stretch", ListID: &list.ID, DisplayOrder: 2})
	if err != nil {
		t.Fatal(err)
	}
	first, err := uow.Habits().Create(ctx, user.ID, habit.NewHabit{Name: "wake", ListID: &list.ID, DisplayOrder: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uow.Habits().Create(ctx, user.ID, habit.NewHabit{Name: "unlisted"}); err != nil {
		t.Fatal(err)
	}

	filtered, err := uow.Habits().ListByUser(ctx, user.ID, &list.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Fatalf("filtered len = %d, want 2", len(filtered))
	}
	if filtered[0].ID != first.ID || filtered[1].ID != inList.ID {
		t.Errorf("display order not respected: %d, %d", filtered[0].ID, filtered[1].ID)
	}

	all, err := uow.Habits().ListByUser(ctx, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered len = %d, want 3", len(all))
	}
}

func TestAddCheckUpsert(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	h := testsupport.SeedHabit(t, st.DB(), user.ID, "read", 3, time.Now())
	day := testsupport.Date(2024, time.January, 8)
	ctx := context.Background()

	uow := begin(t, st)
	rec, err := uow.Habits().AddCheck(ctx, h.ID, user.ID, day, nil)
	if err != nil {
		t.Fatalf("add check: %v", err)
	}
	if rec == nil || !rec.Done {
		t.Fatalf("add check = %+v", rec)
	}

	// Marking the same day again flips the existing record, never a second
	// row; the note updates only when provided.
	note := "twenty pages"
	again, err := uow.Habits().AddCheck(ctx, h.ID, user.ID, day, &note)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != rec.ID {
		t.Errorf("second AddCheck created a new record: %s vs %s", again.ID, rec.ID)
	}
	if again.Note != note {
		t.Errorf("note = %q, want %q", again.Note, note)
	}

	third, err := uow.Habits().AddCheck(ctx, h.ID, user.ID, day, nil)
	if err != nil {
		t.Fatal(err)
	}
	if third.Note != note {
		t.Errorf("nil note overwrote existing note: %q", third.Note)
	}

	records, err := uow.Habits().Checks(ctx, h.ID, day, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("records for the day = %d, want 1", len(records))
	}
}

func TestAddCheckUnownedReturnsNil(t *testing.T) {
	st := testsupport.NewStore(t)
	owner := testsupport.SeedUser(t, st.DB(), "owner@example.com")
	other := testsupport.SeedUser(t, st.DB(), "other@example.com")
	h := testsupport.SeedHabit(t, st.DB(), owner.ID, "read", 3, time.Now())
	ctx := context.Background()

	uow := begin(t, st)
	rec, err := uow.Habits().AddCheck(ctx, h.ID, other.ID, testsupport.Date(2024, time.January, 8), nil)
	if err != nil {
		t.Fatalf("cross-user add check errored: %v", err)
	}
	if rec != nil {
		t.Errorf("cross-user add check = %+v, want nil", rec)
	}
}

func TestRemoveCheckIdempotent(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	h := testsupport.SeedHabit(t, st.DB(), user.ID, "read", 3, time.Now())
	day := testsupport.Date(2024, time.January, 8)
	testsupport.SeedCheck(t, st.DB(), h.ID, day, true)
	ctx := context.Background()

	uow := begin(t, st)
	ok, err := uow.Habits().RemoveCheck(ctx, h.ID, user.ID, day)
	if err != nil || !ok {
		t.Fatalf("remove = (%v, %v)", ok, err)
	}
	ok, err = uow.Habits().RemoveCheck(ctx, h.ID, user.ID, day)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second remove reported a change")
	}
}

func TestBulkChecksEveryIDPresent(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	withRecords := testsupport.SeedHabit(t, st.DB(), user.ID, "read", 3, time.Now())
	empty := testsupport.SeedHabit(t, st.DB(), user.ID, "run", 2, time.Now())
	testsupport.SeedChecks(t, st.DB(), withRecords.ID,
		testsupport.Date(2024, time.January, 8),
		testsupport.Date(2024, time.January, 9))
	ctx := context.Background()

	uow := begin(t, st)
	out, err := uow.Habits().BulkChecks(ctx, []int64{withRecords.ID, empty.ID, withRecords.ID},
		testsupport.Date(2024, time.January, 1), testsupport.Date(2024, time.January, 31))
	if err != nil {
		t.Fatalf("bulk checks: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("result keys = %d, want 2 (deduped)", len(out))
	}
	if got := len(out[withRecords.ID]); got != 2 {
		t.Errorf("records = %d, want 2", got)
	}
	recs, present := out[empty.ID]
	if !present {
		t.Fatal("habit with no records missing from result")
	}
	if len(recs) != 0 {
		t.Errorf("empty habit records = %d, want 0", len(recs))
	}
}

func TestBulkChecksRangeBounds(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	h := testsupport.SeedHabit(t, st.DB(), user.ID, "read", 3, time.Now())
	testsupport.SeedChecks(t, st.DB(), h.ID,
		testsupport.Date(2024, time.January, 1),  // on start bound
		testsupport.Date(2024, time.January, 15), // inside
		testsupport.Date(2024, time.January, 31), // on end bound
		testsupport.Date(2024, time.February, 1)) // outside
	ctx := context.Background()

	uow := begin(t, st)
	out, err := uow.Habits().BulkChecks(ctx, []int64{h.ID},
		testsupport.Date(2024, time.January, 1), testsupport.Date(2024, time.January, 31))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(out[h.ID]); got != 3 {
		t.Errorf("records in range = %d, want 3 (inclusive bounds)", got)
	}
}

func TestListWithRecentChecksWindow(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	h := testsupport.SeedHabit(t, st.DB(), user.ID, "read", 3, time.Now())
	today := habit.DateOf(time.Now())
	testsupport.SeedChecks(t, st.DB(), h.ID,
		testsupport.DaysAgo(today, 1),
		testsupport.DaysAgo(today, 5),
		testsupport.DaysAgo(today, 40)) // outside a 30-day window
	ctx := context.Background()

	uow := begin(t, st)
	habits, err := uow.Habits().ListWithRecentChecks(ctx, user.ID, 30, nil)
	if err != nil {
		t.Fatalf("list with recent checks: %v", err)
	}
	if len(habits) != 1 {
		t.Fatalf("habits = %d, want 1", len(habits))
	}
	if got := len(habits[0].CheckedRecords); got != 2 {
		t.Errorf("preloaded records = %d, want 2 inside the window", got)
	}
}

func TestListDeleteCascadesToHabits(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	list := testsupport.SeedList(t, st.DB(), user.ID, "morning")
	ctx := context.Background()

	uow := begin(t, st)
	inList, err := uow.Habits().Create(ctx, user.ID, habit.NewHabit{Name: "stretch", ListID: &list.ID})
	if err != nil {
		t.Fatal(err)
	}
	outside, err := uow.Habits().Create(ctx, user.ID, habit.NewHabit{Name: "read"})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := uow.Lists().Delete(ctx, list.ID, user.ID)
	if err != nil || !ok {
		t.Fatalf("list delete = (%v, %v)", ok, err)
	}

	got, err := uow.Habits().GetByID(ctx, inList.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("habit in deleted list still visible: %+v", got)
	}
	kept, err := uow.Habits().GetByID(ctx, outside.ID)
	if err != nil {
		t.Fatal(err)
	}
	if kept == nil {
		t.Error("habit outside the list was cascaded")
	}
}

func TestDeleteAllForUser(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	other := testsupport.SeedUser(t, st.DB(), "b@example.com")
	testsupport.SeedHabit(t, st.DB(), user.ID, "read", 3, time.Now())
	testsupport.SeedHabit(t, st.DB(), user.ID, "run", 2, time.Now())
	keep := testsupport.SeedHabit(t, st.DB(), other.ID, "swim", 1, time.Now())
	ctx := context.Background()

	uow := begin(t, st)
	n, err := uow.Habits().DeleteAllForUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	remaining, err := uow.Habits().ListByUser(ctx, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("user still has %d habits", len(remaining))
	}
	kept, err := uow.Habits().GetByID(ctx, keep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if kept == nil {
		t.Error("other user's habit was deleted")
	}
}

func TestUnitOfWorkRollback(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	ctx := context.Background()

	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uow.Habits().Create(ctx, user.ID, habit.NewHabit{Name: "doomed"}); err != nil {
		t.Fatal(err)
	}
	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := uow.Close(); err != nil {
		t.Fatalf("close after rollback: %v", err)
	}

	check := begin(t, st)
	habits, err := check.Habits().ListByUser(ctx, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 0 {
		t.Errorf("rolled-back habit persisted: %d", len(habits))
	}
}

func TestCloseWithoutCommitRollsBack(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	ctx := context.Background()

	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uow.Habits().Create(ctx, user.ID, habit.NewHabit{Name: "doomed"}); err != nil {
		t.Fatal(err)
	}
	if err := uow.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	check := begin(t, st)
	habits, err := check.Habits().ListByUser(ctx, user.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 0 {
		t.Errorf("uncommitted habit persisted: %d", len(habits))
	}
}

func TestUserRepository(t *testing.T) {
	st := testsupport.NewStore(t)
	user := testsupport.SeedUser(t, st.DB(), "a@example.com")
	testsupport.SeedUser(t, st.DB(), "b@example.com")
	ctx := context.Background()

	uow := begin(t, st)
	got, err := uow.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Email != "a@example.com" {
		t.Fatalf("GetByID = %+v", got)
	}

	byEmail, err := uow.Users().GetByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Fatalf("GetByEmail = %+v", byEmail)
	}

	missing, err := uow.Users().GetByID(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("absent user = (%+v, %v), want (nil, nil)", missing, err)
	}

	n, err := uow.Users().Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("count = (%d, %v), want 2", n, err)
	}
}
