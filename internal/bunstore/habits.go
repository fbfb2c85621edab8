package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/habitkit/go-habit-engine/habit"
)

type habitRepository struct {
	db  bun.IDB
	log *slog.Logger
}

func (r *habitRepository) GetByID(ctx context.Context, id int64) (*habit.Habit, error) {
	h := new(habit.Habit)
	err := r.db.NewSelect().Model(h).
		Where("h.id = ?", id).
		Where("h.deleted = ?", false).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bunstore: get habit %d: %w", id, err)
	}
	return h, nil
}

func (r *habitRepository) ListByUser(ctx context.Context, userID uuid.UUID, listID *int64) ([]*habit.Habit, error) {
	var habits []*habit.Habit
	err := r.userHabitsQuery(&habits, userID, listID).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bunstore: list habits for user %s: %w", userID, err)
	}
	return habits, nil
}

func (r *habitRepository) ListWithRecentChecks(ctx context.Context, userID uuid.UUID, days int, listID *int64) ([]*habit.Habit, error) {
	today := habit.DateOf(time.Now())
	start := today.AddDate(0, 0, -days)

	var habits []*habit.Habit
	q := r.userHabitsQuery(&habits, userID, listID).
		Relation("CheckedRecords", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("cr.day >= ?", start).
				Where("cr.day <= ?", today).
				Order("day ASC")
		})
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bunstore: list habits with checks for user %s: %w", userID, err)
	}
	r.log.Debug("loaded habits with recent checks",
		"user_id", userID, "habits", len(habits), "window_days", days)
	return habits, nil
}

func (r *habitRepository) userHabitsQuery(dest *[]*habit.Habit, userID uuid.UUID, listID *int64) *bun.SelectQuery {
	q := r.db.NewSelect().Model(dest).
		Where("h.user_id = ?", userID).
		Where("h.deleted = ?", false)
	if listID != nil {
		q = q.Join("JOIN lists AS l ON l.id = h.list_id").
			Where("h.list_id = ?", *listID).
			Where("l.deleted = ?", false)
	}
	return q.OrderExpr("h.display_order ASC, h.id ASC")
}

func (r *habitRepository) BulkChecks(ctx context.Context, habitIDs []int64, start, end time.Time) (map[int64][]*habit.CheckedRecord, error) {
	// Every requested id appears in the result so callers never special-case
	// a habit with zero records.
	out := make(map[int64][]*habit.CheckedRecord, len(habitIDs))
	for _, id := range habitIDs {
		out[id] = []*habit.CheckedRecord{}
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(out))
	for id := range out {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var records []*habit.CheckedRecord
	err := r.db.NewSelect().Model(&records).
		Where("cr.habit_id IN (?)", bun.In(ids)).
		Where("cr.day >= ?", habit.DateOf(start)).
		Where("cr.day <= ?", habit.DateOf(end)).
		OrderExpr("cr.habit_id ASC, cr.day ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bunstore: bulk checks for %d habits: %w", len(ids), err)
	}
	for _, rec := range records {
		out[rec.HabitID] = append(out[rec.HabitID], rec)
	}
	r.log.Debug("bulk loaded checks", "habits", len(ids), "records", len(records))
	return out, nil
}

func (r *habitRepository) Create(ctx context.Context, userID uuid.UUID, input habit.NewHabit) (*habit.Habit, error) {
	if input.ListID != nil {
		owned, err := listOwnedBy(ctx, r.db, *input.ListID, userID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, habit.NewValidationError("create habit",
				fmt.Sprintf("list %d not found", *input.ListID))
		}
	}

	now := time.Now().UTC()
	h := &habit.Habit{
		Name:         strings.TrimSpace(input.Name),
		WeeklyGoal:   input.WeeklyGoal,
		DisplayOrder: input.DisplayOrder,
		ListID:       input.ListID,
		UserID:       userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.db.NewInsert().Model(h).Exec(ctx); err != nil {
		return nil, fmt.Errorf("bunstore: create habit: %w", err)
	}
	r.log.Info("created habit", "habit_id", h.ID, "user_id", userID)
	return h, nil
}

func (r *habitRepository) Update(ctx context.Context, id int64, userID uuid.UUID, patch habit.HabitPatch) (*habit.Habit, error) {
	h := new(habit.Habit)
	err := r.db.NewSelect().Model(h).
		Where("h.id = ?", id).
		Where("h.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bunstore: select habit %d for update: %w", id, err)
	}

	if patch.ListID != nil && patch.ListID.Valid {
		owned, err := listOwnedBy(ctx, r.db, patch.ListID.Int64, userID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, habit.NewValidationError("update habit",
				fmt.Sprintf("list %d not found", patch.ListID.Int64))
		}
	}

	applyHabitPatch(h, patch)
	h.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NewUpdate().Model(h).WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("bunstore: update habit %d: %w", id, err)
	}
	r.log.Info("updated habit", "habit_id", id, "user_id", userID)
	return h, nil
}

func applyHabitPatch(h *habit.Habit, patch habit.HabitPatch) {
	if patch.Name != nil {
		h.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.DisplayOrder != nil {
		h.DisplayOrder = *patch.DisplayOrder
	}
	if patch.WeeklyGoal != nil {
		h.WeeklyGoal = *patch.WeeklyGoal
	}
	if patch.Deleted != nil {
		h.Deleted = *patch.Deleted
	}
	if patch.Starred != nil {
		h.Starred = *patch.Starred
	}
	if patch.Note != nil {
		h.Note = *patch.Note
	}
	if patch.URL != nil {
		h.URL = *patch.URL
	}
	if patch.ListID != nil {
		if patch.ListID.Valid {
			id := patch.ListID.Int64
			h.ListID = &id
		} else {
			h.ListID = nil
		}
	}
}

func (r *habitRepository) Delete(ctx context.Context, id int64, userID uuid.UUID) (bool, error) {
	deleted := true
	h, err := r.Update(ctx, id, userID, habit.HabitPatch{Deleted: &deleted})
	if err != nil {
		return false, err
	}
	return h != nil, nil
}

func (r *habitRepository) Checks(ctx context.Context, habitID int64, start, end time.Time) ([]*habit.CheckedRecord, error) {
	var records []*habit.CheckedRecord
	err := r.db.NewSelect().Model(&records).
		Where("cr.habit_id = ?", habitID).
		Where("cr.day >= ?", habit.DateOf(start)).
		Where("cr.day <= ?", habit.DateOf(end)).
		Order("day ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bunstore: checks for habit %d: %w", habitID, err)
	}
	return records, nil
}

func (r *habitRepository) AddCheck(ctx context.Context, habitID int64, userID uuid.UUID, day time.Time, note *string) (*habit.CheckedRecord, error) {
	owned, err := r.habitOwnedBy(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, nil
	}

	day = habit.DateOf(day)
	now := time.Now().UTC()

	rec := new(habit.CheckedRecord)
	err = r.db.NewSelect().Model(rec).
		Where("cr.habit_id = ?", habitID).
		Where("cr.day = ?", day).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec = &habit.CheckedRecord{
			ID:        uuid.NewString(),
			HabitID:   habitID,
			Day:       day,
			Done:      true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if note != nil {
			rec.Note = *note
		}
		if _, err := r.db.NewInsert().Model(rec).Exec(ctx); err != nil {
			return nil, fmt.Errorf("bunstore: add check habit %d day %s: %w", habitID, habit.DayKey(day), err)
		}
	case err != nil:
		return nil, fmt.Errorf("bunstore: select check habit %d day %s: %w", habitID, habit.DayKey(day), err)
	default:
		rec.Done = true
		if note != nil {
			rec.Note = *note
		}
		rec.UpdatedAt = now
		if _, err := r.db.NewUpdate().Model(rec).WherePK().Exec(ctx); err != nil {
			return nil, fmt.Errorf("bunstore: update check habit %d day %s: %w", habitID, habit.DayKey(day), err)
		}
	}
	r.log.Info("added check", "habit_id", habitID, "day", habit.DayKey(day))
	return rec, nil
}

func (r *habitRepository) RemoveCheck(ctx context.Context, habitID int64, userID uuid.UUID, day time.Time) (bool, error) {
	owned, err := r.habitOwnedBy(ctx, habitID, userID)
	if err != nil {
		return false, err
	}
	if !owned {
		return false, nil
	}

	day = habit.DateOf(day)
	res, err := r.db.NewDelete().Model((*habit.CheckedRecord)(nil)).
		Where("habit_id = ?", habitID).
		Where("day = ?", day).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("bunstore: remove check habit %d day %s: %w", habitID, habit.DayKey(day), err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.log.Info("removed check", "habit_id", habitID, "day", habit.DayKey(day))
	}
	return n > 0, nil
}

func (r *habitRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.NewUpdate().Model((*habit.Habit)(nil)).
		Set("deleted = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("deleted = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("bunstore: delete habits for user %s: %w", userID, err)
	}
	n, _ := res.RowsAffected()
	r.log.Info("soft-deleted user habits", "user_id", userID, "count", n)
	return n, nil
}

func (r *habitRepository) habitOwnedBy(ctx context.Context, habitID int64, userID uuid.UUID) (bool, error) {
	exists, err := r.db.NewSelect().Model((*habit.Habit)(nil)).
		Where("h.id = ?", habitID).
		Where("h.user_id = ?", userID).
		Where("h.deleted = ?", false).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("bunstore: ownership check habit %d: %w", habitID, err)
	}
	return exists, nil
}

func listOwnedBy(ctx context.Context, db bun.IDB, listID int64, userID uuid.UUID) (bool, error) {
	exists, err := db.NewSelect().Model((*habit.List)(nil)).
		Where("l.id = ?", listID).
		Where("l.user_id = ?", userID).
		Where("l.deleted = ?", false).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("bunstore: ownership check list %d: %w", listID, err)
	}
	return exists, nil
}
