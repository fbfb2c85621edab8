package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/habitkit/go-habit-engine/habit"
)

type listRepository struct {
	db  bun.IDB
	log *slog.Logger
}

func (r *listRepository) GetByID(ctx context.Context, id int64) (*habit.List, error) {
	l := new(habit.List)
	err := r.db.NewSelect().Model(l).
		Where("l.id = ?", id).
		Where("l.deleted = ?", false).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bunstore: get list %d: %w", id, err)
	}
	return l, nil
}

func (r *listRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*habit.List, error) {
	var lists []*habit.List
	err := r.db.NewSelect().Model(&lists).
		Where("l.user_id = ?", userID).
		Where("l.deleted = ?", false).
		OrderExpr("l.display_order ASC, l.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bunstore: lists for user %s: %w", userID, err)
	}
	return lists, nil
}

func (r *listRepository) Create(ctx context.Context, userID uuid.UUID, input habit.NewList) (*habit.List, error) {
	now := time.Now().UTC()
	l := &habit.List{
		Name:               strings.TrimSpace(input.Name),
		DisplayOrder:       input.DisplayOrder,
		EnableLetterFilter: true,
		UserID:             userID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := r.db.NewInsert().Model(l).Exec(ctx); err != nil {
		return nil, fmt.Errorf("bunstore: create list: %w", err)
	}
	r.log.Info("created list", "list_id", l.ID, "user_id", userID)
	return l, nil
}

func (r *listRepository) Update(ctx context.Context, id int64, userID uuid.UUID, patch habit.ListPatch) (*habit.List, error) {
	l := new(habit.List)
	err := r.db.NewSelect().Model(l).
		Where("l.id = ?", id).
		Where("l.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bunstore: select list %d for update: %w", id, err)
	}

	if patch.Name != nil {
		l.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.DisplayOrder != nil {
		l.DisplayOrder = *patch.DisplayOrder
	}
	if patch.EnableLetterFilter != nil {
		l.EnableLetterFilter = *patch.EnableLetterFilter
	}
	cascade := patch.Deleted != nil && *patch.Deleted && !l.Deleted
	if patch.Deleted != nil {
		l.Deleted = *patch.Deleted
	}
	l.UpdatedAt = time.Now().UTC()

	if _, err := r.db.NewUpdate().Model(l).WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("bunstore: update list %d: %w", id, err)
	}

	if cascade {
		// Deleting a list soft-deletes every habit referencing it.
		res, err := r.db.NewUpdate().Model((*habit.Habit)(nil)).
			Set("deleted = ?", true).
			Set("updated_at = ?", l.UpdatedAt).
			Where("list_id = ?", id).
			Where("user_id = ?", userID).
			Where("deleted = ?", false).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("bunstore: cascade delete list %d habits: %w", id, err)
		}
		n, _ := res.RowsAffected()
		r.log.Info("cascaded list delete to habits", "list_id", id, "habits", n)
	}

	r.log.Info("updated list", "list_id", id, "user_id", userID)
	return l, nil
}

func (r *listRepository) Delete(ctx context.Context, id int64, userID uuid.UUID) (bool, error) {
	deleted := true
	l, err := r.Update(ctx, id, userID, habit.ListPatch{Deleted: &deleted})
	if err != nil {
		return false, err
	}
	return l != nil, nil
}

func (r *listRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.NewUpdate().Model((*habit.List)(nil)).
		Set("deleted = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("deleted = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("bunstore: delete lists for user %s: %w", userID, err)
	}
	n, _ := res.RowsAffected()
	r.log.Info("soft-deleted user lists", "user_id", userID, "count", n)
	return n, nil
}
