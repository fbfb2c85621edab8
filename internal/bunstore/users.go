package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/habitkit/go-habit-engine/habit"
)

type userRepository struct {
	db bun.IDB
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*habit.User, error) {
	u := new(habit.User)
	err := r.db.NewSelect().Model(u).
		Where("u.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bunstore: get user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*habit.User, error) {
	u := new(habit.User)
	err := r.db.NewSelect().Model(u).
		Where("u.email = ?", email).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bunstore: get user by email: %w", err)
	}
	return u, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().Model((*habit.User)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bunstore: count users: %w", err)
	}
	return n, nil
}
