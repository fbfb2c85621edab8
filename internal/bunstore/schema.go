package bunstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/habitkit/go-habit-engine/habit"
)

// CreateSchema creates every table and index the engine needs. It is
// idempotent and intended for tests and first-run setup; production
// deployments own their migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*habit.User)(nil),
		(*habit.List)(nil),
		(*habit.Habit)(nil),
		(*habit.CheckedRecord)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("bunstore: create table for %T: %w", m, err)
		}
	}

	indexes := []*bun.CreateIndexQuery{
		// One record per habit per day; AddCheck relies on this to upsert.
		db.NewCreateIndex().Model((*habit.CheckedRecord)(nil)).
			Index("ix_checked_records_habit_day").Unique().
			Column("habit_id", "day"),
		db.NewCreateIndex().Model((*habit.CheckedRecord)(nil)).
			Index("ix_checked_records_day").
			Column("day"),
		db.NewCreateIndex().Model((*habit.Habit)(nil)).
			Index("ix_habits_user_deleted").
			Column("user_id", "deleted"),
		db.NewCreateIndex().Model((*habit.Habit)(nil)).
			Index("ix_habits_list").
			Column("list_id"),
		db.NewCreateIndex().Model((*habit.List)(nil)).
			Index("ix_lists_user_deleted").
			Column("user_id", "deleted"),
	}
	for _, q := range indexes {
		if _, err := q.IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("bunstore: create index: %w", err)
		}
	}
	return nil
}
