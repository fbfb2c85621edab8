// Package bunstore implements the store contracts on top of uptrace/bun.
// It supports sqlite (the default and the test backend) and postgres; the
// dialect is fixed by which opener built the *bun.DB.
package bunstore

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/habitkit/go-habit-engine/store"
)

// OpenSQLite opens a sqlite-backed bun database. Use ":memory:" for an
// in-process throwaway store.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// The in-memory database vanishes when its last connection closes.
	sqldb.SetMaxIdleConns(1)
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// OpenPostgres opens a postgres-backed bun database via lib/pq.
func OpenPostgres(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Store opens units of work bound to one database.
type Store struct {
	db  *bun.DB
	log *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes the repository debug lines somewhere other than the
// default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New wraps an opened bun database.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{db: db, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying database for schema management and tests.
func (s *Store) DB() *bun.DB { return s.db }

// Begin opens one transaction and binds the three repositories to it.
func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{
		tx:     tx,
		log:    s.log,
		habits: &habitRepository{db: tx, log: s.log},
		lists:  &listRepository{db: tx, log: s.log},
		users:  &userRepository{db: tx},
	}, nil
}

// unitOfWork owns one bun transaction. It is not safe for concurrent use;
// one logical operation drives it at a time.
type unitOfWork struct {
	tx     bun.Tx
	log    *slog.Logger
	habits *habitRepository
	lists  *listRepository
	users  *userRepository
	done   bool
}

func (u *unitOfWork) Habits() store.HabitRepository { return u.habits }
func (u *unitOfWork) Lists() store.ListRepository   { return u.lists }
func (u *unitOfWork) Users() store.UserRepository   { return u.users }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	if err := u.tx.Commit(); err != nil {
		return err
	}
	u.done = true
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	if err := u.tx.Rollback(); err != nil {
		return err
	}
	u.done = true
	return nil
}

// Close releases the transaction on every exit path. If the unit of work was
// neither committed nor rolled back, the transaction is rolled back.
func (u *unitOfWork) Close() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback()
}
