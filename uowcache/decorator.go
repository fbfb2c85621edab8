package uowcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/habitkit/go-habit-engine/cache"
	"github.com/habitkit/go-habit-engine/habit"
	"github.com/habitkit/go-habit-engine/store"
)

var _ store.UnitOfWork = (*UnitOfWork)(nil)
var _ store.Store = (*Store)(nil)

// Store wraps a base store so every unit of work it opens carries the
// transaction-scoped cache.
type Store struct {
	base store.Store
	keys cache.KeySerializer
	log  *slog.Logger
}

// Option configures the wrapping Store.
type Option func(*Store)

// WithLogger routes cache debug lines somewhere other than the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore builds the caching store decorator.
func NewStore(base store.Store, keys cache.KeySerializer, opts ...Option) *Store {
	s := &Store{base: base, keys: keys, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin opens a base unit of work and wraps it.
func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	base, err := s.base.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return Wrap(base, s.keys, s.log), nil
}

// UnitOfWork decorates a base unit of work with the transaction-scoped cache.
// All three repositories share one cache, so a habit write can invalidate a
// list-level read that preloaded that habit.
type UnitOfWork struct {
	base store.UnitOfWork
	keys cache.KeySerializer
	tx   *txCache
	log  *slog.Logger

	habits *cachedHabitRepository
	lists  *cachedListRepository
	users  *cachedUserRepository
}

// Wrap decorates base. The logger may be nil.
func Wrap(base store.UnitOfWork, keys cache.KeySerializer, log *slog.Logger) *UnitOfWork {
	if log == nil {
		log = slog.Default()
	}
	u := &UnitOfWork{
		base: base,
		keys: keys,
		tx:   newTxCache(),
		log:  log,
	}
	u.habits = &cachedHabitRepository{u: u, base: base.Habits()}
	u.lists = &cachedListRepository{u: u, base: base.Lists()}
	u.users = &cachedUserRepository{u: u, base: base.Users()}
	return u
}

func (u *UnitOfWork) Habits() store.HabitRepository { return u.habits }
func (u *UnitOfWork) Lists() store.ListRepository   { return u.lists }
func (u *UnitOfWork) Users() store.UserRepository   { return u.users }

// Commit commits the base transaction and drops the cache.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	err := u.base.Commit(ctx)
	u.tx.clear()
	return err
}

// Rollback rolls back the base transaction and drops the cache.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	err := u.base.Rollback(ctx)
	u.tx.clear()
	return err
}

// Close releases the base transaction and drops the cache.
func (u *UnitOfWork) Close() error {
	err := u.base.Close()
	u.tx.clear()
	return err
}

// Stats reports cached entry counts per entity kind plus hit and miss totals
// for this unit of work.
func (u *UnitOfWork) Stats() Stats {
	return u.tx.stats()
}

func (u *UnitOfWork) invalidate(tags ...string) {
	if n := u.tx.invalidate(tags...); n > 0 {
		u.log.Debug("invalidated cached reads", "tags", tags, "entries", n)
	}
}

// fetch is the shared read-through path. tagsFor runs on the loaded value so
// tags can include identifiers only known after the query, like the owner of
// a habit fetched by id. Absent results are cached with the static tags only.
func fetch[T any](ctx context.Context, u *UnitOfWork, key string, load func(ctx context.Context) (T, error), tagsFor func(T) []string) (T, error) {
	if v, ok := u.tx.get(key); ok {
		t, _ := v.(T)
		return t, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	u.tx.put(key, v, tagsFor(v))
	return v, nil
}

type cachedHabitRepository struct {
	u    *UnitOfWork
	base store.HabitRepository
}

func (r *cachedHabitRepository) GetByID(ctx context.Context, id int64) (*habit.Habit, error) {
	key := r.u.keys.SerializeKey(opName("habit", "GetByID"), id)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) (*habit.Habit, error) {
			return r.base.GetByID(ctx, id)
		},
		func(h *habit.Habit) []string {
			tags := []string{habitTag(id)}
			if h != nil {
				tags = append(tags, userTag(h.UserID))
			}
			return tags
		})
}

func (r *cachedHabitRepository) ListByUser(ctx context.Context, userID uuid.UUID, listID *int64) ([]*habit.Habit, error) {
	key := r.u.keys.SerializeKey(opName("habit", "ListByUser"), userID, listID)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) ([]*habit.Habit, error) {
			return r.base.ListByUser(ctx, userID, listID)
		},
		func(habits []*habit.Habit) []string {
			return habitListTags(userID, listID, habits)
		})
}

func (r *cachedHabitRepository) ListWithRecentChecks(ctx context.Context, userID uuid.UUID, days int, listID *int64) ([]*habit.Habit, error) {
	key := r.u.keys.SerializeKey(opName("habit", "ListWithRecentChecks"), userID, days, listID)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) ([]*habit.Habit, error) {
			return r.base.ListWithRecentChecks(ctx, userID, days, listID)
		},
		func(habits []*habit.Habit) []string {
			return habitListTags(userID, listID, habits)
		})
}

func habitListTags(userID uuid.UUID, listID *int64, habits []*habit.Habit) []string {
	tags := make([]string, 0, len(habits)+2)
	tags = append(tags, userTag(userID))
	if listID != nil {
		tags = append(tags, listTag(*listID))
	}
	for _, h := range habits {
		tags = append(tags, habitTag(h.ID))
	}
	return tags
}

func (r *cachedHabitRepository) BulkChecks(ctx context.Context, habitIDs []int64, start, end time.Time) (map[int64][]*habit.CheckedRecord, error) {
	// The serializer sorts and dedupes the id slice, so callers asking for
	// the same habits in any order share this entry.
	key := r.u.keys.SerializeKey(opName("habit", "BulkChecks"), habitIDs, start, end)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) (map[int64][]*habit.CheckedRecord, error) {
			return r.base.BulkChecks(ctx, habitIDs, start, end)
		},
		func(map[int64][]*habit.CheckedRecord) []string {
			tags := make([]string, 0, len(habitIDs))
			for _, id := range habitIDs {
				tags = append(tags, habitTag(id))
			}
			return tags
		})
}

func (r *cachedHabitRepository) Checks(ctx context.Context, habitID int64, start, end time.Time) ([]*habit.CheckedRecord, error) {
	key := r.u.keys.SerializeKey(opName("habit", "Checks"), habitID, start, end)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) ([]*habit.CheckedRecord, error) {
			return r.base.Checks(ctx, habitID, start, end)
		},
		func([]*habit.CheckedRecord) []string {
			return []string{habitTag(habitID)}
		})
}

func (r *cachedHabitRepository) Create(ctx context.Context, userID uuid.UUID, input habit.NewHabit) (*habit.Habit, error) {
	h, err := r.base.Create(ctx, userID, input)
	if err == nil {
		r.u.invalidate(userTag(userID))
	}
	return h, err
}

func (r *cachedHabitRepository) Update(ctx context.Context, id int64, userID uuid.UUID, patch habit.HabitPatch) (*habit.Habit, error) {
	h, err := r.base.Update(ctx, id, userID, patch)
	if err == nil && h != nil {
		r.u.invalidate(habitTag(id), userTag(userID))
	}
	return h, err
}

func (r *cachedHabitRepository) Delete(ctx context.Context, id int64, userID uuid.UUID) (bool, error) {
	ok, err := r.base.Delete(ctx, id, userID)
	if err == nil && ok {
		r.u.invalidate(habitTag(id), userTag(userID))
	}
	return ok, err
}

func (r *cachedHabitRepository) AddCheck(ctx context.Context, habitID int64, userID uuid.UUID, day time.Time, note *string) (*habit.CheckedRecord, error) {
	rec, err := r.base.AddCheck(ctx, habitID, userID, day, note)
	if err == nil && rec != nil {
		r.u.invalidate(habitTag(habitID))
	}
	return rec, err
}

func (r *cachedHabitRepository) RemoveCheck(ctx context.Context, habitID int64, userID uuid.UUID, day time.Time) (bool, error) {
	ok, err := r.base.RemoveCheck(ctx, habitID, userID, day)
	if err == nil && ok {
		r.u.invalidate(habitTag(habitID))
	}
	return ok, err
}

func (r *cachedHabitRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := r.base.DeleteAllForUser(ctx, userID)
	if err == nil && n > 0 {
		r.u.invalidate(userTag(userID))
	}
	return n, err
}

type cachedListRepository struct {
	u    *UnitOfWork
	base store.ListRepository
}

func (r *cachedListRepository) GetByID(ctx context.Context, id int64) (*habit.List, error) {
	key := r.u.keys.SerializeKey(opName("list", "GetByID"), id)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) (*habit.List, error) {
			return r.base.GetByID(ctx, id)
		},
		func(l *habit.List) []string {
			tags := []string{listTag(id)}
			if l != nil {
				tags = append(tags, userTag(l.UserID))
			}
			return tags
		})
}

func (r *cachedListRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*habit.List, error) {
	key := r.u.keys.SerializeKey(opName("list", "ListByUser"), userID)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) ([]*habit.List, error) {
			return r.base.ListByUser(ctx, userID)
		},
		func(lists []*habit.List) []string {
			tags := make([]string, 0, len(lists)+1)
			tags = append(tags, userTag(userID))
			for _, l := range lists {
				tags = append(tags, listTag(l.ID))
			}
			return tags
		})
}

func (r *cachedListRepository) Create(ctx context.Context, userID uuid.UUID, input habit.NewList) (*habit.List, error) {
	l, err := r.base.Create(ctx, userID, input)
	if err == nil {
		r.u.invalidate(userTag(userID))
	}
	return l, err
}

func (r *cachedListRepository) Update(ctx context.Context, id int64, userID uuid.UUID, patch habit.ListPatch) (*habit.List, error) {
	l, err := r.base.Update(ctx, id, userID, patch)
	if err == nil && l != nil {
		// A delete patch cascades to the list's habits, so the user tag
		// must go too, not just the list tag.
		r.u.invalidate(listTag(id), userTag(userID))
	}
	return l, err
}

func (r *cachedListRepository) Delete(ctx context.Context, id int64, userID uuid.UUID) (bool, error) {
	ok, err := r.base.Delete(ctx, id, userID)
	if err == nil && ok {
		r.u.invalidate(listTag(id), userTag(userID))
	}
	return ok, err
}

func (r *cachedListRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := r.base.DeleteAllForUser(ctx, userID)
	if err == nil && n > 0 {
		r.u.invalidate(userTag(userID))
	}
	return n, err
}

type cachedUserRepository struct {
	u    *UnitOfWork
	base store.UserRepository
}

func (r *cachedUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*habit.User, error) {
	key := r.u.keys.SerializeKey(opName("user", "GetByID"), id)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) (*habit.User, error) {
			return r.base.GetByID(ctx, id)
		},
		func(*habit.User) []string {
			return []string{userTag(id)}
		})
}

func (r *cachedUserRepository) GetByEmail(ctx context.Context, email string) (*habit.User, error) {
	key := r.u.keys.SerializeKey(opName("user", "GetByEmail"), email)
	return fetch(ctx, r.u, key,
		func(ctx context.Context) (*habit.User, error) {
			return r.base.GetByEmail(ctx, email)
		},
		func(u *habit.User) []string {
			if u == nil {
				return nil
			}
			return []string{userTag(u.ID)}
		})
}

func (r *cachedUserRepository) Count(ctx context.Context) (int, error) {
	key := r.u.keys.SerializeKey(opName("user", "Count"))
	return fetch(ctx, r.u, key,
		func(ctx context.Context) (int, error) {
			return r.base.Count(ctx)
		},
		func(int) []string { return nil })
}
