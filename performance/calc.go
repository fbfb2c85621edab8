package performance

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/habitkit/go-habit-engine/cache"
	"github.com/habitkit/go-habit-engine/habit"
	"github.com/habitkit/go-habit-engine/metrics"
)

// statsKeyPrefix namespaces every calculation entry. Keys continue with the
// user id, so cross-tenant invalidation by prefix stays possible and no user
// can observe another's cached results.
const statsKeyPrefix = "habit_stats"

// CalculationCache keeps computed habit metrics in the shared process cache,
// outliving individual units of work. Entries are keyed by user, habit, and
// reference date; a write path touching a habit invalidates its entries
// exactly, using a per-habit key index instead of scanning.
type CalculationCache struct {
	svc cache.CacheService
	log *slog.Logger

	// index maps habit id to the set of live cache keys for that habit.
	index *xsync.MapOf[int64, *xsync.MapOf[string, struct{}]]
}

// NewCalculationCache wraps the shared cache service. The logger may be nil.
func NewCalculationCache(svc cache.CacheService, log *slog.Logger) *CalculationCache {
	if log == nil {
		log = slog.Default()
	}
	return &CalculationCache{
		svc:   svc,
		log:   log,
		index: xsync.NewMapOf[int64, *xsync.MapOf[string, struct{}]](),
	}
}

func statsKey(userID uuid.UUID, habitID int64, today time.Time) string {
	return statsKeyPrefix + ":" + userID.String() + ":" +
		strconv.FormatInt(habitID, 10) + ":" + habit.DayKey(today)
}

// HabitStats returns the cached metrics for one habit and reference date,
// computing them on a miss.
func (c *CalculationCache) HabitStats(ctx context.Context, userID uuid.UUID, habitID int64, today time.Time, compute func(ctx context.Context) (metrics.Result, error)) (metrics.Result, error) {
	key := statsKey(userID, habitID, today)
	keys, _ := c.index.LoadOrStore(habitID, xsync.NewMapOf[string, struct{}]())
	keys.Store(key, struct{}{})
	return cache.GetOrFetch(ctx, c.svc, key, compute)
}

// InvalidateHabit drops every cached calculation for one habit.
func (c *CalculationCache) InvalidateHabit(ctx context.Context, habitID int64) error {
	keys, ok := c.index.LoadAndDelete(habitID)
	if !ok {
		return nil
	}
	var firstErr error
	dropped := 0
	keys.Range(func(key string, _ struct{}) bool {
		if err := c.svc.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
		dropped++
		return true
	})
	if dropped > 0 {
		c.log.Debug("invalidated habit calculations", "habit_id", habitID, "keys", dropped)
	}
	return firstErr
}

// CacheStats summarizes the calculation cache's key index.
type CacheStats struct {
	// Habits is the number of habits with at least one live cached entry.
	Habits int

	// Keys is the total number of live cache keys across all habits.
	Keys int
}

// Stats reports how many calculations are currently indexed. Entries evicted
// by the underlying cache's TTL sweep still count until their habit is
// invalidated; the numbers are an upper bound, good enough for dashboards.
func (c *CalculationCache) Stats() CacheStats {
	var st CacheStats
	c.index.Range(func(_ int64, keys *xsync.MapOf[string, struct{}]) bool {
		st.Habits++
		st.Keys += keys.Size()
		return true
	})
	return st
}

// InvalidateUser drops every cached calculation for one user.
func (c *CalculationCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	return c.svc.DeleteByPrefix(ctx, statsKeyPrefix+":"+userID.String()+":")
}
