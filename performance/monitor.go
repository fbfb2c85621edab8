package performance

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// MonitorConfig tunes the performance monitor.
type MonitorConfig struct {
	// SlowQuery is the duration above which a storage query is logged as
	// slow.
	SlowQuery time.Duration

	// SlowOperation is the duration above which a whole service operation
	// is logged as slow.
	SlowOperation time.Duration

	// Retention caps how many recent samples of each kind are kept.
	Retention int

	// MaxSampleAge bounds sample age; the trim loop drops older ones.
	MaxSampleAge time.Duration

	// TrimInterval is how often the background trim runs.
	TrimInterval time.Duration
}

// DefaultMonitorConfig matches the thresholds the engine was tuned with:
// 100ms queries, one second operations, the last thousand samples.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SlowQuery:     100 * time.Millisecond,
		SlowOperation: time.Second,
		Retention:     1000,
		MaxSampleAge:  time.Hour,
		TrimInterval:  time.Minute,
	}
}

// Sample is one recorded query or operation.
type Sample struct {
	Name     string
	UserID   uuid.UUID
	Duration time.Duration
	Records  int
	CacheHit bool
	At       time.Time
}

// MonitorSummary aggregates recent samples.
type MonitorSummary struct {
	Queries      int
	SlowQueries  int
	Operations   int
	SlowOps      int
	AvgQuery     time.Duration
	AvgOperation time.Duration
	CacheHitRate float64

	// Lifetime totals survive trimming.
	LifetimeQueries    int64
	LifetimeOperations int64
}

// Monitor records storage query and service operation timings. It is an
// explicitly constructed instance with a Start/Stop lifecycle owned by the
// composition root; nothing in the engine reaches for a global monitor.
type Monitor struct {
	log *slog.Logger

	mu      sync.Mutex
	cfg     MonitorConfig
	queries []Sample
	ops     []Sample

	totalQueries *xsync.Counter
	totalOps     *xsync.Counter
	cacheHits    *xsync.Counter
	cacheMisses  *xsync.Counter

	stop chan struct{}
	done chan struct{}
}

// NewMonitor builds a monitor. The logger may be nil.
func NewMonitor(cfg MonitorConfig, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		log:          log,
		cfg:          cfg,
		totalQueries: xsync.NewCounter(),
		totalOps:     xsync.NewCounter(),
		cacheHits:    xsync.NewCounter(),
		cacheMisses:  xsync.NewCounter(),
	}
}

// Start launches the background trim loop. Calling Start twice without an
// intervening Stop is a programming error.
func (m *Monitor) Start() {
	m.mu.Lock()
	interval := m.cfg.TrimInterval
	m.mu.Unlock()
	if interval <= 0 {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.trimLoop(interval)
}

// Stop halts the trim loop and waits for it to exit. Safe to call when the
// monitor was never started.
func (m *Monitor) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
	m.stop = nil
	m.done = nil
}

func (m *Monitor) trimLoop(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			age := m.cfg.MaxSampleAge
			m.mu.Unlock()
			if age > 0 {
				m.TrimOlderThan(age)
			}
		}
	}
}

// TrackQuery times one storage query. The returned func records the sample
// with the row count and whether the read was served from cache.
func (m *Monitor) TrackQuery(name string, userID uuid.UUID) func(records int, cacheHit bool) {
	start := time.Now()
	return func(records int, cacheHit bool) {
		elapsed := time.Since(start)
		m.totalQueries.Inc()
		if cacheHit {
			m.cacheHits.Inc()
		} else {
			m.cacheMisses.Inc()
		}

		m.mu.Lock()
		m.queries = appendCapped(m.queries, Sample{
			Name:     name,
			UserID:   userID,
			Duration: elapsed,
			Records:  records,
			CacheHit: cacheHit,
			At:       time.Now(),
		}, m.cfg.Retention)
		slow := m.cfg.SlowQuery
		m.mu.Unlock()

		if slow > 0 && elapsed >= slow {
			m.log.Warn("slow query", "query", name, "user_id", userID,
				"duration_ms", elapsed.Milliseconds(), "records", records)
		}
	}
}

// TrackOperation times one service-level operation.
func (m *Monitor) TrackOperation(name string, userID uuid.UUID) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		m.totalOps.Inc()

		m.mu.Lock()
		m.ops = appendCapped(m.ops, Sample{
			Name:     name,
			UserID:   userID,
			Duration: elapsed,
			At:       time.Now(),
		}, m.cfg.Retention)
		slow := m.cfg.SlowOperation
		m.mu.Unlock()

		if slow > 0 && elapsed >= slow {
			m.log.Warn("slow operation", "operation", name, "user_id", userID,
				"duration_ms", elapsed.Milliseconds())
		}
	}
}

func appendCapped(samples []Sample, s Sample, limit int) []Sample {
	samples = append(samples, s)
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

// SetThresholds reconfigures the slow thresholds at runtime.
func (m *Monitor) SetThresholds(slowQuery, slowOperation time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.SlowQuery = slowQuery
	m.cfg.SlowOperation = slowOperation
}

// TrimOlderThan drops samples recorded more than age ago.
func (m *Monitor) TrimOlderThan(age time.Duration) {
	cutoff := time.Now().Add(-age)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = trimBefore(m.queries, cutoff)
	m.ops = trimBefore(m.ops, cutoff)
}

func trimBefore(samples []Sample, cutoff time.Time) []Sample {
	// Samples are append-ordered, so find the first one to keep.
	for i, s := range samples {
		if !s.At.Before(cutoff) {
			return append(samples[:0:0], samples[i:]...)
		}
	}
	return nil
}

// Summary aggregates the samples recorded within the window. A zero window
// covers everything retained.
func (m *Monitor) Summary(window time.Duration) MonitorSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summarize(m.queries, m.ops, window, uuid.Nil)
}

// UserReport is Summary restricted to one user's samples.
func (m *Monitor) UserReport(userID uuid.UUID, window time.Duration) MonitorSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summarize(m.queries, m.ops, window, userID)
}

func (m *Monitor) summarize(queries, ops []Sample, window time.Duration, userID uuid.UUID) MonitorSummary {
	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}
	include := func(s Sample) bool {
		if !cutoff.IsZero() && s.At.Before(cutoff) {
			return false
		}
		return userID == uuid.Nil || s.UserID == userID
	}

	sum := MonitorSummary{
		LifetimeQueries:    m.totalQueries.Value(),
		LifetimeOperations: m.totalOps.Value(),
	}

	var queryTotal time.Duration
	hits := 0
	for _, s := range queries {
		if !include(s) {
			continue
		}
		sum.Queries++
		queryTotal += s.Duration
		if s.CacheHit {
			hits++
		}
		if m.cfg.SlowQuery > 0 && s.Duration >= m.cfg.SlowQuery {
			sum.SlowQueries++
		}
	}
	if sum.Queries > 0 {
		sum.AvgQuery = queryTotal / time.Duration(sum.Queries)
		sum.CacheHitRate = float64(hits) / float64(sum.Queries)
	}

	var opTotal time.Duration
	for _, s := range ops {
		if !include(s) {
			continue
		}
		sum.Operations++
		opTotal += s.Duration
		if m.cfg.SlowOperation > 0 && s.Duration >= m.cfg.SlowOperation {
			sum.SlowOps++
		}
	}
	if sum.Operations > 0 {
		sum.AvgOperation = opTotal / time.Duration(sum.Operations)
	}
	return sum
}
