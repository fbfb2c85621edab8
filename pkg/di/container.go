// Package di is the composition root: it opens the database, wires the
// store, caches, monitor, and services together, and owns their Start/Stop
// lifecycle. Nothing in the engine holds process-global state; a test can
// build as many isolated containers as it needs.
package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/habitkit/go-habit-engine/cache"
	"github.com/habitkit/go-habit-engine/internal/bunstore"
	"github.com/habitkit/go-habit-engine/performance"
	"github.com/habitkit/go-habit-engine/service"
	"github.com/habitkit/go-habit-engine/store"
	"github.com/habitkit/go-habit-engine/uowcache"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config assembles every knob of the engine. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// Driver selects the database backend, DriverSQLite or DriverPostgres.
	Driver string

	// DSN is the driver-specific connection string. ":memory:" with the
	// sqlite driver gives an in-process throwaway engine.
	DSN string

	// CreateSchema makes Start create tables and indexes before serving.
	CreateSchema bool

	Cache       cache.Config
	Performance performance.Config
	Monitor     performance.MonitorConfig

	// Logger is used by every component. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns an in-memory sqlite engine with schema creation on,
// suitable for tests and local runs.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		CreateSchema: true,
		Cache:        cache.DefaultConfig(),
		Performance:  performance.DefaultConfig(),
		Monitor:      performance.DefaultMonitorConfig(),
	}
}

// Validate reports the first unusable configuration value.
func (c Config) Validate() error {
	if c.Driver != DriverSQLite && c.Driver != DriverPostgres {
		return fmt.Errorf("di: unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("di: DSN is required")
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Performance.Validate()
}

// Container holds the wired engine. Build it with New, then Start it before
// use and Stop it on shutdown.
type Container struct {
	cfg Config
	log *slog.Logger

	db          *bun.DB
	store       *uowcache.Store
	keys        cache.KeySerializer
	cacheSvc    cache.CacheService
	calc        *performance.CalculationCache
	monitor     *performance.Monitor
	performance *performance.Service
	habits      *service.HabitService
	lists       *service.ListService
}

// New wires every component. It opens the database connection but performs
// no I/O until Start.
func New(cfg Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var db *bun.DB
	var err error
	switch cfg.Driver {
	case DriverPostgres:
		db, err = bunstore.OpenPostgres(cfg.DSN)
	default:
		db, err = bunstore.OpenSQLite(cfg.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("di: open database: %w", err)
	}

	keys := cache.NewKeySerializer()
	base := bunstore.New(db, bunstore.WithLogger(log))
	st := uowcache.NewStore(base, keys, uowcache.WithLogger(log))

	cacheSvc, err := cache.NewCacheService(cfg.Cache)
	if err != nil {
		db.Close()
		return nil, err
	}
	calc := performance.NewCalculationCache(cacheSvc, log)
	monitor := performance.NewMonitor(cfg.Monitor, log)

	return &Container{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    st,
		keys:     keys,
		cacheSvc: cacheSvc,
		calc:     calc,
		monitor:  monitor,
		performance: performance.New(st, calc, monitor, cfg.Performance,
			performance.WithLogger(log)),
		habits: service.NewHabitService(st,
			service.WithHabitLogger(log),
			service.WithWeekStart(cfg.Performance.WeekStart),
			service.WithStreakWindowDays(cfg.Performance.StreakWindowDays),
			service.WithCalcInvalidator(calc)),
		lists: service.NewListService(st, service.WithListLogger(log)),
	}, nil
}

// Start prepares the schema when configured and launches the monitor's
// background loop.
func (c *Container) Start(ctx context.Context) error {
	if c.cfg.CreateSchema {
		if err := bunstore.CreateSchema(ctx, c.db); err != nil {
			return err
		}
	}
	c.monitor.Start()
	c.log.Info("habit engine started", "driver", c.cfg.Driver)
	return nil
}

// Stop halts background work and closes the database.
func (c *Container) Stop(ctx context.Context) error {
	c.monitor.Stop()
	err := c.db.Close()
	c.log.Info("habit engine stopped")
	return err
}

// DB exposes the raw database for migrations and tests.
func (c *Container) DB() *bun.DB { return c.db }

// Store returns the cache-decorated store every service runs on.
func (c *Container) Store() store.Store { return c.store }

// KeySerializer returns the shared key serializer.
func (c *Container) KeySerializer() cache.KeySerializer { return c.keys }

// CacheService returns the shared process cache.
func (c *Container) CacheService() cache.CacheService { return c.cacheSvc }

// CalculationCache returns the habit metrics cache.
func (c *Container) CalculationCache() *performance.CalculationCache { return c.calc }

// Monitor returns the performance monitor.
func (c *Container) Monitor() *performance.Monitor { return c.monitor }

// Performance returns the aggregation service.
func (c *Container) Performance() *performance.Service { return c.performance }

// Habits returns the habit service.
func (c *Container) Habits() *service.HabitService { return c.habits }

// Lists returns the list service.
func (c *Container) Lists() *service.ListService { return c.lists }
