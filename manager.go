package storedb

import (
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Manager is the single shared database access point: it owns the one
// physical connection, executes validated parameterized statements, caches
// read results, tracks nested transactions through savepoints and exposes
// operational statistics.
//
// The manager is handed to collaborators explicitly instead of living
// behind a package-level singleton; the one-time connection establishment
// is guarded internally so concurrent first access still creates exactly
// one physical connection. Beyond that guard, callers are expected to
// serialize their use of the shared connection.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex // guards db, lastChecked, tx, depth
	db          *sql.DB
	lastChecked time.Time

	tx    *sql.Tx
	depth int

	cache   *resultCache
	stats   statsCollector
	slowLog *slowQueryRecorder

	metricsEnabled bool
	metrics        *managerMetrics
	meterProvider  metric.MeterProvider

	lastInsertID atomic.Int64

	// test seams; production values are time.Now and time.Sleep
	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a Manager from cfg overlaid with STOREDB_* environment
// variables. The physical connection is established lazily on first use.
func New(cfg Config) *Manager {
	applyEnv(&cfg)
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:     cfg,
		logger:  defaultLogger,
		cache:   newResultCache(cfg.CacheCapacity),
		slowLog: newSlowQueryRecorder(defaultSlowLogCapacity),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Config returns a copy of the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Stats returns a snapshot of the running counters together with the
// derived metrics.
func (m *Manager) Stats() Stats {
	out := m.stats.snapshot()
	out.CacheSize = m.cache.size()
	return out
}

// LastInsertID returns the auto-generated id of the most recent successful
// insert executed through this manager.
func (m *Manager) LastInsertID() int64 { return m.lastInsertID.Load() }

// ClearCache drops every cached read result. It is the manual escape hatch
// for the documented staleness window: cached entries are not invalidated
// when a write touches the same table, they only age out.
func (m *Manager) ClearCache() { m.cache.clear() }

// SlowQueries returns the recorded slow-query ring, newest last.
func (m *Manager) SlowQueries() []SlowQueryRecord { return m.slowLog.records() }

// TransactionDepth reports the current transaction nesting depth.
func (m *Manager) TransactionDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth
}

// Close rolls back any open transaction and releases the connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tx != nil {
		_ = m.tx.Rollback()
		m.tx = nil
		m.depth = 0
	}
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
