package storedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// The manager runs on a single shared physical connection, not a pool:
// the *sql.DB below is capped at one open connection so the savepoint-based
// transaction nesting always happens inside one session.

// acquire returns a usable handle, establishing or healing the connection
// as needed. It never hands out a handle it has reason to believe is dead.
func (m *Manager) acquire(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx)
}

func (m *Manager) acquireLocked(ctx context.Context) (*sql.DB, error) {
	if m.db == nil {
		if err := m.establishLocked(ctx); err != nil {
			return nil, err
		}
		return m.db, nil
	}
	if m.now().Sub(m.lastChecked) > m.cfg.HealthCheckInterval {
		if err := m.probeLocked(ctx); err != nil {
			m.logConnection(ctx, "health_check", 0, err)
			m.discardLocked()
			m.stats.recordReconnect()
			if err := m.establishLocked(ctx); err != nil {
				return nil, err
			}
		}
	}
	return m.db, nil
}

// establishLocked opens the connection with bounded attempts and
// exponential backoff (1s, 2s, ... between attempts). Exhausting all
// attempts is fatal: the error wraps ErrMaxConnectAttempts and the manager
// stays disconnected.
func (m *Manager) establishLocked(ctx context.Context) error {
	dsn := dsnFromConfig(m.cfg)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 60 * time.Second
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxConnectAttempts; attempt++ {
		m.stats.recordConnectTry()
		start := m.now()
		db, err := m.openAndPing(ctx, dsn)
		if err == nil {
			m.db = db
			m.lastChecked = m.now()
			m.logConnection(ctx, "connect attempt "+fmtAttempt(attempt, m.cfg.MaxConnectAttempts), m.now().Sub(start), nil)
			return nil
		}
		lastErr = err
		m.logConnection(ctx, "connect attempt "+fmtAttempt(attempt, m.cfg.MaxConnectAttempts), m.now().Sub(start), err)
		if Classify(err) == ErrCatAuthentication {
			m.logSecurity(ctx, "authentication failure", "")
		}
		if attempt < m.cfg.MaxConnectAttempts {
			m.sleep(bo.NextBackOff())
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrMaxConnectAttempts, m.cfg.MaxConnectAttempts, lastErr)
}

func (m *Manager) openAndPing(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(m.cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	// one session: savepoints and session state depend on it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// probeLocked runs the trivial round trip used as a health check and
// refreshes the staleness clock on success.
func (m *Manager) probeLocked(ctx context.Context) error {
	start := m.now()
	var one int
	if err := m.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return err
	}
	m.lastChecked = m.now()
	m.logConnection(ctx, "health_check", m.now().Sub(start), nil)
	return nil
}

func (m *Manager) discardLocked() {
	if m.db != nil {
		_ = m.db.Close()
		m.db = nil
	}
	m.tx = nil
	m.depth = 0
}

// invalidate discards the current handle after an execution failure that
// was classified connection_lost; the next acquire re-establishes.
func (m *Manager) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardLocked()
	m.stats.recordReconnect()
	m.recordReconnectMetric(context.Background())
}

// TestConnection verifies the database answers a round trip, establishing
// the connection first if needed.
func (m *Manager) TestConnection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.acquireLocked(ctx); err != nil {
		return err
	}
	var one int
	if err := m.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return classified(err)
	}
	m.lastChecked = m.now()
	return nil
}
