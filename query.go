package storedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Result is the outcome of a single statement. Reads carry a materialized
// RowSet; writes carry the affected-row count and generated id.
type Result struct {
	RowSet       *RowSet
	RowsAffected int64
	LastInsertID int64
	FromCache    bool
	Elapsed      time.Duration
}

// execer is the common surface of *sql.DB and *sql.Tx the executor needs;
// statements inside an open transaction must run on the transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execute validates, binds and runs one parameterized statement.
// params is nil, an ordered []any, or a string-keyed map[string]any for
// :named placeholders. SELECT-shaped statements outside a transaction go
// through the result cache; everything else executes directly.
func (m *Manager) Execute(ctx context.Context, query string, params any) (*Result, error) {
	if verr := validateQuery(query); verr != nil {
		m.logSecurity(ctx, verr.Rule, query)
		return nil, verr
	}

	bound, args, err := bindParams(query, params)
	if err != nil {
		return nil, err
	}

	readOnly := isReadOnly(bound)
	key := fingerprint(bound, args)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Reads inside an open transaction bypass the cache entirely: they
	// must see the transaction's own writes, and their results could be
	// undone by a rollback, so they are never served from or stored into
	// shared state.
	cacheable := readOnly && m.tx == nil
	if cacheable {
		if snapshot, ok := m.cache.get(key); ok {
			m.stats.recordCacheHit()
			m.recordCacheMetric(ctx, true)
			return &Result{RowSet: snapshot, FromCache: true}, nil
		}
	}

	target, err := m.execTargetLocked(ctx)
	if err != nil {
		return nil, err
	}

	start := m.now()
	res, execErr := m.runLocked(ctx, target, bound, args, readOnly)
	elapsed := m.now().Sub(start)

	m.logQuery(ctx, operationName(readOnly), bound, params, elapsed, execErr)
	m.recordQueryMetric(ctx, operationName(readOnly), elapsed, execErr)

	if execErr != nil {
		m.stats.recordFailure()
		if Classify(execErr) == ErrCatConnectionLost {
			m.discardLocked()
			m.stats.recordReconnect()
			m.recordReconnectMetric(ctx)
		}
		return nil, classified(execErr)
	}

	m.stats.recordQuery(elapsed)
	if m.cfg.SlowQueryThreshold > 0 && elapsed > m.cfg.SlowQueryThreshold {
		m.slowLog.record(bound, paramCount(params), elapsed, m.now())
	}

	res.Elapsed = elapsed
	if cacheable {
		m.cache.put(key, res.RowSet)
		m.stats.recordCacheMiss()
		m.recordCacheMetric(ctx, false)
	} else if !readOnly && res.LastInsertID > 0 {
		m.lastInsertID.Store(res.LastInsertID)
	}
	return res, nil
}

// execTargetLocked returns the open transaction when one is active,
// otherwise the healed connection.
func (m *Manager) execTargetLocked(ctx context.Context) (execer, error) {
	if m.tx != nil {
		return m.tx, nil
	}
	return m.acquireLocked(ctx)
}

func (m *Manager) runLocked(ctx context.Context, target execer, bound string, args []any, readOnly bool) (*Result, error) {
	if readOnly {
		rows, err := target.QueryContext(ctx, bound, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		snapshot, err := scanRowSet(rows)
		if err != nil {
			return nil, err
		}
		return &Result{RowSet: snapshot}, nil
	}

	sqlRes, err := target.ExecContext(ctx, bound, args...)
	if err != nil {
		return nil, err
	}
	out := &Result{}
	// drivers may not support either value; treat that as zero, not failure
	if n, err := sqlRes.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := sqlRes.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

func scanRowSet(rows *sql.Rows) (*RowSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &RowSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		scan := make([]any, len(cols))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}
		for i, v := range values {
			// normalize driver byte slices into comparable snapshots
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func operationName(readOnly bool) string {
	if readOnly {
		return "query"
	}
	return "exec"
}

// FetchAll runs a read statement and returns every row.
func (m *Manager) FetchAll(ctx context.Context, query string, params any) (*RowSet, error) {
	if !isReadOnly(query) {
		return nil, fmt.Errorf("storedb: fetch on non-SELECT statement")
	}
	res, err := m.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return res.RowSet, nil
}

// FetchOne returns the first row as a column-keyed map, or nil when the
// result is empty.
func (m *Manager) FetchOne(ctx context.Context, query string, params any) (map[string]any, error) {
	rs, err := m.FetchAll(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if rs.Len() == 0 {
		return nil, nil
	}
	row := make(map[string]any, len(rs.Columns))
	for i, col := range rs.Columns {
		row[col] = rs.Rows[0][i]
	}
	return row, nil
}

// FetchScalar returns the first column of the first row, or nil when the
// result is empty.
func (m *Manager) FetchScalar(ctx context.Context, query string, params any) (any, error) {
	rs, err := m.FetchAll(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if rs.Len() == 0 || len(rs.Columns) == 0 {
		return nil, nil
	}
	return rs.Rows[0][0], nil
}

// ExecuteWithRetry is the entry point for deadlock-prone writes: a
// deadlock-classified failure is retried up to maxRetries attempts with
// increasing backoff (100ms, 200ms, ...). Every other failure re-raises
// immediately, as does the last deadlock.
func (m *Manager) ExecuteWithRetry(ctx context.Context, query string, params any, maxRetries int) (*Result, error) {
	if maxRetries <= 0 {
		maxRetries = m.cfg.MaxRetries
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 30 * time.Second
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		res, err := m.Execute(ctx, query, params)
		if err == nil {
			return res, nil
		}
		if Classify(err) != ErrCatDeadlock {
			return nil, err
		}
		lastErr = err
		if attempt < maxRetries {
			m.sleep(bo.NextBackOff())
		}
	}
	return nil, lastErr
}
