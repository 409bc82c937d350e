package storedb

import (
	"context"
	"fmt"
)

// Transaction nesting runs on a depth counter: the outermost scope is a
// real transaction, every inner scope is a savepoint named purely from the
// depth at which it was opened. Names being a function of depth is what
// guarantees LIFO unwinding: commit/rollback at depth N always targets the
// savepoint opened at depth N.

func savepointName(depth int) string { return fmt.Sprintf("sp_%d", depth) }

// Begin opens a transaction scope. At depth 0 this starts the real
// transaction; at any deeper level it creates a savepoint.
func (m *Manager) Begin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.depth == 0 {
		db, err := m.acquireLocked(ctx)
		if err != nil {
			return err
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			m.logTransaction(ctx, "begin", m.depth, err)
			return classified(err)
		}
		m.tx = tx
	} else {
		if _, err := m.tx.ExecContext(ctx, "SAVEPOINT "+savepointName(m.depth)); err != nil {
			m.logTransaction(ctx, "savepoint", m.depth, err)
			return classified(err)
		}
	}
	m.depth++
	m.logTransaction(ctx, "begin", m.depth, nil)
	return nil
}

// Commit closes the innermost scope: the real transaction at the outermost
// level, otherwise a release of the matching savepoint.
func (m *Manager) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.depth == 0 {
		return ErrNoActiveTransaction
	}
	m.depth--
	if m.depth == 0 {
		err := m.tx.Commit()
		m.tx = nil
		m.logTransaction(ctx, "commit", m.depth, err)
		return classified(err)
	}
	if _, err := m.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName(m.depth)); err != nil {
		m.logTransaction(ctx, "release_savepoint", m.depth, err)
		return classified(err)
	}
	m.logTransaction(ctx, "commit", m.depth, nil)
	return nil
}

// Rollback unwinds the innermost scope: a rollback of the real transaction
// at the outermost level, otherwise a rollback to the matching savepoint.
func (m *Manager) Rollback(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.depth == 0 {
		return ErrNoActiveTransaction
	}
	m.depth--
	if m.depth == 0 {
		err := m.tx.Rollback()
		m.tx = nil
		m.logTransaction(ctx, "rollback", m.depth, err)
		return classified(err)
	}
	if _, err := m.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName(m.depth)); err != nil {
		m.logTransaction(ctx, "rollback_savepoint", m.depth, err)
		return classified(err)
	}
	m.logTransaction(ctx, "rollback", m.depth, nil)
	return nil
}

// Statement is one unit of work for RunAsTransaction.
type Statement struct {
	SQL    string
	Params any
}

// StatementResult reports the write outcome of one statement executed by
// RunAsTransaction.
type StatementResult struct {
	RowsAffected int64
	LastInsertID int64
}

// RunAsTransaction executes the statements inside one transaction scope,
// all or nothing: the first failure rolls everything back and re-raises, so
// no partial writes are ever visible.
func (m *Manager) RunAsTransaction(ctx context.Context, statements []Statement) ([]StatementResult, error) {
	if err := m.Begin(ctx); err != nil {
		return nil, err
	}
	results := make([]StatementResult, 0, len(statements))
	for _, stmt := range statements {
		res, err := m.Execute(ctx, stmt.SQL, stmt.Params)
		if err != nil {
			if rbErr := m.Rollback(ctx); rbErr != nil {
				m.logTransaction(ctx, "rollback_failed", m.TransactionDepth(), rbErr)
			}
			return nil, err
		}
		results = append(results, StatementResult{
			RowsAffected: res.RowsAffected,
			LastInsertID: res.LastInsertID,
		})
	}
	if err := m.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}
