package storedb

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysql "github.com/go-sql-driver/mysql"
)

func TestTransaction_CommitThenRollbackUnwindsLIFO(t *testing.T) {
	m, mock := connectTestManager(t, Config{})
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// begin; begin; commit; rollback — the final rollback targets the real
	// transaction, undoing the outer scope
	if err := m.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := m.Begin(ctx); err != nil {
		t.Fatalf("nested begin: %v", err)
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatalf("inner commit: %v", err)
	}
	if err := m.Rollback(ctx); err != nil {
		t.Fatalf("outer rollback: %v", err)
	}
	if d := m.TransactionDepth(); d != 0 {
		t.Fatalf("depth=%d want 0", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransaction_AllCommitsPersist(t *testing.T) {
	m, mock := connectTestManager(t, Config{})
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := m.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := m.Begin(ctx); err != nil {
		t.Fatalf("nested begin: %v", err)
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatalf("inner commit: %v", err)
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatalf("outer commit: %v", err)
	}
	if d := m.TransactionDepth(); d != 0 {
		t.Fatalf("depth=%d want 0", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransaction_DeepNestingTargetsMatchingSavepoints(t *testing.T) {
	m, mock := connectTestManager(t, Config{})
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT sp_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	for i := 0; i < 3; i++ {
		if err := m.Begin(ctx); err != nil {
			t.Fatalf("begin %d: %v", i, err)
		}
	}
	if err := m.Rollback(ctx); err != nil {
		t.Fatalf("rollback innermost: %v", err)
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatalf("commit middle: %v", err)
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatalf("commit outer: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransaction_CommitRollbackAtDepthZero(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	ctx := context.Background()

	if err := m.Commit(ctx); !errors.Is(err, ErrNoActiveTransaction) {
		t.Fatalf("commit at depth 0: %v", err)
	}
	if err := m.Rollback(ctx); !errors.Is(err, ErrNoActiveTransaction) {
		t.Fatalf("rollback at depth 0: %v", err)
	}
}

func TestTransaction_StatementsRouteThroughTx(t *testing.T) {
	m, mock := connectTestManager(t, Config{})
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders (customer_id) VALUES (?)").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	if err := m.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	res, err := m.Execute(ctx, "INSERT INTO orders (customer_id) VALUES (?)", []any{42})
	if err != nil {
		t.Fatalf("Execute in tx: %v", err)
	}
	if res.LastInsertID != 3 {
		t.Fatalf("lastInsertID=%d", res.LastInsertID)
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunAsTransaction_CommitsAndReports(t *testing.T) {
	m, mock := connectTestManager(t, Config{})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders (customer_id) VALUES (?)").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec("UPDATE stock SET qty = qty - 1 WHERE product_id = ?").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	results, err := m.RunAsTransaction(context.Background(), []Statement{
		{SQL: "INSERT INTO orders (customer_id) VALUES (?)", Params: []any{42}},
		{SQL: "UPDATE stock SET qty = qty - 1 WHERE product_id = ?", Params: []any{7}},
	})
	if err != nil {
		t.Fatalf("RunAsTransaction: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d want 2", len(results))
	}
	if results[0].LastInsertID != 10 || results[1].RowsAffected != 1 {
		t.Fatalf("results=%+v", results)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunAsTransaction_RollsBackOnFailure(t *testing.T) {
	m, mock := connectTestManager(t, Config{})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders (customer_id) VALUES (?)").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec("INSERT INTO orders (customer_id) VALUES (?)").
		WithArgs(int64(43)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := m.RunAsTransaction(context.Background(), []Statement{
		{SQL: "INSERT INTO orders (customer_id) VALUES (?)", Params: []any{42}},
		{SQL: "INSERT INTO orders (customer_id) VALUES (?)", Params: []any{43}},
	})
	if Classify(err) != ErrCatDuplicateEntry {
		t.Fatalf("expected duplicate_entry, got %v", err)
	}
	if d := m.TransactionDepth(); d != 0 {
		t.Fatalf("depth=%d want 0 after rollback", d)
	}
	// rollback expected, commit never: no partial writes stay visible
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunAsTransaction_ValidationFailureRollsBack(t *testing.T) {
	m, mock := connectTestManager(t, Config{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := m.RunAsTransaction(context.Background(), []Statement{
		{SQL: "DELETE FROM orders; DROP TABLE orders", Params: nil},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSavepointName_DeterministicFromDepth(t *testing.T) {
	if savepointName(1) != "sp_1" || savepointName(7) != "sp_7" {
		t.Fatalf("savepoint names must derive from depth only")
	}
}
