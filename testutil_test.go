package storedb

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// newTestManager wires a Manager to a dedicated sqlmock instance.
// Each test gets its own DSN because sqlmock routes connections by DSN.
func newTestManager(t *testing.T, cfg Config) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	dsn := fmt.Sprintf("sqlmock_%s", t.Name())
	_, mock, err := sqlmock.NewWithDSN(dsn,
		sqlmock.MonitorPingsOption(true),
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
	)
	if err != nil {
		t.Fatalf("sqlmock.NewWithDSN: %v", err)
	}
	cfg.Driver = "sqlmock"
	cfg.DSN = dsn
	m := New(cfg)
	m.sleep = func(time.Duration) {} // no real waiting in tests
	t.Cleanup(func() { _ = m.Close() })
	return m, mock
}

// connectTestManager additionally expects and performs the initial
// establish so tests can focus on the behavior under test.
func connectTestManager(t *testing.T, cfg Config) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	m, mock := newTestManager(t, cfg)
	mock.ExpectPing()
	return m, mock
}
