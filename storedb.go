// Package storedb is the data-access core of the store backend: a single
// shared MySQL connection manager with safe parameterized execution.
//
// # Overview
//
// The package centers on one type, Manager, which:
//   - owns the single physical connection, establishing it lazily with
//     bounded retries and exponential backoff, and healing it after
//     connection loss or a failed health probe
//   - validates SQL text against destructive and injection idioms before
//     execution (defense in depth; parameter binding remains the primary
//     injection defense)
//   - binds typed parameters inferred from runtime values (null, bool,
//     int, text), as an ordered list or a string-keyed map
//   - caches read-only results in a bounded, insertion-ordered cache keyed
//     by a statement+parameters fingerprint
//   - tracks nested transactions with depth-named savepoints so scopes
//     unwind strictly LIFO
//   - classifies failures into semantic categories that drive reconnects
//     and deadlock retries
//   - keeps running counters and derived statistics, a slow-query ring,
//     and optional OpenTelemetry metrics
//
// # Quick start
//
//	cfg := storedb.Config{
//		Host:     "localhost",
//		Username: "store",
//		Password: "secret",
//		Database: "store",
//	}
//	m := storedb.New(cfg)
//	defer m.Close()
//
//	res, err := m.Execute(ctx,
//		"INSERT INTO orders (customer_id, total) VALUES (?, ?)",
//		[]any{42, "19.90"})
//	if err != nil {
//		return err
//	}
//	orderID := res.LastInsertID
//
//	row, err := m.FetchOne(ctx,
//		"SELECT id, total FROM orders WHERE id = ?", []any{orderID})
//
// # Transactions
//
// Nested scopes are savepoints; the outermost scope is the real
// transaction:
//
//	results, err := m.RunAsTransaction(ctx, []storedb.Statement{
//		{SQL: "INSERT INTO orders (customer_id) VALUES (?)", Params: []any{42}},
//		{SQL: "UPDATE stock SET qty = qty - 1 WHERE product_id = ?", Params: []any{7}},
//	})
//
// # Configuration
//
// Configuration is programmatic via Config plus STOREDB_* environment
// overrides (STOREDB_HOST, STOREDB_PASSWORD, STOREDB_CACHE_CAPACITY, ...).
//
// The manager is built for a request-scoped or single-worker deployment:
// first access is guarded so exactly one physical connection is created,
// but callers serialize their own use of the shared connection.
package storedb

// Version returns the current library version.
func Version() string { return "v0.1.0" }
