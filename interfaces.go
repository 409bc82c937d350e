package storedb

import (
	"context"
	"io"
)

// Querier is the narrow statement surface business collaborators consume.
// Models and controllers should depend on this, not on *Manager.
type Querier interface {
	Execute(ctx context.Context, query string, params any) (*Result, error)
	ExecuteWithRetry(ctx context.Context, query string, params any, maxRetries int) (*Result, error)
	FetchAll(ctx context.Context, query string, params any) (*RowSet, error)
	FetchOne(ctx context.Context, query string, params any) (map[string]any, error)
	FetchScalar(ctx context.Context, query string, params any) (any, error)
	LastInsertID() int64
}

// TxRunner is the transaction surface.
type TxRunner interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	RunAsTransaction(ctx context.Context, statements []Statement) ([]StatementResult, error)
}

// Diagnoser is the operational surface outside the hot path.
type Diagnoser interface {
	TestConnection(ctx context.Context) error
	Stats() Stats
	ClearCache()
	OptimizeTable(ctx context.Context, table string) error
	CheckTable(ctx context.Context, table string) (string, error)
	DatabaseSize(ctx context.Context) (int64, error)
	Backup(ctx context.Context, w io.Writer) error
}

var (
	_ Querier   = (*Manager)(nil)
	_ TxRunner  = (*Manager)(nil)
	_ Diagnoser = (*Manager)(nil)
)
