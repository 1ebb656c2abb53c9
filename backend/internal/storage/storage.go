// Package storage is the uniform query/transaction capability the graph core
// runs on. Two variants exist, chosen when the store is opened: an embedded
// SQLite file and a PostgreSQL server. Both speak the same logical schema and
// accept queries written with '?' placeholders.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"memgraph/backend/pkg/config"
)

// TxMode selects the isolation a transaction runs under.
type TxMode int

const (
	// TxWrite is a read-write transaction serialized against other writers.
	TxWrite TxMode = iota
	// TxSnapshotRead is a read transaction seeing one consistent view of the
	// whole database.
	TxSnapshotRead
)

// Querier issues parameterized statements. Placeholders are written as '?'.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
}

// Store is the storage capability: a connection pool plus transactions.
// Implementations are safe for concurrent use.
type Store interface {
	// Driver names the variant ("sqlite" or "postgres").
	Driver() string

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Reader runs statements outside any explicit transaction.
	Reader() Querier

	// InTx runs fn inside one transaction. The transaction commits if fn
	// returns nil and rolls back otherwise, including on panic.
	InTx(ctx context.Context, mode TxMode, fn func(q Querier) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Open opens the variant selected by cfg.DBDriver and applies the schema.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		st, err = OpenSQLite(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		st, err = OpenPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return st, nil
}
