package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLite is the embedded, file-based variant.
type SQLite struct {
	sqlStore
	path string
}

var sqliteDialect = &dialect{
	name:     "sqlite",
	schema:   sqliteSchema,
	numbered: false,
	kindOf:   sqliteKindOf,
	// SQLite is serializable; _txlock=immediate in the DSN takes the write
	// lock at BEGIN so a transaction never fails on lock upgrade.
	txOptions: func(TxMode) *sql.TxOptions { return nil },
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_txlock=immediate"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(16)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &SQLite{sqlStore: sqlStore{db: db, d: sqliteDialect}, path: path}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

func sqliteKindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, sqlite3.BUSY), errors.Is(err, sqlite3.LOCKED):
		return KindConflict
	case errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY), errors.Is(err, sqlite3.CONSTRAINT_UNIQUE):
		return KindUnique
	case errors.Is(err, sqlite3.CONSTRAINT_FOREIGNKEY):
		return KindForeignKey
	default:
		return KindOther
	}
}
