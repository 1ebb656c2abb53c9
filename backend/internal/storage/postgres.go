package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres is the client-server variant.
type Postgres struct {
	sqlStore
}

var postgresDialect = &dialect{
	name:     "postgres",
	schema:   postgresSchema,
	numbered: true,
	kindOf:   postgresKindOf,
	txOptions: func(mode TxMode) *sql.TxOptions {
		if mode == TxSnapshotRead {
			return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
		}
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	},
}

// OpenPostgres connects to the server at url (a postgres:// URL or DSN).
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}
	return &Postgres{sqlStore: sqlStore{db: db, d: postgresDialect}}, nil
}

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

func postgresKindOf(err error) ErrorKind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return KindOther
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return KindConflict
	case pgUniqueViolation:
		return KindUnique
	case pgForeignKeyViolation:
		return KindForeignKey
	default:
		return KindOther
	}
}
