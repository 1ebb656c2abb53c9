package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// dialect holds what differs between engines. Everything else is shared.
type dialect struct {
	name      string
	schema    []string
	numbered  bool // $1, $2 placeholders instead of ?
	kindOf    func(error) ErrorKind
	txOptions func(TxMode) *sql.TxOptions
}

func (d *dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// sqlConn is satisfied by both *sql.DB and *sql.Tx.
type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type querier struct {
	conn sqlConn
	d    *dialect
}

func (q *querier) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.conn.ExecContext(ctx, q.d.rebind(query), args...)
	return res, classify(err, q.d.kindOf)
}

func (q *querier) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := q.conn.QueryContext(ctx, q.d.rebind(query), args...)
	return rows, classify(err, q.d.kindOf)
}

func (q *querier) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return &Row{row: q.conn.QueryRowContext(ctx, q.d.rebind(query), args...), d: q.d}
}

// Row is a single-row result whose Scan classifies driver errors.
// sql.ErrNoRows is returned unchanged.
type Row struct {
	row *sql.Row
	d   *dialect
}

func (r *Row) Scan(dest ...any) error {
	return classify(r.row.Scan(dest...), r.d.kindOf)
}

// sqlStore is the database/sql implementation shared by both variants.
type sqlStore struct {
	db *sql.DB
	d  *dialect
}

func (s *sqlStore) Driver() string { return s.d.name }

func (s *sqlStore) Reader() Querier {
	return &querier{conn: s.db, d: s.d}
}

func (s *sqlStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", classify(err, s.d.kindOf))
		}
	}
	return nil
}

func (s *sqlStore) InTx(ctx context.Context, mode TxMode, fn func(q Querier) error) (err error) {
	tx, err := s.db.BeginTx(ctx, s.d.txOptions(mode))
	if err != nil {
		return fmt.Errorf("begin tx: %w", classify(err, s.d.kindOf))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&querier{conn: tx, d: s.d}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err, s.d.kindOf))
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx), s.d.kindOf)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
