package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func insertEntity(ctx context.Context, q Querier, id string) error {
	now := FormatTime(Now())
	_, err := q.Exec(ctx,
		`INSERT INTO entities (entity_id, node_type, name, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, "character", id, "", now, now)
	return err
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := openTestSQLite(t)
	assert.NoError(t, st.Migrate(context.Background()))
	assert.Equal(t, "sqlite", st.Driver())
}

func TestSQLite_UniqueViolationClassified(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, insertEntity(ctx, st.Reader(), "a"))
	err := insertEntity(ctx, st.Reader(), "a")

	require.Error(t, err)
	assert.True(t, IsUnique(err), "got %v", err)
}

func TestSQLite_ForeignKeyEnforced(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	now := FormatTime(Now())
	_, err := st.Reader().Exec(ctx,
		`INSERT INTO direct_edges (edge_id, from_entity_id, to_entity_id, relation, content, inheritable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"de_x", "missing", "missing", "SERVES", "", true, now)

	require.Error(t, err)
	assert.True(t, IsForeignKey(err), "got %v", err)
}

func TestInTx_RollbackOnError(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.InTx(ctx, TxWrite, func(q Querier) error {
		if err := insertEntity(ctx, q, "a"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, st.Reader().QueryRow(ctx, `SELECT COUNT(*) FROM entities`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestInTx_RollbackOnPanic(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = st.InTx(ctx, TxWrite, func(q Querier) error {
			if err := insertEntity(ctx, q, "a"); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	})

	var n int
	require.NoError(t, st.Reader().QueryRow(ctx, `SELECT COUNT(*) FROM entities`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestRow_NoRowsPassesThrough(t *testing.T) {
	st := openTestSQLite(t)
	var id string
	err := st.Reader().QueryRow(context.Background(), `SELECT entity_id FROM entities WHERE entity_id = ?`, "nope").Scan(&id)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM entities WHERE entity_id = ? AND node_type = ?`
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, `SELECT * FROM entities WHERE entity_id = $1 AND node_type = $2`, postgresDialect.rebind(q))
}

func TestTimeFormat_SortsChronologically(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := FormatTime(base)
	b := FormatTime(base.Add(time.Millisecond))
	c := FormatTime(base.Add(time.Second))
	assert.Less(t, a, b)
	assert.Less(t, b, c)

	parsed, err := ParseTime(b)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(base.Add(time.Millisecond)))
}

func TestClassify_KeepsExistingClassification(t *testing.T) {
	inner := &Error{Kind: KindConflict, Err: errors.New("busy")}
	out := classify(inner, func(error) ErrorKind { return KindUnique })
	assert.True(t, IsConflict(out))
}

// TestPostgres_Smoke requires a running PostgreSQL instance.
// Set MEMGRAPH_TEST_POSTGRES_URL to run it.
func TestPostgres_Smoke(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	url := os.Getenv("MEMGRAPH_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("MEMGRAPH_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	st, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(ctx))

	id := "pg-smoke-" + time.Now().Format("20060102150405.000000")
	defer st.Reader().Exec(ctx, `DELETE FROM entities WHERE entity_id = ?`, id)

	require.NoError(t, insertEntity(ctx, st.Reader(), id))
	err = insertEntity(ctx, st.Reader(), id)
	assert.True(t, IsUnique(err), "got %v", err)
}
