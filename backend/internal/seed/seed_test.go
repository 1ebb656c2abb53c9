package seed

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/storage"
	apperrors "memgraph/backend/pkg/errors"
)

func openTestClient(t *testing.T) *graph.Client {
	t.Helper()
	ctx := context.Background()
	st, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	c, err := graph.Open(ctx, st, graph.Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInsertDemoData(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()

	sum, err := InsertDemoData(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{AgentID, UserID, TerminalID}, sum.EntityIDs)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, graph.Stats{Entities: 3, DirectEdges: 1, RelayEdges: 1}, *stats)

	chapters, err := c.ListRelayEdges(ctx, sum.DirectEdgeID)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, FirstChapter, chapters[0].Relation)
	assert.Equal(t, sum.ChapterID, chapters[0].EdgeID)

	terminal, err := c.GetEntity(ctx, TerminalID)
	require.NoError(t, err)
	assert.Equal(t, AgentID, terminal.ParentID)

	edge, err := c.GetDirectEdge(ctx, sum.DirectEdgeID)
	require.NoError(t, err)
	assert.True(t, edge.Inheritable)
	assert.Equal(t, ServesRelation, edge.Relation)
}

func TestInsertDemoData_SecondRunFailsAtFirstStep(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()
	_, err := InsertDemoData(ctx, c)
	require.NoError(t, err)

	_, err = InsertDemoData(ctx, c)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "create agent", stepErr.Step)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDuplicateID))
}

func TestSeedIfEmpty(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()

	seeded, err := SeedIfEmpty(ctx, c)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = SeedIfEmpty(ctx, c)
	require.NoError(t, err)
	assert.False(t, seeded)
}

// failingWriter fails LinkParent and records what was called
type failingWriter struct {
	GraphWriter
	calls []string
}

func (f *failingWriter) LinkParent(ctx context.Context, childID, parentID string) error {
	f.calls = append(f.calls, "link")
	return errors.New("link refused")
}

func TestInsertDemoData_ReportsFailingStep(t *testing.T) {
	c := openTestClient(t)
	w := &failingWriter{GraphWriter: c}

	sum, err := InsertDemoData(context.Background(), w)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "link terminal to agent", stepErr.Step)
	assert.EqualError(t, stepErr.Err, "link refused")
	assert.Len(t, sum.EntityIDs, 3)
	assert.Equal(t, []string{"link"}, w.calls)
}
