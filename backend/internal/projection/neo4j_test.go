package projection

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memgraph/backend/internal/snapshot"
)

func samplePayload() *snapshot.Payload {
	return &snapshot.Payload{
		Version: snapshot.PayloadVersion,
		Entities: []snapshot.EntityRecord{
			{EntityID: "agent", NodeType: "character", Name: "Agent"},
			{EntityID: "user", NodeType: "character", Name: "User"},
			{EntityID: "terminal", NodeType: "location", Name: "Terminal", ParentID: "agent"},
		},
		DirectEdges: []snapshot.DirectEdgeRecord{
			{EdgeID: "de_1", FromEntityID: "agent", ToEntityID: "user", Relation: "SERVES", Inheritable: true},
		},
		RelayEdges: []snapshot.RelayEdgeRecord{
			{EdgeID: "re_1", FromEntityID: "agent", ToEntityID: "user", Relation: "first_run", ParentDirectEdgeID: "de_1", SequenceNo: 1},
			{EdgeID: "re_2", FromEntityID: "agent", ToEntityID: "user", Relation: "second_run", ParentDirectEdgeID: "de_1", SequenceNo: 2},
		},
	}
}

func TestRows(t *testing.T) {
	p := samplePayload()

	entities := entityRows(p)
	require.Len(t, entities, 3)
	assert.Equal(t, "agent", entities[0]["id"])
	assert.Equal(t, "character", entities[0]["node_type"])

	parents := parentRows(p)
	require.Len(t, parents, 1)
	assert.Equal(t, map[string]any{"child": "terminal", "parent": "agent"}, parents[0])

	directs := directEdgeRows(p)
	require.Len(t, directs, 1)
	assert.Equal(t, "SERVES", directs[0]["relation"])
	assert.Equal(t, true, directs[0]["inheritable"])

	chapters := chapterRows(p)
	require.Len(t, chapters, 2)
	assert.Equal(t, "first_run", chapters[0]["title"])
	assert.Equal(t, "de_1", chapters[0]["direct_edge_id"])
	assert.Equal(t, int64(2), chapters[1]["sequence_no"])
}

func TestBatches(t *testing.T) {
	rows := make([]map[string]any, 7)
	for i := range rows {
		rows[i] = map[string]any{"i": i}
	}

	got := batches(rows, 3)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 3)
	assert.Len(t, got[2], 1)
	assert.Equal(t, 6, got[2][0]["i"])

	assert.Empty(t, batches(nil, 3))
	assert.Len(t, batches(rows, 0), 1)
	assert.Len(t, asList(rows), 7)
}

// TestNeo4jProjector_Project requires a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.
func TestNeo4jProjector_Project(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}

	ctx := context.Background()
	proj, err := Connect(ctx, uri, os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"))
	require.NoError(t, err)
	defer proj.Close(ctx)

	res, err := proj.Project(ctx, samplePayload())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Entities)
	assert.Equal(t, 1, res.ParentLinks)
	assert.Equal(t, 1, res.DirectEdges)
	assert.Equal(t, 2, res.Chapters)

	session := proj.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	result, err := session.Run(ctx, `
		MATCH (c:Chapter)-[:CHAPTER_OF]->(:Entity {id: 'agent'})
		RETURN c.title AS title ORDER BY c.sequence_no`, nil)
	require.NoError(t, err)

	var titles []string
	for result.Next(ctx) {
		title, _ := result.Record().Get("title")
		titles = append(titles, title.(string))
	}
	require.NoError(t, result.Err())
	assert.Equal(t, []string{"first_run", "second_run"}, titles)
}
