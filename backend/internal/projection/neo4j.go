// Package projection mirrors the graph into Neo4j as a read model for
// exploration with Cypher. The SQL store stays the source of truth; a
// projection is rebuilt wholesale from a consistent capture.
package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memgraph/backend/internal/snapshot"
	"memgraph/backend/pkg/logger"
)

const (
	// DefaultBatchSize is the number of rows sent per UNWIND statement.
	DefaultBatchSize = 500
	// edgeWorkers bounds concurrent edge batches once entities exist.
	edgeWorkers = 4
)

// Result counts what a projection wrote
type Result struct {
	Entities    int           `json:"entities"`
	ParentLinks int           `json:"parent_links"`
	DirectEdges int           `json:"direct_edges"`
	Chapters    int           `json:"chapters"`
	Duration    time.Duration `json:"duration"`
}

// Neo4jProjector writes graph payloads into Neo4j
type Neo4jProjector struct {
	driver    neo4j.DriverWithContext
	batchSize int
	logger    *zap.Logger
}

// Connect opens a driver and verifies the server is reachable
func Connect(ctx context.Context, uri, user, password string) (*Neo4jProjector, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}
	return NewNeo4jProjector(driver), nil
}

// NewNeo4jProjector wraps an existing driver
func NewNeo4jProjector(driver neo4j.DriverWithContext) *Neo4jProjector {
	return &Neo4jProjector{
		driver:    driver,
		batchSize: DefaultBatchSize,
		logger:    logger.Named("projection"),
	}
}

// WithBatchSize sets the rows sent per UNWIND statement
func (p *Neo4jProjector) WithBatchSize(n int) *Neo4jProjector {
	if n > 0 {
		p.batchSize = n
	}
	return p
}

// Close closes the Neo4j driver connection
func (p *Neo4jProjector) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

// EnsureSchema creates the uniqueness constraints the projection relies on
func (p *Neo4jProjector) EnsureSchema(ctx context.Context) error {
	constraints := []string{
		`CREATE CONSTRAINT memgraph_entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
		`CREATE CONSTRAINT memgraph_chapter_id IF NOT EXISTS FOR (c:Chapter) REQUIRE c.edge_id IS UNIQUE`,
	}
	for _, q := range constraints {
		if err := p.run(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return nil
}

// Project replaces the Neo4j read model with the content of payload
func (p *Neo4jProjector) Project(ctx context.Context, payload *snapshot.Payload) (*Result, error) {
	start := time.Now()

	if err := p.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if err := p.run(ctx, wipeQuery, nil); err != nil {
		return nil, fmt.Errorf("failed to clear projection: %w", err)
	}

	entities := entityRows(payload)
	for _, batch := range batches(entities, p.batchSize) {
		if err := p.run(ctx, entityQuery, map[string]any{"rows": asList(batch)}); err != nil {
			return nil, fmt.Errorf("failed to project entities: %w", err)
		}
	}

	parents := parentRows(payload)
	directs := directEdgeRows(payload)
	chapters := chapterRows(payload)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(edgeWorkers)
	for _, job := range []struct {
		name  string
		query string
		rows  []map[string]any
	}{
		{"parent links", parentQuery, parents},
		{"direct edges", directEdgeQuery, directs},
		{"chapters", chapterQuery, chapters},
	} {
		for _, batch := range batches(job.rows, p.batchSize) {
			job, batch := job, batch
			g.Go(func() error {
				if err := p.run(gctx, job.query, map[string]any{"rows": asList(batch)}); err != nil {
					return fmt.Errorf("failed to project %s: %w", job.name, err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Entities:    len(entities),
		ParentLinks: len(parents),
		DirectEdges: len(directs),
		Chapters:    len(chapters),
		Duration:    time.Since(start),
	}
	p.logger.Info("Projection written",
		zap.Int("entities", res.Entities),
		zap.Int("parent_links", res.ParentLinks),
		zap.Int("direct_edges", res.DirectEdges),
		zap.Int("chapters", res.Chapters),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (p *Neo4jProjector) run(ctx context.Context, query string, params map[string]any) error {
	session := p.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// ============================================================================
// Cypher
// ============================================================================

const wipeQuery = `
	MATCH (n) WHERE n:Entity OR n:Chapter
	DETACH DELETE n
`

const entityQuery = `
	UNWIND $rows AS row
	CREATE (e:Entity {id: row.id})
	SET e.node_type = row.node_type,
	    e.name = row.name,
	    e.content = row.content,
	    e.task_description = row.task_description,
	    e.created_at = row.created_at,
	    e.updated_at = row.updated_at
`

const parentQuery = `
	UNWIND $rows AS row
	MATCH (child:Entity {id: row.child}), (parent:Entity {id: row.parent})
	CREATE (child)-[:BELONGS_TO]->(parent)
`

const directEdgeQuery = `
	UNWIND $rows AS row
	MATCH (from:Entity {id: row.from}), (to:Entity {id: row.to})
	CREATE (from)-[r:DIRECT {edge_id: row.edge_id}]->(to)
	SET r.relation = row.relation,
	    r.content = row.content,
	    r.inheritable = row.inheritable,
	    r.created_at = row.created_at
`

const chapterQuery = `
	UNWIND $rows AS row
	MATCH (from:Entity {id: row.from}), (to:Entity {id: row.to})
	CREATE (c:Chapter {edge_id: row.edge_id})
	SET c.title = row.title,
	    c.content = row.content,
	    c.inheritable = row.inheritable,
	    c.sequence_no = row.sequence_no,
	    c.direct_edge_id = row.direct_edge_id,
	    c.created_at = row.created_at
	CREATE (c)-[:CHAPTER_OF]->(from)
	CREATE (c)-[:CHAPTER_TO]->(to)
`

// ============================================================================
// Row building
// ============================================================================

func entityRows(p *snapshot.Payload) []map[string]any {
	rows := make([]map[string]any, 0, len(p.Entities))
	for _, e := range p.Entities {
		rows = append(rows, map[string]any{
			"id":               e.EntityID,
			"node_type":        e.NodeType,
			"name":             e.Name,
			"content":          e.Content,
			"task_description": e.TaskDescription,
			"created_at":       e.CreatedAt,
			"updated_at":       e.UpdatedAt,
		})
	}
	return rows
}

func parentRows(p *snapshot.Payload) []map[string]any {
	rows := []map[string]any{}
	for _, e := range p.Entities {
		if e.ParentID == "" {
			continue
		}
		rows = append(rows, map[string]any{"child": e.EntityID, "parent": e.ParentID})
	}
	return rows
}

func directEdgeRows(p *snapshot.Payload) []map[string]any {
	rows := make([]map[string]any, 0, len(p.DirectEdges))
	for _, d := range p.DirectEdges {
		rows = append(rows, map[string]any{
			"edge_id":     d.EdgeID,
			"from":        d.FromEntityID,
			"to":          d.ToEntityID,
			"relation":    d.Relation,
			"content":     d.Content,
			"inheritable": d.Inheritable,
			"created_at":  d.CreatedAt,
		})
	}
	return rows
}

func chapterRows(p *snapshot.Payload) []map[string]any {
	rows := make([]map[string]any, 0, len(p.RelayEdges))
	for _, r := range p.RelayEdges {
		rows = append(rows, map[string]any{
			"edge_id":        r.EdgeID,
			"from":           r.FromEntityID,
			"to":             r.ToEntityID,
			"title":          r.Relation,
			"content":        r.Content,
			"inheritable":    r.Inheritable,
			"sequence_no":    r.SequenceNo,
			"direct_edge_id": r.ParentDirectEdgeID,
			"created_at":     r.CreatedAt,
		})
	}
	return rows
}

func batches(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]map[string]any
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}

// asList converts rows to the []any shape the driver packs natively
func asList(rows []map[string]any) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
