package graph

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"memgraph/backend/internal/storage"
	apperrors "memgraph/backend/pkg/errors"
)

// ============================================================================
// Helper Functions
// ============================================================================

const (
	entityColumns     = `entity_id, node_type, name, content, task_description, parent_id, created_at, updated_at`
	directEdgeColumns = `edge_id, from_entity_id, to_entity_id, relation, content, inheritable, created_at`
	relayEdgeColumns  = `edge_id, from_entity_id, to_entity_id, relation, content, inheritable, parent_direct_edge_id, sequence_no, created_at`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*Entity, error) {
	var (
		e                Entity
		task, parent     sql.NullString
		created, updated string
	)
	if err := row.Scan(&e.EntityID, &e.NodeType, &e.Name, &e.Content, &task, &parent, &created, &updated); err != nil {
		return nil, err
	}
	e.TaskDescription = task.String
	e.ParentID = parent.String

	var err error
	if e.CreatedAt, err = storage.ParseTime(created); err != nil {
		return nil, fmt.Errorf("entity %s created_at: %w", e.EntityID, err)
	}
	if e.UpdatedAt, err = storage.ParseTime(updated); err != nil {
		return nil, fmt.Errorf("entity %s updated_at: %w", e.EntityID, err)
	}
	return &e, nil
}

func scanDirectEdge(row scanner) (*DirectEdge, error) {
	var (
		d       DirectEdge
		created string
	)
	if err := row.Scan(&d.EdgeID, &d.FromEntityID, &d.ToEntityID, &d.Relation, &d.Content, &d.Inheritable, &created); err != nil {
		return nil, err
	}
	t, err := storage.ParseTime(created)
	if err != nil {
		return nil, fmt.Errorf("direct edge %s created_at: %w", d.EdgeID, err)
	}
	d.CreatedAt = t
	return &d, nil
}

func scanRelayEdge(row scanner) (*RelayEdge, error) {
	var (
		r       RelayEdge
		created string
	)
	if err := row.Scan(&r.EdgeID, &r.FromEntityID, &r.ToEntityID, &r.Relation, &r.Content, &r.Inheritable,
		&r.ParentDirectEdgeID, &r.SequenceNo, &created); err != nil {
		return nil, err
	}
	t, err := storage.ParseTime(created)
	if err != nil {
		return nil, fmt.Errorf("relay edge %s created_at: %w", r.EdgeID, err)
	}
	r.CreatedAt = t
	return &r, nil
}

func collect[T any](rows *sql.Rows, scan func(scanner) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// nullString stores "" as NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func countRows(ctx context.Context, q storage.Querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewValidation(field, "must not be empty")
	}
	return nil
}
