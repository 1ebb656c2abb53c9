package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"memgraph/backend/internal/ids"
	"memgraph/backend/internal/storage"
	apperrors "memgraph/backend/pkg/errors"
)

// ============================================================================
// Relation Store: Direct Edges
// ============================================================================

// RelationStore implements direct and relay edge operations against a
// Querier.
type RelationStore struct {
	ids *ids.Generator
}

// CreateDirectEdge inserts a relation between two existing entities
func (s *RelationStore) CreateDirectEdge(ctx context.Context, q storage.Querier, in NewDirectEdge) (*DirectEdge, error) {
	if err := ids.ValidateID("from_entity_id", in.FromEntityID); err != nil {
		return nil, err
	}
	if err := ids.ValidateID("to_entity_id", in.ToEntityID); err != nil {
		return nil, err
	}
	if err := requireText("relation", in.Relation); err != nil {
		return nil, err
	}
	if err := requireEntities(ctx, q, in.FromEntityID, in.ToEntityID); err != nil {
		return nil, err
	}

	id := s.ids.DirectEdgeID(in.FromEntityID, in.ToEntityID, in.Relation)
	if existing, err := s.FindDirectEdge(ctx, q, in.FromEntityID, in.ToEntityID, in.Relation); err == nil {
		return nil, apperrors.NewDuplicateRelation(in.FromEntityID, in.ToEntityID, in.Relation, existing.EdgeID, nil)
	} else if !apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	now := storage.Now()
	_, err := q.Exec(ctx,
		`INSERT INTO direct_edges (`+directEdgeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.FromEntityID, in.ToEntityID, in.Relation, in.Content, in.Inheritable, storage.FormatTime(now),
	)
	if err != nil {
		if storage.IsUnique(err) {
			return nil, apperrors.NewDuplicateRelation(in.FromEntityID, in.ToEntityID, in.Relation, id, err)
		}
		if storage.IsForeignKey(err) {
			return nil, apperrors.NewNotFound("entity", in.FromEntityID+" or "+in.ToEntityID)
		}
		return nil, fmt.Errorf("failed to insert direct edge %s: %w", id, err)
	}

	return &DirectEdge{
		EdgeID:       id,
		FromEntityID: in.FromEntityID,
		ToEntityID:   in.ToEntityID,
		Relation:     in.Relation,
		Content:      in.Content,
		Inheritable:  in.Inheritable,
		CreatedAt:    now,
	}, nil
}

// GetDirectEdge retrieves a direct edge by id
func (s *RelationStore) GetDirectEdge(ctx context.Context, q storage.Querier, id string) (*DirectEdge, error) {
	if err := ids.ValidateID("edge_id", id); err != nil {
		return nil, err
	}
	d, err := scanDirectEdge(q.QueryRow(ctx,
		`SELECT `+directEdgeColumns+` FROM direct_edges WHERE edge_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("direct_edge", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch direct edge %s: %w", id, err)
	}
	return d, nil
}

// FindDirectEdge retrieves the direct edge for (from, to, relation)
func (s *RelationStore) FindDirectEdge(ctx context.Context, q storage.Querier, from, to, relation string) (*DirectEdge, error) {
	d, err := scanDirectEdge(q.QueryRow(ctx,
		`SELECT `+directEdgeColumns+` FROM direct_edges WHERE from_entity_id = ? AND to_entity_id = ? AND relation = ?`,
		from, to, relation))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("direct_edge", from+" -"+relation+"-> "+to)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find direct edge: %w", err)
	}
	return d, nil
}

// ListDirectEdges returns edges matching filter in creation order
func (s *RelationStore) ListDirectEdges(ctx context.Context, q storage.Querier, filter EdgeFilter) ([]DirectEdge, error) {
	var (
		where []string
		args  []any
	)
	if filter.EntityID != "" {
		switch filter.Direction {
		case DirectionOut:
			where = append(where, "from_entity_id = ?")
			args = append(args, filter.EntityID)
		case DirectionIn:
			where = append(where, "to_entity_id = ?")
			args = append(args, filter.EntityID)
		case DirectionBoth, "":
			where = append(where, "(from_entity_id = ? OR to_entity_id = ?)")
			args = append(args, filter.EntityID, filter.EntityID)
		default:
			return nil, apperrors.NewValidation("direction", fmt.Sprintf("unknown direction %q", filter.Direction))
		}
	}
	if filter.Relation != "" {
		where = append(where, "relation = ?")
		args = append(args, filter.Relation)
	}

	query := `SELECT ` + directEdgeColumns + ` FROM direct_edges`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, edge_id`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct edges: %w", err)
	}
	return collect(rows, scanDirectEdge)
}

// UpdateDirectEdge changes content and/or the inheritable flag
func (s *RelationStore) UpdateDirectEdge(ctx context.Context, q storage.Querier, id string, patch DirectEdgePatch) (*DirectEdge, error) {
	d, err := s.GetDirectEdge(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if patch.Content != nil {
		d.Content = *patch.Content
	}
	if patch.Inheritable != nil {
		d.Inheritable = *patch.Inheritable
	}

	_, err = q.Exec(ctx,
		`UPDATE direct_edges SET content = ?, inheritable = ? WHERE edge_id = ?`,
		d.Content, d.Inheritable, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update direct edge %s: %w", id, err)
	}
	return d, nil
}

// DeleteDirectEdge removes a direct edge, and its chapters when cascade is set
func (s *RelationStore) DeleteDirectEdge(ctx context.Context, q storage.Querier, id string, cascade bool) (DeleteResult, error) {
	if _, err := s.GetDirectEdge(ctx, q, id); err != nil {
		return DeleteResult{}, err
	}

	var res DeleteResult
	if !cascade {
		n, err := countRows(ctx, q, `SELECT COUNT(*) FROM relay_edges WHERE parent_direct_edge_id = ?`, id)
		if err != nil {
			return DeleteResult{}, fmt.Errorf("failed to count chapters of %s: %w", id, err)
		}
		if n > 0 {
			return DeleteResult{}, apperrors.NewDependency("direct_edge", id, n, "relay edges")
		}
	} else {
		out, err := q.Exec(ctx, `DELETE FROM relay_edges WHERE parent_direct_edge_id = ?`, id)
		if err != nil {
			return DeleteResult{}, fmt.Errorf("failed to delete chapters of %s: %w", id, err)
		}
		res.RelayEdges = rowsAffected(out)
	}

	out, err := q.Exec(ctx, `DELETE FROM direct_edges WHERE edge_id = ?`, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete direct edge %s: %w", id, err)
	}
	res.DirectEdges = rowsAffected(out)
	return res, nil
}

// InheritableFrom lists the inheritable direct edges leaving each of the given
// entities, preserving their order.
func (s *RelationStore) InheritableFrom(ctx context.Context, q storage.Querier, from []Entity) ([]DirectEdge, error) {
	out := []DirectEdge{}
	for _, e := range from {
		rows, err := q.Query(ctx,
			`SELECT `+directEdgeColumns+` FROM direct_edges WHERE from_entity_id = ? AND inheritable = ? ORDER BY created_at, edge_id`,
			e.EntityID, true)
		if err != nil {
			return nil, fmt.Errorf("failed to list inheritable edges of %s: %w", e.EntityID, err)
		}
		edges, err := collect(rows, scanDirectEdge)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	return out, nil
}

// deleteTouching removes every relay and direct edge with id as an endpoint,
// along with chapters hung off those direct edges.
func (s *RelationStore) deleteTouching(ctx context.Context, q storage.Querier, id string) (DeleteResult, error) {
	var res DeleteResult

	out, err := q.Exec(ctx,
		`DELETE FROM relay_edges
		 WHERE from_entity_id = ? OR to_entity_id = ?
		    OR parent_direct_edge_id IN (
		        SELECT edge_id FROM direct_edges WHERE from_entity_id = ? OR to_entity_id = ?)`,
		id, id, id, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete relay edges of %s: %w", id, err)
	}
	res.RelayEdges = rowsAffected(out)

	out, err = q.Exec(ctx, `DELETE FROM direct_edges WHERE from_entity_id = ? OR to_entity_id = ?`, id, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete direct edges of %s: %w", id, err)
	}
	res.DirectEdges = rowsAffected(out)
	return res, nil
}

// requireEntities fails with ErrNotFound naming the first missing id
func requireEntities(ctx context.Context, q storage.Querier, entityIDs ...string) error {
	for _, id := range entityIDs {
		n, err := countRows(ctx, q, `SELECT COUNT(*) FROM entities WHERE entity_id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to check entity %s: %w", id, err)
		}
		if n == 0 {
			return apperrors.NewNotFound("entity", id)
		}
	}
	return nil
}
