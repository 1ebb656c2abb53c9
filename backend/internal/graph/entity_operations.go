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
// Entity Store
// ============================================================================

// EntityStore implements entity CRUD against a Querier. It keeps no state of
// its own; transactions are owned by the caller.
type EntityStore struct {
	ids *ids.Generator
}

// Create inserts a new entity
func (s *EntityStore) Create(ctx context.Context, q storage.Querier, in NewEntity) (*Entity, error) {
	if err := requireText("node_type", in.NodeType); err != nil {
		return nil, err
	}
	if err := requireText("name", in.Name); err != nil {
		return nil, err
	}

	id := in.EntityID
	if id == "" {
		id = s.ids.EntityID(in.NodeType, in.Name)
	}
	if err := ids.ValidateID("entity_id", id); err != nil {
		return nil, err
	}

	exists, err := s.exists(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check entity %s: %w", id, err)
	}
	if exists {
		return nil, apperrors.NewDuplicateID(id, nil)
	}

	if in.ParentID != "" {
		if err := ids.ValidateID("parent_id", in.ParentID); err != nil {
			return nil, err
		}
		if in.ParentID == id {
			return nil, apperrors.NewCycle(id, in.ParentID, []string{id, id})
		}
		if _, err := s.Get(ctx, q, in.ParentID); err != nil {
			return nil, err
		}
	}

	now := storage.Now()
	_, err = q.Exec(ctx,
		`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.NodeType, in.Name, in.Content, nullString(in.TaskDescription), nullString(in.ParentID),
		storage.FormatTime(now), storage.FormatTime(now),
	)
	if err != nil {
		if storage.IsUnique(err) {
			return nil, apperrors.NewDuplicateID(id, err)
		}
		return nil, fmt.Errorf("failed to insert entity %s: %w", id, err)
	}

	return &Entity{
		EntityID:        id,
		NodeType:        in.NodeType,
		Name:            in.Name,
		Content:         in.Content,
		TaskDescription: in.TaskDescription,
		ParentID:        in.ParentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Get retrieves an entity, failing with ErrNotFound if absent
func (s *EntityStore) Get(ctx context.Context, q storage.Querier, id string) (*Entity, error) {
	if err := ids.ValidateID("entity_id", id); err != nil {
		return nil, err
	}
	e, err := scanEntity(q.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE entity_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("entity", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entity %s: %w", id, err)
	}
	return e, nil
}

// Update applies the non-nil fields of patch
func (s *EntityStore) Update(ctx context.Context, q storage.Querier, id string, patch EntityPatch) (*Entity, error) {
	e, err := s.Get(ctx, q, id)
	if err != nil {
		return nil, err
	}

	if patch.NodeType != nil {
		if err := requireText("node_type", *patch.NodeType); err != nil {
			return nil, err
		}
		e.NodeType = *patch.NodeType
	}
	if patch.Name != nil {
		if err := requireText("name", *patch.Name); err != nil {
			return nil, err
		}
		e.Name = *patch.Name
	}
	if patch.Content != nil {
		e.Content = *patch.Content
	}
	if patch.TaskDescription != nil {
		e.TaskDescription = *patch.TaskDescription
	}
	e.UpdatedAt = storage.Now()

	_, err = q.Exec(ctx,
		`UPDATE entities SET node_type = ?, name = ?, content = ?, task_description = ?, updated_at = ? WHERE entity_id = ?`,
		e.NodeType, e.Name, e.Content, nullString(e.TaskDescription), storage.FormatTime(e.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update entity %s: %w", id, err)
	}
	return e, nil
}

// List returns entities matching filter ordered by id
func (s *EntityStore) List(ctx context.Context, q storage.Querier, filter EntityFilter) ([]Entity, error) {
	var (
		where []string
		args  []any
	)
	if filter.NodeType != "" {
		where = append(where, "node_type = ?")
		args = append(args, filter.NodeType)
	}
	if filter.ParentID != "" {
		where = append(where, "parent_id = ?")
		args = append(args, filter.ParentID)
	}

	query := `SELECT ` + entityColumns + ` FROM entities`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY entity_id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return collect(rows, scanEntity)
}

// Delete removes an entity. With cascade it removes descendants depth-first
// together with every edge touching a removed entity.
func (s *EntityStore) Delete(ctx context.Context, q storage.Querier, rel *RelationStore, id string, cascade bool) (DeleteResult, error) {
	if _, err := s.Get(ctx, q, id); err != nil {
		return DeleteResult{}, err
	}

	if !cascade {
		if err := s.checkUnreferenced(ctx, q, id); err != nil {
			return DeleteResult{}, err
		}
	}
	return s.deleteTree(ctx, q, rel, id, 0)
}

func (s *EntityStore) checkUnreferenced(ctx context.Context, q storage.Querier, id string) error {
	children, err := countRows(ctx, q, `SELECT COUNT(*) FROM entities WHERE parent_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to count children of %s: %w", id, err)
	}
	if children > 0 {
		return apperrors.NewDependency("entity", id, children, "child entities")
	}

	edges, err := countRows(ctx, q,
		`SELECT COUNT(*) FROM direct_edges WHERE from_entity_id = ? OR to_entity_id = ?`, id, id)
	if err != nil {
		return fmt.Errorf("failed to count direct edges of %s: %w", id, err)
	}
	relays, err := countRows(ctx, q,
		`SELECT COUNT(*) FROM relay_edges WHERE from_entity_id = ? OR to_entity_id = ?`, id, id)
	if err != nil {
		return fmt.Errorf("failed to count relay edges of %s: %w", id, err)
	}
	if edges+relays > 0 {
		return apperrors.NewDependency("entity", id, edges+relays, "edges")
	}
	return nil
}

func (s *EntityStore) deleteTree(ctx context.Context, q storage.Querier, rel *RelationStore, id string, depth int) (DeleteResult, error) {
	if depth > maxHierarchyDepth {
		return DeleteResult{}, fmt.Errorf("hierarchy under %s deeper than %d", id, maxHierarchyDepth)
	}
	if err := ctx.Err(); err != nil {
		return DeleteResult{}, err
	}

	var res DeleteResult
	children, err := s.childIDs(ctx, q, id)
	if err != nil {
		return DeleteResult{}, err
	}
	for _, child := range children {
		sub, err := s.deleteTree(ctx, q, rel, child, depth+1)
		if err != nil {
			return DeleteResult{}, err
		}
		res.add(sub)
	}

	edges, err := rel.deleteTouching(ctx, q, id)
	if err != nil {
		return DeleteResult{}, err
	}
	res.add(edges)

	out, err := q.Exec(ctx, `DELETE FROM entities WHERE entity_id = ?`, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete entity %s: %w", id, err)
	}
	res.Entities += rowsAffected(out)
	return res, nil
}

func (s *EntityStore) exists(ctx context.Context, q storage.Querier, id string) (bool, error) {
	n, err := countRows(ctx, q, `SELECT COUNT(*) FROM entities WHERE entity_id = ?`, id)
	return n > 0, err
}
