package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"memgraph/backend/internal/ids"
	"memgraph/backend/internal/storage"
	apperrors "memgraph/backend/pkg/errors"
)

// ============================================================================
// Parent/Child Hierarchy (BELONGS_TO)
// ============================================================================

// maxHierarchyDepth bounds ancestor walks so corrupted data cannot loop forever.
const maxHierarchyDepth = 10000

// LinkParent sets childID's parent, replacing any previous one. It fails with
// ErrCycle when parentID is childID or one of its descendants.
func (s *EntityStore) LinkParent(ctx context.Context, q storage.Querier, childID, parentID string) error {
	if err := ids.ValidateID("child_id", childID); err != nil {
		return err
	}
	if err := ids.ValidateID("parent_id", parentID); err != nil {
		return err
	}
	if _, err := s.Get(ctx, q, childID); err != nil {
		return err
	}
	if _, err := s.Get(ctx, q, parentID); err != nil {
		return err
	}

	// Walk up from the new parent; meeting the child means the child would
	// become its own ancestor.
	path := []string{parentID}
	cur := parentID
	for depth := 0; ; depth++ {
		if cur == childID {
			return apperrors.NewCycle(childID, parentID, path)
		}
		if depth > maxHierarchyDepth {
			return fmt.Errorf("ancestor walk from %s exceeded %d levels", parentID, maxHierarchyDepth)
		}
		next, err := s.parentOf(ctx, q, cur)
		if err != nil {
			return err
		}
		if next == "" {
			break
		}
		path = append(path, next)
		cur = next
	}

	_, err := q.Exec(ctx,
		`UPDATE entities SET parent_id = ?, updated_at = ? WHERE entity_id = ?`,
		parentID, storage.FormatTime(storage.Now()), childID,
	)
	if err != nil {
		return fmt.Errorf("failed to link %s to %s: %w", childID, parentID, err)
	}
	return nil
}

// UnlinkParent clears childID's parent. Clearing an absent parent is a no-op.
func (s *EntityStore) UnlinkParent(ctx context.Context, q storage.Querier, childID string) error {
	e, err := s.Get(ctx, q, childID)
	if err != nil {
		return err
	}
	if e.ParentID == "" {
		return nil
	}
	_, err = q.Exec(ctx,
		`UPDATE entities SET parent_id = NULL, updated_at = ? WHERE entity_id = ?`,
		storage.FormatTime(storage.Now()), childID,
	)
	if err != nil {
		return fmt.Errorf("failed to unlink %s: %w", childID, err)
	}
	return nil
}

// Children lists direct children ordered by id
func (s *EntityStore) Children(ctx context.Context, q storage.Querier, id string) ([]Entity, error) {
	if _, err := s.Get(ctx, q, id); err != nil {
		return nil, err
	}
	return s.List(ctx, q, EntityFilter{ParentID: id})
}

// Ancestors lists the strict ancestors of id, nearest first
func (s *EntityStore) Ancestors(ctx context.Context, q storage.Querier, id string) ([]Entity, error) {
	e, err := s.Get(ctx, q, id)
	if err != nil {
		return nil, err
	}

	out := []Entity{}
	seen := map[string]bool{id: true}
	for e.ParentID != "" {
		if seen[e.ParentID] {
			return nil, fmt.Errorf("hierarchy above %s loops at %s", id, e.ParentID)
		}
		seen[e.ParentID] = true

		e, err = s.Get(ctx, q, e.ParentID)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *EntityStore) parentOf(ctx context.Context, q storage.Querier, id string) (string, error) {
	var parent sql.NullString
	err := q.QueryRow(ctx, `SELECT parent_id FROM entities WHERE entity_id = ?`, id).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewNotFound("entity", id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read parent of %s: %w", id, err)
	}
	return parent.String, nil
}

func (s *EntityStore) childIDs(ctx context.Context, q storage.Querier, id string) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT entity_id FROM entities WHERE parent_id = ? ORDER BY entity_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", id, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, rows.Err()
}
