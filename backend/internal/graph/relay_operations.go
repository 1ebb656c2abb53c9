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
// Relation Store: Relay Edges (chapters)
// ============================================================================

// CreateRelayEdge appends a chapter to the end of its direct edge's sequence.
// The given endpoints must match the parent's.
func (s *RelationStore) CreateRelayEdge(ctx context.Context, q storage.Querier, in NewRelayEdge) (*RelayEdge, error) {
	if err := ids.ValidateID("parent_direct_edge_id", in.ParentDirectEdgeID); err != nil {
		return nil, err
	}
	if err := requireText("relation", in.Relation); err != nil {
		return nil, err
	}

	parent, err := s.GetDirectEdge(ctx, q, in.ParentDirectEdgeID)
	if err != nil {
		return nil, err
	}
	if parent.FromEntityID != in.FromEntityID || parent.ToEntityID != in.ToEntityID {
		return nil, apperrors.NewEndpointMismatch(parent.EdgeID, in.FromEntityID, in.ToEntityID)
	}

	seq, err := nextSequenceNo(ctx, q, parent.EdgeID)
	if err != nil {
		return nil, err
	}

	id := s.ids.RelayEdgeID()
	now := storage.Now()
	_, err = q.Exec(ctx,
		`INSERT INTO relay_edges (`+relayEdgeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.FromEntityID, in.ToEntityID, in.Relation, in.Content, in.Inheritable,
		parent.EdgeID, seq, storage.FormatTime(now),
	)
	if err != nil {
		// A concurrent append took the same slot; rerunning the transaction
		// allocates the next one.
		if storage.IsUnique(err) {
			return nil, &storage.Error{Kind: storage.KindConflict, Err: err}
		}
		return nil, fmt.Errorf("failed to insert relay edge %s: %w", id, err)
	}

	return &RelayEdge{
		EdgeID:             id,
		FromEntityID:       in.FromEntityID,
		ToEntityID:         in.ToEntityID,
		Relation:           in.Relation,
		Content:            in.Content,
		Inheritable:        in.Inheritable,
		ParentDirectEdgeID: parent.EdgeID,
		SequenceNo:         seq,
		CreatedAt:          now,
	}, nil
}

// GetRelayEdge retrieves a chapter by id
func (s *RelationStore) GetRelayEdge(ctx context.Context, q storage.Querier, id string) (*RelayEdge, error) {
	if err := ids.ValidateID("edge_id", id); err != nil {
		return nil, err
	}
	r, err := scanRelayEdge(q.QueryRow(ctx,
		`SELECT `+relayEdgeColumns+` FROM relay_edges WHERE edge_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("relay_edge", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relay edge %s: %w", id, err)
	}
	return r, nil
}

// ListRelayEdges returns the chapters of a direct edge in creation order. An
// edge without chapters, or an unknown edge, yields an empty slice.
func (s *RelationStore) ListRelayEdges(ctx context.Context, q storage.Querier, parentID string) ([]RelayEdge, error) {
	if err := ids.ValidateID("parent_direct_edge_id", parentID); err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+relayEdgeColumns+` FROM relay_edges WHERE parent_direct_edge_id = ? ORDER BY sequence_no`,
		parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relay edges of %s: %w", parentID, err)
	}
	return collect(rows, scanRelayEdge)
}

// DeleteRelayEdge removes one chapter. Sequence numbers of the others are
// left as they are, and the deleted number is never handed out again.
func (s *RelationStore) DeleteRelayEdge(ctx context.Context, q storage.Querier, id string) error {
	if _, err := s.GetRelayEdge(ctx, q, id); err != nil {
		return err
	}
	if _, err := q.Exec(ctx, `DELETE FROM relay_edges WHERE edge_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete relay edge %s: %w", id, err)
	}
	return nil
}

// nextSequenceNo takes the parent's counter and advances it. The update
// comes first so the row is locked before it is read.
func nextSequenceNo(ctx context.Context, q storage.Querier, parentID string) (int64, error) {
	if _, err := q.Exec(ctx,
		`UPDATE direct_edges SET next_sequence_no = next_sequence_no + 1 WHERE edge_id = ?`, parentID); err != nil {
		return 0, fmt.Errorf("failed to allocate sequence for %s: %w", parentID, err)
	}
	var seq int64
	err := q.QueryRow(ctx,
		`SELECT next_sequence_no - 1 FROM direct_edges WHERE edge_id = ?`, parentID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence for %s: %w", parentID, err)
	}
	return seq, nil
}
