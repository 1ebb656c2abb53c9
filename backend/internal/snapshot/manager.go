// Package snapshot captures and restores point-in-time copies of the whole
// graph. Capture and restore run while holding the client's write gate
// exclusively, so no graph write interleaves with them, and inside a single
// transaction, so readers see either the old graph or the new one.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/ids"
	"memgraph/backend/internal/storage"
	apperrors "memgraph/backend/pkg/errors"
	"memgraph/backend/pkg/logger"
)

// Status is the lifecycle state of a stored snapshot
type Status string

const (
	StatusAvailable Status = "available"
	// StatusRestored marks a snapshot the live graph was restored from. The
	// snapshot stays restorable.
	StatusRestored Status = "restored"
)

// Meta describes a stored snapshot without its payload
type Meta struct {
	SnapshotID      string     `json:"snapshot_id"`
	Label           string     `json:"label"`
	CreatedAt       time.Time  `json:"created_at"`
	Status          Status     `json:"status"`
	RestoredAt      *time.Time `json:"restored_at,omitempty"`
	EntityCount     int        `json:"entity_count"`
	DirectEdgeCount int        `json:"direct_edge_count"`
	RelayEdgeCount  int        `json:"relay_edge_count"`
	SizeBytes       int64      `json:"size_bytes"`
}

// RetentionPolicy selects snapshots for Prune. A snapshot is pruned when it
// falls outside the KeepLast newest or is older than MaxAge. Zero disables a
// rule. The newest snapshot is never pruned.
type RetentionPolicy struct {
	KeepLast int
	MaxAge   time.Duration
}

const metaColumns = `snapshot_id, label, created_at, status, restored_at,
	entity_count, direct_edge_count, relay_edge_count, size_bytes`

// Manager creates, lists, restores and prunes snapshots of one graph client
type Manager struct {
	client *graph.Client
	ids    *ids.Generator
	logger *zap.Logger
	now    func() time.Time
}

// NewManager returns a manager over client's storage
func NewManager(client *graph.Client) *Manager {
	return &Manager{
		client: client,
		ids:    client.Generator(),
		logger: logger.Named("snapshot"),
		now:    storage.Now,
	}
}

// WithLogger replaces the manager's logger
func (m *Manager) WithLogger(l *zap.Logger) *Manager {
	m.logger = l
	return m
}

// Create captures the current graph and stores it as a new snapshot
func (m *Manager) Create(ctx context.Context, label string) (*Meta, error) {
	var meta *Meta
	err := m.client.TransactExclusive(ctx, "create_snapshot", storage.TxWrite, func(q storage.Querier) error {
		p, err := capture(ctx, q)
		if err != nil {
			return err
		}
		data, err := Encode(p)
		if err != nil {
			return err
		}

		created := m.now()
		meta = &Meta{
			SnapshotID:      m.ids.SnapshotID(),
			Label:           label,
			CreatedAt:       created,
			Status:          StatusAvailable,
			EntityCount:     len(p.Entities),
			DirectEdgeCount: len(p.DirectEdges),
			RelayEdgeCount:  len(p.RelayEdges),
			SizeBytes:       int64(len(data)),
		}
		_, err = q.Exec(ctx,
			`INSERT INTO snapshots (`+metaColumns+`, payload) VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
			meta.SnapshotID, meta.Label, storage.FormatTime(created), string(meta.Status),
			meta.EntityCount, meta.DirectEdgeCount, meta.RelayEdgeCount, meta.SizeBytes, data,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Snapshot created",
		zap.String("snapshot_id", meta.SnapshotID),
		zap.String("label", label),
		zap.Int("entities", meta.EntityCount),
		zap.Int("direct_edges", meta.DirectEdgeCount),
		zap.Int("relay_edges", meta.RelayEdgeCount),
		zap.Int64("size_bytes", meta.SizeBytes),
	)
	return meta, nil
}

// Restore replaces the live graph with the snapshot's content. On any
// failure, including cancellation, the live graph is left untouched.
func (m *Manager) Restore(ctx context.Context, snapshotID string) error {
	if err := ids.ValidateID("snapshot_id", snapshotID); err != nil {
		return err
	}

	var p *Payload
	err := m.client.TransactExclusive(ctx, "restore_snapshot", storage.TxWrite, func(q storage.Querier) error {
		var data []byte
		err := q.QueryRow(ctx, `SELECT payload FROM snapshots WHERE snapshot_id = ?`, snapshotID).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("snapshot", snapshotID)
		}
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", snapshotID, err)
		}
		if p, err = Decode(data); err != nil {
			return err
		}

		if err := replace(ctx, q, p); err != nil {
			return err
		}

		_, err = q.Exec(ctx,
			`UPDATE snapshots SET status = ?, restored_at = ? WHERE snapshot_id = ?`,
			string(StatusRestored), storage.FormatTime(m.now()), snapshotID)
		if err != nil {
			return fmt.Errorf("mark snapshot %s restored: %w", snapshotID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Snapshot restored",
		zap.String("snapshot_id", snapshotID),
		zap.Int("entities", len(p.Entities)),
		zap.Int("direct_edges", len(p.DirectEdges)),
		zap.Int("relay_edges", len(p.RelayEdges)),
	)
	return nil
}

// List returns all snapshots, newest first
func (m *Manager) List(ctx context.Context) ([]Meta, error) {
	rows, err := m.client.Store().Reader().Query(ctx,
		`SELECT `+metaColumns+` FROM snapshots ORDER BY created_at DESC, snapshot_id DESC`)
	if err != nil {
		return nil, m.surface("list_snapshots", err)
	}
	defer rows.Close()

	out := []Meta{}
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, m.surface("list_snapshots", err)
		}
		out = append(out, *meta)
	}
	if err := rows.Err(); err != nil {
		return nil, m.surface("list_snapshots", err)
	}
	return out, nil
}

// Get returns one snapshot's metadata
func (m *Manager) Get(ctx context.Context, snapshotID string) (*Meta, error) {
	if err := ids.ValidateID("snapshot_id", snapshotID); err != nil {
		return nil, err
	}
	meta, err := scanMeta(m.client.Store().Reader().QueryRow(ctx,
		`SELECT `+metaColumns+` FROM snapshots WHERE snapshot_id = ?`, snapshotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("snapshot", snapshotID)
	}
	if err != nil {
		return nil, m.surface("get_snapshot", err)
	}
	return meta, nil
}

// Load returns a stored snapshot's decoded payload
func (m *Manager) Load(ctx context.Context, snapshotID string) (*Payload, error) {
	if err := ids.ValidateID("snapshot_id", snapshotID); err != nil {
		return nil, err
	}
	var data []byte
	err := m.client.Store().Reader().QueryRow(ctx,
		`SELECT payload FROM snapshots WHERE snapshot_id = ?`, snapshotID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("snapshot", snapshotID)
	}
	if err != nil {
		return nil, m.surface("load_snapshot", err)
	}
	return Decode(data)
}

// surface logs a failed read the way the client logs failed transactions
func (m *Manager) surface(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	m.logger.Error("Storage failure",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return apperrors.NewStorage(operation, err)
}

// Capture reads the live graph into memory from one consistent view without
// storing it.
func (m *Manager) Capture(ctx context.Context) (*Payload, error) {
	var p *Payload
	err := m.client.TransactExclusive(ctx, "capture_graph", storage.TxSnapshotRead, func(q storage.Querier) error {
		var err error
		p, err = capture(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Prune deletes snapshots outside policy and returns how many were removed
func (m *Manager) Prune(ctx context.Context, policy RetentionPolicy) (int, error) {
	if policy.KeepLast < 0 || policy.MaxAge < 0 {
		return 0, apperrors.NewValidation("policy", "keep_last and max_age must not be negative")
	}
	if policy.KeepLast == 0 && policy.MaxAge == 0 {
		return 0, nil
	}

	deleted := 0
	err := m.client.Transact(ctx, "prune_snapshots", func(q storage.Querier) error {
		deleted = 0
		rows, err := q.Query(ctx, `SELECT snapshot_id, created_at FROM snapshots ORDER BY created_at DESC, snapshot_id DESC`)
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}
		type entry struct {
			id      string
			created string
		}
		var all []entry
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var e entry
				if err := rows.Scan(&e.id, &e.created); err != nil {
					return err
				}
				all = append(all, e)
			}
			return rows.Err()
		}()
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}

		cutoff := m.now().Add(-policy.MaxAge)
		for i, e := range all {
			if i == 0 {
				continue
			}
			expired := policy.KeepLast > 0 && i >= policy.KeepLast
			if !expired && policy.MaxAge > 0 {
				created, err := storage.ParseTime(e.created)
				if err != nil {
					return fmt.Errorf("snapshot %s created_at: %w", e.id, err)
				}
				expired = created.Before(cutoff)
			}
			if !expired {
				continue
			}
			out, err := q.Exec(ctx, `DELETE FROM snapshots WHERE snapshot_id = ?`, e.id)
			if err != nil {
				return fmt.Errorf("delete snapshot %s: %w", e.id, err)
			}
			if n, err := out.RowsAffected(); err == nil {
				deleted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		m.logger.Info("Snapshots pruned",
			zap.Int("deleted", deleted),
			zap.Int("keep_last", policy.KeepLast),
			zap.Duration("max_age", policy.MaxAge),
		)
	}
	return deleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(row scanner) (*Meta, error) {
	var (
		meta            Meta
		created, status string
		restoredAt      sql.NullString
	)
	err := row.Scan(&meta.SnapshotID, &meta.Label, &created, &status, &restoredAt,
		&meta.EntityCount, &meta.DirectEdgeCount, &meta.RelayEdgeCount, &meta.SizeBytes)
	if err != nil {
		return nil, err
	}
	meta.Status = Status(status)
	if meta.CreatedAt, err = storage.ParseTime(created); err != nil {
		return nil, fmt.Errorf("snapshot %s created_at: %w", meta.SnapshotID, err)
	}
	if restoredAt.Valid {
		t, err := storage.ParseTime(restoredAt.String)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s restored_at: %w", meta.SnapshotID, err)
		}
		meta.RestoredAt = &t
	}
	return &meta, nil
}
