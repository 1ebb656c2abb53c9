package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"memgraph/backend/internal/ids"
	"memgraph/backend/internal/storage"
	apperrors "memgraph/backend/pkg/errors"
	"memgraph/backend/pkg/logger"
)

// Defaults for Options
const (
	DefaultLockTimeout     = 2 * time.Second
	DefaultConflictRetries = 5
	conflictBackoff        = 10 * time.Millisecond
)

// Options configures a Client
type Options struct {
	// LockTimeout bounds how long a write waits for the graph write gate.
	LockTimeout time.Duration
	// ConflictRetries is how many times a transaction is re-run after
	// storage contention before ErrConflict is surfaced. Zero selects the
	// default; a negative value disables retries.
	ConflictRetries int
	Generator       *ids.Generator
	Logger          *zap.Logger
}

// Client is the composition root over the entity and relation stores. Every
// public mutation runs as one transaction: it commits entirely or not at all.
// A Client is safe for concurrent use.
type Client struct {
	store     storage.Store
	entities  *EntityStore
	relations *RelationStore
	gate      *gate
	opts      Options
	logger    *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open binds a client to an opened store. The client owns the store from now
// on: Close releases it.
func Open(ctx context.Context, st storage.Store, opts Options) (*Client, error) {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	switch {
	case opts.ConflictRetries == 0:
		opts.ConflictRetries = DefaultConflictRetries
	case opts.ConflictRetries < 0:
		opts.ConflictRetries = 0
	}
	if opts.Generator == nil {
		opts.Generator = ids.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("graph")
	}

	if err := st.Ping(ctx); err != nil {
		return nil, apperrors.NewStorage("ping", err)
	}

	return &Client{
		store:     st,
		entities:  &EntityStore{ids: opts.Generator},
		relations: &RelationStore{ids: opts.Generator},
		gate:      newGate(opts.LockTimeout),
		opts:      opts,
		logger:    opts.Logger,
	}, nil
}

// Close releases the underlying store. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.store.Close()
	})
	return c.closeErr
}

// Store exposes the underlying storage capability
func (c *Client) Store() storage.Store { return c.store }

// Generator exposes the id generator
func (c *Client) Generator() *ids.Generator { return c.opts.Generator }

// Logger returns the client's logger
func (c *Client) Logger() *zap.Logger { return c.logger }

// Transact runs fn as one write transaction holding the write gate shared.
func (c *Client) Transact(ctx context.Context, operation string, fn func(q storage.Querier) error) error {
	return c.run(ctx, operation, false, storage.TxWrite, fn)
}

// TransactExclusive runs fn holding the write gate exclusively: no other
// write of this client interleaves with it.
func (c *Client) TransactExclusive(ctx context.Context, operation string, mode storage.TxMode, fn func(q storage.Querier) error) error {
	return c.run(ctx, operation, true, mode, fn)
}

// read runs fn in a consistent read transaction without taking the gate.
func (c *Client) read(ctx context.Context, operation string, fn func(q storage.Querier) error) error {
	return c.retry(ctx, operation, storage.TxSnapshotRead, fn)
}

func (c *Client) run(ctx context.Context, operation string, exclusive bool, mode storage.TxMode, fn func(q storage.Querier) error) error {
	release, err := c.gate.acquire(ctx, exclusive)
	if err != nil {
		if errors.Is(err, errGateTimeout) {
			c.logger.Warn("Write gate contention",
				zap.String("operation", operation),
				zap.Bool("exclusive", exclusive),
			)
			return apperrors.NewConflict(operation, 1, err)
		}
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer release()

	return c.retry(ctx, operation, mode, fn)
}

func (c *Client) retry(ctx context.Context, operation string, mode storage.TxMode, fn func(q storage.Querier) error) error {
	backoff := conflictBackoff
	for attempt := 1; ; attempt++ {
		err := c.store.InTx(ctx, mode, fn)
		if err == nil {
			return nil
		}
		if !storage.IsConflict(err) {
			return c.surface(operation, err)
		}
		if attempt > c.opts.ConflictRetries {
			return apperrors.NewConflict(operation, attempt, err)
		}

		c.logger.Warn("Transaction conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
}

// surface passes domain errors through unchanged and wraps everything else
// as a storage failure.
func (c *Client) surface(operation string, err error) error {
	if apperrors.TypeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	c.logger.Error("Storage failure",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return apperrors.NewStorage(operation, err)
}

// ============================================================================
// Entity Operations
// ============================================================================

// CreateEntity creates a new entity
func (c *Client) CreateEntity(ctx context.Context, in NewEntity) (*Entity, error) {
	var created *Entity
	err := c.Transact(ctx, "create_entity", func(q storage.Querier) error {
		var err error
		created, err = c.entities.Create(ctx, q, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Entity created",
		zap.String("entity_id", created.EntityID),
		zap.String("node_type", created.NodeType),
	)
	return created, nil
}

// GetEntity retrieves an entity by id
func (c *Client) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	e, err := c.entities.Get(ctx, c.store.Reader(), entityID)
	if err != nil {
		return nil, c.surface("get_entity", err)
	}
	return e, nil
}

// UpdateEntity applies a patch to an entity
func (c *Client) UpdateEntity(ctx context.Context, entityID string, patch EntityPatch) (*Entity, error) {
	var updated *Entity
	err := c.Transact(ctx, "update_entity", func(q storage.Querier) error {
		var err error
		updated, err = c.entities.Update(ctx, q, entityID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Entity updated", zap.String("entity_id", entityID))
	return updated, nil
}

// ListEntities lists entities ordered by id
func (c *Client) ListEntities(ctx context.Context, filter EntityFilter) ([]Entity, error) {
	out, err := c.entities.List(ctx, c.store.Reader(), filter)
	if err != nil {
		return nil, c.surface("list_entities", err)
	}
	return out, nil
}

// DeleteEntity removes an entity. Without cascade it fails with
// ErrDependency while children or edges reference it; with cascade it removes
// descendants and every edge touching them.
func (c *Client) DeleteEntity(ctx context.Context, entityID string, cascade bool) (*DeleteResult, error) {
	var res DeleteResult
	err := c.Transact(ctx, "delete_entity", func(q storage.Querier) error {
		var err error
		res, err = c.entities.Delete(ctx, q, c.relations, entityID, cascade)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Entity deleted",
		zap.String("entity_id", entityID),
		zap.Bool("cascade", cascade),
		zap.Int("entities", res.Entities),
		zap.Int("direct_edges", res.DirectEdges),
		zap.Int("relay_edges", res.RelayEdges),
	)
	return &res, nil
}

// ============================================================================
// Hierarchy Operations
// ============================================================================

// LinkParent makes parentID the parent of childID (BELONGS_TO), replacing any
// previous parent
func (c *Client) LinkParent(ctx context.Context, childID, parentID string) error {
	err := c.Transact(ctx, "link_parent", func(q storage.Querier) error {
		return c.entities.LinkParent(ctx, q, childID, parentID)
	})
	if err != nil {
		return err
	}

	c.logger.Info("Parent linked",
		zap.String("child_id", childID),
		zap.String("parent_id", parentID),
	)
	return nil
}

// UnlinkParent clears the parent of childID
func (c *Client) UnlinkParent(ctx context.Context, childID string) error {
	err := c.Transact(ctx, "unlink_parent", func(q storage.Querier) error {
		return c.entities.UnlinkParent(ctx, q, childID)
	})
	if err != nil {
		return err
	}

	c.logger.Info("Parent unlinked", zap.String("child_id", childID))
	return nil
}

// Children lists the direct children of an entity
func (c *Client) Children(ctx context.Context, entityID string) ([]Entity, error) {
	var out []Entity
	err := c.read(ctx, "children", func(q storage.Querier) error {
		var err error
		out, err = c.entities.Children(ctx, q, entityID)
		return err
	})
	return out, err
}

// Ancestors lists the ancestors of an entity, nearest first
func (c *Client) Ancestors(ctx context.Context, entityID string) ([]Entity, error) {
	var out []Entity
	err := c.read(ctx, "ancestors", func(q storage.Querier) error {
		var err error
		out, err = c.entities.Ancestors(ctx, q, entityID)
		return err
	})
	return out, err
}

// ============================================================================
// Relation Operations
// ============================================================================

// CreateDirectEdge creates a relation between two existing entities
func (c *Client) CreateDirectEdge(ctx context.Context, in NewDirectEdge) (*DirectEdge, error) {
	var created *DirectEdge
	err := c.Transact(ctx, "create_direct_edge", func(q storage.Querier) error {
		var err error
		created, err = c.relations.CreateDirectEdge(ctx, q, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Direct edge created",
		zap.String("edge_id", created.EdgeID),
		zap.String("from", created.FromEntityID),
		zap.String("to", created.ToEntityID),
		zap.String("relation", created.Relation),
	)
	return created, nil
}

// GetDirectEdge retrieves a direct edge by id
func (c *Client) GetDirectEdge(ctx context.Context, edgeID string) (*DirectEdge, error) {
	d, err := c.relations.GetDirectEdge(ctx, c.store.Reader(), edgeID)
	if err != nil {
		return nil, c.surface("get_direct_edge", err)
	}
	return d, nil
}

// FindDirectEdge retrieves the direct edge for (from, to, relation)
func (c *Client) FindDirectEdge(ctx context.Context, from, to, relation string) (*DirectEdge, error) {
	d, err := c.relations.FindDirectEdge(ctx, c.store.Reader(), from, to, relation)
	if err != nil {
		return nil, c.surface("find_direct_edge", err)
	}
	return d, nil
}

// ListDirectEdges lists direct edges matching filter in creation order
func (c *Client) ListDirectEdges(ctx context.Context, filter EdgeFilter) ([]DirectEdge, error) {
	out, err := c.relations.ListDirectEdges(ctx, c.store.Reader(), filter)
	if err != nil {
		return nil, c.surface("list_direct_edges", err)
	}
	return out, nil
}

// UpdateDirectEdge applies a patch to a direct edge
func (c *Client) UpdateDirectEdge(ctx context.Context, edgeID string, patch DirectEdgePatch) (*DirectEdge, error) {
	var updated *DirectEdge
	err := c.Transact(ctx, "update_direct_edge", func(q storage.Querier) error {
		var err error
		updated, err = c.relations.UpdateDirectEdge(ctx, q, edgeID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Direct edge updated", zap.String("edge_id", edgeID))
	return updated, nil
}

// DeleteDirectEdge removes a direct edge. Without cascade it fails with
// ErrDependency while chapters hang off it.
func (c *Client) DeleteDirectEdge(ctx context.Context, edgeID string, cascade bool) (*DeleteResult, error) {
	var res DeleteResult
	err := c.Transact(ctx, "delete_direct_edge", func(q storage.Querier) error {
		var err error
		res, err = c.relations.DeleteDirectEdge(ctx, q, edgeID, cascade)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Direct edge deleted",
		zap.String("edge_id", edgeID),
		zap.Int("relay_edges", res.RelayEdges),
	)
	return &res, nil
}

// InheritedEdges lists inheritable direct edges leaving any strict ancestor
// of entityID, nearest ancestor first. The flag is advisory: this is a read
// helper and nothing is propagated.
func (c *Client) InheritedEdges(ctx context.Context, entityID string) ([]DirectEdge, error) {
	var out []DirectEdge
	err := c.read(ctx, "inherited_edges", func(q storage.Querier) error {
		ancestors, err := c.entities.Ancestors(ctx, q, entityID)
		if err != nil {
			return err
		}
		out, err = c.relations.InheritableFrom(ctx, q, ancestors)
		return err
	})
	return out, err
}

// ============================================================================
// Chapter Operations
// ============================================================================

// CreateRelayEdge appends a chapter to a direct edge
func (c *Client) CreateRelayEdge(ctx context.Context, in NewRelayEdge) (*RelayEdge, error) {
	var created *RelayEdge
	err := c.Transact(ctx, "create_relay_edge", func(q storage.Querier) error {
		var err error
		created, err = c.relations.CreateRelayEdge(ctx, q, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Relay edge created",
		zap.String("edge_id", created.EdgeID),
		zap.String("parent_direct_edge_id", created.ParentDirectEdgeID),
		zap.Int64("sequence_no", created.SequenceNo),
	)
	return created, nil
}

// GetRelayEdge retrieves a chapter by id
func (c *Client) GetRelayEdge(ctx context.Context, edgeID string) (*RelayEdge, error) {
	r, err := c.relations.GetRelayEdge(ctx, c.store.Reader(), edgeID)
	if err != nil {
		return nil, c.surface("get_relay_edge", err)
	}
	return r, nil
}

// ListRelayEdges lists the chapters of a direct edge in creation order
func (c *Client) ListRelayEdges(ctx context.Context, parentDirectEdgeID string) ([]RelayEdge, error) {
	var out []RelayEdge
	err := c.read(ctx, "list_relay_edges", func(q storage.Querier) error {
		var err error
		out, err = c.relations.ListRelayEdges(ctx, q, parentDirectEdgeID)
		return err
	})
	return out, err
}

// DeleteRelayEdge removes one chapter. The remaining chapters keep their order.
func (c *Client) DeleteRelayEdge(ctx context.Context, edgeID string) error {
	err := c.Transact(ctx, "delete_relay_edge", func(q storage.Querier) error {
		return c.relations.DeleteRelayEdge(ctx, q, edgeID)
	})
	if err != nil {
		return err
	}

	c.logger.Info("Relay edge deleted", zap.String("edge_id", edgeID))
	return nil
}

// ============================================================================
// Introspection
// ============================================================================

// Stats counts stored rows
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := c.read(ctx, "stats", func(q storage.Querier) error {
		counts := []struct {
			table string
			dst   *int64
		}{
			{"entities", &s.Entities},
			{"direct_edges", &s.DirectEdges},
			{"relay_edges", &s.RelayEdges},
			{"snapshots", &s.Snapshots},
		}
		for _, cnt := range counts {
			if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM "+cnt.table).Scan(cnt.dst); err != nil {
				return fmt.Errorf("count %s: %w", cnt.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// IsEmpty reports whether the graph holds no entities
func (c *Client) IsEmpty(ctx context.Context) (bool, error) {
	n, err := countRows(ctx, c.store.Reader(), `SELECT COUNT(*) FROM entities`)
	if err != nil {
		return false, c.surface("is_empty", err)
	}
	return n == 0, nil
}

// Reset deletes every entity and edge. Snapshots are kept, so a reset graph
// can still be restored.
func (c *Client) Reset(ctx context.Context) (*DeleteResult, error) {
	var res DeleteResult
	err := c.TransactExclusive(ctx, "reset", storage.TxWrite, func(q storage.Querier) error {
		res = DeleteResult{}
		steps := []struct {
			query string
			dst   *int
		}{
			{`DELETE FROM relay_edges`, &res.RelayEdges},
			{`DELETE FROM direct_edges`, &res.DirectEdges},
			{`UPDATE entities SET parent_id = NULL`, nil},
			{`DELETE FROM entities`, &res.Entities},
		}
		for _, step := range steps {
			out, err := q.Exec(ctx, step.query)
			if err != nil {
				return fmt.Errorf("failed to reset graph: %w", err)
			}
			if step.dst != nil {
				*step.dst = rowsAffected(out)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Warn("Graph reset",
		zap.Int("entities", res.Entities),
		zap.Int("direct_edges", res.DirectEdges),
		zap.Int("relay_edges", res.RelayEdges),
	)
	return &res, nil
}
