package snapshot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"memgraph/backend/internal/storage"
)

// PayloadVersion is written into every payload. Decode rejects other versions.
const PayloadVersion = 1

// Payload is the serialized graph. Records hold column values exactly as
// stored, so a restore writes back the same bytes that were read.
type Payload struct {
	Version     int                `json:"version" msgpack:"v"`
	CapturedAt  string             `json:"captured_at" msgpack:"at"`
	Entities    []EntityRecord     `json:"entities" msgpack:"entities"`
	DirectEdges []DirectEdgeRecord `json:"direct_edges" msgpack:"direct_edges"`
	RelayEdges  []RelayEdgeRecord  `json:"relay_edges" msgpack:"relay_edges"`
}

// EntityRecord is one row of entities. Empty TaskDescription and ParentID
// mean NULL.
type EntityRecord struct {
	EntityID        string `json:"entity_id" msgpack:"id"`
	NodeType        string `json:"node_type" msgpack:"type"`
	Name            string `json:"name" msgpack:"name"`
	Content         string `json:"content" msgpack:"content"`
	TaskDescription string `json:"task_description,omitempty" msgpack:"task,omitempty"`
	ParentID        string `json:"parent_id,omitempty" msgpack:"parent,omitempty"`
	CreatedAt       string `json:"created_at" msgpack:"created"`
	UpdatedAt       string `json:"updated_at" msgpack:"updated"`
}

// DirectEdgeRecord is one row of direct_edges
type DirectEdgeRecord struct {
	EdgeID       string `json:"edge_id" msgpack:"id"`
	FromEntityID string `json:"from_entity_id" msgpack:"from"`
	ToEntityID   string `json:"to_entity_id" msgpack:"to"`
	Relation     string `json:"relation" msgpack:"rel"`
	Content      string `json:"content" msgpack:"content"`
	Inheritable  bool   `json:"inheritable" msgpack:"inh"`
	CreatedAt    string `json:"created_at" msgpack:"created"`

	// NextSequenceNo is the chapter counter. Zero, as in payloads written
	// before the counter existed, is derived from the chapters on restore.
	NextSequenceNo int64 `json:"next_sequence_no" msgpack:"next_seq,omitempty"`
}

// RelayEdgeRecord is one row of relay_edges
type RelayEdgeRecord struct {
	EdgeID             string `json:"edge_id" msgpack:"id"`
	FromEntityID       string `json:"from_entity_id" msgpack:"from"`
	ToEntityID         string `json:"to_entity_id" msgpack:"to"`
	Relation           string `json:"relation" msgpack:"rel"`
	Content            string `json:"content" msgpack:"content"`
	Inheritable        bool   `json:"inheritable" msgpack:"inh"`
	ParentDirectEdgeID string `json:"parent_direct_edge_id" msgpack:"parent"`
	SequenceNo         int64  `json:"sequence_no" msgpack:"seq"`
	CreatedAt          string `json:"created_at" msgpack:"created"`
}

// Encode serializes p with msgpack
func Encode(p *Payload) ([]byte, error) {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot payload: %w", err)
	}
	return data, nil
}

// Decode parses a payload produced by Encode
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode snapshot payload: %w", err)
	}
	if p.Version != PayloadVersion {
		return nil, fmt.Errorf("unsupported snapshot payload version %d", p.Version)
	}
	return &p, nil
}

// batchSize is how many rows are written between cancellation checks.
const batchSize = 200

// capture reads every graph row through q. q must be a transaction so the
// three tables are read from one view.
func capture(ctx context.Context, q storage.Querier) (*Payload, error) {
	p := &Payload{
		Version:     PayloadVersion,
		CapturedAt:  storage.FormatTime(storage.Now()),
		Entities:    []EntityRecord{},
		DirectEdges: []DirectEdgeRecord{},
		RelayEdges:  []RelayEdgeRecord{},
	}

	rows, err := q.Query(ctx, `SELECT entity_id, node_type, name, content, task_description, parent_id, created_at, updated_at
		FROM entities ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	err = eachRow(rows, func(rows *sql.Rows) error {
		var (
			e            EntityRecord
			task, parent sql.NullString
		)
		if err := rows.Scan(&e.EntityID, &e.NodeType, &e.Name, &e.Content, &task, &parent, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return err
		}
		e.TaskDescription = task.String
		e.ParentID = parent.String
		p.Entities = append(p.Entities, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `SELECT edge_id, from_entity_id, to_entity_id, relation, content, inheritable, created_at,
		next_sequence_no
		FROM direct_edges ORDER BY created_at, edge_id`)
	if err != nil {
		return nil, fmt.Errorf("read direct edges: %w", err)
	}
	err = eachRow(rows, func(rows *sql.Rows) error {
		var d DirectEdgeRecord
		if err := rows.Scan(&d.EdgeID, &d.FromEntityID, &d.ToEntityID, &d.Relation, &d.Content, &d.Inheritable, &d.CreatedAt,
			&d.NextSequenceNo); err != nil {
			return err
		}
		p.DirectEdges = append(p.DirectEdges, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read direct edges: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `SELECT edge_id, from_entity_id, to_entity_id, relation, content, inheritable,
		parent_direct_edge_id, sequence_no, created_at
		FROM relay_edges ORDER BY parent_direct_edge_id, sequence_no`)
	if err != nil {
		return nil, fmt.Errorf("read relay edges: %w", err)
	}
	err = eachRow(rows, func(rows *sql.Rows) error {
		var r RelayEdgeRecord
		if err := rows.Scan(&r.EdgeID, &r.FromEntityID, &r.ToEntityID, &r.Relation, &r.Content, &r.Inheritable,
			&r.ParentDirectEdgeID, &r.SequenceNo, &r.CreatedAt); err != nil {
			return err
		}
		p.RelayEdges = append(p.RelayEdges, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read relay edges: %w", err)
	}
	return p, nil
}

// replace swaps the live graph for p inside the caller's transaction.
// Entities are inserted parentless first so insertion order never matters
// for the parent foreign key.
func replace(ctx context.Context, q storage.Querier, p *Payload) error {
	wipe := []string{
		`DELETE FROM relay_edges`,
		`DELETE FROM direct_edges`,
		`UPDATE entities SET parent_id = NULL WHERE parent_id IS NOT NULL`,
		`DELETE FROM entities`,
	}
	for _, stmt := range wipe {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("clear graph: %w", err)
		}
	}

	for i, e := range p.Entities {
		if err := checkBatch(ctx, i); err != nil {
			return err
		}
		_, err := q.Exec(ctx,
			`INSERT INTO entities (entity_id, node_type, name, content, task_description, parent_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
			e.EntityID, e.NodeType, e.Name, e.Content, nullString(e.TaskDescription), e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("restore entity %s: %w", e.EntityID, err)
		}
	}

	for i, e := range p.Entities {
		if e.ParentID == "" {
			continue
		}
		if err := checkBatch(ctx, i); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `UPDATE entities SET parent_id = ? WHERE entity_id = ?`, e.ParentID, e.EntityID); err != nil {
			return fmt.Errorf("restore parent of %s: %w", e.EntityID, err)
		}
	}

	lastSeq := make(map[string]int64, len(p.DirectEdges))
	for _, r := range p.RelayEdges {
		if r.SequenceNo > lastSeq[r.ParentDirectEdgeID] {
			lastSeq[r.ParentDirectEdgeID] = r.SequenceNo
		}
	}

	for i, d := range p.DirectEdges {
		if err := checkBatch(ctx, i); err != nil {
			return err
		}
		next := d.NextSequenceNo
		if floor := lastSeq[d.EdgeID] + 1; next < floor {
			next = floor
		}
		_, err := q.Exec(ctx,
			`INSERT INTO direct_edges (edge_id, from_entity_id, to_entity_id, relation, content, inheritable, created_at,
			    next_sequence_no)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.EdgeID, d.FromEntityID, d.ToEntityID, d.Relation, d.Content, d.Inheritable, d.CreatedAt, next)
		if err != nil {
			return fmt.Errorf("restore direct edge %s: %w", d.EdgeID, err)
		}
	}

	for i, r := range p.RelayEdges {
		if err := checkBatch(ctx, i); err != nil {
			return err
		}
		_, err := q.Exec(ctx,
			`INSERT INTO relay_edges (edge_id, from_entity_id, to_entity_id, relation, content, inheritable,
			    parent_direct_edge_id, sequence_no, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.EdgeID, r.FromEntityID, r.ToEntityID, r.Relation, r.Content, r.Inheritable,
			r.ParentDirectEdgeID, r.SequenceNo, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("restore relay edge %s: %w", r.EdgeID, err)
		}
	}
	return ctx.Err()
}

func checkBatch(ctx context.Context, i int) error {
	if i%batchSize == 0 {
		return ctx.Err()
	}
	return nil
}

func eachRow(rows *sql.Rows, fn func(*sql.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
