package graph

import "time"

// ============================================================================
// Graph Types
// ============================================================================

// Entity is a typed node in the graph
type Entity struct {
	EntityID        string    `json:"entity_id"`
	NodeType        string    `json:"node_type"` // character, location, object, ...
	Name            string    `json:"name"`
	Content         string    `json:"content"`
	TaskDescription string    `json:"task_description,omitempty"`
	ParentID        string    `json:"parent_id,omitempty"` // BELONGS_TO
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewEntity is the input to CreateEntity. An empty EntityID is derived from
// NodeType and Name.
type NewEntity struct {
	EntityID        string `json:"entity_id"`
	NodeType        string `json:"node_type"`
	Name            string `json:"name"`
	Content         string `json:"content"`
	TaskDescription string `json:"task_description,omitempty"`
	ParentID        string `json:"parent_id,omitempty"`
}

// EntityPatch updates the non-nil fields of an entity
type EntityPatch struct {
	NodeType        *string `json:"node_type,omitempty"`
	Name            *string `json:"name,omitempty"`
	Content         *string `json:"content,omitempty"`
	TaskDescription *string `json:"task_description,omitempty"`
}

// EntityFilter narrows ListEntities. Zero values match everything.
type EntityFilter struct {
	NodeType string
	ParentID string
	Limit    int
}

// DirectEdge is a persistent relation between two entities
type DirectEdge struct {
	EdgeID       string    `json:"edge_id"`
	FromEntityID string    `json:"from_entity_id"`
	ToEntityID   string    `json:"to_entity_id"`
	Relation     string    `json:"relation"` // e.g. SERVES
	Content      string    `json:"content"`
	Inheritable  bool      `json:"inheritable"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewDirectEdge is the input to CreateDirectEdge
type NewDirectEdge struct {
	FromEntityID string `json:"from_entity_id"`
	ToEntityID   string `json:"to_entity_id"`
	Relation     string `json:"relation"`
	Content      string `json:"content"`
	Inheritable  bool   `json:"inheritable"`
}

// DirectEdgePatch updates the non-nil fields of a direct edge. Endpoints and
// relation are immutable.
type DirectEdgePatch struct {
	Content     *string `json:"content,omitempty"`
	Inheritable *bool   `json:"inheritable,omitempty"`
}

// Direction selects which end of a direct edge an entity must be on
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// EdgeFilter narrows ListDirectEdges
type EdgeFilter struct {
	EntityID  string
	Direction Direction // defaults to both
	Relation  string
}

// RelayEdge is a chapter: an ordered event record hung off a direct edge.
// Relation holds the chapter title.
type RelayEdge struct {
	EdgeID             string    `json:"edge_id"`
	FromEntityID       string    `json:"from_entity_id"`
	ToEntityID         string    `json:"to_entity_id"`
	Relation           string    `json:"relation"`
	Content            string    `json:"content"`
	Inheritable        bool      `json:"inheritable"`
	ParentDirectEdgeID string    `json:"parent_direct_edge_id"`
	SequenceNo         int64     `json:"sequence_no"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewRelayEdge is the input to CreateRelayEdge
type NewRelayEdge struct {
	FromEntityID       string `json:"from_entity_id"`
	ToEntityID         string `json:"to_entity_id"`
	Relation           string `json:"relation"`
	Content            string `json:"content"`
	Inheritable        bool   `json:"inheritable"`
	ParentDirectEdgeID string `json:"parent_direct_edge_id"`
}

// DeleteResult counts the rows a delete removed
type DeleteResult struct {
	Entities    int `json:"entities"`
	DirectEdges int `json:"direct_edges"`
	RelayEdges  int `json:"relay_edges"`
}

func (r *DeleteResult) add(o DeleteResult) {
	r.Entities += o.Entities
	r.DirectEdges += o.DirectEdges
	r.RelayEdges += o.RelayEdges
}

// Stats summarizes the stored graph
type Stats struct {
	Entities    int64 `json:"entities"`
	DirectEdges int64 `json:"direct_edges"`
	RelayEdges  int64 `json:"relay_edges"`
	Snapshots   int64 `json:"snapshots"`
}
