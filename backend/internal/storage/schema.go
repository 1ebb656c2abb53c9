package storage

// Logical schema, shared by both engines:
//
//	entities(entity_id PK, node_type, name, content, task_description, parent_id FK nullable)
//	direct_edges(edge_id PK, from_entity_id FK, to_entity_id FK, relation, content, inheritable, next_sequence_no)
//	relay_edges(edge_id PK, ..., parent_direct_edge_id FK, sequence_no)
//	snapshots(snapshot_id PK, created_at, label, payload)
//
// next_sequence_no is the sequence number the next chapter under the edge
// gets. It only grows, so numbers of deleted chapters are never reused.
//
// Timestamps are TEXT in TimeFormat on both engines.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
    entity_id        TEXT PRIMARY KEY,
    node_type        TEXT NOT NULL CHECK (node_type <> ''),
    name             TEXT NOT NULL CHECK (name <> ''),
    content          TEXT NOT NULL DEFAULT '',
    task_description TEXT NULL,
    parent_id        TEXT NULL REFERENCES entities(entity_id),
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    CHECK (parent_id IS NULL OR parent_id <> entity_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(node_type)`,

	`CREATE TABLE IF NOT EXISTS direct_edges (
    edge_id        TEXT PRIMARY KEY,
    from_entity_id TEXT NOT NULL REFERENCES entities(entity_id),
    to_entity_id   TEXT NOT NULL REFERENCES entities(entity_id),
    relation       TEXT NOT NULL CHECK (relation <> ''),
    content        TEXT NOT NULL DEFAULT '',
    inheritable    INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL,
    next_sequence_no INTEGER NOT NULL DEFAULT 1,
    UNIQUE (from_entity_id, to_entity_id, relation)
)`,
	`CREATE INDEX IF NOT EXISTS idx_direct_edges_to ON direct_edges(to_entity_id)`,

	`CREATE TABLE IF NOT EXISTS relay_edges (
    edge_id               TEXT PRIMARY KEY,
    from_entity_id        TEXT NOT NULL REFERENCES entities(entity_id),
    to_entity_id          TEXT NOT NULL REFERENCES entities(entity_id),
    relation              TEXT NOT NULL,
    content               TEXT NOT NULL DEFAULT '',
    inheritable           INTEGER NOT NULL DEFAULT 0,
    parent_direct_edge_id TEXT NOT NULL REFERENCES direct_edges(edge_id),
    sequence_no           INTEGER NOT NULL,
    created_at            TEXT NOT NULL,
    UNIQUE (parent_direct_edge_id, sequence_no)
)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_edges_from ON relay_edges(from_entity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_edges_to ON relay_edges(to_entity_id)`,

	`CREATE TABLE IF NOT EXISTS snapshots (
    snapshot_id      TEXT PRIMARY KEY,
    created_at       TEXT NOT NULL,
    label            TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'available'
                     CHECK (status IN ('available', 'restored')),
    restored_at      TEXT NULL,
    entity_count     INTEGER NOT NULL,
    direct_edge_count INTEGER NOT NULL,
    relay_edge_count INTEGER NOT NULL,
    size_bytes       INTEGER NOT NULL,
    payload          BLOB NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
    entity_id        TEXT PRIMARY KEY,
    node_type        TEXT NOT NULL CHECK (node_type <> ''),
    name             TEXT NOT NULL CHECK (name <> ''),
    content          TEXT NOT NULL DEFAULT '',
    task_description TEXT NULL,
    parent_id        TEXT NULL REFERENCES entities(entity_id),
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    CHECK (parent_id IS NULL OR parent_id <> entity_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(node_type)`,

	`CREATE TABLE IF NOT EXISTS direct_edges (
    edge_id        TEXT PRIMARY KEY,
    from_entity_id TEXT NOT NULL REFERENCES entities(entity_id),
    to_entity_id   TEXT NOT NULL REFERENCES entities(entity_id),
    relation       TEXT NOT NULL CHECK (relation <> ''),
    content        TEXT NOT NULL DEFAULT '',
    inheritable    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TEXT NOT NULL,
    next_sequence_no BIGINT NOT NULL DEFAULT 1,
    UNIQUE (from_entity_id, to_entity_id, relation)
)`,
	`CREATE INDEX IF NOT EXISTS idx_direct_edges_to ON direct_edges(to_entity_id)`,

	`CREATE TABLE IF NOT EXISTS relay_edges (
    edge_id               TEXT PRIMARY KEY,
    from_entity_id        TEXT NOT NULL REFERENCES entities(entity_id),
    to_entity_id          TEXT NOT NULL REFERENCES entities(entity_id),
    relation              TEXT NOT NULL,
    content               TEXT NOT NULL DEFAULT '',
    inheritable           BOOLEAN NOT NULL DEFAULT FALSE,
    parent_direct_edge_id TEXT NOT NULL REFERENCES direct_edges(edge_id),
    sequence_no           BIGINT NOT NULL,
    created_at            TEXT NOT NULL,
    UNIQUE (parent_direct_edge_id, sequence_no)
)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_edges_from ON relay_edges(from_entity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_edges_to ON relay_edges(to_entity_id)`,

	`CREATE TABLE IF NOT EXISTS snapshots (
    snapshot_id       TEXT PRIMARY KEY,
    created_at        TEXT NOT NULL,
    label             TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'available'
                      CHECK (status IN ('available', 'restored')),
    restored_at       TEXT NULL,
    entity_count      BIGINT NOT NULL,
    direct_edge_count BIGINT NOT NULL,
    relay_edge_count  BIGINT NOT NULL,
    size_bytes        BIGINT NOT NULL,
    payload           BYTEA NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at)`,
}
