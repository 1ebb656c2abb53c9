// Package ids generates identifiers for entities, edges and snapshots.
//
// Derived ids are UUIDv5 hashes of their key under a fixed namespace, so the
// same key always yields the same id. Random ids are UUIDv7 and therefore
// sort by creation time.
package ids

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	apperrors "memgraph/backend/pkg/errors"
)

// MaxIDLength bounds caller-supplied ids.
const MaxIDLength = 128

// Prefixes for generated ids.
const (
	DirectEdgePrefix = "de_"
	RelayEdgePrefix  = "re_"
	SnapshotPrefix   = "snap_"
)

// Namespace is the default namespace for derived ids.
var Namespace = uuid.MustParse("6f0b6c1e-3c1d-5a8e-9a57-6d656d677261")

// Generator produces entity, edge and snapshot ids.
type Generator struct {
	namespace uuid.UUID
}

// New returns a Generator using the default namespace.
func New() *Generator {
	return &Generator{namespace: Namespace}
}

// NewWithNamespace returns a Generator deriving ids under ns. Two graphs with
// different namespaces never share derived edge ids.
func NewWithNamespace(ns uuid.UUID) *Generator {
	return &Generator{namespace: ns}
}

// entityHashLen is the number of hex chars appended to a derived entity id.
const entityHashLen = 12

// EntityID derives an id for an entity created without one:
// "<node_type>_<12 hex chars>". Long node types are cut so the id stays
// within MaxIDLength.
func (g *Generator) EntityID(nodeType, name string) string {
	sum := g.derive("entity", nodeType, name)
	prefix := slug(nodeType)
	if limit := MaxIDLength - 1 - entityHashLen; len(prefix) > limit {
		prefix = prefix[:limit]
	}
	return prefix + "_" + strings.ReplaceAll(sum.String(), "-", "")[:entityHashLen]
}

// DirectEdgeID derives the id of the direct edge for (from, to, relation).
func (g *Generator) DirectEdgeID(from, to, relation string) string {
	return DirectEdgePrefix + g.derive("direct", from, to, relation).String()
}

// RelayEdgeID returns a fresh, time-ordered chapter id.
func (g *Generator) RelayEdgeID() string {
	return RelayEdgePrefix + newV7().String()
}

// SnapshotID returns a fresh, time-ordered snapshot id.
func (g *Generator) SnapshotID() string {
	return SnapshotPrefix + newV7().String()
}

func (g *Generator) derive(kind string, parts ...string) uuid.UUID {
	// 0x1f cannot appear in a validated id, so joined keys are unambiguous.
	key := kind + "\x1f" + strings.Join(parts, "\x1f")
	return uuid.NewSHA1(g.namespace, []byte(key))
}

func newV7() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// ValidateID checks a caller-supplied id.
func ValidateID(field, id string) error {
	if id == "" {
		return apperrors.NewValidation(field, "must not be empty")
	}
	if len(id) > MaxIDLength {
		return apperrors.NewValidation(field, "longer than 128 bytes")
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return apperrors.NewValidation(field, "contains whitespace or control characters")
		}
	}
	return nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "entity"
	}
	return b.String()
}
