package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	apperrors "memgraph/backend/pkg/errors"
)

func TestDirectEdgeID_Stable(t *testing.T) {
	g := New()

	a := g.DirectEdgeID("char_agent_demo", "char_user_demo", "SERVES")
	b := g.DirectEdgeID("char_agent_demo", "char_user_demo", "SERVES")
	c := g.DirectEdgeID("char_user_demo", "char_agent_demo", "SERVES")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, DirectEdgePrefix))
}

func TestDirectEdgeID_NoConcatenationCollision(t *testing.T) {
	g := New()
	assert.NotEqual(t, g.DirectEdgeID("ab", "c", "R"), g.DirectEdgeID("a", "bc", "R"))
}

func TestDirectEdgeID_NamespaceScoped(t *testing.T) {
	other := NewWithNamespace(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	assert.NotEqual(t, New().DirectEdgeID("a", "b", "R"), other.DirectEdgeID("a", "b", "R"))
}

func TestRelayEdgeID_Unique(t *testing.T) {
	g := New()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.RelayEdgeID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestEntityID(t *testing.T) {
	g := New()
	id := g.EntityID("character", "Agent (Demo)")

	assert.True(t, strings.HasPrefix(id, "character_"))
	assert.Len(t, id, len("character_")+12)
	assert.Equal(t, id, g.EntityID("character", "Agent (Demo)"))
	assert.NoError(t, ValidateID("entity_id", id))
}

func TestEntityID_LongNodeType(t *testing.T) {
	g := New()
	long := strings.Repeat("x", 120)
	id := g.EntityID(long, "Agent")

	assert.Len(t, id, MaxIDLength)
	assert.True(t, strings.HasPrefix(id, strings.Repeat("x", MaxIDLength-13)+"_"), id)
	assert.NoError(t, ValidateID("entity_id", id))
	assert.NotEqual(t, id, g.EntityID(long, "User"))
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		ok   bool
	}{
		{"plain", "char_agent_demo", true},
		{"unicode", "角色_1", true},
		{"empty", "", false},
		{"space", "char agent", false},
		{"newline", "char\nagent", false},
		{"too long", strings.Repeat("x", MaxIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("entity_id", tt.id)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
		})
	}
}
