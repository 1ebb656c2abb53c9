package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/snapshot"
	"memgraph/backend/internal/storage"
	apperrors "memgraph/backend/pkg/errors"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	st, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	client, err := graph.Open(ctx, st, graph.Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	h := NewHandler(client, snapshot.NewManager(client).WithLogger(zap.NewNop()), zap.NewNop())
	return NewRouter(h, zap.NewNop())
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createEntity(t *testing.T, router *gin.Engine, id, nodeType string) {
	t.Helper()
	w := do(t, router, "POST", "/api/entities", graph.NewEntity{EntityID: id, NodeType: nodeType, Name: id})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	router := setupRouter(t)

	w := do(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "sqlite", resp["driver"])
}

func TestEntityEndpoints(t *testing.T) {
	router := setupRouter(t)
	createEntity(t, router, "agent", "character")

	w := do(t, router, "GET", "/api/entities/agent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	e := decode[graph.Entity](t, w)
	assert.Equal(t, "character", e.NodeType)

	name := "Renamed"
	w = do(t, router, "PATCH", "/api/entities/agent", graph.EntityPatch{Name: &name})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed", decode[graph.Entity](t, w).Name)

	w = do(t, router, "POST", "/api/entities", graph.NewEntity{EntityID: "agent", NodeType: "character", Name: "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_id", decode[map[string]string](t, w)["type"])

	w = do(t, router, "GET", "/api/entities/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[map[string]string](t, w)["type"])

	w = do(t, router, "POST", "/api/entities", graph.NewEntity{EntityID: "x", Name: "no type"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEntitiesEndpoint(t *testing.T) {
	router := setupRouter(t)
	createEntity(t, router, "a", "character")
	createEntity(t, router, "b", "character")
	createEntity(t, router, "c", "location")

	w := do(t, router, "GET", "/api/entities?node_type=character", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]graph.Entity](t, w), 2)

	w = do(t, router, "GET", "/api/entities?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]graph.Entity](t, w), 1)

	w = do(t, router, "GET", "/api/entities?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHierarchyEndpoints(t *testing.T) {
	router := setupRouter(t)
	for _, id := range []string{"a", "b", "c"} {
		createEntity(t, router, id, "location")
	}

	w := do(t, router, "PUT", "/api/entities/b/parent", map[string]string{"parent_id": "a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, router, "PUT", "/api/entities/c/parent", map[string]string{"parent_id": "b"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, "PUT", "/api/entities/a/parent", map[string]string{"parent_id": "c"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "cycle", decode[map[string]string](t, w)["type"])

	w = do(t, router, "GET", "/api/entities/a/children", nil)
	require.Equal(t, http.StatusOK, w.Code)
	children := decode[[]graph.Entity](t, w)
	require.Len(t, children, 1)
	assert.Equal(t, "b", children[0].EntityID)

	w = do(t, router, "GET", "/api/entities/c/ancestors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ancestors := decode[[]graph.Entity](t, w)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "b", ancestors[0].EntityID)

	w = do(t, router, "DELETE", "/api/entities/c/parent", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, "PUT", "/api/entities/c/parent", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEdgeAndChapterEndpoints(t *testing.T) {
	router := setupRouter(t)
	createEntity(t, router, "agent", "character")
	createEntity(t, router, "user", "character")

	w := do(t, router, "POST", "/api/edges", graph.NewDirectEdge{
		FromEntityID: "agent", ToEntityID: "user", Relation: "SERVES", Inheritable: true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	edge := decode[graph.DirectEdge](t, w)

	w = do(t, router, "POST", "/api/edges", graph.NewDirectEdge{
		FromEntityID: "agent", ToEntityID: "user", Relation: "SERVES",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_relation", decode[map[string]string](t, w)["type"])

	w = do(t, router, "GET", "/api/entities/agent/edges?direction=out", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]graph.DirectEdge](t, w), 1)

	w = do(t, router, "GET", "/api/entities/agent/edges?direction=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	chapters := fmt.Sprintf("/api/edges/%s/chapters", edge.EdgeID)
	for _, title := range []string{"first", "second"} {
		w = do(t, router, "POST", chapters, map[string]any{
			"from_entity_id": "agent", "to_entity_id": "user", "title": title,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = do(t, router, "POST", chapters, map[string]any{
		"from_entity_id": "user", "to_entity_id": "agent", "title": "backwards",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "GET", chapters, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]graph.RelayEdge](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Relation)
	assert.Equal(t, int64(2), list[1].SequenceNo)

	w = do(t, router, "DELETE", "/api/edges/"+edge.EdgeID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "dependency", decode[map[string]string](t, w)["type"])

	w = do(t, router, "DELETE", "/api/chapters/"+list[1].EdgeID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, "DELETE", "/api/edges/"+edge.EdgeID+"?cascade=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[graph.DeleteResult](t, w)
	assert.Equal(t, graph.DeleteResult{DirectEdges: 1, RelayEdges: 1}, res)
}

func TestDeleteEntityEndpoint(t *testing.T) {
	router := setupRouter(t)
	createEntity(t, router, "agent", "character")
	createEntity(t, router, "user", "character")
	w := do(t, router, "POST", "/api/edges", graph.NewDirectEdge{FromEntityID: "agent", ToEntityID: "user", Relation: "KNOWS"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, "DELETE", "/api/entities/agent", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, "DELETE", "/api/entities/agent?cascade=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "DELETE", "/api/entities/agent?cascade=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, graph.DeleteResult{Entities: 1, DirectEdges: 1}, decode[graph.DeleteResult](t, w))

	w = do(t, router, "GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[graph.Stats](t, w).Entities)
}

func TestSnapshotEndpoints(t *testing.T) {
	router := setupRouter(t)
	createEntity(t, router, "agent", "character")

	w := do(t, router, "POST", "/api/snapshots", map[string]string{"label": "before"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	meta := decode[snapshot.Meta](t, w)
	assert.Equal(t, 1, meta.EntityCount)

	createEntity(t, router, "user", "character")

	w = do(t, router, "POST", "/api/snapshots/"+meta.SnapshotID+"/restore", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, snapshot.StatusRestored, decode[snapshot.Meta](t, w).Status)

	w = do(t, router, "GET", "/api/entities/user", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "POST", "/api/snapshots", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, "GET", "/api/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]snapshot.Meta](t, w), 2)

	w = do(t, router, "POST", "/api/snapshots/prune", map[string]int{"keep_last": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["deleted"])

	w = do(t, router, "POST", "/api/snapshots/prune", map[string]int{"keep_last": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", "/api/snapshots/snap_missing/restore", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.NewValidation("f", "bad"), http.StatusBadRequest},
		{"not found", apperrors.NewNotFound("entity", "x"), http.StatusNotFound},
		{"cycle", apperrors.NewCycle("a", "b", []string{"b", "a"}), http.StatusUnprocessableEntity},
		{"duplicate", apperrors.NewDuplicateID("x", nil), http.StatusConflict},
		{"dependency", apperrors.NewDependency("entity", "x", 2, "children"), http.StatusConflict},
		{"conflict", apperrors.NewConflict("op", 5, nil), http.StatusServiceUnavailable},
		{"wrapped conflict", fmt.Errorf("outer: %w", apperrors.NewConflict("op", 5, nil)), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("op: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"storage", apperrors.NewStorage("op", errors.New("disk")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteError_ConflictSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{logger: zap.NewNop()}
	router := gin.New()
	router.GET("/busy", func(c *gin.Context) { h.writeError(c, apperrors.NewConflict("op", 3, nil)) })
	router.GET("/broken", func(c *gin.Context) { h.writeError(c, errors.New("secret detail")) })

	w := do(t, router, "GET", "/busy", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w = do(t, router, "GET", "/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")
	assert.Equal(t, "storage", decode[map[string]string](t, w)["type"])
}
