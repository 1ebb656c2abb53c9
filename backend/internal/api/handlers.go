// Package api exposes the graph client and snapshot manager over HTTP
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/snapshot"
	apperrors "memgraph/backend/pkg/errors"
)

// Handler serves the admin API
type Handler struct {
	graph     *graph.Client
	snapshots *snapshot.Manager
	logger    *zap.Logger
}

// NewHandler creates a handler over client and snapshots
func NewHandler(client *graph.Client, snapshots *snapshot.Manager, log *zap.Logger) *Handler {
	return &Handler{graph: client, snapshots: snapshots, logger: log}
}

// Register mounts every route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.health)

	api := r.Group("/api")
	{
		api.GET("/stats", h.stats)

		api.POST("/entities", h.createEntity)
		api.GET("/entities", h.listEntities)
		api.GET("/entities/:id", h.getEntity)
		api.PATCH("/entities/:id", h.updateEntity)
		api.DELETE("/entities/:id", h.deleteEntity)
		api.PUT("/entities/:id/parent", h.linkParent)
		api.DELETE("/entities/:id/parent", h.unlinkParent)
		api.GET("/entities/:id/children", h.children)
		api.GET("/entities/:id/ancestors", h.ancestors)
		api.GET("/entities/:id/edges", h.entityEdges)
		api.GET("/entities/:id/inherited", h.inheritedEdges)

		api.POST("/edges", h.createDirectEdge)
		api.GET("/edges/:id", h.getDirectEdge)
		api.PATCH("/edges/:id", h.updateDirectEdge)
		api.DELETE("/edges/:id", h.deleteDirectEdge)
		api.POST("/edges/:id/chapters", h.createChapter)
		api.GET("/edges/:id/chapters", h.listChapters)
		api.DELETE("/chapters/:id", h.deleteChapter)

		api.POST("/snapshots", h.createSnapshot)
		api.GET("/snapshots", h.listSnapshots)
		api.GET("/snapshots/:id", h.getSnapshot)
		api.POST("/snapshots/:id/restore", h.restoreSnapshot)
		api.POST("/snapshots/prune", h.pruneSnapshots)
	}
}

func (h *Handler) health(c *gin.Context) {
	if err := h.graph.Store().Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "driver": h.graph.Store().Driver()})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.graph.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ============================================================================
// Entities
// ============================================================================

func (h *Handler) createEntity(c *gin.Context) {
	var req graph.NewEntity
	if !h.bind(c, &req) {
		return
	}
	e, err := h.graph.CreateEntity(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) listEntities(c *gin.Context) {
	filter := graph.EntityFilter{
		NodeType: c.Query("node_type"),
		ParentID: c.Query("parent_id"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(c, apperrors.NewValidation("limit", "must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}
	out, err := h.graph.ListEntities(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getEntity(c *gin.Context) {
	e, err := h.graph.GetEntity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) updateEntity(c *gin.Context) {
	var patch graph.EntityPatch
	if !h.bind(c, &patch) {
		return
	}
	e, err := h.graph.UpdateEntity(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) deleteEntity(c *gin.Context) {
	cascade, ok := h.boolQuery(c, "cascade")
	if !ok {
		return
	}
	res, err := h.graph.DeleteEntity(c.Request.Context(), c.Param("id"), cascade)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) linkParent(c *gin.Context) {
	var req struct {
		ParentID string `json:"parent_id" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	if err := h.graph.LinkParent(c.Request.Context(), c.Param("id"), req.ParentID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"child_id": c.Param("id"), "parent_id": req.ParentID})
}

func (h *Handler) unlinkParent(c *gin.Context) {
	if err := h.graph.UnlinkParent(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) children(c *gin.Context) {
	out, err := h.graph.Children(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ancestors(c *gin.Context) {
	out, err := h.graph.Ancestors(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) entityEdges(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.graph.GetEntity(ctx, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	out, err := h.graph.ListDirectEdges(ctx, graph.EdgeFilter{
		EntityID:  c.Param("id"),
		Direction: graph.Direction(c.DefaultQuery("direction", string(graph.DirectionBoth))),
		Relation:  c.Query("relation"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) inheritedEdges(c *gin.Context) {
	out, err := h.graph.InheritedEdges(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ============================================================================
// Edges and chapters
// ============================================================================

func (h *Handler) createDirectEdge(c *gin.Context) {
	var req graph.NewDirectEdge
	if !h.bind(c, &req) {
		return
	}
	d, err := h.graph.CreateDirectEdge(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) getDirectEdge(c *gin.Context) {
	d, err := h.graph.GetDirectEdge(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) updateDirectEdge(c *gin.Context) {
	var patch graph.DirectEdgePatch
	if !h.bind(c, &patch) {
		return
	}
	d, err := h.graph.UpdateDirectEdge(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) deleteDirectEdge(c *gin.Context) {
	cascade, ok := h.boolQuery(c, "cascade")
	if !ok {
		return
	}
	res, err := h.graph.DeleteDirectEdge(c.Request.Context(), c.Param("id"), cascade)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) createChapter(c *gin.Context) {
	var req struct {
		FromEntityID string `json:"from_entity_id" binding:"required"`
		ToEntityID   string `json:"to_entity_id" binding:"required"`
		Title        string `json:"title" binding:"required"`
		Content      string `json:"content"`
		Inheritable  bool   `json:"inheritable"`
	}
	if !h.bind(c, &req) {
		return
	}
	r, err := h.graph.CreateRelayEdge(c.Request.Context(), graph.NewRelayEdge{
		FromEntityID:       req.FromEntityID,
		ToEntityID:         req.ToEntityID,
		Relation:           req.Title,
		Content:            req.Content,
		Inheritable:        req.Inheritable,
		ParentDirectEdgeID: c.Param("id"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) listChapters(c *gin.Context) {
	out, err := h.graph.ListRelayEdges(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) deleteChapter(c *gin.Context) {
	if err := h.graph.DeleteRelayEdge(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ============================================================================
// Snapshots
// ============================================================================

func (h *Handler) createSnapshot(c *gin.Context) {
	var req struct {
		Label string `json:"label"`
	}
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	meta, err := h.snapshots.Create(c.Request.Context(), req.Label)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, meta)
}

func (h *Handler) listSnapshots(c *gin.Context) {
	out, err := h.snapshots.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getSnapshot(c *gin.Context) {
	meta, err := h.snapshots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *Handler) restoreSnapshot(c *gin.Context) {
	if err := h.snapshots.Restore(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	meta, err := h.snapshots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *Handler) pruneSnapshots(c *gin.Context) {
	var req struct {
		KeepLast    int `json:"keep_last"`
		MaxAgeHours int `json:"max_age_hours"`
	}
	if !h.bind(c, &req) {
		return
	}
	n, err := h.snapshots.Prune(c.Request.Context(), snapshot.RetentionPolicy{
		KeepLast: req.KeepLast,
		MaxAge:   time.Duration(req.MaxAgeHours) * time.Hour,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// ============================================================================
// Helpers
// ============================================================================

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "type": string(apperrors.ErrorTypeValidation)})
		return false
	}
	return true
}

func (h *Handler) boolQuery(c *gin.Context, key string) (bool, bool) {
	raw := c.Query(key)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		h.writeError(c, apperrors.NewValidation(key, "must be a boolean"))
		return false, false
	}
	return v, true
}
