package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"couplespace/internal/observability"
	"couplespace/internal/repositories"
	"couplespace/internal/telemetry"
)

// ChangeBroadcaster fans document mutations out to connected clients.
type ChangeBroadcaster interface {
	BroadcastChange(collection, event, documentID string)
}

// DocumentHandler exposes the generic document collections.
type DocumentHandler struct {
	repo  repositories.DocumentRepository
	hub   ChangeBroadcaster
	audit *telemetry.AuditEmitter
}

// NewDocumentHandler builds a DocumentHandler.
func NewDocumentHandler(repo repositories.DocumentRepository, hub ChangeBroadcaster, audit *telemetry.AuditEmitter) *DocumentHandler {
	return &DocumentHandler{repo: repo, hub: hub, audit: audit}
}

// QueryDocuments returns documents matching equality filters.
func (h *DocumentHandler) QueryDocuments(c *gin.Context) {
	collection := c.Param("collection")

	var req struct {
		Filter  map[string]any `json:"filter"`
		OrderBy string         `json:"order_by"`
		Desc    bool           `json:"desc"`
		Limit   int            `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docs, err := h.repo.Query(c.Request.Context(), collection, repositories.DocumentQuery{
		Filter:  req.Filter,
		OrderBy: req.OrderBy,
		Desc:    req.Desc,
		Limit:   req.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query documents"})
		return
	}
	if docs == nil {
		docs = []repositories.StoredDocument{}
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// GetDocument returns a single document by id.
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.repo.Get(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if errors.Is(err, repositories.ErrDocumentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

// AddDocument stores a new document and returns the assigned id.
func (h *DocumentHandler) AddDocument(c *gin.Context) {
	collection := c.Param("collection")

	var req struct {
		Data map[string]any `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.repo.Insert(c.Request.Context(), collection, req.Data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store document"})
		return
	}

	h.recordMutation(c, "add", collection, id)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// PatchDocument merges a partial record into an existing document.
func (h *DocumentHandler) PatchDocument(c *gin.Context) {
	collection := c.Param("collection")
	id := c.Param("id")

	var req struct {
		Data map[string]any `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.repo.Patch(c.Request.Context(), collection, id, req.Data)
	if errors.Is(err, repositories.ErrDocumentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update document"})
		return
	}

	h.recordMutation(c, "update", collection, id)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteDocument removes a document by id.
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	collection := c.Param("collection")
	id := c.Param("id")

	err := h.repo.Delete(c.Request.Context(), collection, id)
	if errors.Is(err, repositories.ErrDocumentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
		return
	}

	h.recordMutation(c, "remove", collection, id)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *DocumentHandler) recordMutation(c *gin.Context, action, collection, id string) {
	if h.hub != nil {
		h.hub.BroadcastChange(collection, action, id)
	}
	h.audit.EmitMutation(
		context.WithoutCancel(c.Request.Context()),
		action,
		collection,
		id,
		observability.RequestIDFromRequest(c.Request),
		c.GetString("role"),
	)
}
