package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"couplespace/internal/observability"
	"couplespace/internal/repositories"
	"couplespace/internal/store"
	"couplespace/internal/telemetry"
)

// maxUploadBytes caps a single object upload. The largest per-file
// ceiling any client feed enforces is 500MiB; anything beyond that is
// rejected outright.
const maxUploadBytes = 512 << 20

// ObjectHandler stores binary objects and mints short-lived signed URLs
// for fetching them.
type ObjectHandler struct {
	files   repositories.FileRepository
	audit   *telemetry.AuditEmitter
	signKey []byte
	urlTTL  time.Duration
	now     func() time.Time
}

// NewObjectHandler builds an ObjectHandler.
func NewObjectHandler(files repositories.FileRepository, audit *telemetry.AuditEmitter, signKey string, urlTTL time.Duration) *ObjectHandler {
	return &ObjectHandler{
		files:   files,
		audit:   audit,
		signKey: []byte(signKey),
		urlTTL:  urlTTL,
		now:     time.Now,
	}
}

// Upload accepts a multipart object and returns its opaque file id.
func (h *ObjectHandler) Upload(c *gin.Context) {
	path := c.PostForm("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing object path"})
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	if len(content) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "object too large"})
		return
	}

	id, err := h.files.Insert(c.Request.Context(), path, content, c.GetHeader("X-Upload-Content-Type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store object"})
		return
	}

	h.audit.EmitMutation(
		context.WithoutCancel(c.Request.Context()),
		"upload",
		"",
		id,
		observability.RequestIDFromRequest(c.Request),
		c.GetString("role"),
	)
	c.JSON(http.StatusOK, gin.H{"file_id": id})
}

// Resolve exchanges a batch of file ids for short-lived signed URLs.
// Unknown ids come back with a non-success status instead of failing
// the whole batch.
func (h *ObjectHandler) Resolve(c *gin.Context) {
	var req struct {
		FileIDs []string `json:"file_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expiry := h.now().Add(h.urlTTL).Unix()
	files := make([]store.ResolvedFile, 0, len(req.FileIDs))
	for _, fileID := range req.FileIDs {
		known, err := h.files.Exists(c.Request.Context(), fileID)
		if err != nil {
			files = append(files, store.ResolvedFile{FileID: fileID, Status: "FAILED"})
			continue
		}
		if !known {
			files = append(files, store.ResolvedFile{FileID: fileID, Status: "NOT_FOUND"})
			continue
		}
		files = append(files, store.ResolvedFile{
			FileID: fileID,
			URL:    h.signedURL(fileID, expiry),
			Status: store.ResolveStatusOK,
		})
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// Content serves a stored object. The signed expiring URL is the only
// credential; the route is not behind the session middleware.
func (h *ObjectHandler) Content(c *gin.Context) {
	fileID := c.Param("file_id")

	expiry, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expiry"})
		return
	}
	if h.now().Unix() > expiry {
		c.JSON(http.StatusForbidden, gin.H{"error": "url expired"})
		return
	}

	expected := h.sign(fileID, expiry)
	provided, err := hex.DecodeString(c.Query("sig"))
	if err != nil || !hmac.Equal(expected, provided) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	file, err := h.files.Get(c.Request.Context(), fileID)
	if errors.Is(err, repositories.ErrFileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load object"})
		return
	}

	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func (h *ObjectHandler) sign(fileID string, expiry int64) []byte {
	mac := hmac.New(sha256.New, h.signKey)
	fmt.Fprintf(mac, "%s|%d", fileID, expiry)
	return mac.Sum(nil)
}

func (h *ObjectHandler) signedURL(fileID string, expiry int64) string {
	sig := hex.EncodeToString(h.sign(fileID, expiry))
	return fmt.Sprintf("/v1/objects/%s/content?exp=%d&sig=%s", url.PathEscape(fileID), expiry, sig)
}
