package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"couplespace/internal/push"
	"couplespace/internal/rabbitmq"
)

// FunctionHandler dispatches named backend functions. The only function
// today is the web-push trigger; it publishes the payload for a worker
// to deliver.
type FunctionHandler struct {
	publisher      rabbitmq.Publisher
	pushRoutingKey string
}

// NewFunctionHandler builds a FunctionHandler.
func NewFunctionHandler(publisher rabbitmq.Publisher, pushRoutingKey string) *FunctionHandler {
	return &FunctionHandler{publisher: publisher, pushRoutingKey: pushRoutingKey}
}

// Call invokes a named function with a JSON payload.
func (h *FunctionHandler) Call(c *gin.Context) {
	var req struct {
		Data map[string]any `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := c.Param("name")
	switch name {
	case push.DefaultFunctionName:
		// Delivery is best-effort; callers never block on the peer's
		// notification outcome.
		_ = h.publisher.Publish(c.Request.Context(), h.pushRoutingKey, gin.H{
			"event_type":  "peer_notification",
			"occurred_at": time.Now().UTC().Format(time.RFC3339Nano),
			"payload":     req.Data,
		})
		c.JSON(http.StatusOK, gin.H{"ok": true})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown function"})
	}
}
