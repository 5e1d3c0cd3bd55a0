package ws

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"couplespace/internal/handlers"
	"couplespace/internal/observability"
)

// ChangesHandler upgrades clients onto the change feed.
type ChangesHandler struct {
	hub      *Hub
	sessions *handlers.SessionRegistry
}

// NewChangesHandler constructs a ChangesHandler.
func NewChangesHandler(hub *Hub, sessions *handlers.SessionRegistry) *ChangesHandler {
	return &ChangesHandler{hub: hub, sessions: sessions}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client.
func (h *ChangesHandler) Handle(c *gin.Context) {
	token := bearerToken(c)
	session, ok := h.sessions.Validate(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      session.UserID,
		Role:        string(session.Role),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conn, info)

	go h.readLoop(conn)
}

// readLoop drains client frames until the connection closes. The feed
// is one-way; inbound frames are discarded.
func (h *ChangesHandler) readLoop(conn *websocket.Conn) {
	defer func() {
		h.hub.RemoveClient(conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
