package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"couplespace/internal/models"
)

// AuthHandler issues anonymous sessions for the two participants.
type AuthHandler struct {
	sessions *SessionRegistry
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(sessions *SessionRegistry) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// SignInAnonymous creates a fresh session for the requested role.
// Unknown roles fall back to "me", matching client-side normalization.
func (h *AuthHandler) SignInAnonymous(c *gin.Context) {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.Create(models.ParseSender(req.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": session.UserID,
		"role":    string(session.Role),
		"token":   session.Token,
	})
}
