package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"

	"couplespace/internal/models"
)

// Session is one anonymous sign-in.
type Session struct {
	UserID string
	Role   models.Sender
	Token  string
}

// SessionRegistry keeps anonymous sessions in memory. The devserver is
// a two-person space; durable identity is not a goal here.
type SessionRegistry struct {
	mu      sync.RWMutex
	byToken map[string]Session
}

// NewSessionRegistry builds an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{byToken: map[string]Session{}}
}

// Create issues a session for the given role.
func (r *SessionRegistry) Create(role models.Sender) (Session, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return Session{}, err
	}

	session := Session{
		UserID: uuid.NewString(),
		Role:   role,
		Token:  hex.EncodeToString(raw),
	}

	r.mu.Lock()
	r.byToken[session.Token] = session
	r.mu.Unlock()
	return session, nil
}

// Validate resolves a bearer token to its session.
func (r *SessionRegistry) Validate(token string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.byToken[token]
	return session, ok
}
