// Package anniversary manages recurring couple dates and their countdowns.
package anniversary

import (
	"context"
	"sort"
	"strings"
	"time"

	"couplespace/internal/apperr"
	"couplespace/internal/models"
	"couplespace/internal/store"
)

// Collection is the document collection holding anniversaries.
const Collection = "anniversaries"

// Service reads and writes anniversaries through the document store.
type Service struct {
	docs     store.DocumentStore
	sessions store.SessionProvider
	now      func() time.Time
}

// NewService builds the anniversary service.
func NewService(docs store.DocumentStore, sessions store.SessionProvider) *Service {
	return &Service{docs: docs, sessions: sessions, now: time.Now}
}

// WithClock injects the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns all anniversaries ordered by days until next occurrence.
func (s *Service) List(ctx context.Context) ([]models.Anniversary, error) {
	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		return nil, apperr.Transient("failed to load anniversaries", err)
	}

	docs, err := s.docs.Query(ctx, Collection, store.Query{
		Filter: map[string]any{"roomId": models.RoomID},
	})
	if err != nil {
		return nil, apperr.Transient("failed to load anniversaries", err)
	}

	now := s.now()
	list := make([]models.Anniversary, 0, len(docs))
	for _, doc := range docs {
		list = append(list, models.AnniversaryFromDocument(doc.ID, doc.Data, now))
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].DaysUntil(now) < list[j].DaysUntil(now)
	})
	return list, nil
}

// Create persists a new anniversary.
func (s *Service) Create(ctx context.Context, title string, date time.Time, reminderDays int) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.InvalidInput("an anniversary needs a title")
	}
	if reminderDays < 0 {
		reminderDays = 0
	}
	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		return "", apperr.Transient("failed to save the anniversary", err)
	}

	id, err := s.docs.Add(ctx, Collection, map[string]any{
		"roomId":       models.RoomID,
		"title":        title,
		"date":         date.UTC().Format(time.RFC3339),
		"reminderDays": reminderDays,
		"createdAt":    s.now().UTC().Format(store.TimestampLayout),
	})
	if err != nil {
		return "", apperr.Transient("failed to save the anniversary", err)
	}
	return id, nil
}

// Remove deletes an anniversary by id.
func (s *Service) Remove(ctx context.Context, id string) error {
	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		return apperr.Transient("failed to delete the anniversary", err)
	}
	if err := s.docs.Remove(ctx, Collection, id); err != nil {
		return apperr.Transient("failed to delete the anniversary", err)
	}
	return nil
}
