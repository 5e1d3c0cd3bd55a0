// Package wall implements the dual-tier photo wall: a public partition
// both partners browse and a private one behind the passcode.
package wall

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"couplespace/internal/apperr"
	"couplespace/internal/media"
	"couplespace/internal/models"
	"couplespace/internal/observability"
	"couplespace/internal/store"
)

// Collection is the document collection holding wall items.
const Collection = "wall_items"

const (
	feedName        = "wall"
	defaultLimit    = 200
	defaultMaxMedia = 500 << 20 // 500 MiB
)

// UploadFile is an outgoing wall attachment.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Service fetches and publishes wall items. The private flag is a
// query filter key: each partition is a distinct remote view, never a
// client-side post-filter.
type Service struct {
	docs     store.DocumentStore
	objects  store.ObjectStore
	sessions store.SessionProvider
	resolver *media.Resolver

	self     models.Sender
	roomID   string
	limit    int
	maxMedia int64
	now      func() time.Time

	refreshing [2]atomic.Bool // one guard per partition

	mu        sync.Mutex
	items     [2][]models.WallItem
	lastError string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLimit overrides how many items one refresh pulls per partition.
func WithLimit(limit int) Option {
	return func(s *Service) { s.limit = limit }
}

// WithMaxMediaSize overrides the upload size ceiling.
func WithMaxMediaSize(limit int64) Option {
	return func(s *Service) { s.maxMedia = limit }
}

// NewService builds the wall engine for one participant.
func NewService(docs store.DocumentStore, objects store.ObjectStore, sessions store.SessionProvider, self models.Sender, opts ...Option) *Service {
	s := &Service{
		docs:     docs,
		objects:  objects,
		sessions: sessions,
		resolver: media.NewResolver(objects),
		self:     self,
		roomID:   models.RoomID,
		limit:    defaultLimit,
		maxMedia: defaultMaxMedia,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func partition(private bool) int {
	if private {
		return 1
	}
	return 0
}

// Refresh pulls one partition of the wall, newest first, resolving all
// file ids in a single batch. Concurrent refreshes of the same
// partition coalesce; a failed fetch keeps the previous items.
func (s *Service) Refresh(ctx context.Context, private bool) error {
	guard := &s.refreshing[partition(private)]
	if !guard.CompareAndSwap(false, true) {
		observability.IncRefreshSkipped(feedName)
		return nil
	}
	defer guard.Store(false)

	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		s.setError("failed to load the photo wall")
		observability.IncRefresh(feedName, "error")
		return apperr.Transient("failed to load the photo wall", err)
	}

	docs, err := s.docs.Query(ctx, Collection, store.Query{
		Filter:  map[string]any{"roomId": s.roomID, "isPrivate": private},
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   s.limit,
	})
	if err != nil {
		s.setError("failed to load the photo wall")
		observability.IncRefresh(feedName, "error")
		return apperr.Transient("failed to load the photo wall", err)
	}

	now := s.now()
	items := make([]models.WallItem, 0, len(docs))
	fileIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		item := models.WallItemFromDocument(doc.ID, doc.Data, now)
		if item.FileID == "" {
			continue
		}
		items = append(items, item)
		fileIDs = append(fileIDs, item.FileID)
	}

	urls, err := s.resolver.URLMap(ctx, fileIDs)
	if err != nil {
		log.Printf("wall: resolve media urls failed: %v", err)
		urls = map[string]string{}
	}
	for i := range items {
		items[i].URL = urls[items[i].FileID]
	}

	s.mu.Lock()
	s.items[partition(private)] = items
	s.lastError = ""
	s.mu.Unlock()
	observability.IncRefresh(feedName, "ok")
	return nil
}

// Items returns the cached partition snapshot.
func (s *Service) Items(private bool) []models.WallItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]models.WallItem, len(s.items[partition(private)]))
	copy(snapshot, s.items[partition(private)])
	return snapshot
}

// LastError returns the current user-visible error banner.
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// Upload validates and publishes a media file onto a partition. Type
// and size violations fail synchronously before any network call.
func (s *Service) Upload(ctx context.Context, file UploadFile, private bool, caption string) error {
	itemType, err := typeForContent(file.ContentType)
	if err != nil {
		return err
	}
	if file.Size > s.maxMedia {
		return apperr.InvalidInput(fmt.Sprintf("file too large, wall limit is %d MiB", s.maxMedia>>20))
	}

	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		return apperr.Transient("failed to upload to the photo wall", err)
	}

	path := store.UploadPath(store.CategoryWallMedia, file.Name, s.now())
	fileID, err := s.objects.Upload(ctx, path, file.Reader, file.Size, file.ContentType)
	if err != nil {
		return apperr.Transient("failed to upload to the photo wall", err)
	}

	_, err = s.docs.Add(ctx, Collection, map[string]any{
		"roomId":     s.roomID,
		"uploaderId": string(s.self),
		"isPrivate":  private,
		"type":       string(itemType),
		"fileId":     fileID,
		"caption":    strings.TrimSpace(caption),
		"createdAt":  s.now().UTC().Format(store.TimestampLayout),
	})
	if err != nil {
		return apperr.Transient("failed to publish to the photo wall", err)
	}
	return nil
}

func typeForContent(contentType string) (models.MessageType, error) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.TypeImage, nil
	case strings.HasPrefix(contentType, "video/"):
		return models.TypeVideo, nil
	default:
		return "", apperr.InvalidInput("the photo wall accepts only images and videos")
	}
}
