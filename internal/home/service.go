// Package home implements the shared timeline: multi-media posts with
// likes and comments.
package home

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"couplespace/internal/apperr"
	"couplespace/internal/media"
	"couplespace/internal/models"
	"couplespace/internal/observability"
	"couplespace/internal/store"
)

// Collection is the document collection holding home posts.
const Collection = "home_posts"

const (
	feedName        = "home"
	defaultLimit    = 100
	defaultMaxMedia = 300 << 20 // 300 MiB
	maxImageCount   = 9
	maxVideoCount   = 1
)

// UploadFile is one attachment of a new post.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Service fetches and mutates the timeline for one participant.
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

	refreshing atomic.Bool

	mu        sync.Mutex
	posts     []models.Post
	lastError string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLimit overrides how many posts a refresh pulls.
func WithLimit(limit int) Option {
	return func(s *Service) { s.limit = limit }
}

// NewService builds the timeline engine for one participant.
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

// Refresh pulls the newest posts and resolves every attachment id in a
// single batch. Concurrent refreshes coalesce; a failed fetch keeps the
// previous posts.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		observability.IncRefreshSkipped(feedName)
		return nil
	}
	defer s.refreshing.Store(false)

	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		s.setError("failed to load the timeline")
		observability.IncRefresh(feedName, "error")
		return apperr.Transient("failed to load the timeline", err)
	}

	docs, err := s.docs.Query(ctx, Collection, store.Query{
		Filter:  map[string]any{"roomId": s.roomID},
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   s.limit,
	})
	if err != nil {
		s.setError("failed to load the timeline")
		observability.IncRefresh(feedName, "error")
		return apperr.Transient("failed to load the timeline", err)
	}

	now := s.now()
	posts := make([]models.Post, 0, len(docs))
	var fileIDs []string
	for _, doc := range docs {
		post := models.PostFromDocument(doc.ID, doc.Data, now)
		for _, m := range post.Media {
			fileIDs = append(fileIDs, m.FileID)
		}
		posts = append(posts, post)
	}

	urls, err := s.resolver.URLMap(ctx, fileIDs)
	if err != nil {
		log.Printf("home: resolve media urls failed: %v", err)
		urls = map[string]string{}
	}
	for i := range posts {
		for j := range posts[i].Media {
			posts[i].Media[j].URL = urls[posts[i].Media[j].FileID]
		}
	}

	s.mu.Lock()
	s.posts = posts
	s.lastError = ""
	s.mu.Unlock()
	observability.IncRefresh(feedName, "ok")
	return nil
}

// Posts returns the cached timeline snapshot.
func (s *Service) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]models.Post, len(s.posts))
	copy(snapshot, s.posts)
	return snapshot
}

// LastError returns the current user-visible error banner.
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// CreatePost validates and publishes a post: up to 9 images or 1 video,
// never mixed, and either text or media must be present.
func (s *Service) CreatePost(ctx context.Context, content string, files []UploadFile) error {
	text := strings.TrimSpace(content)
	if text == "" && len(files) == 0 {
		return apperr.InvalidInput("a post needs text or media")
	}

	images, videos := 0, 0
	for _, file := range files {
		switch {
		case strings.HasPrefix(file.ContentType, "image/"):
			images++
		case strings.HasPrefix(file.ContentType, "video/"):
			videos++
		default:
			return apperr.InvalidInput("posts accept only images and videos")
		}
		if file.Size > s.maxMedia {
			return apperr.InvalidInput(fmt.Sprintf("file too large, post limit is %d MiB", s.maxMedia>>20))
		}
	}
	if images > maxImageCount {
		return apperr.InvalidInput(fmt.Sprintf("at most %d images per post", maxImageCount))
	}
	if videos > maxVideoCount {
		return apperr.InvalidInput("at most one video per post")
	}
	if images > 0 && videos > 0 {
		return apperr.InvalidInput("images and videos go in separate posts")
	}

	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		return apperr.Transient("failed to publish the post", err)
	}

	mediaEntries := make([]map[string]any, 0, len(files))
	for _, file := range files {
		path := store.UploadPath(store.CategoryHomeMedia, file.Name, s.now())
		fileID, err := s.objects.Upload(ctx, path, file.Reader, file.Size, file.ContentType)
		if err != nil {
			return apperr.Transient("failed to upload post media", err)
		}
		mediaType := models.TypeImage
		if strings.HasPrefix(file.ContentType, "video/") {
			mediaType = models.TypeVideo
		}
		mediaEntries = append(mediaEntries, map[string]any{
			"fileId": fileID,
			"type":   string(mediaType),
		})
	}

	_, err := s.docs.Add(ctx, Collection, map[string]any{
		"roomId":    s.roomID,
		"authorId":  string(s.self),
		"content":   text,
		"media":     mediaEntries,
		"likes":     []any{},
		"comments":  []any{},
		"createdAt": s.now().UTC().Format(store.TimestampLayout),
	})
	if err != nil {
		return apperr.Transient("failed to publish the post", err)
	}
	return nil
}

// ToggleLike flips the caller's like on a post with a read-modify-write
// on the likes array. Last write wins; no version tokens.
func (s *Service) ToggleLike(ctx context.Context, postID string) error {
	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		return apperr.Transient("failed to update the like", err)
	}

	post, err := s.fetchPost(ctx, postID)
	if err != nil {
		return err
	}

	next := make([]any, 0, len(post.Likes)+1)
	found := false
	for _, like := range post.Likes {
		if like == s.self {
			found = true
			continue
		}
		next = append(next, string(like))
	}
	if !found {
		next = append(next, string(s.self))
	}

	if err := s.docs.Update(ctx, Collection, postID, map[string]any{"likes": next}); err != nil {
		return apperr.Transient("failed to update the like", err)
	}
	return nil
}

// AddComment appends a comment to a post. Empty input is a silent no-op.
func (s *Service) AddComment(ctx context.Context, postID, content string) error {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil
	}

	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		return apperr.Transient("failed to add the comment", err)
	}

	post, err := s.fetchPost(ctx, postID)
	if err != nil {
		return err
	}

	comments := make([]any, 0, len(post.Comments)+1)
	for _, c := range post.Comments {
		comments = append(comments, map[string]any{
			"id":        c.ID,
			"authorId":  string(c.AuthorID),
			"content":   c.Content,
			"createdAt": c.CreatedAt.UTC().Format(store.TimestampLayout),
		})
	}
	comments = append(comments, map[string]any{
		"id":        uuid.NewString(),
		"authorId":  string(s.self),
		"content":   text,
		"createdAt": s.now().UTC().Format(store.TimestampLayout),
	})

	if err := s.docs.Update(ctx, Collection, postID, map[string]any{"comments": comments}); err != nil {
		return apperr.Transient("failed to add the comment", err)
	}
	return nil
}

func (s *Service) fetchPost(ctx context.Context, postID string) (models.Post, error) {
	doc, err := s.docs.Get(ctx, Collection, postID)
	if err != nil {
		return models.Post{}, apperr.Transient("failed to load the post", err)
	}
	if doc.ID == "" {
		return models.Post{}, apperr.NotFound("post not found")
	}
	return models.PostFromDocument(doc.ID, doc.Data, s.now()), nil
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}
