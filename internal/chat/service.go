// Package chat implements the client engine for the couple chat:
// polling-based synchronization, optimistic sends and the ephemeral
// private-media lifecycle.
package chat

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
	"couplespace/internal/push"
	"couplespace/internal/store"
)

// Collection is the document collection holding chat messages.
const Collection = "messages"

const (
	feedName          = "chat"
	defaultFetchLimit = 500
	defaultMaxMedia   = 200 << 20 // 200 MiB
	backgroundTimeout = 15 * time.Second
)

// ErrSendInFlight rejects a send started while another one is outstanding.
var ErrSendInFlight = apperr.Conflict("a send is already in progress")

// PeerNotifier alerts the other participant after a successful send.
type PeerNotifier interface {
	NotifyPeerMessage(ctx context.Context, msg push.PeerMessage) error
}

// MediaFile is an outgoing binary attachment.
type MediaFile struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// MediaOptions carries the ephemeral settings of an outgoing attachment.
type MediaOptions struct {
	PrivateMedia        bool
	SelfDestructSeconds int
}

// Service keeps the local message list eventually consistent with the
// remote store. The remote store is the single source of truth; the
// local list is a cache that may be stale between polls.
type Service struct {
	docs     store.DocumentStore
	objects  store.ObjectStore
	sessions store.SessionProvider
	resolver *media.Resolver
	notifier PeerNotifier

	self       models.Sender
	roomID     string
	fetchLimit int
	maxMedia   int64
	now        func() time.Time
	newID      func() string

	refreshing atomic.Bool

	mu        sync.Mutex
	messages  []models.Message
	pending   map[string]string // draft id -> server id once acknowledged
	input     string
	sending   bool
	loading   bool
	lastError string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock injects the time source used for expiry and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator injects the draft id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithFetchLimit overrides how many recent messages a refresh pulls.
func WithFetchLimit(limit int) Option {
	return func(s *Service) { s.fetchLimit = limit }
}

// WithMaxMediaSize overrides the outgoing attachment size ceiling.
func WithMaxMediaSize(limit int64) Option {
	return func(s *Service) { s.maxMedia = limit }
}

// WithNotifier attaches a peer notifier invoked after successful sends.
func WithNotifier(n PeerNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService builds the chat engine for one participant. The identity
// is explicit so two simulated participants can coexist in one process.
func NewService(docs store.DocumentStore, objects store.ObjectStore, sessions store.SessionProvider, self models.Sender, opts ...Option) *Service {
	s := &Service{
		docs:       docs,
		objects:    objects,
		sessions:   sessions,
		resolver:   media.NewResolver(objects),
		self:       self,
		roomID:     models.RoomID,
		fetchLimit: defaultFetchLimit,
		maxMedia:   defaultMaxMedia,
		now:        time.Now,
		newID: func() string {
			return models.LocalIDPrefix + uuid.NewString()
		},
		pending: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh pulls the room's recent messages, drops expired ones, resolves
// media URLs in one batch and replaces the in-memory list. A call while
// another refresh is in flight is a no-op, so slow networks never stack
// concurrent fetches. A failed fetch keeps the previous list intact.
func (s *Service) Refresh(ctx context.Context, showLoading bool) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		observability.IncRefreshSkipped(feedName)
		return nil
	}
	defer s.refreshing.Store(false)

	if showLoading {
		s.setLoading(true)
		defer s.setLoading(false)
	}

	if _, err := s.sessions.EnsureSession(ctx); err != nil {
		s.setError("failed to load messages")
		observability.IncRefresh(feedName, "error")
		return apperr.Transient("failed to load messages", err)
	}

	docs, err := s.docs.Query(ctx, Collection, store.Query{
		Filter:  map[string]any{"roomId": s.roomID},
		OrderBy: "createdAt",
		Limit:   s.fetchLimit,
	})
	if err != nil {
		s.setError("failed to load messages")
		observability.IncRefresh(feedName, "error")
		return apperr.Transient("failed to load messages", err)
	}

	now := s.now()
	fetched := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		fetched = append(fetched, models.MessageFromDocument(doc.ID, doc.Data, now))
	}
	active, expired := SplitExpired(fetched, now)
	s.purgeRemote(expired)

	fileIDs := make([]string, 0, len(active))
	for _, m := range active {
		if m.FileID != "" {
			fileIDs = append(fileIDs, m.FileID)
		}
	}
	urls, err := s.resolver.URLMap(ctx, fileIDs)
	if err != nil {
		// Unresolved handles render as pending; the list itself still updates.
		log.Printf("chat: resolve media urls failed: %v", err)
		urls = map[string]string{}
	}
	for i := range active {
		if active[i].FileID != "" {
			active[i].URL = urls[active[i].FileID]
		}
	}

	s.reconcile(active)
	observability.IncRefresh(feedName, "ok")
	return nil
}

// reconcile replaces the list with the authoritative fetch, re-appending
// local drafts the fetch does not cover yet so the UI never shows a gap
// between a send and its confirmation.
func (s *Service) reconcile(fetched []models.Message) {
	fetchedIDs := make(map[string]struct{}, len(fetched))
	for _, m := range fetched {
		fetchedIDs[m.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var drafts []models.Message
	for _, m := range s.messages {
		if !m.IsDraft() {
			continue
		}
		serverID := s.pending[m.ID]
		if serverID != "" {
			if _, ok := fetchedIDs[serverID]; ok {
				delete(s.pending, m.ID)
				continue
			}
		}
		drafts = append(drafts, m)
	}

	s.messages = append(fetched, drafts...)
	s.lastError = ""
}

// SetInput replaces the compose buffer.
func (s *Service) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// Input returns the compose buffer.
func (s *Service) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SendText sends the compose buffer as a text message. Empty or
// whitespace-only input is silently ignored. The draft appears in the
// list immediately; on failure it is removed and the input restored.
func (s *Service) SendText(ctx context.Context) error {
	s.mu.Lock()
	text := strings.TrimSpace(s.input)
	if text == "" {
		s.mu.Unlock()
		return nil
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending = true
	draft := models.Message{
		ID:        s.newID(),
		RoomID:    s.roomID,
		SenderID:  s.self,
		Type:      models.TypeText,
		Content:   text,
		CreatedAt: s.now(),
	}
	s.messages = append(s.messages, draft)
	s.pending[draft.ID] = ""
	s.input = ""
	s.mu.Unlock()
	defer s.setSending(false)

	serverID, err := s.docs.Add(ctx, Collection, map[string]any{
		"roomId":    s.roomID,
		"senderId":  string(s.self),
		"type":      string(models.TypeText),
		"content":   text,
		"createdAt": draft.CreatedAt.UTC().Format(store.TimestampLayout),
	})
	if err != nil {
		s.rollbackDraft(draft.ID, text, "failed to send message")
		observability.IncSend(string(models.TypeText), "error")
		return apperr.Transient("failed to send message", err)
	}

	s.acknowledgeDraft(draft.ID, serverID)
	observability.IncSend(string(models.TypeText), "ok")
	s.notifyPeer(models.TypeText, text, false)

	if err := s.Refresh(ctx, false); err != nil {
		log.Printf("chat: post-send refresh failed: %v", err)
	}
	return nil
}

// SendMedia validates, uploads and sends a binary attachment. Type and
// size violations fail synchronously before any network call.
func (s *Service) SendMedia(ctx context.Context, file MediaFile, opts MediaOptions) error {
	msgType, err := typeForContent(file.ContentType)
	if err != nil {
		return err
	}
	if file.Size > s.maxMedia {
		return apperr.InvalidInput(fmt.Sprintf("file too large, limit is %d MiB", s.maxMedia>>20))
	}
	// Only image and video can be private; audio never locks.
	if msgType != models.TypeImage && msgType != models.TypeVideo {
		opts.PrivateMedia = false
	}
	if opts.PrivateMedia && opts.SelfDestructSeconds <= 0 {
		return apperr.InvalidInput("self-destruct window must be positive")
	}
	if !opts.PrivateMedia {
		opts.SelfDestructSeconds = 0
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending = true
	draft := models.Message{
		ID:                  s.newID(),
		RoomID:              s.roomID,
		SenderID:            s.self,
		Type:                msgType,
		CreatedAt:           s.now(),
		PrivateMedia:        opts.PrivateMedia,
		SelfDestructSeconds: opts.SelfDestructSeconds,
	}
	s.messages = append(s.messages, draft)
	s.pending[draft.ID] = ""
	s.mu.Unlock()
	defer s.setSending(false)

	path := store.UploadPath(store.CategoryChatMedia, file.Name, s.now())
	fileID, err := s.objects.Upload(ctx, path, file.Reader, file.Size, file.ContentType)
	if err != nil {
		s.rollbackDraft(draft.ID, "", "failed to upload media")
		observability.IncSend(string(msgType), "error")
		return apperr.Transient("failed to upload media", err)
	}

	data := map[string]any{
		"roomId":    s.roomID,
		"senderId":  string(s.self),
		"type":      string(msgType),
		"fileId":    fileID,
		"createdAt": draft.CreatedAt.UTC().Format(store.TimestampLayout),
	}
	if opts.PrivateMedia {
		data["privateMedia"] = true
		data["selfDestructSeconds"] = opts.SelfDestructSeconds
	}

	serverID, err := s.docs.Add(ctx, Collection, data)
	if err != nil {
		s.rollbackDraft(draft.ID, "", "failed to send media")
		observability.IncSend(string(msgType), "error")
		return apperr.Transient("failed to send media", err)
	}

	s.acknowledgeDraft(draft.ID, serverID)
	observability.IncSend(string(msgType), "ok")
	s.notifyPeer(msgType, "", opts.PrivateMedia)

	if err := s.Refresh(ctx, false); err != nil {
		log.Printf("chat: post-send refresh failed: %v", err)
	}
	return nil
}

// Reveal starts the destruct countdown of a private-media message. Only
// the receiving party transitions the message; a second call is a no-op
// and never moves DestructAt.
func (s *Service) Reveal(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i, m := range s.messages {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return apperr.NotFound("message not found")
	}
	m := s.messages[idx]
	if !m.PrivateMedia || m.Revealed() || m.SenderID == s.self {
		s.mu.Unlock()
		return nil
	}

	viewedAt := s.now()
	destructAt := viewedAt.Add(time.Duration(m.SelfDestructSeconds) * time.Second)
	s.messages[idx].ViewedAt = viewedAt
	s.messages[idx].DestructAt = destructAt
	s.mu.Unlock()

	err := s.docs.Update(ctx, Collection, id, map[string]any{
		"viewedAt":   viewedAt.UTC().Format(store.TimestampLayout),
		"destructAt": destructAt.UTC().Format(store.TimestampLayout),
	})
	if err != nil {
		s.mu.Lock()
		for i := range s.messages {
			if s.messages[i].ID == id {
				s.messages[i].ViewedAt = time.Time{}
				s.messages[i].DestructAt = time.Time{}
			}
		}
		s.mu.Unlock()
		return apperr.Transient("failed to reveal message", err)
	}
	return nil
}

// Messages returns a snapshot of the active list, filtered by expiry at
// the current clock regardless of whether any remote delete completed.
func (s *Service) Messages() []models.Message {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Expired(now) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Tick drops newly expired messages from the list and issues their
// best-effort remote cleanup. Intended to run on a 1-second cadence,
// independent of the network synchronization loop.
func (s *Service) Tick() {
	now := s.now()
	s.mu.Lock()
	active, expired := SplitExpired(s.messages, now)
	if len(expired) > 0 {
		s.messages = active
	}
	s.mu.Unlock()
	s.purgeRemote(expired)
}

// RunExpiryTicker drives Tick until the context is cancelled.
func (s *Service) RunExpiryTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Sending reports whether a send is outstanding.
func (s *Service) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Loading reports whether a user-visible refresh is running.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the current user-visible error banner, empty when
// the last operation succeeded.
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// purgeRemote deletes expired messages from the remote store in the
// background. Failures are swallowed: the client-side filter already
// guarantees they never reappear.
func (s *Service) purgeRemote(expired []models.Message) {
	for _, m := range expired {
		if m.IsDraft() {
			continue
		}
		id := m.ID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
			defer cancel()
			if err := s.docs.Remove(ctx, Collection, id); err != nil {
				observability.IncExpiredPurge("error")
				log.Printf("chat: purge expired message %s failed: %v", id, err)
				return
			}
			observability.IncExpiredPurge("ok")
		}()
	}
}

func (s *Service) notifyPeer(msgType models.MessageType, preview string, privateMedia bool) {
	if s.notifier == nil {
		return
	}
	msg := push.PeerMessage{
		SenderID:     s.self,
		MessageType:  msgType,
		Preview:      preview,
		PrivateMedia: privateMedia,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := s.notifier.NotifyPeerMessage(ctx, msg); err != nil {
			log.Printf("chat: peer notify failed: %v", err)
		}
	}()
}

func (s *Service) acknowledgeDraft(draftID, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[draftID]; ok {
		s.pending[draftID] = serverID
	}
}

func (s *Service) rollbackDraft(draftID, restoreInput, banner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ID != draftID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	delete(s.pending, draftID)
	if restoreInput != "" {
		s.input = restoreInput
	}
	s.lastError = banner
}

func (s *Service) setSending(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = v
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func typeForContent(contentType string) (models.MessageType, error) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.TypeImage, nil
	case strings.HasPrefix(contentType, "video/"):
		return models.TypeVideo, nil
	case strings.HasPrefix(contentType, "audio/"):
		return models.TypeAudio, nil
	default:
		return "", apperr.InvalidInput("only image, video and audio files are supported")
	}
}
