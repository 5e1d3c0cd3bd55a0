package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"couplespace/internal/apperr"
	"couplespace/internal/mocks"
	"couplespace/internal/models"
	"couplespace/internal/push"
	"couplespace/internal/store"
)

type peerNotifierMock struct {
	mock.Mock
}

func (m *peerNotifierMock) NotifyPeerMessage(ctx context.Context, msg push.PeerMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type fixture struct {
	docs     *mocks.DocumentStoreMock
	objects  *mocks.ObjectStoreMock
	sessions *mocks.SessionProviderMock
	now      *time.Time
	svc      *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		docs:     new(mocks.DocumentStoreMock),
		objects:  new(mocks.ObjectStoreMock),
		sessions: new(mocks.SessionProviderMock),
		now:      &now,
	}

	nextID := 0
	base := []Option{
		WithClock(func() time.Time { return *f.now }),
		WithIDGenerator(func() string {
			nextID++
			return models.LocalIDPrefix + strings.Repeat("d", nextID)
		}),
	}
	f.svc = NewService(f.docs, f.objects, f.sessions, models.SenderMe, append(base, opts...)...)
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func (f *fixture) stubSession() {
	f.sessions.On("EnsureSession", mock.Anything).Return(store.Identity{UserID: "u1", Role: "me", Token: "t"}, nil)
}

func TestRefreshReplacesList(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.docs.On("Query", mock.Anything, Collection, mock.MatchedBy(func(q store.Query) bool {
		return q.Filter["roomId"] == models.RoomID && q.OrderBy == "createdAt"
	})).Return([]store.Document{
		{ID: "m1", Data: map[string]any{"senderId": "partner", "type": "text", "content": "hi"}},
	}, nil).Once()

	require.NoError(t, f.svc.Refresh(context.Background(), false))

	msgs := f.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, models.SenderPartner, msgs[0].SenderID)
	assert.Equal(t, "hi", msgs[0].Content)
	f.docs.AssertExpectations(t)
}

func TestRefreshCoalescesConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	started := make(chan struct{})
	release := make(chan struct{})
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]store.Document{}, nil).Once()

	errCh := make(chan error, 1)
	go func() { errCh <- f.svc.Refresh(context.Background(), false) }()
	<-started

	// Second call while the first is in flight is a silent no-op.
	require.NoError(t, f.svc.Refresh(context.Background(), false))

	close(release)
	require.NoError(t, <-errCh)
	f.docs.AssertNumberOfCalls(t, "Query", 1)
}

func TestRefreshFetchErrorKeepsPreviousList(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "m1", Data: map[string]any{"senderId": "me", "type": "text", "content": "keep"}},
	}, nil).Once()
	require.NoError(t, f.svc.Refresh(context.Background(), false))

	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return(nil, assert.AnError).Once()
	err := f.svc.Refresh(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTransient, apperr.CodeOf(err))

	msgs := f.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "keep", msgs[0].Content)
	assert.NotEmpty(t, f.svc.LastError())
}

func TestRefreshResolvesMediaURLsInOneBatch(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "m1", Data: map[string]any{"senderId": "me", "type": "image", "fileId": "f1"}},
		{ID: "m2", Data: map[string]any{"senderId": "partner", "type": "image", "fileId": "f1"}},
		{ID: "m3", Data: map[string]any{"senderId": "partner", "type": "video", "fileId": "f2"}},
	}, nil).Once()
	f.objects.On("ResolveTempURLs", mock.Anything, []string{"f1", "f2"}).Return([]store.ResolvedFile{
		{FileID: "f1", URL: "https://cdn/f1", Status: store.ResolveStatusOK},
		{FileID: "f2", Status: "FAILED"},
	}, nil).Once()

	require.NoError(t, f.svc.Refresh(context.Background(), false))

	msgs := f.svc.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "https://cdn/f1", msgs[0].URL)
	assert.Equal(t, "https://cdn/f1", msgs[1].URL)
	assert.Empty(t, msgs[2].URL)
	f.objects.AssertNumberOfCalls(t, "ResolveTempURLs", 1)
}

func TestRefreshResolveErrorStillUpdatesList(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "m1", Data: map[string]any{"senderId": "me", "type": "image", "fileId": "f1"}},
	}, nil).Once()
	f.objects.On("ResolveTempURLs", mock.Anything, []string{"f1"}).Return(nil, assert.AnError).Once()

	require.NoError(t, f.svc.Refresh(context.Background(), false))

	msgs := f.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].URL)
}

func TestRefreshDropsAndPurgesAlreadyExpired(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	past := f.now.Add(-time.Minute).Format(time.RFC3339Nano)
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "m1", Data: map[string]any{"senderId": "partner", "type": "text", "content": "alive"}},
		{ID: "m2", Data: map[string]any{
			"senderId": "partner", "type": "image", "fileId": "f1",
			"privateMedia": true, "selfDestructSeconds": float64(10),
			"viewedAt": past, "destructAt": past,
		}},
	}, nil).Once()

	removed := make(chan struct{})
	f.docs.On("Remove", mock.Anything, Collection, "m2").
		Run(func(mock.Arguments) { close(removed) }).
		Return(nil).Once()

	require.NoError(t, f.svc.Refresh(context.Background(), false))

	msgs := f.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)

	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected expired message to be purged remotely")
	}
}

func TestRefreshNormalizesMalformedRecords(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "m1", Data: map[string]any{"senderId": float64(42), "type": "hologram", "content": 7}},
	}, nil).Once()

	require.NoError(t, f.svc.Refresh(context.Background(), false))

	msgs := f.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderMe, msgs[0].SenderID)
	assert.Equal(t, models.TypeText, msgs[0].Type)
	assert.Empty(t, msgs[0].Content)
}

func TestSendTextOptimisticThenConfirmed(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.docs.On("Add", mock.Anything, Collection, mock.MatchedBy(func(data map[string]any) bool {
		return data["content"] == "hello" && data["senderId"] == "me" && data["type"] == "text"
	})).Return("srv-1", nil).Once()
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "srv-1", Data: map[string]any{"senderId": "me", "type": "text", "content": "hello"}},
	}, nil).Once()

	f.svc.SetInput("  hello  ")
	require.NoError(t, f.svc.SendText(context.Background()))

	assert.Empty(t, f.svc.Input())
	msgs := f.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.False(t, msgs[0].IsDraft())
	f.docs.AssertExpectations(t)
}

func TestSendTextEmptyInputIsNoop(t *testing.T) {
	f := newFixture(t)

	f.svc.SetInput("   ")
	require.NoError(t, f.svc.SendText(context.Background()))

	assert.Empty(t, f.svc.Messages())
	f.docs.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendTextFailureRollsBackDraftAndRestoresInput(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.docs.On("Add", mock.Anything, Collection, mock.Anything).Return("", assert.AnError).Once()

	f.svc.SetInput("hello")
	err := f.svc.SendText(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTransient, apperr.CodeOf(err))

	assert.Empty(t, f.svc.Messages())
	assert.Equal(t, "hello", f.svc.Input())
	assert.NotEmpty(t, f.svc.LastError())
}

func TestSendTextRejectsConcurrentSend(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	started := make(chan struct{})
	release := make(chan struct{})
	f.docs.On("Add", mock.Anything, Collection, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return("srv-1", nil).Once()
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{}, nil)

	f.svc.SetInput("first")
	errCh := make(chan error, 1)
	go func() { errCh <- f.svc.SendText(context.Background()) }()
	<-started

	f.svc.SetInput("second")
	require.ErrorIs(t, f.svc.SendText(context.Background()), ErrSendInFlight)

	close(release)
	require.NoError(t, <-errCh)
}

func TestSendTextDraftSurvivesRefreshUntilConfirmed(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	// The post-send refresh does not cover the new record yet.
	f.docs.On("Add", mock.Anything, Collection, mock.Anything).Return("srv-1", nil).Once()
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "old", Data: map[string]any{"senderId": "partner", "type": "text", "content": "old"}},
	}, nil).Once()

	f.svc.SetInput("hello")
	require.NoError(t, f.svc.SendText(context.Background()))

	msgs := f.svc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "old", msgs[0].ID)
	assert.True(t, msgs[1].IsDraft())

	// The next refresh covers it; the draft collapses into the record.
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "old", Data: map[string]any{"senderId": "partner", "type": "text", "content": "old"}},
		{ID: "srv-1", Data: map[string]any{"senderId": "me", "type": "text", "content": "hello"}},
	}, nil).Once()
	require.NoError(t, f.svc.Refresh(context.Background(), false))

	msgs = f.svc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "srv-1", msgs[1].ID)
	assert.False(t, msgs[1].IsDraft())
}

func TestSendMediaValidatesBeforeAnyNetworkCall(t *testing.T) {
	f := newFixture(t, WithMaxMediaSize(1<<20))

	err := f.svc.SendMedia(context.Background(), MediaFile{Name: "a.txt", ContentType: "text/plain", Size: 10}, MediaOptions{})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	err = f.svc.SendMedia(context.Background(), MediaFile{Name: "a.jpg", ContentType: "image/jpeg", Size: 2 << 20}, MediaOptions{})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	err = f.svc.SendMedia(context.Background(), MediaFile{Name: "a.jpg", ContentType: "image/jpeg", Size: 10}, MediaOptions{PrivateMedia: true})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	f.objects.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.docs.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMediaUploadsThenAdds(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.objects.On("Upload", mock.Anything, mock.MatchedBy(func(path string) bool {
		return strings.HasPrefix(path, "chat-media/") && strings.HasSuffix(path, ".jpg")
	}), mock.Anything, int64(10), "image/jpeg").Return("f1", nil).Once()
	f.docs.On("Add", mock.Anything, Collection, mock.MatchedBy(func(data map[string]any) bool {
		return data["fileId"] == "f1" && data["privateMedia"] == true && data["selfDestructSeconds"] == 10
	})).Return("srv-1", nil).Once()
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{}, nil)

	file := MediaFile{Name: "photo.JPG", ContentType: "image/jpeg", Size: 10, Reader: strings.NewReader("x")}
	require.NoError(t, f.svc.SendMedia(context.Background(), file, MediaOptions{PrivateMedia: true, SelfDestructSeconds: 10}))
	f.objects.AssertExpectations(t)
	f.docs.AssertExpectations(t)
}

func TestSendMediaAudioNeverLocks(t *testing.T) {
	f := newFixture(t)
	f.stubSession()

	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, int64(5), "audio/webm").Return("f1", nil).Once()
	f.docs.On("Add", mock.Anything, Collection, mock.MatchedBy(func(data map[string]any) bool {
		_, hasPrivate := data["privateMedia"]
		return !hasPrivate && data["type"] == "audio"
	})).Return("srv-1", nil).Once()
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{}, nil)

	file := MediaFile{Name: "voice.webm", ContentType: "audio/webm", Size: 5, Reader: strings.NewReader("x")}
	require.NoError(t, f.svc.SendMedia(context.Background(), file, MediaOptions{PrivateMedia: true, SelfDestructSeconds: 10}))
}

func seedPrivateMessage(t *testing.T, f *fixture, sender models.Sender) {
	t.Helper()
	f.stubSession()
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "m1", Data: map[string]any{
			"senderId": string(sender), "type": "image", "fileId": "f1",
			"privateMedia": true, "selfDestructSeconds": float64(10),
		}},
	}, nil).Once()
	f.objects.On("ResolveTempURLs", mock.Anything, []string{"f1"}).Return([]store.ResolvedFile{
		{FileID: "f1", URL: "https://cdn/f1", Status: store.ResolveStatusOK},
	}, nil).Once()
	require.NoError(t, f.svc.Refresh(context.Background(), false))
}

func TestRevealStartsCountdownAndExpires(t *testing.T) {
	f := newFixture(t)
	seedPrivateMessage(t, f, models.SenderPartner)

	f.docs.On("Update", mock.Anything, Collection, "m1", mock.MatchedBy(func(patch map[string]any) bool {
		_, hasViewed := patch["viewedAt"]
		_, hasDestruct := patch["destructAt"]
		return hasViewed && hasDestruct
	})).Return(nil).Once()

	require.NoError(t, f.svc.Reveal(context.Background(), "m1"))

	msgs := f.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, StateCounting, StateOf(msgs[0], models.SenderMe, *f.now))
	assert.Equal(t, 10*time.Second, Countdown(msgs[0], *f.now))

	f.advance(4 * time.Second)
	assert.Equal(t, 6*time.Second, Countdown(f.svc.Messages()[0], *f.now))

	// Past the deadline the message disappears locally no matter what.
	removed := make(chan struct{})
	f.docs.On("Remove", mock.Anything, Collection, "m1").
		Run(func(mock.Arguments) { close(removed) }).
		Return(assert.AnError).Once()

	f.advance(7 * time.Second)
	assert.Empty(t, f.svc.Messages())

	f.svc.Tick()
	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a best-effort remote purge")
	}
	assert.Empty(t, f.svc.Messages())
}

func TestRevealIsIdempotent(t *testing.T) {
	f := newFixture(t)
	seedPrivateMessage(t, f, models.SenderPartner)

	f.docs.On("Update", mock.Anything, Collection, "m1", mock.Anything).Return(nil).Once()
	require.NoError(t, f.svc.Reveal(context.Background(), "m1"))

	deadline := f.svc.Messages()[0].DestructAt
	f.advance(3 * time.Second)

	// A second reveal never moves the deadline.
	require.NoError(t, f.svc.Reveal(context.Background(), "m1"))
	assert.Equal(t, deadline, f.svc.Messages()[0].DestructAt)
	f.docs.AssertNumberOfCalls(t, "Update", 1)
}

func TestRevealOwnMessageIsNoop(t *testing.T) {
	f := newFixture(t)
	seedPrivateMessage(t, f, models.SenderMe)

	require.NoError(t, f.svc.Reveal(context.Background(), "m1"))
	assert.Equal(t, StateOpen, StateOf(f.svc.Messages()[0], models.SenderMe, *f.now))
	f.docs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRevealRemoteFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	seedPrivateMessage(t, f, models.SenderPartner)

	f.docs.On("Update", mock.Anything, Collection, "m1", mock.Anything).Return(assert.AnError).Once()

	err := f.svc.Reveal(context.Background(), "m1")
	require.Error(t, err)

	msg := f.svc.Messages()[0]
	assert.False(t, msg.Revealed())
	assert.Equal(t, StateHidden, StateOf(msg, models.SenderMe, *f.now))
}

func TestRevealUnknownMessage(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Reveal(context.Background(), "missing")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestNotifierFiresAfterSuccessfulSend(t *testing.T) {
	notifier := new(peerNotifierMock)
	f := newFixture(t, WithNotifier(notifier))
	f.stubSession()

	notified := make(chan struct{})
	notifier.On("NotifyPeerMessage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(notified) }).
		Return(nil).Once()

	f.docs.On("Add", mock.Anything, Collection, mock.Anything).Return("srv-1", nil).Once()
	f.docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{}, nil)

	f.svc.SetInput("ping")
	require.NoError(t, f.svc.SendText(context.Background()))

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the peer notifier to fire")
	}
}
