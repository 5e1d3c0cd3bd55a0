package wall

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
	"couplespace/internal/store"
)

func newService(docs *mocks.DocumentStoreMock, objects *mocks.ObjectStoreMock, sessions *mocks.SessionProviderMock) *Service {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewService(docs, objects, sessions, models.SenderMe, WithClock(func() time.Time { return now }))
}

func stubSession(sessions *mocks.SessionProviderMock) {
	sessions.On("EnsureSession", mock.Anything).Return(store.Identity{UserID: "u1", Token: "t"}, nil)
}

func TestRefreshFiltersByPartition(t *testing.T) {
	docs := new(mocks.DocumentStoreMock)
	objects := new(mocks.ObjectStoreMock)
	sessions := new(mocks.SessionProviderMock)
	svc := newService(docs, objects, sessions)
	stubSession(sessions)

	// The partition flag must reach the remote query, not act as a
	// client-side filter.
	docs.On("Query", mock.Anything, Collection, mock.MatchedBy(func(q store.Query) bool {
		return q.Filter["isPrivate"] == true && q.Filter["roomId"] == models.RoomID && q.Desc
	})).Return([]store.Document{
		{ID: "w1", Data: map[string]any{"isPrivate": true, "type": "image", "fileId": "f1"}},
	}, nil).Once()
	objects.On("ResolveTempURLs", mock.Anything, []string{"f1"}).Return([]store.ResolvedFile{
		{FileID: "f1", URL: "https://cdn/f1", Status: store.ResolveStatusOK},
	}, nil).Once()

	require.NoError(t, svc.Refresh(context.Background(), true))

	items := svc.Items(true)
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn/f1", items[0].URL)
	assert.Empty(t, svc.Items(false))
	docs.AssertExpectations(t)
}

func TestRefreshDropsItemsWithoutFile(t *testing.T) {
	docs := new(mocks.DocumentStoreMock)
	objects := new(mocks.ObjectStoreMock)
	sessions := new(mocks.SessionProviderMock)
	svc := newService(docs, objects, sessions)
	stubSession(sessions)

	docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "w1", Data: map[string]any{"type": "image"}},
		{ID: "w2", Data: map[string]any{"type": "image", "fileId": "f2"}},
	}, nil).Once()
	objects.On("ResolveTempURLs", mock.Anything, []string{"f2"}).Return([]store.ResolvedFile{
		{FileID: "f2", URL: "https://cdn/f2", Status: store.ResolveStatusOK},
	}, nil).Once()

	require.NoError(t, svc.Refresh(context.Background(), false))

	items := svc.Items(false)
	require.Len(t, items, 1)
	assert.Equal(t, "w2", items[0].ID)
}

func TestRefreshErrorKeepsPreviousItems(t *testing.T) {
	docs := new(mocks.DocumentStoreMock)
	objects := new(mocks.ObjectStoreMock)
	sessions := new(mocks.SessionProviderMock)
	svc := newService(docs, objects, sessions)
	stubSession(sessions)

	docs.On("Query", mock.Anything, Collection, mock.Anything).Return([]store.Document{
		{ID: "w1", Data: map[string]any{"type": "image", "fileId": "f1"}},
	}, nil).Once()
	objects.On("ResolveTempURLs", mock.Anything, []string{"f1"}).Return([]store.ResolvedFile{
		{FileID: "f1", URL: "u", Status: store.ResolveStatusOK},
	}, nil).Once()
	require.NoError(t, svc.Refresh(context.Background(), false))

	docs.On("Query", mock.Anything, Collection, mock.Anything).Return(nil, assert.AnError).Once()
	require.Error(t, svc.Refresh(context.Background(), false))

	assert.Len(t, svc.Items(false), 1)
	assert.NotEmpty(t, svc.LastError())

	docs.On("Query", mock.Anything, Collection, mock.Anything).Return(nil, nil).Once()
	require.NoError(t, svc.Refresh(context.Background(), false))
	assert.Empty(t, svc.LastError())
}

func TestUploadPublishesToPartition(t *testing.T) {
	docs := new(mocks.DocumentStoreMock)
	objects := new(mocks.ObjectStoreMock)
	sessions := new(mocks.SessionProviderMock)
	svc := newService(docs, objects, sessions)
	stubSession(sessions)

	objects.On("Upload", mock.Anything, mock.MatchedBy(func(path string) bool {
		return strings.HasPrefix(path, "wall-media/")
	}), mock.Anything, int64(3), "image/png").Return("f1", nil).Once()
	docs.On("Add", mock.Anything, Collection, mock.MatchedBy(func(data map[string]any) bool {
		return data["isPrivate"] == true && data["fileId"] == "f1" && data["caption"] == "trip"
	})).Return("w1", nil).Once()

	file := UploadFile{Name: "pic.png", ContentType: "image/png", Size: 3, Reader: strings.NewReader("abc")}
	require.NoError(t, svc.Upload(context.Background(), file, true, "  trip  "))
	objects.AssertExpectations(t)
	docs.AssertExpectations(t)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	docs := new(mocks.DocumentStoreMock)
	objects := new(mocks.ObjectStoreMock)
	sessions := new(mocks.SessionProviderMock)
	svc := newService(docs, objects, sessions)

	file := UploadFile{Name: "song.mp3", ContentType: "audio/mpeg", Size: 3}
	err := svc.Upload(context.Background(), file, false, "")
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
	objects.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	docs := new(mocks.DocumentStoreMock)
	objects := new(mocks.ObjectStoreMock)
	sessions := new(mocks.SessionProviderMock)
	svc := NewService(docs, objects, sessions, models.SenderMe, WithMaxMediaSize(1<<20))

	file := UploadFile{Name: "big.mp4", ContentType: "video/mp4", Size: 2 << 20}
	err := svc.Upload(context.Background(), file, false, "")
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}
