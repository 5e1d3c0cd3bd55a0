package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"couplespace/internal/mocks"
	"couplespace/internal/repositories"
	"couplespace/internal/store"
	"couplespace/internal/telemetry"
)

func setupObjectRouter(handler *ObjectHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("role", "me")
		c.Next()
	})
	r.POST("/v1/objects", handler.Upload)
	r.POST("/v1/objects/resolve", handler.Resolve)
	r.GET("/v1/objects/:file_id/content", handler.Content)
	return r
}

func newObjectHandler(files repositories.FileRepository) *ObjectHandler {
	audit := telemetry.NewAuditEmitter(nil, "audit.store", "test", "test")
	h := NewObjectHandler(files, audit, "test-key", 10*time.Minute)
	h.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func multipartUpload(t *testing.T, path string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("path", path))
	part, err := writer.CreateFormFile("file", path)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadStoresObject(t *testing.T) {
	files := new(mocks.FileRepositoryMock)
	router := setupObjectRouter(newObjectHandler(files))

	files.On("Insert", mock.Anything, "chat-media/1_x.jpg", []byte("picture"), "image/jpeg").Return("f1", nil).Once()

	body, contentType := multipartUpload(t, "chat-media/1_x.jpg", []byte("picture"))
	req := httptest.NewRequest(http.MethodPost, "/v1/objects", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Upload-Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"file_id":"f1"`)
	files.AssertExpectations(t)
}

func TestUploadRequiresPathAndFile(t *testing.T) {
	files := new(mocks.FileRepositoryMock)
	router := setupObjectRouter(newObjectHandler(files))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("path", "chat-media/a.jpg"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/objects", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	files.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveMixesStatuses(t *testing.T) {
	files := new(mocks.FileRepositoryMock)
	router := setupObjectRouter(newObjectHandler(files))

	files.On("Exists", mock.Anything, "f1").Return(true, nil).Once()
	files.On("Exists", mock.Anything, "f2").Return(false, nil).Once()
	files.On("Exists", mock.Anything, "f3").Return(false, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/v1/objects/resolve", bytes.NewBufferString(`{"file_ids":["f1","f2","f3"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Files []store.ResolvedFile `json:"files"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Files, 3)
	assert.Equal(t, store.ResolveStatusOK, resp.Files[0].Status)
	assert.NotEmpty(t, resp.Files[0].URL)
	assert.Equal(t, "NOT_FOUND", resp.Files[1].Status)
	assert.Empty(t, resp.Files[1].URL)
	assert.Equal(t, "FAILED", resp.Files[2].Status)
}

func TestSignedURLServesContent(t *testing.T) {
	files := new(mocks.FileRepositoryMock)
	router := setupObjectRouter(newObjectHandler(files))

	files.On("Exists", mock.Anything, "f1").Return(true, nil).Once()
	files.On("Get", mock.Anything, "f1").Return(repositories.StoredFile{
		ID: "f1", Content: []byte("picture"), ContentType: "image/jpeg",
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/v1/objects/resolve", bytes.NewBufferString(`{"file_ids":["f1"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Files []store.ResolvedFile `json:"files"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Files, 1)

	fetch := httptest.NewRequest(http.MethodGet, resp.Files[0].URL, nil)
	fetched := httptest.NewRecorder()
	router.ServeHTTP(fetched, fetch)

	require.Equal(t, http.StatusOK, fetched.Code)
	assert.Equal(t, "picture", fetched.Body.String())
	assert.Equal(t, "image/jpeg", fetched.Header().Get("Content-Type"))
}

func TestContentRejectsBadSignature(t *testing.T) {
	files := new(mocks.FileRepositoryMock)
	handler := newObjectHandler(files)
	router := setupObjectRouter(handler)

	expiry := handler.now().Add(time.Minute).Unix()
	req := httptest.NewRequest(http.MethodGet, "/v1/objects/f1/content?exp="+url.QueryEscape("soon"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	tampered := handler.signedURL("f1", expiry) + "00"
	req = httptest.NewRequest(http.MethodGet, tampered, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	files.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestContentRejectsExpiredURL(t *testing.T) {
	files := new(mocks.FileRepositoryMock)
	handler := newObjectHandler(files)
	router := setupObjectRouter(handler)

	stale := handler.signedURL("f1", handler.now().Add(-time.Second).Unix())
	req := httptest.NewRequest(http.MethodGet, stale, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	files.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}
