package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUploadPath(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	path := UploadPath(CategoryChatMedia, "Holiday Photo.JPG", now)
	assert.True(t, strings.HasPrefix(path, fmt.Sprintf("chat-media/%d_", now.UnixMilli())))
	assert.True(t, strings.HasSuffix(path, ".jpg"))

	noExt := UploadPath(CategoryWallMedia, "blob", now)
	assert.True(t, strings.HasSuffix(noExt, ".bin"))

	trailingDot := UploadPath(CategoryHomeMedia, "weird.", now)
	assert.True(t, strings.HasSuffix(trailingDot, ".bin"))
}

func TestUploadPathIsCollisionResistant(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := UploadPath(CategoryChatMedia, "a.png", now)
	b := UploadPath(CategoryChatMedia, "a.png", now)
	assert.NotEqual(t, a, b)
}
