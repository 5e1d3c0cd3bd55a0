package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category partitions uploads in object storage so features never
// collide and the bucket stays browsable.
type Category string

const (
	CategoryChatMedia  Category = "chat-media"
	CategoryWallMedia  Category = "wall-media"
	CategoryHomeMedia  Category = "home-media"
	CategoryAvatars    Category = "avatars"
	CategoryEmojiPacks Category = "emoji-packs"
)

// UploadPath builds a collision-resistant storage path from the upload
// time, a random suffix and the original file extension:
// <category>/<unixms>_<suffix>.<ext>
func UploadPath(category Category, originalName string, now time.Time) string {
	ext := "bin"
	if idx := strings.LastIndex(originalName, "."); idx >= 0 && idx < len(originalName)-1 {
		ext = strings.ToLower(originalName[idx+1:])
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s/%d_%s.%s", category, now.UnixMilli(), suffix, ext)
}
