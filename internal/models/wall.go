package models

import "time"

// WallItem is a photo-wall record. IsPrivate is a partition key: the
// store query filters on it, private items never appear in public reads.
type WallItem struct {
	ID         string      `json:"id"`
	RoomID     string      `json:"room_id"`
	UploaderID Sender      `json:"uploader_id"`
	IsPrivate  bool        `json:"is_private"`
	Type       MessageType `json:"type"`
	FileID     string      `json:"file_id"`
	URL        string      `json:"url,omitempty"`
	Caption    string      `json:"caption,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
