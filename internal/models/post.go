package models

import "time"

// PostMedia is one attachment on a home post.
type PostMedia struct {
	FileID string      `json:"file_id"`
	Type   MessageType `json:"type"`
	URL    string      `json:"url,omitempty"`
}

// PostComment is one comment on a home post.
type PostComment struct {
	ID        string    `json:"id"`
	AuthorID  Sender    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Post is a shared-timeline entry with likes and comments.
type Post struct {
	ID        string        `json:"id"`
	RoomID    string        `json:"room_id"`
	AuthorID  Sender        `json:"author_id"`
	Content   string        `json:"content,omitempty"`
	Media     []PostMedia   `json:"media"`
	Likes     []Sender      `json:"likes"`
	Comments  []PostComment `json:"comments"`
	CreatedAt time.Time     `json:"created_at"`
}

// LikedBy reports whether the given participant has liked the post.
func (p Post) LikedBy(s Sender) bool {
	for _, like := range p.Likes {
		if like == s {
			return true
		}
	}
	return false
}
