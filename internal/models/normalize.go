package models

import (
	"time"

	"github.com/google/uuid"
)

// Normalization of raw store documents into typed records. Remote data
// is untrusted: every field coerces to a safe default instead of
// erroring, so one corrupt record cannot break a whole list.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asTime(v any, fallback time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	case float64:
		if t > 0 {
			return time.UnixMilli(int64(t))
		}
	case int64:
		if t > 0 {
			return time.UnixMilli(t)
		}
	}
	return fallback
}

func fallbackID() string {
	return uuid.NewString()
}

// MessageFromDocument decodes a raw message document. It never fails.
func MessageFromDocument(id string, data map[string]any, now time.Time) Message {
	if id == "" {
		id = fallbackID()
	}

	msg := Message{
		ID:                  id,
		RoomID:              asString(data["roomId"]),
		SenderID:            ParseSender(asString(data["senderId"])),
		Type:                ParseMessageType(asString(data["type"])),
		Content:             asString(data["content"]),
		FileID:              asString(data["fileId"]),
		CreatedAt:           asTime(data["createdAt"], now),
		PrivateMedia:        asBool(data["privateMedia"]),
		SelfDestructSeconds: asInt(data["selfDestructSeconds"]),
		ViewedAt:            asTime(data["viewedAt"], time.Time{}),
		DestructAt:          asTime(data["destructAt"], time.Time{}),
	}
	if msg.RoomID == "" {
		msg.RoomID = RoomID
	}
	// privateMedia is only meaningful for image/video records.
	if !msg.Type.IsMedia() || msg.Type == TypeAudio {
		msg.PrivateMedia = false
	}
	if !msg.PrivateMedia {
		msg.SelfDestructSeconds = 0
	}
	return msg
}

// WallItemFromDocument decodes a raw wall document. It never fails.
func WallItemFromDocument(id string, data map[string]any, now time.Time) WallItem {
	if id == "" {
		id = fallbackID()
	}

	itemType := ParseMessageType(asString(data["type"]))
	if itemType != TypeVideo {
		itemType = TypeImage
	}

	item := WallItem{
		ID:         id,
		RoomID:     asString(data["roomId"]),
		UploaderID: ParseSender(asString(data["uploaderId"])),
		IsPrivate:  asBool(data["isPrivate"]),
		Type:       itemType,
		FileID:     asString(data["fileId"]),
		Caption:    asString(data["caption"]),
		CreatedAt:  asTime(data["createdAt"], now),
	}
	if item.RoomID == "" {
		item.RoomID = RoomID
	}
	return item
}

// PostFromDocument decodes a raw home-post document. It never fails.
func PostFromDocument(id string, data map[string]any, now time.Time) Post {
	if id == "" {
		id = fallbackID()
	}

	post := Post{
		ID:        id,
		RoomID:    asString(data["roomId"]),
		AuthorID:  ParseSender(asString(data["authorId"])),
		Content:   asString(data["content"]),
		Media:     []PostMedia{},
		Likes:     []Sender{},
		Comments:  []PostComment{},
		CreatedAt: asTime(data["createdAt"], now),
	}
	if post.RoomID == "" {
		post.RoomID = RoomID
	}

	if rawMedia, ok := data["media"].([]any); ok {
		for _, raw := range rawMedia {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			fileID := asString(entry["fileId"])
			if fileID == "" {
				continue
			}
			mediaType := TypeImage
			if asString(entry["type"]) == string(TypeVideo) {
				mediaType = TypeVideo
			}
			post.Media = append(post.Media, PostMedia{FileID: fileID, Type: mediaType})
		}
	}

	if rawLikes, ok := data["likes"].([]any); ok {
		for _, raw := range rawLikes {
			post.Likes = append(post.Likes, ParseSender(asString(raw)))
		}
	}

	if rawComments, ok := data["comments"].([]any); ok {
		for _, raw := range rawComments {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			content := asString(entry["content"])
			if content == "" {
				continue
			}
			commentID := asString(entry["id"])
			if commentID == "" {
				commentID = fallbackID()
			}
			post.Comments = append(post.Comments, PostComment{
				ID:        commentID,
				AuthorID:  ParseSender(asString(entry["authorId"])),
				Content:   content,
				CreatedAt: asTime(entry["createdAt"], now),
			})
		}
	}

	return post
}

// AnniversaryFromDocument decodes a raw anniversary document. It never fails.
func AnniversaryFromDocument(id string, data map[string]any, now time.Time) Anniversary {
	if id == "" {
		id = fallbackID()
	}
	return Anniversary{
		ID:           id,
		RoomID:       RoomID,
		Title:        asString(data["title"]),
		Date:         asTime(data["date"], now),
		ReminderDays: asInt(data["reminderDays"]),
		CreatedAt:    asTime(data["createdAt"], now),
	}
}
