package models

import (
	"strings"
	"time"
)

// RoomID is the single fixed two-party space every record belongs to.
const RoomID = "couple-room"

// LocalIDPrefix marks client-generated draft ids; server ids never carry it.
const LocalIDPrefix = "local-"

// Sender identifies one of the exactly two participants.
type Sender string

const (
	SenderMe      Sender = "me"
	SenderPartner Sender = "partner"
)

// ParseSender coerces an arbitrary value to a valid sender. Unknown
// values collapse to SenderMe so a corrupt record never breaks a render.
func ParseSender(v string) Sender {
	if Sender(v) == SenderPartner {
		return SenderPartner
	}
	return SenderMe
}

// Peer returns the other participant.
func (s Sender) Peer() Sender {
	if s == SenderPartner {
		return SenderMe
	}
	return SenderPartner
}

// MessageType enumerates supported message payloads.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeVideo MessageType = "video"
	TypeAudio MessageType = "audio"
	TypeEmoji MessageType = "emoji"
)

// ParseMessageType coerces an arbitrary value to a valid type. Unknown
// values collapse to text.
func ParseMessageType(v string) MessageType {
	switch MessageType(v) {
	case TypeImage, TypeVideo, TypeAudio, TypeEmoji:
		return MessageType(v)
	default:
		return TypeText
	}
}

// IsMedia reports whether the type references an uploaded file.
func (t MessageType) IsMedia() bool {
	return t == TypeImage || t == TypeVideo || t == TypeAudio
}

// Message is a single chat record. DestructAt is zero until the
// receiving party reveals a private-media message.
type Message struct {
	ID                  string      `json:"id"`
	RoomID              string      `json:"room_id"`
	SenderID            Sender      `json:"sender_id"`
	Type                MessageType `json:"type"`
	Content             string      `json:"content,omitempty"`
	FileID              string      `json:"file_id,omitempty"`
	URL                 string      `json:"url,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	PrivateMedia        bool        `json:"private_media,omitempty"`
	SelfDestructSeconds int         `json:"self_destruct_seconds,omitempty"`
	ViewedAt            time.Time   `json:"viewed_at,omitempty"`
	DestructAt          time.Time   `json:"destruct_at,omitempty"`
}

// IsDraft reports whether the message is a local, not-yet-confirmed echo.
func (m Message) IsDraft() bool {
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

// Revealed reports whether the receiving party has revealed the message.
func (m Message) Revealed() bool {
	return !m.ViewedAt.IsZero()
}

// Expired reports whether the destruct deadline has passed. Expiry is a
// pure function of (DestructAt, now); it holds even for records fetched
// already past their deadline.
func (m Message) Expired(now time.Time) bool {
	return !m.DestructAt.IsZero() && !now.Before(m.DestructAt)
}
