package chat

import (
	"time"

	"couplespace/internal/models"
)

// MessageState classifies a message for rendering purposes.
type MessageState int

const (
	// StateOpen is a message without a privacy lock.
	StateOpen MessageState = iota
	// StateHidden is a private-media message the viewer has not revealed.
	StateHidden
	// StateCounting is a revealed private-media message whose destruct
	// countdown is running.
	StateCounting
	// StateExpired is a message past its destruct deadline.
	StateExpired
)

// StateOf returns the lifecycle state of a message as seen by viewer at
// the given instant. The sender always sees their own private media
// unlocked; the lock only applies to the receiving party.
func StateOf(m models.Message, viewer models.Sender, now time.Time) MessageState {
	if m.Expired(now) {
		return StateExpired
	}
	if !m.PrivateMedia {
		return StateOpen
	}
	if m.Revealed() {
		return StateCounting
	}
	if m.SenderID == viewer {
		return StateOpen
	}
	return StateHidden
}

// Countdown returns the remaining time before destruction, floored at
// zero. It is zero for messages that were never revealed.
func Countdown(m models.Message, now time.Time) time.Duration {
	if m.DestructAt.IsZero() {
		return 0
	}
	remaining := m.DestructAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SplitExpired partitions messages into the active list and the expired
// ones. Expiry depends only on (DestructAt, now), so a record fetched
// already past its deadline lands in expired on first read.
func SplitExpired(msgs []models.Message, now time.Time) (active, expired []models.Message) {
	active = make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Expired(now) {
			expired = append(expired, m)
			continue
		}
		active = append(active, m)
	}
	return active, expired
}
