package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"couplespace/internal/models"
)

func TestStateOf(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	open := models.Message{ID: "m1", SenderID: models.SenderPartner, Type: models.TypeText}
	assert.Equal(t, StateOpen, StateOf(open, models.SenderMe, now))

	hidden := models.Message{ID: "m2", SenderID: models.SenderPartner, Type: models.TypeImage, PrivateMedia: true, SelfDestructSeconds: 10}
	assert.Equal(t, StateHidden, StateOf(hidden, models.SenderMe, now))

	// The sender always sees their own private media unlocked.
	assert.Equal(t, StateOpen, StateOf(hidden, models.SenderPartner, now))

	counting := hidden
	counting.ViewedAt = now
	counting.DestructAt = now.Add(10 * time.Second)
	assert.Equal(t, StateCounting, StateOf(counting, models.SenderMe, now))

	assert.Equal(t, StateExpired, StateOf(counting, models.SenderMe, now.Add(10*time.Second)))
	assert.Equal(t, StateExpired, StateOf(counting, models.SenderPartner, now.Add(10*time.Second)))
}

func TestCountdown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	unrevealed := models.Message{PrivateMedia: true, SelfDestructSeconds: 10}
	assert.Zero(t, Countdown(unrevealed, now))

	counting := models.Message{DestructAt: now.Add(7 * time.Second)}
	assert.Equal(t, 7*time.Second, Countdown(counting, now))
	assert.Zero(t, Countdown(counting, now.Add(time.Minute)))
}

func TestSplitExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	msgs := []models.Message{
		{ID: "a"},
		{ID: "b", DestructAt: now.Add(-time.Second)},
		{ID: "c", DestructAt: now.Add(time.Second)},
		{ID: "d", DestructAt: now},
	}

	active, expired := SplitExpired(msgs, now)
	assert.Equal(t, []string{"a", "c"}, ids(active))
	assert.Equal(t, []string{"b", "d"}, ids(expired))
}

func ids(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
