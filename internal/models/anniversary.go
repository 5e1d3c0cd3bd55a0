package models

import "time"

// Anniversary is a recurring yearly date with an optional reminder window.
type Anniversary struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"room_id"`
	Title        string    `json:"title"`
	Date         time.Time `json:"date"`
	ReminderDays int       `json:"reminder_days"`
	CreatedAt    time.Time `json:"created_at"`
}

// NextOccurrence returns the next yearly occurrence of the anniversary
// date at or after now, in now's location.
func (a Anniversary) NextOccurrence(now time.Time) time.Time {
	occurrence := time.Date(now.Year(), a.Date.Month(), a.Date.Day(), 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if occurrence.Before(today) {
		occurrence = occurrence.AddDate(1, 0, 0)
	}
	return occurrence
}

// DaysUntil returns whole days from now until the next occurrence.
func (a Anniversary) DaysUntil(now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(a.NextOccurrence(now).Sub(today).Hours() / 24)
}

// Due reports whether the next occurrence falls inside the reminder window.
func (a Anniversary) Due(now time.Time) bool {
	return a.DaysUntil(now) <= a.ReminderDays
}
