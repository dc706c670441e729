package models

import "time"

// WaitListEntry запись листа ожидания.
type WaitListEntry struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	EmailSent bool      `json:"emailSent"`
	CreatedAt time.Time `json:"createdAt"`
}
