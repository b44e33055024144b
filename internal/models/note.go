package models

import "time"

// Note is the server-side record of a stored envelope. The server cannot
// read Data.
type Note struct {
	Token     string    `json:"token"`
	Data      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the note outlived the store's retention window.
func (n *Note) Expired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt)
}
