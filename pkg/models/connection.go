package models

import "time"

// Profile is the public slice of a user captured at auth time and echoed
// in presence and summary payloads.
type Profile struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
}

// ConnectionEntry is the ephemeral, process-local record of one live
// socket. A user may own any number of entries concurrently
// (multi-device); the registry keys by connection id, never by user.
type ConnectionEntry struct {
	ConnectionID string
	UserID       string
	Auth         Profile
	ConnectedAt  time.Time
	LastPingAt   time.Time
}
