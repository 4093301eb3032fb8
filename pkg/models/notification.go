package models

// Notification is the durable record created best-effort when a message
// is persisted for an offline (or online) receiver.
type Notification struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	FromUserID string            `json:"from_user_id"`
	Type       string            `json:"type"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Read       bool              `json:"read"`
	CreatedTS  int64             `json:"created_ts"`
}
