package models

// PreviewMessage is the most recent message of a thread as exposed in a
// chat summary. Every field is always present in serialized form;
// downstream consumers must never have to special-case an omitted
// unread_count or delivery_status.
type PreviewMessage struct {
	ID          string         `json:"id"`
	IssuerID    string         `json:"issuer_id"`
	ReceiverID  string         `json:"receiver_id"`
	Body        string         `json:"body"`
	Type        MessageType    `json:"type"`
	Status      DeliveryStatus `json:"delivery_status"`
	UnreadCount int            `json:"unread_count"`
	CreatedTS   int64          `json:"created_ts"`
}

// NewPreview builds a PreviewMessage from a persisted message, filling
// the per-chat unread count at construction so the field is never absent.
func NewPreview(m Message, unread int) *PreviewMessage {
	return &PreviewMessage{
		ID:          m.ID,
		IssuerID:    m.IssuerID,
		ReceiverID:  m.ReceiverID,
		Body:        m.Body,
		Type:        m.Type,
		Status:      m.Status,
		UnreadCount: unread,
		CreatedTS:   m.CreatedTS,
	}
}

// ChatSummary is the per-user, per-thread projection used to render a
// conversation list. It is recomputed on demand and never cached.
type ChatSummary struct {
	ChatID      string   `json:"chat_id"`
	ChatType    ChatType `json:"chat_type"`
	Counterpart Profile  `json:"counterpart"`
	// PreviousMessage is null for threads with no messages yet.
	PreviousMessage *PreviewMessage `json:"previous_message"`
	UnreadCount     int             `json:"unread_count"`
	UpdatedTS       int64           `json:"updated_ts"`
}

// UnreadSnapshot is the per-user aggregate pushed after every send and
// read acknowledgement.
type UnreadSnapshot struct {
	UserID                   string `json:"user_id"`
	UnreadMessagesCount      int    `json:"unread_messages_count"`
	UnreadNotificationsCount int    `json:"unread_notifications_count"`
}
