package models

// ChatType classifies a thread; proposals open threads too.
type ChatType string

const (
	ChatDirect   ChatType = "direct"
	ChatProposal ChatType = "proposal"
)

// Thread is the durable conversation record between exactly two users.
// The participant pair is conceptually unordered; lookups go through the
// symmetric pair index in the store.
type Thread struct {
	ID         string   `json:"id"`
	IssuerID   string   `json:"issuer_id"`
	ReceiverID string   `json:"receiver_id"`
	Type       ChatType `json:"chat_type"`
	// Created/Updated timestamps (ns). UpdatedTS moves on every message.
	CreatedTS int64 `json:"created_ts"`
	UpdatedTS int64 `json:"updated_ts"`
}

// Counterpart returns the other participant of the thread, or empty when
// userID is not a participant.
func (t Thread) Counterpart(userID string) string {
	switch userID {
	case t.IssuerID:
		return t.ReceiverID
	case t.ReceiverID:
		return t.IssuerID
	}
	return ""
}

// Involves reports whether userID is one of the two participants.
func (t Thread) Involves(userID string) bool {
	return userID == t.IssuerID || userID == t.ReceiverID
}
