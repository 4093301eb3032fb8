package models

import "fmt"

// DeliveryStatus is the lifecycle stage of a message. It only moves
// forward: sent -> delivered -> read. Failed is terminal and reachable
// from sent only.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

var statusRank = map[DeliveryStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Valid reports whether s is one of the known delivery statuses.
func (s DeliveryStatus) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanAdvance reports whether a message may transition from s to next.
// Failed is only reachable from sent; terminal states admit nothing.
func (s DeliveryStatus) CanAdvance(next DeliveryStatus) bool {
	if s == StatusFailed || s == StatusRead {
		return false
	}
	if next == StatusFailed {
		return s == StatusSent
	}
	a, ok1 := statusRank[s]
	b, ok2 := statusRank[next]
	return ok1 && ok2 && b > a
}

// MessageType distinguishes plain chat messages from proposal messages.
type MessageType string

const (
	MessageNormal   MessageType = "normal"
	MessageProposal MessageType = "proposal"
)

type Message struct {
	ID       string `json:"id"`
	Thread   string `json:"thread"`
	IssuerID string `json:"issuer_id"`
	// ReceiverID is the counterpart the message is addressed to.
	ReceiverID string         `json:"receiver_id"`
	Body       string         `json:"body"`
	Type       MessageType    `json:"type"`
	Status     DeliveryStatus `json:"delivery_status"`
	// LastSenderMarker records who sent last in the thread at write time.
	LastSenderMarker string `json:"last_sender_marker,omitempty"`
	// ClientKey is an optional client-supplied idempotency token; replays
	// carrying the same key return the originally persisted message.
	ClientKey string `json:"client_key,omitempty"`
	// CreatedTS is the persist timestamp (ns).
	CreatedTS int64 `json:"created_ts"`
}

// Advance applies a forward status transition, rejecting regressions.
func (m *Message) Advance(next DeliveryStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown delivery status %q", next)
	}
	if m.Status == next {
		return nil
	}
	if !m.Status.CanAdvance(next) {
		return fmt.Errorf("delivery status cannot move %s -> %s", m.Status, next)
	}
	m.Status = next
	return nil
}
