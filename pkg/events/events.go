// Package events defines the socket event surface: event names, typed
// payloads for every inbound and outbound event, and the error taxonomy
// used at handler boundaries.
package events

import (
	"encoding/json"
	"errors"

	"chatrelay/pkg/models"
)

// Inbound event names.
const (
	EvtSendMessage    = "send-message"
	EvtTyping         = "typing"
	EvtGetChats       = "get-chats-user"
	EvtMessageRead    = "messageRead"
	EvtGetUnreadCount = "get-unread-count"
	EvtJoinChat       = "join-chat"
	EvtJoinRoom       = "join_room"
	EvtLeaveRoom      = "leave_room"
	EvtPing           = "ping"
)

// Outbound event names. EvtSendMessage doubles as the sender-side ack.
const (
	EvtConnected         = "connected"
	EvtReceivedMessage   = "received-message"
	EvtUnreadCount       = "unread-count"
	EvtUserOnline        = "user-online"
	EvtUserOffline       = "user-offline"
	EvtUserStatusChanged = "user-status-changed"
	EvtOnlineUsers       = "online_users"
	EvtPong              = "pong"
)

// ErrorEvent derives the `<event>-error` name for an inbound event.
func ErrorEvent(evt string) string { return evt + "-error" }

// Envelope is the wire frame for every socket exchange.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. Marshal failures are a
// programming error on our own types; they surface as a persistence-class
// error to the caller.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Payload: b}, nil
}

// SendMessagePayload is the inbound body of send-message.
type SendMessagePayload struct {
	IssuerID   string             `json:"issuer_id"`
	ReceiverID string             `json:"receiver_id"`
	ChatID     string             `json:"chat_id,omitempty"`
	Body       string             `json:"message"`
	Type       models.MessageType `json:"type,omitempty"`
	ClientKey  string             `json:"client_key,omitempty"`
}

// TypingPayload is relayed to the receiver verbatim and never persisted.
type TypingPayload struct {
	IssuerID   string `json:"issuer_id"`
	ReceiverID string `json:"receiver_id"`
	ChatID     string `json:"chat_id"`
	IsTyping   bool   `json:"is_typing"`
}

type GetChatsPayload struct {
	UserID string `json:"user_id"`
}

type MessageReadPayload struct {
	ChatID string `json:"chat_id"`
}

type GetUnreadCountPayload struct {
	UserID string `json:"user_id,omitempty"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

// ConnectedPayload acknowledges a successful handshake.
type ConnectedPayload struct {
	ConnectionID string         `json:"connection_id"`
	User         models.Profile `json:"user"`
}

// ReceivedMessagePayload carries a delivered message plus routing ids.
type ReceivedMessagePayload struct {
	Message models.Message `json:"message"`
	ChatID  string         `json:"chat_id"`
	From    string         `json:"from"`
	To      string         `json:"to"`
}

type ChatListPayload struct {
	UserID    string               `json:"user_id"`
	Summaries []models.ChatSummary `json:"summaries"`
}

type PresencePayload struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

type OnlineUsersPayload struct {
	UserIDs []string `json:"user_ids"`
}

// ErrorPayload is the body of every `*-error` emission.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error taxonomy. Handler boundaries map these onto `*-error` emissions;
// only ErrAuthentication tears the connection down.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("not found")
	ErrPersistence    = errors.New("persistence failed")
)

// CodeFor maps an error to its wire code. Unrecognized errors are
// reported as internal so callers never leak raw error chains.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrAuthentication):
		return "AUTHENTICATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
