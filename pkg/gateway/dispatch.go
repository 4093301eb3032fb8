package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chatrelay/pkg/events"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/projector"
	"chatrelay/pkg/telemetry"
	"chatrelay/pkg/validation"
)

// dispatch routes one inbound envelope to its handler. Every failure is
// converted into an `<event>-error` emission on the same connection;
// only authentication failures (caught at handshake) kill a connection.
func (g *Gateway) dispatch(s *session, env events.Envelope) {
	telemetry.EventsTotal.WithLabelValues(env.Event).Inc()

	var err error
	switch env.Event {
	case events.EvtSendMessage:
		err = g.handleSend(s, env.Payload)
	case events.EvtTyping:
		err = g.handleTyping(s, env.Payload)
	case events.EvtGetChats:
		err = g.handleGetChats(s, env.Payload)
	case events.EvtMessageRead:
		err = g.handleMessageRead(s, env.Payload)
	case events.EvtGetUnreadCount:
		err = g.handleGetUnread(s)
	case events.EvtJoinChat, events.EvtJoinRoom, events.EvtLeaveRoom:
		// room membership is implicit now that routing targets users, but
		// older clients still emit these; accept and ignore
		logger.Debug("room_event_ignored", "conn", s.entry.ConnectionID, "event", env.Event)
	case events.EvtPing:
		err = g.handlePing(s)
	default:
		err = fmt.Errorf("%w: unknown event %q", events.ErrValidation, env.Event)
	}
	if err != nil {
		s.emitError(env.Event, events.ErrorPayload{
			Code:    events.CodeFor(err),
			Message: publicMessage(err),
		})
	}
}

func (g *Gateway) handleSend(s *session, raw json.RawMessage) error {
	var p events.SendMessagePayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	// the connection's identity wins over whatever the payload claims
	p.IssuerID = s.entry.UserID
	m, err := g.pipeline.Submit(p)
	if err != nil {
		return err
	}
	ack, err := events.NewEnvelope(events.EvtSendMessage, events.ReceivedMessagePayload{
		Message: m,
		ChatID:  m.Thread,
		From:    m.IssuerID,
		To:      m.ReceiverID,
	})
	if err != nil {
		return fmt.Errorf("%w: encode ack: %v", events.ErrPersistence, err)
	}
	s.Enqueue(ack)
	return nil
}

// handleTyping relays the indicator to the receiver's connections. It is
// ephemeral: nothing is persisted and an offline receiver is a no-op.
func (g *Gateway) handleTyping(s *session, raw json.RawMessage) error {
	var p events.TypingPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	p.IssuerID = s.entry.UserID
	if err := validation.ValidateTyping(p); err != nil {
		return err
	}
	env, err := events.NewEnvelope(events.EvtTyping, p)
	if err != nil {
		return fmt.Errorf("%w: encode typing: %v", events.ErrPersistence, err)
	}
	for _, c := range g.reg.ConnectionsForUser(p.ReceiverID) {
		c.Transport.Enqueue(env)
	}
	return nil
}

func (g *Gateway) handleGetChats(s *session, raw json.RawMessage) error {
	var p events.GetChatsPayload
	if len(raw) > 0 {
		if err := decode(raw, &p); err != nil {
			return err
		}
	}
	// summaries are always the caller's own view
	userID := s.entry.UserID
	summaries, err := projector.ForUser(userID)
	if err != nil {
		return err
	}
	env, err := events.NewEnvelope(events.EvtGetChats, events.ChatListPayload{UserID: userID, Summaries: summaries})
	if err != nil {
		return fmt.Errorf("%w: encode chat list: %v", events.ErrPersistence, err)
	}
	s.Enqueue(env)
	return nil
}

func (g *Gateway) handleMessageRead(s *session, raw json.RawMessage) error {
	var p events.MessageReadPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if err := validation.ValidateMessageRead(p); err != nil {
		return err
	}
	return g.reconciler.MarkRead(p.ChatID, s.entry.UserID)
}

func (g *Gateway) handleGetUnread(s *session) error {
	snap, err := g.reconciler.Snapshot(s.entry.UserID)
	if err != nil {
		return err
	}
	env, err := events.NewEnvelope(events.EvtUnreadCount, snap)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", events.ErrPersistence, err)
	}
	s.Enqueue(env)
	return nil
}

func (g *Gateway) handlePing(s *session) error {
	g.reg.Touch(s.entry.ConnectionID, time.Now().UTC())
	env, err := events.NewEnvelope(events.EvtPong, nil)
	if err != nil {
		return err
	}
	s.Enqueue(env)
	return nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", events.ErrValidation)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", events.ErrValidation, err)
	}
	return nil
}

// publicMessage decides what an error looks like on the wire. Internal
// detail stays in the logs; validation and not-found errors are safe to
// show verbatim.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, events.ErrValidation), errors.Is(err, events.ErrNotFound):
		return err.Error()
	case errors.Is(err, events.ErrPersistence):
		return "request could not be processed"
	default:
		return "internal error"
	}
}

func (s *session) emitError(evt string, p events.ErrorPayload) {
	telemetry.EventErrorsTotal.WithLabelValues(p.Code).Inc()
	env, err := events.NewEnvelope(events.ErrorEvent(evt), p)
	if err != nil {
		logger.Error("encode_error_event_failed", "event", evt, "error", err)
		return
	}
	s.Enqueue(env)
	logger.Warn("event_failed", "conn", s.entry.ConnectionID, "event", evt, "code", p.Code)
}
