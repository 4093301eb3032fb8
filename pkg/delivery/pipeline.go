// Package delivery is the message pipeline: validate, persist, attempt
// realtime routing to the receiver, and kick off the best-effort side
// effects (notification, unread resync).
package delivery

import (
	"fmt"
	"time"

	"chatrelay/pkg/events"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/notify"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/store"
	"chatrelay/pkg/tasks"
	"chatrelay/pkg/telemetry"
	"chatrelay/pkg/unread"
	"chatrelay/pkg/utils"
	"chatrelay/pkg/validation"
)

// Pipeline persists and routes chat messages.
type Pipeline struct {
	reg        registry.Registry
	reconciler *unread.Reconciler
	notify     *notify.Service
	runner     *tasks.Runner
}

// NewPipeline wires the pipeline onto its collaborators.
func NewPipeline(reg registry.Registry, r *unread.Reconciler, n *notify.Service, runner *tasks.Runner) *Pipeline {
	return &Pipeline{reg: reg, reconciler: r, notify: n, runner: runner}
}

// Submit validates and persists an inbound message, attempts realtime
// delivery, and returns the persisted message for the sender-side ack.
// The receiver being offline is not an error: the message simply stays
// at status sent.
func (p *Pipeline) Submit(in events.SendMessagePayload) (models.Message, error) {
	if err := validation.ValidateSend(in); err != nil {
		return models.Message{}, err
	}

	t, err := p.resolveThread(in)
	if err != nil {
		return models.Message{}, err
	}

	// replay of an idempotent send returns the original persisted message
	if in.ClientKey != "" {
		if id, found, derr := store.LookupDedup(t.ID, in.ClientKey); derr == nil && found {
			m, gerr := store.GetMessage(id)
			if gerr == nil {
				logger.Info("send_deduplicated", "thread", t.ID, "id", id)
				return m, nil
			}
		}
	}

	msgType := in.Type
	if msgType == "" {
		msgType = models.MessageNormal
	}
	m := models.Message{
		ID:               utils.GenMessageID(),
		Thread:           t.ID,
		IssuerID:         in.IssuerID,
		ReceiverID:       in.ReceiverID,
		Body:             in.Body,
		Type:             msgType,
		Status:           models.StatusSent,
		LastSenderMarker: in.IssuerID,
		ClientKey:        in.ClientKey,
		CreatedTS:        time.Now().UTC().UnixNano(),
	}
	if err := store.AppendMessage(m); err != nil {
		return models.Message{}, fmt.Errorf("%w: persist message: %v", events.ErrPersistence, err)
	}
	telemetry.MessagesPersistedTotal.Inc()
	if err := store.TouchThread(t.ID, m.CreatedTS); err != nil {
		logger.Warn("thread_touch_failed", "thread", t.ID, "error", err)
	}
	if in.ClientKey != "" {
		if err := store.SaveDedup(t.ID, in.ClientKey, m.ID); err != nil {
			logger.Warn("dedup_save_failed", "thread", t.ID, "error", err)
		}
	}

	if p.route(t.ID, m) {
		if adv, aerr := store.AdvanceMessageStatus(m.ID, models.StatusDelivered); aerr == nil {
			m = adv
		} else {
			logger.Error("status_persist_failed", "id", m.ID, "error", aerr)
		}
		telemetry.MessagesDeliveredTotal.Inc()
	} else {
		telemetry.OfflineReceiversTotal.Inc()
	}

	p.afterPersist(t, m)
	return m, nil
}

// resolveThread loads the addressed chat or lazily creates the pair's
// thread when no chat id is supplied.
func (p *Pipeline) resolveThread(in events.SendMessagePayload) (models.Thread, error) {
	if in.ChatID != "" {
		t, err := store.GetThread(in.ChatID)
		if err != nil {
			if store.IsNotFound(err) {
				return models.Thread{}, fmt.Errorf("%w: chat %s", events.ErrNotFound, in.ChatID)
			}
			return models.Thread{}, fmt.Errorf("%w: load chat: %v", events.ErrPersistence, err)
		}
		if !t.Involves(in.IssuerID) || !t.Involves(in.ReceiverID) {
			return models.Thread{}, fmt.Errorf("%w: chat %s does not pair issuer and receiver", events.ErrNotFound, in.ChatID)
		}
		return t, nil
	}
	chatType := models.ChatDirect
	if in.Type == models.MessageProposal {
		chatType = models.ChatProposal
	}
	t, _, err := store.EnsureThread(in.IssuerID, in.ReceiverID, chatType)
	if err != nil {
		return models.Thread{}, fmt.Errorf("%w: ensure chat: %v", events.ErrPersistence, err)
	}
	return t, nil
}

// route attempts realtime delivery: a direct connection lookup first,
// then a fan-out over every registered connection of the receiver.
// Frames only ever reach the receiver's own connections.
func (p *Pipeline) route(chatID string, m models.Message) bool {
	env, err := events.NewEnvelope(events.EvtReceivedMessage, events.ReceivedMessagePayload{
		Message: m,
		ChatID:  chatID,
		From:    m.IssuerID,
		To:      m.ReceiverID,
	})
	if err != nil {
		logger.Error("encode_received_message_failed", "id", m.ID, "error", err)
		return false
	}

	if reg, ok := p.reg.ByUser(m.ReceiverID); ok {
		if reg.Transport.Alive() && reg.Transport.Enqueue(env) {
			return true
		}
	}

	// direct lookup missed or its send buffer was full; try the rest of
	// the receiver's connections
	telemetry.RoutingFallbackTotal.Inc()
	delivered := false
	for _, c := range p.reg.ConnectionsForUser(m.ReceiverID) {
		if c.Transport.Alive() && c.Transport.Enqueue(env) {
			delivered = true
		}
	}
	return delivered
}

// afterPersist runs the best-effort side effects: notification creation
// and the unread resync for both participants. Neither may fail the
// send.
func (p *Pipeline) afterPersist(t models.Thread, m models.Message) {
	title := "New message"
	if m.Type == models.MessageProposal {
		title = "New proposal"
	}
	p.notify.Create(m.ReceiverID, m.IssuerID, string(m.Type), title, m.Body, map[string]string{
		"chat_id":    t.ID,
		"message_id": m.ID,
	})
	p.runner.Submit("unread_resync", func() error {
		p.reconciler.SyncThread(t)
		return nil
	})
}
