// Package unread reconciles read state: it applies read acknowledgements
// and re-synchronizes both participants' chat-summary views and unread
// snapshots after a send or a read.
package unread

import (
	"fmt"

	"chatrelay/pkg/events"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/notify"
	"chatrelay/pkg/projector"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/store"
)

// Reconciler recomputes unread state and pushes refreshed views to live
// connections.
type Reconciler struct {
	reg    registry.Registry
	notify *notify.Service
}

// NewReconciler wires the reconciler onto the registry and the
// notification collaborator.
func NewReconciler(reg registry.Registry, n *notify.Service) *Reconciler {
	return &Reconciler{reg: reg, notify: n}
}

// MarkRead transitions every message in the chat addressed to userID to
// read, then pushes fresh summaries and snapshots to both participants.
func (r *Reconciler) MarkRead(chatID, userID string) error {
	t, err := store.GetThread(chatID)
	if err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("%w: chat %s", events.ErrNotFound, chatID)
		}
		return fmt.Errorf("%w: load chat: %v", events.ErrPersistence, err)
	}
	if !t.Involves(userID) {
		return fmt.Errorf("%w: user %s is not a participant of chat %s", events.ErrNotFound, userID, chatID)
	}
	if _, err := store.MarkThreadRead(chatID, userID); err != nil {
		return fmt.Errorf("%w: mark read: %v", events.ErrPersistence, err)
	}
	r.SyncThread(t)
	return nil
}

// Snapshot computes the user's aggregate unread counts fresh from
// durable state.
func (r *Reconciler) Snapshot(userID string) (models.UnreadSnapshot, error) {
	msgs, err := store.CountUnreadForUser(userID)
	if err != nil {
		return models.UnreadSnapshot{}, fmt.Errorf("%w: count unread: %v", events.ErrPersistence, err)
	}
	ntf, err := r.notify.UnreadCount(userID)
	if err != nil {
		// notification counts are additive; a collaborator failure must
		// not hide the message count
		logger.Warn("notification_count_failed", "user", userID, "error", err)
		ntf = 0
	}
	return models.UnreadSnapshot{
		UserID:                   userID,
		UnreadMessagesCount:      msgs,
		UnreadNotificationsCount: ntf,
	}, nil
}

// SyncThread pushes refreshed summaries and snapshots to both
// participants of the thread. Offline participants are skipped; push
// failures are logged and never propagate.
func (r *Reconciler) SyncThread(t models.Thread) {
	for _, uid := range []string{t.IssuerID, t.ReceiverID} {
		r.Push(uid)
	}
}

// Push sends the user's current summary list and unread snapshot to all
// of their live connections.
func (r *Reconciler) Push(userID string) {
	conns := r.reg.ConnectionsForUser(userID)
	if len(conns) == 0 {
		return
	}

	summaries, err := projector.ForUser(userID)
	if err != nil {
		logger.Error("summary_push_failed", "user", userID, "error", err)
		return
	}
	snap, err := r.Snapshot(userID)
	if err != nil {
		logger.Error("snapshot_push_failed", "user", userID, "error", err)
		return
	}

	chatsEnv, err := events.NewEnvelope(events.EvtGetChats, events.ChatListPayload{UserID: userID, Summaries: summaries})
	if err != nil {
		logger.Error("encode_chat_list_failed", "user", userID, "error", err)
		return
	}
	countEnv, err := events.NewEnvelope(events.EvtUnreadCount, snap)
	if err != nil {
		logger.Error("encode_unread_count_failed", "user", userID, "error", err)
		return
	}
	for _, c := range conns {
		if !c.Transport.Enqueue(chatsEnv) || !c.Transport.Enqueue(countEnv) {
			logger.Warn("sync_push_dropped", "user", userID, "conn", c.Entry.ConnectionID)
		}
	}
}
