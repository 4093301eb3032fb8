// Package presence broadcasts user availability. A user is online while
// the registry holds at least one live entry for them.
//
// Presence events fire only on the edges of that state: the first
// connection brings a user online, and only the last disconnect takes
// them offline. Intermediate connects and disconnects of a multi-device
// user are silent.
package presence

import (
	"chatrelay/pkg/events"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/store"
)

// Notifier emits online/offline events to chat partners and the global
// status broadcast.
type Notifier struct {
	reg registry.Registry
}

// NewNotifier builds a Notifier over the registry.
func NewNotifier(reg registry.Registry) *Notifier {
	return &Notifier{reg: reg}
}

// HandleConnect runs after a connection registers. It announces the user
// online when this is their first live connection and always answers the
// new connection with the current online-user enumeration. userConns is
// the count reported by the registration itself, so two devices
// registering at once see distinct counts and exactly one broadcasts.
func (n *Notifier) HandleConnect(entry models.ConnectionEntry, t registry.Transport, userConns int) {
	if env, err := events.NewEnvelope(events.EvtOnlineUsers, events.OnlineUsersPayload{UserIDs: n.reg.OnlineUserIDs()}); err == nil {
		t.Enqueue(env)
	}
	if userConns > 1 {
		// further device of an already-online user
		return
	}
	n.broadcast(entry.UserID, true)
}

// HandleDisconnect runs after a connection unregisters. The offline
// transition only fires once the registry holds no further live entries
// for the user.
func (n *Notifier) HandleDisconnect(entry models.ConnectionEntry) {
	if len(n.reg.ConnectionsForUser(entry.UserID)) > 0 {
		return
	}
	n.broadcast(entry.UserID, false)
}

// broadcast emits the per-partner event to every currently connected
// chat partner, then the global status-change to all connections. A
// failing partner lookup skips the per-partner leg only; the global
// broadcast must not be blocked by a persistence error.
func (n *Notifier) broadcast(userID string, online bool) {
	evt := events.EvtUserOffline
	if online {
		evt = events.EvtUserOnline
	}
	payload := events.PresencePayload{UserID: userID, IsOnline: online}

	partners, err := store.PartnersOf(userID)
	if err != nil {
		logger.Error("partner_lookup_failed", "user", userID, "error", err)
	} else {
		env, eerr := events.NewEnvelope(evt, payload)
		if eerr != nil {
			logger.Error("encode_presence_failed", "user", userID, "error", eerr)
			return
		}
		for _, p := range partners {
			for _, c := range n.reg.ConnectionsForUser(p) {
				c.Transport.Enqueue(env)
			}
		}
	}

	global, err := events.NewEnvelope(events.EvtUserStatusChanged, payload)
	if err != nil {
		logger.Error("encode_presence_failed", "user", userID, "error", err)
		return
	}
	for _, c := range n.reg.List() {
		c.Transport.Enqueue(global)
	}
	logger.Info("presence_broadcast", "user", userID, "online", online)
}
