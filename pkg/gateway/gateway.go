// Package gateway is the socket surface: it authenticates handshakes,
// registers connections, and dispatches the bidirectional event traffic
// onto the core components.
package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/delivery"
	"chatrelay/pkg/events"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/presence"
	"chatrelay/pkg/registry"
	"chatrelay/pkg/store"
	"chatrelay/pkg/unread"
	"chatrelay/pkg/utils"
)

const (
	defaultHeartbeat  = 30 * time.Second
	defaultPongGrace  = 60 * time.Second
	defaultReadLimit  = int64(16 << 10)
	defaultSendBuffer = 32
	writeTimeout      = 10 * time.Second
)

// Options holds the socket transport tunables.
type Options struct {
	HeartbeatInterval time.Duration
	PongGrace         time.Duration
	ReadLimit         int64
	SendBuffer        int
	AllowedOrigins    []string
}

func (o *Options) fillDefaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = defaultHeartbeat
	}
	if o.PongGrace <= 0 {
		o.PongGrace = defaultPongGrace
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
}

// Gateway upgrades HTTP requests and runs the per-connection loops.
type Gateway struct {
	reg        registry.Registry
	presence   *presence.Notifier
	pipeline   *delivery.Pipeline
	reconciler *unread.Reconciler
	auth       *auth.Authenticator
	limiters   *auth.LimiterPool
	opts       Options
	upgrader   websocket.Upgrader
}

// New wires the gateway onto the core components.
func New(reg registry.Registry, pn *presence.Notifier, pl *delivery.Pipeline, rc *unread.Reconciler, a *auth.Authenticator, lim *auth.LimiterPool, opts Options) *Gateway {
	opts.fillDefaults()
	g := &Gateway{
		reg:        reg,
		presence:   pn,
		pipeline:   pl,
		reconciler: rc,
		auth:       a,
		limiters:   lim,
		opts:       opts,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.originAllowed,
	}
	return g
}

func (g *Gateway) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, a := range g.opts.AllowedOrigins {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// HandleWS upgrades the request and runs the connection to completion.
// The bearer token comes from the Authorization header or the `token`
// query parameter. An invalid token yields a connected-error frame
// followed by a forced close.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	profile, err := g.auth.Verify(r.Context(), token)
	if err != nil {
		// authentication is the one failure class fatal to the connection
		env, _ := events.NewEnvelope(events.ErrorEvent(events.EvtConnected), events.ErrorPayload{
			Code:    events.CodeFor(err),
			Message: "authentication failed",
		})
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = conn.WriteJSON(env)
		_ = conn.Close()
		logger.Warn("ws_auth_rejected", "remote", r.RemoteAddr)
		return
	}

	now := time.Now().UTC()
	entry := models.ConnectionEntry{
		ConnectionID: utils.GenConnectionID(),
		UserID:       profile.UserID,
		Auth:         profile,
		ConnectedAt:  now,
		LastPingAt:   now,
	}

	// refresh the stored public profile so projections see current data
	if err := store.SaveProfile(profile); err != nil {
		logger.Warn("profile_save_failed", "user", profile.UserID, "error", err)
	}

	s := newSession(g, conn, entry)
	userConns := g.reg.Register(entry, s)

	ack, err := events.NewEnvelope(events.EvtConnected, events.ConnectedPayload{
		ConnectionID: entry.ConnectionID,
		User:         profile,
	})
	if err == nil {
		s.Enqueue(ack)
	}
	g.presence.HandleConnect(entry, s, userConns)

	go s.writePump()
	s.readLoop()

	// readLoop returned: the transport is gone
	g.reg.Unregister(entry.ConnectionID)
	g.limiters.Forget(entry.ConnectionID)
	g.presence.HandleDisconnect(entry)
}
