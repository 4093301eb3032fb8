package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/pkg/events"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
)

// session owns one websocket connection. Reads happen on the handler
// goroutine, writes on the write pump; outbound frames cross over the
// buffered send channel so no caller ever blocks on a slow client.
type session struct {
	gw    *Gateway
	conn  *websocket.Conn
	entry models.ConnectionEntry

	send      chan events.Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(g *Gateway, conn *websocket.Conn, entry models.ConnectionEntry) *session {
	return &session{
		gw:     g,
		conn:   conn,
		entry:  entry,
		send:   make(chan events.Envelope, g.opts.SendBuffer),
		closed: make(chan struct{}),
	}
}

// Alive reports whether the session still accepts outbound frames.
func (s *session) Alive() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// Enqueue queues an outbound envelope without blocking. A full send
// buffer drops the frame; durable state is the source of truth, so a
// dropped frame costs a refresh, not a message.
func (s *session) Enqueue(v any) bool {
	env, ok := v.(events.Envelope)
	if !ok {
		return false
	}
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.send <- env:
		return true
	default:
		logger.Warn("outbound_frame_dropped", "conn", s.entry.ConnectionID, "event", env.Event)
		return false
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// writePump serializes all writes to the socket: queued frames plus the
// periodic protocol-level ping.
func (s *session) writePump() {
	ticker := time.NewTicker(s.gw.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case env := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				logger.Debug("ws_write_failed", "conn", s.entry.ConnectionID, "error", err)
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.close()
				return
			}
		}
	}
}

// readLoop consumes inbound frames until the connection dies. The read
// deadline is refreshed by pongs and by any inbound frame; a client
// silent past the grace window is cut off.
func (s *session) readLoop() {
	defer s.close()

	deadline := s.gw.opts.HeartbeatInterval + s.gw.opts.PongGrace
	s.conn.SetReadLimit(s.gw.opts.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(deadline))
	s.conn.SetPongHandler(func(string) error {
		s.gw.reg.Touch(s.entry.ConnectionID, time.Now().UTC())
		return s.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		var env events.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws_read_failed", "conn", s.entry.ConnectionID, "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(deadline))

		if !s.gw.limiters.Allow(s.entry.ConnectionID) {
			s.emitError(env.Event, events.ErrorPayload{
				Code:    "RATE_LIMITED",
				Message: "too many events, slow down",
			})
			continue
		}
		s.gw.dispatch(s, env)
	}
}
