// Package registry holds the in-memory mapping of socket identity to
// authenticated user identity. It is the single source of truth for who
// is online right now and the only mutable shared structure in the core.
package registry

import (
	"sync"
	"time"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/telemetry"
)

// Transport is the slice of a live connection the registry and routing
// need: a liveness probe and a non-blocking enqueue toward the client.
type Transport interface {
	Alive() bool
	// Enqueue queues an outbound frame; it must never block the caller
	// and reports false when the frame was dropped.
	Enqueue(v any) bool
}

// Registration pairs a connection entry with its transport.
type Registration struct {
	Entry     models.ConnectionEntry
	Transport Transport
}

// Registry is the capability surface the rest of the core depends on; it
// can be swapped for a distributed implementation without touching the
// routing logic.
type Registry interface {
	// Register inserts the entry and returns the user's live connection
	// count after insertion, computed under the registry lock so online
	// edge decisions cannot race a concurrent device.
	Register(entry models.ConnectionEntry, t Transport) int
	Unregister(connectionID string) bool
	ByConnection(connectionID string) (Registration, bool)
	ByUser(userID string) (Registration, bool)
	ConnectionsForUser(userID string) []Registration
	List() []Registration
	OnlineUserIDs() []string
	Touch(connectionID string, at time.Time)
}

// Memory is the process-local Registry. All writes are atomic with
// respect to reads used for routing decisions; a reader never observes a
// half-registered entry.
type Memory struct {
	mu     sync.RWMutex
	conns  map[string]*Registration
	byUser map[string]map[string]*Registration
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		conns:  make(map[string]*Registration),
		byUser: make(map[string]map[string]*Registration),
	}
}

// Register inserts an entry keyed by connection id. Multiple entries per
// user are valid and expected (multi-device); no uniqueness check on the
// user id. Returns the user's connection count including this entry.
func (m *Memory) Register(entry models.ConnectionEntry, t Transport) int {
	reg := &Registration{Entry: entry, Transport: t}
	m.mu.Lock()
	m.conns[entry.ConnectionID] = reg
	byUser := m.byUser[entry.UserID]
	if byUser == nil {
		byUser = make(map[string]*Registration)
		m.byUser[entry.UserID] = byUser
	}
	byUser[entry.ConnectionID] = reg
	userConns := len(byUser)
	m.mu.Unlock()
	telemetry.ConnectionsActive.Inc()
	logger.Info("connection_registered", "conn", entry.ConnectionID, "user", entry.UserID)
	return userConns
}

// Unregister removes the entry if present; it is idempotent and reports
// whether an entry was actually removed.
func (m *Memory) Unregister(connectionID string) bool {
	m.mu.Lock()
	reg, ok := m.conns[connectionID]
	if ok {
		delete(m.conns, connectionID)
		if byUser := m.byUser[reg.Entry.UserID]; byUser != nil {
			delete(byUser, connectionID)
			if len(byUser) == 0 {
				delete(m.byUser, reg.Entry.UserID)
			}
		}
	}
	m.mu.Unlock()
	if ok {
		telemetry.ConnectionsActive.Dec()
		logger.Info("connection_unregistered", "conn", connectionID, "user", reg.Entry.UserID)
	}
	return ok
}

// ByConnection resolves a registration by transport-level id.
func (m *Memory) ByConnection(connectionID string) (Registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if reg, ok := m.conns[connectionID]; ok {
		return *reg, true
	}
	return Registration{}, false
}

// ByUser returns the first live registration for the user. Absence means
// offline, never an error.
func (m *Memory) ByUser(userID string) (Registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, reg := range m.byUser[userID] {
		return *reg, true
	}
	return Registration{}, false
}

// ConnectionsForUser returns every registration owned by the user.
func (m *Memory) ConnectionsForUser(userID string) []Registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byUser := m.byUser[userID]
	out := make([]Registration, 0, len(byUser))
	for _, reg := range byUser {
		out = append(out, *reg)
	}
	return out
}

// List enumerates live registrations. Entries whose transport has died
// without a clean disconnect are evicted on the way through, so a stale
// entry never leaks into a presence broadcast.
func (m *Memory) List() []Registration {
	m.mu.RLock()
	live := make([]Registration, 0, len(m.conns))
	var dead []string
	for id, reg := range m.conns {
		if reg.Transport != nil && !reg.Transport.Alive() {
			dead = append(dead, id)
			continue
		}
		live = append(live, *reg)
	}
	m.mu.RUnlock()
	for _, id := range dead {
		if m.Unregister(id) {
			telemetry.StaleConnectionsEvicted.Inc()
			logger.Warn("stale_connection_evicted", "conn", id)
		}
	}
	return live
}

// OnlineUserIDs returns the distinct user ids with at least one live
// connection.
func (m *Memory) OnlineUserIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byUser))
	for uid := range m.byUser {
		out = append(out, uid)
	}
	return out
}

// Touch records heartbeat activity on a connection.
func (m *Memory) Touch(connectionID string, at time.Time) {
	m.mu.Lock()
	if reg, ok := m.conns[connectionID]; ok {
		reg.Entry.LastPingAt = at
	}
	m.mu.Unlock()
}
