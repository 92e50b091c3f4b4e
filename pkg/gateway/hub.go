// Package gateway implements the real-time WebSocket plane: the
// process-wide hub, the per-connection state machine, presence, and
// resume with bounded replay.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/metrics"
)

// Admission errors returned by Register.
var (
	ErrServerFull      = errors.New("gateway: connection limit reached")
	ErrTooManyPerIP    = errors.New("gateway: too many connections from address")
	ErrTooManyPerUser  = errors.New("gateway: too many sessions for user")
	ErrHubShuttingDown = errors.New("gateway: hub is shutting down")
)

// Presence status values.
const (
	StatusOnline    = "online"
	StatusIdle      = "idle"
	StatusDND       = "dnd"
	StatusInvisible = "invisible"
	StatusOffline   = "offline"
)

// ValidPresenceStatus reports whether a client may set the status.
// offline is server-assigned, never client-set.
func ValidPresenceStatus(s string) bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDND, StatusInvisible:
		return true
	}
	return false
}

// PresenceRecord is a user's in-memory presence. Invisible is stored
// as-is and translated to offline on the way out.
type PresenceRecord struct {
	Status       string         `json:"status"`
	CustomStatus string         `json:"custom_status,omitempty"`
	Activity     map[string]any `json:"activity,omitempty"`
}

// BroadcastStatus is the status peers see.
func (p PresenceRecord) BroadcastStatus() string {
	if p.Status == StatusInvisible {
		return StatusOffline
	}
	return p.Status
}

// authFailureWindow bounds how long failed auth attempts count against
// an address.
const authFailureWindow = 15 * time.Minute

// Hub is the process-wide connection registry. One mutex guards all
// four maps; every read-modify-write that spans them (admission +
// counters, final disconnect + presence clear) happens under it, and
// the lock is always released before any I/O.
type Hub struct {
	cfg     Config
	metrics metrics.GatewayMetrics

	mu           sync.Mutex
	conns        map[int64]map[*Connection]struct{}
	sessions     map[string]*SessionState
	presence     map[int64]PresenceRecord
	ipConns      map[string]int
	authFailures map[string][]time.Time
	total        int
	shuttingDown bool
}

// NewHub creates a hub. Pass nil metrics to disable instrumentation.
func NewHub(cfg Config, m metrics.GatewayMetrics) *Hub {
	cfg.ApplyDefaults()
	return &Hub{
		cfg:          cfg,
		metrics:      m,
		conns:        make(map[int64]map[*Connection]struct{}),
		sessions:     make(map[string]*SessionState),
		presence:     make(map[int64]PresenceRecord),
		ipConns:      make(map[string]int),
		authFailures: make(map[string][]time.Time),
	}
}

// Register admits an authenticated connection. All cap checks and the
// insert happen atomically.
func (h *Hub) Register(c *Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shuttingDown {
		return ErrHubShuttingDown
	}
	if h.total >= h.cfg.MaxTotalConnections {
		return ErrServerFull
	}
	if h.ipConns[c.ip] >= h.cfg.MaxConnsPerIP {
		return ErrTooManyPerIP
	}
	if len(h.conns[c.userID]) >= h.cfg.MaxSessionsPerUser {
		return ErrTooManyPerUser
	}

	set := h.conns[c.userID]
	if set == nil {
		set = make(map[*Connection]struct{})
		h.conns[c.userID] = set
	}
	set[c] = struct{}{}
	h.ipConns[c.ip]++
	h.total++

	if h.metrics != nil {
		h.metrics.RecordConnectionAccepted()
		h.metrics.SetActiveConnections(int32(h.total))
	}
	return nil
}

// Unregister removes a connection and, when it was the user's last,
// clears presence under the same lock. Returns true when the user has
// no remaining connections.
func (h *Hub) Unregister(c *Connection) (last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[c.userID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	h.total--
	if h.ipConns[c.ip] > 1 {
		h.ipConns[c.ip]--
	} else {
		delete(h.ipConns, c.ip)
	}

	if len(set) == 0 {
		delete(h.conns, c.userID)
		delete(h.presence, c.userID)
		last = true
	}

	if h.metrics != nil {
		h.metrics.SetActiveConnections(int32(h.total))
	}
	return last
}

// SaveSession preserves session state for resume and restarts its TTL.
func (h *Hub) SaveSession(s *SessionState) {
	s.Touch()
	h.mu.Lock()
	h.sessions[s.ID] = s
	n := len(h.sessions)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SetSessionsPreserved(int32(n))
	}
}

// GetSession returns preserved state, evicting and returning nil when
// it has exceeded the TTL.
func (h *Hub) GetSession(id string) *SessionState {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil
	}
	if s.ExpiredAt(now, h.cfg.SessionTTL) {
		delete(h.sessions, id)
		return nil
	}
	return s
}

// DropSession removes preserved state, typically after a successful
// resume adopted it.
func (h *Hub) DropSession(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
}

// CleanupSessions evicts every expired preserved session and returns
// how many were removed.
func (h *Hub) CleanupSessions() int {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for id, s := range h.sessions {
		if s.ExpiredAt(now, h.cfg.SessionTTL) {
			delete(h.sessions, id)
			removed++
		}
	}
	if h.metrics != nil {
		h.metrics.SetSessionsPreserved(int32(len(h.sessions)))
	}
	return removed
}

// CleanupOrphanedPresence drops presence records for users with no
// connections. The disconnect path already does this; the sweep only
// catches records leaked by a crashed connection goroutine.
func (h *Hub) CleanupOrphanedPresence() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for userID := range h.presence {
		if len(h.conns[userID]) == 0 {
			delete(h.presence, userID)
			removed++
		}
	}
	return removed
}

// SetPresence stores a user's presence.
func (h *Hub) SetPresence(userID int64, p PresenceRecord) {
	h.mu.Lock()
	h.presence[userID] = p
	h.mu.Unlock()
}

// Presence answers a user's presence. Users without a connection are
// offline regardless of any stale record.
func (h *Hub) Presence(userID int64) PresenceRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns[userID]) == 0 {
		return PresenceRecord{Status: StatusOffline}
	}
	p, ok := h.presence[userID]
	if !ok {
		return PresenceRecord{Status: StatusOffline}
	}
	return p
}

// PresenceSnapshot returns the broadcast-visible presence of every
// connected user except the excluded one.
func (h *Hub) PresenceSnapshot(excludeUserID int64) map[int64]PresenceRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[int64]PresenceRecord, len(h.presence))
	for userID, p := range h.presence {
		if userID == excludeUserID || len(h.conns[userID]) == 0 {
			continue
		}
		out[userID] = p
	}
	return out
}

// IsConnected reports whether the user has at least one connection.
func (h *Hub) IsConnected(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID]) > 0
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// snapshotConns collects target connections under lock. A nil userIDs
// means every connected user.
func (h *Hub) snapshotConns(userIDs []int64, exclude int64) []*Connection {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Connection
	appendUser := func(userID int64) {
		if userID == exclude {
			return
		}
		for c := range h.conns[userID] {
			out = append(out, c)
		}
	}
	if userIDs == nil {
		for userID := range h.conns {
			appendUser(userID)
		}
	} else {
		for _, userID := range userIDs {
			appendUser(userID)
		}
	}
	return out
}

// Broadcast fans an event out to the targeted users, or to everyone
// when userIDs is nil. Targets are snapshotted under the lock; the
// sends happen after release and a failing connection never affects
// the others.
func (h *Hub) Broadcast(evt events.Event, userIDs []int64) {
	h.broadcast(evt, userIDs, 0)
}

// BroadcastExcept is Broadcast minus one user, used for presence
// updates that must not echo to their subject.
func (h *Hub) BroadcastExcept(evt events.Event, excludeUserID int64) {
	h.broadcast(evt, nil, excludeUserID)
}

func (h *Hub) broadcast(evt events.Event, userIDs []int64, exclude int64) {
	targets := h.snapshotConns(userIDs, exclude)
	for _, c := range targets {
		if err := c.SendEvent(evt); err != nil {
			logger.Debug("dropping event for closed connection",
				logger.SessionID(c.sessionID), logger.Event(evt.Type), logger.Err(err))
		}
	}
	if h.metrics != nil {
		h.metrics.RecordEventDispatched(evt.Type, len(targets))
	}
}

// DisconnectUser closes every connection a user holds and drops their
// saved sessions, so a kicked or banned user cannot resume. Returns the
// number of connections closed.
func (h *Hub) DisconnectUser(userID int64) int {
	h.mu.Lock()
	var targets []*Connection
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	for id, s := range h.sessions {
		if s.UserID == userID {
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.Close(CloseAuthFailed, closeReasons[CloseAuthFailed])
	}
	return len(targets)
}

// RecordAuthFailure notes a failed authentication from an address.
func (h *Hub) RecordAuthFailure(ip string) {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.authFailures[ip][:0]
	for _, t := range h.authFailures[ip] {
		if now.Sub(t) <= authFailureWindow {
			kept = append(kept, t)
		}
	}
	h.authFailures[ip] = append(kept, now)
}

// AuthFailures counts recent failed attempts from an address.
func (h *Hub) AuthFailures(ip string) int {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, t := range h.authFailures[ip] {
		if now.Sub(t) <= authFailureWindow {
			n++
		}
	}
	return n
}

// CleanupAuthFailures drops aged-out failure records.
func (h *Hub) CleanupAuthFailures() int {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for ip, times := range h.authFailures {
		kept := times[:0]
		for _, t := range times {
			if now.Sub(t) <= authFailureWindow {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(h.authFailures, ip)
			removed++
		} else {
			h.authFailures[ip] = kept
		}
	}
	return removed
}

// Shutdown closes every connection with 4008 "Server restarting" and
// refuses new registrations. It returns once all connection goroutines
// have finished or the context expires.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	h.shuttingDown = true
	var all []*Connection
	for _, set := range h.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		c.Close(CloseServerRestart, closeReasons[CloseServerRestart])
	}

	deadline := time.NewTimer(100 * time.Millisecond)
	defer deadline.Stop()
	for {
		if h.ConnectionCount() == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			deadline.Reset(100 * time.Millisecond)
		}
	}
}
