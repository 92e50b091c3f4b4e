package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/models"
)

// authFailureLockout is how many recent failures from one address shut
// the door on further identify attempts.
const authFailureLockout = 10

type identifyData struct {
	Token           string   `json:"token"`
	ProtocolVersion *int     `json:"protocol_version,omitempty"`
	Capabilities    []string `json:"capabilities,omitempty"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	LastSeq   int64  `json:"last_seq"`
}

// handleIdentify authenticates the connection and emits ready (seq=1).
func (c *Connection) handleIdentify(ctx context.Context, raw json.RawMessage) bool {
	var d identifyData
	if err := json.Unmarshal(raw, &d); err != nil {
		c.closeWith(CloseDecodeError)
		return false
	}

	hub := c.deps.Hub
	if hub.AuthFailures(c.ip) >= authFailureLockout {
		c.recordIdentify("rate_limited")
		c.closeWith(CloseRateLimited)
		return false
	}

	user, err := c.deps.Auth.AuthenticateGateway(ctx, d.Token)
	if err != nil {
		hub.RecordAuthFailure(c.ip)
		c.recordIdentify("auth_failed")
		c.closeWith(CloseAuthFailed)
		return false
	}

	version := ProtocolVersionMin
	if d.ProtocolVersion != nil {
		version = *d.ProtocolVersion
	}
	if version < ProtocolVersionMin || version > ProtocolVersionMax {
		c.recordIdentify("version_mismatch")
		c.closeWith(CloseVersionMismatch)
		return false
	}

	sessionID := newSessionID()
	session := NewSessionState(sessionID, user.ID, c.cfg.ReplayBufferSize)

	c.mu.Lock()
	c.identified = true
	c.user = user
	c.userID = user.ID
	c.sessionID = sessionID
	c.session = session
	c.mu.Unlock()

	if err := hub.Register(c); err != nil {
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		c.closeAdmission(err)
		return false
	}
	hub.SaveSession(session)

	_ = c.SendEvent(events.Ready(events.ReadyData{
		SessionID:       sessionID,
		UserID:          user.ID,
		DisplayName:     user.GetDisplayName(),
		ServerName:      c.cfg.ServerName,
		ServerIcon:      c.cfg.ServerIcon,
		ProtocolVersion: version,
	}))

	c.announcePresence()
	c.recordIdentify("ok")
	logger.Info("gateway session identified",
		logger.UserID(user.ID), logger.SessionID(sessionID), logger.ClientIP(c.ip))
	return true
}

// handleResume restores a preserved session and replays buffered frames.
func (c *Connection) handleResume(ctx context.Context, raw json.RawMessage) bool {
	var d resumeData
	if err := json.Unmarshal(raw, &d); err != nil {
		c.closeWith(CloseDecodeError)
		return false
	}

	hub := c.deps.Hub
	user, err := c.deps.Auth.AuthenticateGateway(ctx, d.Token)
	if err != nil {
		hub.RecordAuthFailure(c.ip)
		c.closeWith(CloseAuthFailed)
		return false
	}

	session := hub.GetSession(d.SessionID)
	if session == nil {
		c.recordResume("expired")
		c.closeWith(CloseSessionExpired)
		return false
	}
	if session.UserID != user.ID {
		c.recordResume("expired")
		c.closeWith(CloseAuthFailed)
		return false
	}

	frames, ok := session.After(d.LastSeq)
	if !ok {
		c.recordResume("exhausted")
		c.closeWith(CloseReplayExhausted)
		return false
	}

	c.mu.Lock()
	c.identified = true
	c.user = user
	c.userID = user.ID
	c.sessionID = session.ID
	c.session = session
	c.mu.Unlock()

	// Replay before the hub can see the connection: once registered, a
	// concurrent Broadcast may append fresh frames, and those must land
	// behind every buffered one. The buffered frames go out verbatim;
	// they already carry the seq they were first sent with.
	for _, f := range frames {
		_ = c.enqueue(f.Frame)
	}
	c.sendControl(events.Resumed(session.Seq()))

	if err := hub.Register(c); err != nil {
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		c.closeAdmission(err)
		return false
	}

	c.announcePresence()
	c.recordResume("replayed")
	if m := hub.metrics; m != nil {
		m.RecordReplay(len(frames))
	}
	logger.Info("gateway session resumed",
		logger.UserID(user.ID), logger.SessionID(session.ID),
		"replayed", len(frames), logger.Seq(session.Seq()))
	return true
}

// announcePresence marks the user online, tells everyone else, and
// sends the current presence snapshot to the newcomer.
func (c *Connection) announcePresence() {
	hub := c.deps.Hub
	userID := c.UserID()

	hub.SetPresence(userID, PresenceRecord{Status: StatusOnline})
	hub.BroadcastExcept(events.PresenceUpdate(userID, StatusOnline, nil), userID)

	for peerID, p := range hub.PresenceSnapshot(userID) {
		extra := map[string]any{}
		if p.CustomStatus != "" {
			extra["custom_status"] = p.CustomStatus
		}
		if p.Activity != nil {
			extra["activity"] = p.Activity
		}
		_ = c.SendEvent(events.PresenceUpdate(peerID, p.BroadcastStatus(), extra))
	}
}

// closeAdmission maps a hub admission error to a close code.
func (c *Connection) closeAdmission(err error) {
	switch {
	case errors.Is(err, ErrHubShuttingDown):
		c.closeWith(CloseServerRestart)
	default:
		// All cap rejections read as rate limiting to the client.
		c.closeWith(CloseRateLimited)
	}
}

func (c *Connection) recordIdentify(outcome string) {
	if m := c.deps.Hub.metrics; m != nil {
		m.RecordIdentify(outcome, time.Since(c.accepted))
	}
}

func (c *Connection) recordResume(outcome string) {
	if m := c.deps.Hub.metrics; m != nil {
		m.RecordResume(outcome)
	}
}

// handleHeartbeat feeds the watchdog and acks immediately.
func (c *Connection) handleHeartbeat() {
	select {
	case c.heartbeat <- struct{}{}:
	default:
	}
	c.sendControl(events.HeartbeatAck())
}

// heartbeatMonitor closes the connection with 4007 when no heartbeat
// arrives within 1.5 intervals.
func (c *Connection) heartbeatMonitor(ctx context.Context) {
	deadline := c.cfg.heartbeatDeadline()
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-c.heartbeat:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(deadline)
		case <-timer.C:
			if m := c.deps.Hub.metrics; m != nil {
				m.RecordHeartbeatExpired()
			}
			logger.Debug("gateway peer missed heartbeat window",
				logger.SessionID(c.SessionID()), logger.UserID(c.UserID()))
			c.closeWith(CloseSessionTimeout)
			return
		}
	}
}

type typingData struct {
	FeedID int64 `json:"feed_id,omitempty"`
	DMID   int64 `json:"dm_id,omitempty"`
}

// handleTyping debounces per (channel kind, id) and dispatches
// typing_start.
func (c *Connection) handleTyping(ctx context.Context, raw json.RawMessage) {
	var d typingData
	if err := json.Unmarshal(raw, &d); err != nil {
		return
	}

	var key typingKey
	var target events.Target
	switch {
	case d.FeedID != 0:
		key = typingKey{kind: "feed", id: d.FeedID}
		target = events.FeedTarget(d.FeedID)
	case d.DMID != 0:
		key = typingKey{kind: "dm", id: d.DMID}
		target = events.DMTarget(d.DMID)
	default:
		return
	}

	now := time.Now()
	c.mu.Lock()
	if last, ok := c.lastTyping[key]; ok && now.Sub(last) < TypingDebounce {
		c.mu.Unlock()
		return
	}
	c.lastTyping[key] = now
	c.mu.Unlock()

	if err := c.deps.Dispatcher.Dispatch(ctx, events.TypingStart(c.UserID(), target)); err != nil {
		logger.Debug("typing dispatch failed", logger.Err(err))
	}
}

type presenceData struct {
	Status       string         `json:"status"`
	CustomStatus string         `json:"custom_status,omitempty"`
	Activity     map[string]any `json:"activity,omitempty"`
}

// handlePresenceUpdate stores the requested presence. Invisible is kept
// verbatim but peers are told offline.
func (c *Connection) handlePresenceUpdate(ctx context.Context, raw json.RawMessage) {
	var d presenceData
	if err := json.Unmarshal(raw, &d); err != nil {
		return
	}
	if !ValidPresenceStatus(d.Status) {
		return
	}

	userID := c.UserID()
	record := PresenceRecord{Status: d.Status, CustomStatus: d.CustomStatus, Activity: d.Activity}
	c.deps.Hub.SetPresence(userID, record)

	extra := map[string]any{}
	if record.BroadcastStatus() != StatusOffline {
		if d.CustomStatus != "" {
			extra["custom_status"] = d.CustomStatus
		}
		if d.Activity != nil {
			extra["activity"] = d.Activity
		}
	}
	c.deps.Hub.BroadcastExcept(events.PresenceUpdate(userID, record.BroadcastStatus(), extra), userID)

	// Remote servers holding a subscription see the same status peers
	// do, never the raw invisible value.
	if c.deps.Presence != nil {
		c.mu.Lock()
		username := ""
		if c.user != nil {
			username = c.user.Username
		}
		c.mu.Unlock()
		if username != "" {
			c.deps.Presence.PresenceChanged(ctx, username, record.BroadcastStatus())
		}
	}
}

type voiceFlagsData struct {
	SelfMute  *bool `json:"self_mute,omitempty"`
	SelfDeaf  *bool `json:"self_deaf,omitempty"`
	Video     *bool `json:"video,omitempty"`
	Streaming *bool `json:"streaming,omitempty"`
}

// handleVoiceState mutates the user's single voice state row and
// broadcasts the room's refreshed member list. Joining and leaving
// rooms happens over REST; the gateway only flips flags.
func (c *Connection) handleVoiceState(ctx context.Context, raw json.RawMessage) {
	var d voiceFlagsData
	if err := json.Unmarshal(raw, &d); err != nil {
		return
	}

	userID := c.UserID()
	state, err := c.deps.Voice.GetVoiceState(ctx, userID)
	if err != nil {
		if !errors.Is(err, models.ErrVoiceStateMissing) {
			logger.Warn("voice state lookup failed", logger.UserID(userID), logger.Err(err))
		}
		return
	}

	if d.SelfMute != nil {
		state.SelfMute = *d.SelfMute
	}
	if d.SelfDeaf != nil {
		state.SelfDeaf = *d.SelfDeaf
	}
	if d.Video != nil {
		state.Video = *d.Video
	}
	if d.Streaming != nil {
		state.Streaming = *d.Streaming
	}
	if err := c.deps.Voice.UpsertVoiceState(ctx, state); err != nil {
		logger.Warn("voice state update failed", logger.UserID(userID), logger.Err(err))
		return
	}

	members, err := c.deps.Voice.ListRoomMemberIDs(ctx, state.RoomID)
	if err != nil {
		logger.Warn("room member list failed", logger.Err(err))
	}
	_ = c.deps.Dispatcher.Dispatch(ctx, events.VoiceStateUpdate(events.VoiceStateData{
		UserID:    userID,
		RoomID:    state.RoomID,
		SelfMute:  state.SelfMute,
		SelfDeaf:  state.SelfDeaf,
		Video:     state.Video,
		Streaming: state.Streaming,
		Members:   members,
	}))
}

type mlsRelayData struct {
	MLSType string `json:"mls_type"`
	Data    string `json:"data"`
}

// handleMLSRelay fans an opaque MLS frame out to the sender's other
// devices. The server never inspects the payload.
func (c *Connection) handleMLSRelay(ctx context.Context, raw json.RawMessage) {
	var d mlsRelayData
	if err := json.Unmarshal(raw, &d); err != nil {
		return
	}
	if len(d.Data) > MaxRelayPayload {
		logger.Debug("mls relay payload too large", logger.UserID(c.UserID()), "size", len(d.Data))
		return
	}
	evt, ok := events.MLSRelay(d.MLSType, c.UserID(), d.Data)
	if !ok {
		return
	}
	_ = c.deps.Dispatcher.DispatchTo(ctx, evt, []int64{c.UserID()})
}

type cpaceRelayData struct {
	CPaceType string `json:"cpace_type"`
	PairID    string `json:"pair_id"`
	Data      string `json:"data"`
	Nonce     string `json:"nonce,omitempty"`
}

// handleCPaceRelay fans a device-pairing frame out to the sender's
// other devices.
func (c *Connection) handleCPaceRelay(ctx context.Context, raw json.RawMessage) {
	var d cpaceRelayData
	if err := json.Unmarshal(raw, &d); err != nil {
		return
	}
	if len(d.Data) > MaxRelayPayload {
		logger.Debug("cpace relay payload too large", logger.UserID(c.UserID()), "size", len(d.Data))
		return
	}
	evt, ok := events.CPaceRelay(d.CPaceType, d.PairID, d.Data, d.Nonce)
	if !ok {
		return
	}
	_ = c.deps.Dispatcher.DispatchTo(ctx, evt, []int64{c.UserID()})
}

type roomScopedData struct {
	RoomID int64 `json:"room_id,omitempty"`
}

// handleRoomFanout forwards the payload untouched to the room's
// occupants, or to everyone when no room is named.
func (c *Connection) handleRoomFanout(ctx context.Context, eventType string, raw json.RawMessage) {
	var scope roomScopedData
	if err := json.Unmarshal(raw, &scope); err != nil {
		return
	}
	evt := events.Event{Type: eventType, D: raw}

	if scope.RoomID == 0 {
		_ = c.deps.Dispatcher.Dispatch(ctx, evt)
		return
	}
	members, err := c.deps.Voice.ListRoomMemberIDs(ctx, scope.RoomID)
	if err != nil || len(members) == 0 {
		return
	}
	_ = c.deps.Dispatcher.DispatchTo(ctx, evt, members)
}

// cleanup runs unconditionally when Run exits: voice state teardown,
// session preservation, and the last-connection offline broadcast.
func (c *Connection) cleanup() {
	c.closeWith(CloseUnknownError)

	c.mu.Lock()
	identified := c.identified
	userID := c.userID
	session := c.session
	sessionID := c.sessionID
	c.mu.Unlock()

	if m := c.deps.Hub.metrics; m != nil {
		m.RecordConnectionClosed(int(c.closeCode))
	}
	if !identified {
		return
	}

	// Close-path work uses a fresh context; the request context is
	// already dead.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.cleanupVoiceState(ctx, userID)

	if session != nil {
		c.deps.Hub.SaveSession(session)
	}

	if last := c.deps.Hub.Unregister(c); last {
		c.deps.Hub.BroadcastExcept(events.PresenceUpdate(userID, StatusOffline, nil), userID)
	}

	logger.Debug("gateway connection closed",
		logger.UserID(userID), logger.SessionID(sessionID), logger.CloseCode(int(c.closeCode)))
}

// cleanupVoiceState removes the user's voice state if present and tells
// the room. Removal is idempotent.
func (c *Connection) cleanupVoiceState(ctx context.Context, userID int64) {
	state, err := c.deps.Voice.GetVoiceState(ctx, userID)
	if err != nil {
		return
	}
	if err := c.deps.Voice.RemoveVoiceState(ctx, userID); err != nil {
		logger.Warn("voice state cleanup failed", logger.UserID(userID), logger.Err(err))
		return
	}
	members, err := c.deps.Voice.ListRoomMemberIDs(ctx, state.RoomID)
	if err != nil {
		members = nil
	}
	_ = c.deps.Dispatcher.Dispatch(ctx, events.VoiceStateUpdate(events.VoiceStateData{
		UserID:  userID,
		RoomID:  state.RoomID,
		Members: members,
	}))
}
