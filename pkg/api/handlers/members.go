package handlers

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// MemberHandler implements the member roster, moderation actions, and
// invites.
type MemberHandler struct {
	store      store.Store
	dispatcher gateway.Dispatcher
	hub        *gateway.Hub
	ids        *snowflake.Generator
	perms      *permissionChecker
}

// NewMemberHandler creates the member handler.
func NewMemberHandler(st store.Store, d gateway.Dispatcher, hub *gateway.Hub, ids *snowflake.Generator, resolver *permissions.Resolver) *MemberHandler {
	return &MemberHandler{store: st, dispatcher: d, hub: hub, ids: ids, perms: &permissionChecker{resolver: resolver}}
}

// ListMembers returns every known user, shadow rows included.
func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		respond.Internal(w, "failed to list members")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"members": users})
}

// GetMember returns one user's profile.
func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		respond.NotFound(w, "USER_NOT_FOUND", "user does not exist")
		return
	}
	respond.WriteJSON(w, http.StatusOK, user)
}

// UpdateSelf patches the caller's own profile fields.
func (h *MemberHandler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		Nickname    *string `json:"nickname"`
		Avatar      *string `json:"avatar"`
		Bio         *string `json:"bio"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user := id.User
	changed := map[string]any{}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
		changed["display_name"] = user.DisplayName
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
		changed["avatar"] = user.Avatar
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
		changed["bio"] = user.Bio
	}
	if req.Nickname != nil {
		user.Nickname = *req.Nickname
	}
	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		respond.Internal(w, "failed to update profile")
		return
	}

	if len(changed) > 0 {
		_ = h.dispatcher.Dispatch(r.Context(), events.UserUpdate(user.ID, changed))
	}
	if req.Nickname != nil {
		_ = h.dispatcher.Dispatch(r.Context(), events.MemberUpdate(user.ID, req.Nickname))
	}
	respond.WriteJSON(w, http.StatusOK, user)
}

// Kick drops a member's connections. Their account stays intact and
// they can reconnect with a fresh token; this is the soft eviction.
func (h *MemberHandler) Kick(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.KickMembers) {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if _, err := h.store.GetUserByID(r.Context(), userID); err != nil {
		respond.NotFound(w, "USER_NOT_FOUND", "user does not exist")
		return
	}

	h.hub.DisconnectUser(userID)
	_ = h.dispatcher.Dispatch(r.Context(), events.MemberLeave(userID))
	h.audit(r, "member_kick", id.User.ID, userID, nil)
	w.WriteHeader(http.StatusNoContent)
}

type banRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Ban blocks a user from the server, revokes their sessions, and drops
// their connections.
func (h *MemberHandler) Ban(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.BanMembers) {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if userID == id.User.ID {
		respond.BadRequest(w, "INVALID_TARGET", "you cannot ban yourself")
		return
	}
	if _, err := h.store.GetUserByID(r.Context(), userID); err != nil {
		respond.NotFound(w, "USER_NOT_FOUND", "user does not exist")
		return
	}

	var req banRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	ban := &models.Ban{ID: h.ids.Next(), UserID: userID, Reason: req.Reason}
	if err := h.store.CreateBan(r.Context(), ban); err != nil {
		respond.Internal(w, "failed to create ban")
		return
	}
	_ = h.store.DeleteUserSessions(r.Context(), userID)
	h.hub.DisconnectUser(userID)

	_ = h.dispatcher.Dispatch(r.Context(), events.MemberBan(userID))
	h.audit(r, "member_ban", id.User.ID, userID, map[string]any{"reason": req.Reason})
	respond.WriteJSON(w, http.StatusCreated, ban)
}

// Unban lifts a ban. Idempotent on missing bans.
func (h *MemberHandler) Unban(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.BanMembers) {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.store.RemoveBan(r.Context(), userID); err != nil {
		if errors.Is(err, models.ErrBanNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respond.Internal(w, "failed to remove ban")
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), events.MemberUnban(userID))
	h.audit(r, "member_unban", id.User.ID, userID, nil)
	w.WriteHeader(http.StatusNoContent)
}

// ListBans returns the current ban list.
func (h *MemberHandler) ListBans(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.BanMembers) {
		return
	}
	bans, err := h.store.ListBans(r.Context())
	if err != nil {
		respond.Internal(w, "failed to list bans")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"bans": bans})
}

type createInviteRequest struct {
	FeedID    *int64 `json:"feed_id,string,omitempty"`
	MaxUses   *int   `json:"max_uses,omitempty"`
	ExpiresIn *int64 `json:"expires_in,omitempty"`
}

// CreateInvite mints a join code, optionally pointing at a landing feed
// and optionally capped by use count or lifetime seconds.
func (h *MemberHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.CreateInvites) {
		return
	}

	var req createInviteRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	invite := &models.Invite{
		Code:      inviteCode(),
		CreatorID: id.User.ID,
		FeedID:    req.FeedID,
		MaxUses:   req.MaxUses,
	}
	if req.ExpiresIn != nil {
		at := time.Now().Add(time.Duration(*req.ExpiresIn) * time.Second)
		invite.ExpiresAt = &at
	}
	if err := h.store.CreateInvite(r.Context(), invite); err != nil {
		respond.Internal(w, "failed to create invite")
		return
	}

	var feedID int64
	if invite.FeedID != nil {
		feedID = *invite.FeedID
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.InviteCreate(invite.Code, invite.CreatorID, feedID))
	respond.WriteJSON(w, http.StatusCreated, invite)
}

// ListInvites returns outstanding invites.
func (h *MemberHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.CreateInvites) {
		return
	}
	invites, err := h.store.ListInvites(r.Context())
	if err != nil {
		respond.Internal(w, "failed to list invites")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"invites": invites})
}

// DeleteInvite revokes a join code.
func (h *MemberHandler) DeleteInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.CreateInvites) {
		return
	}
	code := chi.URLParam(r, "code")
	if code == "" {
		respond.BadRequest(w, "INVALID_ID", "malformed code")
		return
	}

	if err := h.store.DeleteInvite(r.Context(), code); err != nil {
		if errors.Is(err, models.ErrInviteNotFound) {
			respond.NotFound(w, "INVITE_NOT_FOUND", "invite does not exist")
			return
		}
		respond.Internal(w, "failed to delete invite")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.InviteDelete(code))
	w.WriteHeader(http.StatusNoContent)
}

// RedeemInvite burns a use of the code for the caller and announces
// their join. Expired and exhausted codes answer 410.
func (h *MemberHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")
	if code == "" {
		respond.BadRequest(w, "INVALID_ID", "malformed code")
		return
	}

	invite, err := h.store.UseInvite(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInviteNotFound):
			respond.NotFound(w, "INVITE_NOT_FOUND", "invite does not exist")
		case errors.Is(err, models.ErrInviteExpired):
			respond.Gone(w, "INVITE_EXPIRED", "invite has expired")
		case errors.Is(err, models.ErrInviteExhausted):
			respond.Gone(w, "INVITE_EXHAUSTED", "invite has no uses left")
		default:
			respond.Internal(w, "failed to redeem invite")
		}
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), events.MemberJoin(id.User.ID, id.User.DisplayName))
	respond.WriteJSON(w, http.StatusOK, invite)
}

// audit appends an audit log row. Failures are logged, never surfaced.
func (h *MemberHandler) audit(r *http.Request, eventType string, actorID, targetID int64, extra map[string]any) {
	entry := &models.AuditLogEntry{
		ID:        h.ids.Next(),
		EventType: eventType,
		ActorID:   actorID,
		TargetID:  &targetID,
		Timestamp: time.Now().UnixMilli(),
	}
	if extra != nil {
		if raw, err := json.Marshal(extra); err == nil {
			entry.Extra = string(raw)
		}
	}
	if err := h.store.AppendAuditLog(r.Context(), entry); err != nil {
		logger.Warn("audit log append failed", logger.Err(err), logger.UserID(actorID))
	}
}

// inviteCode generates a short random join code.
func inviteCode() string {
	var buf [10]byte
	_, _ = rand.Read(buf[:])
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:])
}
