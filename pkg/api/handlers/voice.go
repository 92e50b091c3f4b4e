package handlers

import (
	"net/http"

	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/auth"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/store"
)

// VoiceHandler implements room join/leave over REST. The gateway's
// voice_state_update frames cover in-call mute toggles; this surface is
// for clients that join before opening the socket and for the media
// token mint.
type VoiceHandler struct {
	store      store.Store
	dispatcher gateway.Dispatcher
	auth       *auth.Service
	perms      *permissionChecker
}

// NewVoiceHandler creates the voice handler.
func NewVoiceHandler(st store.Store, d gateway.Dispatcher, svc *auth.Service, resolver *permissions.Resolver) *VoiceHandler {
	return &VoiceHandler{store: st, dispatcher: d, auth: svc, perms: &permissionChecker{resolver: resolver}}
}

type joinRoomRequest struct {
	SelfMute bool `json:"self_mute"`
	SelfDeaf bool `json:"self_deaf"`
}

// JoinRoom places the caller in a room, moving them out of any room
// they already occupy, and mints a short-lived token for the media
// plane.
func (h *VoiceHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "roomID")
	if !ok {
		return
	}

	if _, err := h.store.GetRoom(r.Context(), roomID); err != nil {
		respond.NotFound(w, "ROOM_NOT_FOUND", "room does not exist")
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceRoom, roomID, permissions.Connect) {
		return
	}

	var req joinRoomRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	state := &models.VoiceState{
		UserID:   id.User.ID,
		RoomID:   roomID,
		SelfMute: req.SelfMute,
		SelfDeaf: req.SelfDeaf,
	}
	if err := h.store.UpsertVoiceState(r.Context(), state); err != nil {
		respond.Internal(w, "failed to join room")
		return
	}

	mediaToken, err := h.auth.Mint(r.Context(), id.User.ID, auth.PurposeMedia)
	if err != nil {
		respond.Internal(w, "failed to mint media token")
		return
	}

	members := h.roomMemberIDs(r, roomID)
	_ = h.dispatcher.Dispatch(r.Context(), events.VoiceStateUpdate(events.VoiceStateData{
		UserID:   id.User.ID,
		RoomID:   roomID,
		SelfMute: state.SelfMute,
		SelfDeaf: state.SelfDeaf,
		Members:  members,
	}))

	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"voice_state": state,
		"media_token": mediaToken,
	})
}

// LeaveRoom removes the caller's voice state. Idempotent.
func (h *VoiceHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	state, err := h.store.GetVoiceState(r.Context(), id.User.ID)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.store.RemoveVoiceState(r.Context(), id.User.ID); err != nil {
		respond.Internal(w, "failed to leave room")
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), events.VoiceStateUpdate(events.VoiceStateData{
		UserID:  id.User.ID,
		Members: h.roomMemberIDs(r, state.RoomID),
	}))
	w.WriteHeader(http.StatusNoContent)
}

// ListRoomMembers returns who is currently in a room.
func (h *VoiceHandler) ListRoomMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	roomID, ok := pathID(w, r, "roomID")
	if !ok {
		return
	}
	states, err := h.store.ListRoomVoiceStates(r.Context(), roomID)
	if err != nil {
		respond.Internal(w, "failed to list room members")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"voice_states": states})
}

func (h *VoiceHandler) roomMemberIDs(r *http.Request, roomID int64) []int64 {
	states, err := h.store.ListRoomVoiceStates(r.Context(), roomID)
	if err != nil {
		return nil
	}
	ids := make([]int64, 0, len(states))
	for _, s := range states {
		ids = append(ids, s.UserID)
	}
	return ids
}
