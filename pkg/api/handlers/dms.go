package handlers

import (
	"errors"
	"net/http"

	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/federation"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// DMHandler implements direct-conversation creation, listing, and read
// markers.
type DMHandler struct {
	store      store.Store
	dispatcher gateway.Dispatcher
	ids        *snowflake.Generator
	fedClient  *federation.Client
	domain     string
}

// NewDMHandler creates the DM handler. fedClient may be nil.
func NewDMHandler(st store.Store, d gateway.Dispatcher, ids *snowflake.Generator, fedClient *federation.Client, domain string) *DMHandler {
	return &DMHandler{store: st, dispatcher: d, ids: ids, fedClient: fedClient, domain: domain}
}

type createDMRequest struct {
	RecipientIDs []int64 `json:"recipient_ids"`
	Name         string  `json:"name,omitempty"`
}

// CreateDM opens a conversation. Two participants make a direct DM
// (reused when one already exists); more make a named group. Blocks
// and the recipient's DM privacy setting gate creation.
func (h *DMHandler) CreateDM(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req createDMRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.RecipientIDs) == 0 {
		respond.BadRequest(w, "NO_RECIPIENTS", "at least one recipient is required")
		return
	}

	for _, rid := range req.RecipientIDs {
		if rid == id.User.ID {
			continue
		}
		blocked, err := h.store.IsBlocked(r.Context(), id.User.ID, rid)
		if err != nil {
			respond.Internal(w, "failed to check blocks")
			return
		}
		if blocked {
			respond.Forbidden(w, "USER_BLOCKED", "a recipient has blocked you or is blocked by you")
			return
		}
		if !h.dmAllowed(r, id.User.ID, rid) {
			respond.Forbidden(w, "DM_PERMISSION_DENIED", "recipient does not accept this conversation")
			return
		}
	}

	isGroup := len(req.RecipientIDs) > 1
	if !isGroup {
		if existing, err := h.store.FindDirectDM(r.Context(), id.User.ID, req.RecipientIDs[0]); err == nil {
			respond.WriteJSON(w, http.StatusOK, existing)
			return
		}
	}

	dm := &models.DM{ID: h.ids.Next(), IsGroup: isGroup, Name: req.Name}
	participants := append([]int64{id.User.ID}, req.RecipientIDs...)
	if err := h.store.CreateDM(r.Context(), dm, participants); err != nil {
		respond.Internal(w, "failed to create conversation")
		return
	}

	_ = h.dispatcher.DispatchTo(r.Context(), events.DMCreate(events.DMCreateData{
		DMID: dm.ID, IsGroup: dm.IsGroup, Name: dm.Name, ParticipantIDs: participants,
	}), participants)
	respond.WriteJSON(w, http.StatusCreated, dm)
}

// dmAllowed applies the recipient's DM privacy preference.
func (h *DMHandler) dmAllowed(r *http.Request, senderID, recipientID int64) bool {
	settings, err := h.store.GetDMSettings(r.Context(), recipientID)
	if err != nil {
		// No row means the default policy.
		return true
	}
	switch settings.DMPermission {
	case models.DMPermissionNobody:
		return false
	case models.DMPermissionFriendsOnly:
		friends, err := h.store.AreFriends(r.Context(), senderID, recipientID)
		return err == nil && friends
	default:
		return true
	}
}

// ListDMs returns the caller's conversations.
func (h *DMHandler) ListDMs(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	dms, err := h.store.ListUserDMs(r.Context(), id.User.ID)
	if err != nil {
		respond.Internal(w, "failed to list conversations")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"dms": dms})
}

// AddParticipant adds a user to a group DM. Idempotent.
func (h *DMHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	dmID, ok := pathID(w, r, "dmID")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	dm, err := h.store.GetDM(r.Context(), dmID)
	if err != nil {
		respond.NotFound(w, "DM_NOT_FOUND", "conversation does not exist")
		return
	}
	if !dm.IsGroup {
		respond.BadRequest(w, "NOT_GROUP_DM", "cannot add participants to a direct conversation")
		return
	}

	member, err := h.store.IsDMParticipant(r.Context(), dmID, id.User.ID)
	if err != nil || !member {
		respond.Forbidden(w, "NOT_DM_PARTICIPANT", "you are not in this conversation")
		return
	}

	if err := h.store.AddDMParticipant(r.Context(), dmID, userID); err != nil {
		respond.Internal(w, "failed to add participant")
		return
	}

	participants, _ := h.store.ListDMParticipantIDs(r.Context(), dmID)
	_ = h.dispatcher.DispatchTo(r.Context(), events.DMRecipientAdd(dmID, userID), participants)
	w.WriteHeader(http.StatusNoContent)
}

// MarkRead advances the caller's DM read marker and notifies the other
// participants, relaying to remote ones.
func (h *DMHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	dmID, ok := pathID(w, r, "dmID")
	if !ok {
		return
	}

	member, err := h.store.IsDMParticipant(r.Context(), dmID, id.User.ID)
	if err != nil || !member {
		respond.Forbidden(w, "NOT_DM_PARTICIPANT", "you are not in this conversation")
		return
	}

	var req struct {
		LastReadMsgID int64 `json:"last_read_msg_id,string"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.UpsertDMReadState(r.Context(), id.User.ID, dmID, req.LastReadMsgID); err != nil {
		if errors.Is(err, models.ErrDMNotFound) {
			respond.NotFound(w, "DM_NOT_FOUND", "conversation does not exist")
			return
		}
		respond.Internal(w, "failed to update read state")
		return
	}

	participants, _ := h.store.ListDMParticipantIDs(r.Context(), dmID)
	_ = h.dispatcher.DispatchTo(r.Context(), events.DMReadNotify(dmID, id.User.ID, req.LastReadMsgID), participants)
	h.relayRead(r, id.User, dmID, req.LastReadMsgID, participants)

	w.WriteHeader(http.StatusNoContent)
}

func (h *DMHandler) relayRead(r *http.Request, reader *models.User, dmID, upTo int64, participants []int64) {
	if h.fedClient == nil {
		return
	}
	seen := map[string]bool{}
	for _, uid := range participants {
		user, err := h.store.GetUserByID(r.Context(), uid)
		if err != nil || !user.Federated || user.HomeDomain == "" || seen[user.HomeDomain] {
			continue
		}
		seen[user.HomeDomain] = true
		_ = h.fedClient.RelayRead(r.Context(), user.HomeDomain, map[string]any{
			"reader_address": reader.Address(h.domain),
			"dm_id":          dmID,
			"up_to_msg_id":   upTo,
		})
	}
}
