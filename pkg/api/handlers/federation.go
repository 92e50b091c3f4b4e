package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/api/middleware"
	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/auth"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/federation"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// FederationHandler implements the inbound server-to-server surface.
// Every route here sits behind the signature-verification middleware;
// handlers trust middleware.Origin and never re-check the signature.
type FederationHandler struct {
	store      store.Store
	dispatcher gateway.Dispatcher
	hub        *gateway.Hub
	auth       *auth.Service
	ids        *snowflake.Generator
	vouchers   *federation.VoucherService
	client     *federation.Client
	domain     string
	serverName string
}

// NewFederationHandler creates the inbound federation handler. client
// may be nil when outbound federation is disabled.
func NewFederationHandler(st store.Store, d gateway.Dispatcher, hub *gateway.Hub, svc *auth.Service, ids *snowflake.Generator, vouchers *federation.VoucherService, client *federation.Client, domain, serverName string) *FederationHandler {
	return &FederationHandler{
		store: st, dispatcher: d, hub: hub, auth: svc, ids: ids,
		vouchers: vouchers, client: client, domain: domain, serverName: serverName,
	}
}

type joinRequestRequest struct {
	TargetDomain string `json:"target_domain"`
}

// JoinRequest is the client-facing half of the join handshake: a local
// user asks to join a remote server, we issue a voucher vouching for
// them and present it to the target on their behalf.
func (h *FederationHandler) JoinRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if h.client == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "FEDERATION_DISABLED", "outbound federation is not configured")
		return
	}

	var req joinRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetDomain == "" || req.TargetDomain == h.domain {
		respond.BadRequest(w, "INVALID_TARGET", "target_domain must name a remote server")
		return
	}

	address := id.User.Address(h.domain)
	voucher, err := h.vouchers.Issue(r.Context(), address, req.TargetDomain)
	if err != nil {
		respond.Internal(w, "failed to issue voucher")
		return
	}

	resp, err := h.client.Join(r.Context(), req.TargetDomain, voucher, address)
	if err != nil {
		if errors.Is(err, federation.ErrBlocked) || errors.Is(err, federation.ErrPolicyDenied) {
			respond.Forbidden(w, "FED_POLICY_DENIED", "target server refuses federation")
			return
		}
		respond.WriteError(w, http.StatusBadGateway, "FED_UNREACHABLE", "target server did not answer")
		return
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}

type joinRequest struct {
	Voucher string `json:"voucher"`
}

// Join admits a remote user carrying a voucher from their home server.
// A successful join mints a federation-purpose token the remote server
// relays back to its user.
func (h *FederationHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payload, err := h.vouchers.Verify(r.Context(), req.Voucher, h.domain)
	if err != nil {
		// Expired, replayed, and malformed vouchers all collapse to the
		// same code so a probing server learns nothing about nonce state.
		logger.Debug("voucher rejected", logger.Err(err))
		respond.Unauthorized(w, "FED_AUTH_FAILED", "voucher could not be verified")
		return
	}

	username, homeDomain := federation.SplitAddress(payload.UserAddress)
	if origin := middleware.Origin(r.Context()); origin != homeDomain {
		respond.Forbidden(w, "FED_ORIGIN_MISMATCH", "voucher was issued by a different server")
		return
	}

	user, err := h.store.EnsureFederatedUser(r.Context(), username, homeDomain, username)
	if err != nil {
		respond.Internal(w, "failed to register remote user")
		return
	}

	token, err := h.auth.Mint(r.Context(), user.ID, auth.PurposeFederation)
	if err != nil {
		respond.Internal(w, "failed to mint federation token")
		return
	}

	logger.Info("federated join accepted",
		logger.UserID(user.ID), logger.Domain(homeDomain))
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"accepted":         true,
		"federation_token": token,
		"server_info": map[string]any{
			"name":   h.serverName,
			"domain": h.domain,
		},
	})
}

type relayMessageRequest struct {
	AuthorAddress string  `json:"author_address"`
	DMID          *int64  `json:"dm_id,string,omitempty"`
	FeedID        *int64  `json:"feed_id,string,omitempty"`
	Body          *string `json:"body"`
	ReplyTo       *int64  `json:"reply_to,string,omitempty"`
}

// RelayMessage ingests a message authored on the origin server. The
// message is committed locally with the remote author's shadow row and
// fanned out like a local send.
func (h *FederationHandler) RelayMessage(w http.ResponseWriter, r *http.Request) {
	origin := middleware.Origin(r.Context())

	var req relayMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Body == nil || strings.TrimSpace(*req.Body) == "" {
		respond.BadRequest(w, "EMPTY_MESSAGE", "message body is required")
		return
	}
	if (req.DMID == nil) == (req.FeedID == nil) {
		respond.BadRequest(w, "INVALID_TARGET", "exactly one of dm_id or feed_id is required")
		return
	}

	author, ok := h.remoteAuthor(w, r, origin, req.AuthorAddress)
	if !ok {
		return
	}

	msg := &models.Message{
		ID:            h.ids.Next(),
		FeedID:        req.FeedID,
		DMID:          req.DMID,
		AuthorID:      &author.ID,
		Body:          req.Body,
		ReplyTo:       req.ReplyTo,
		Timestamp:     time.Now().UnixMilli(),
		Federated:     true,
		AuthorAddress: req.AuthorAddress,
	}
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		respond.Internal(w, "failed to store message")
		return
	}

	data := events.MessageCreateData{
		MsgID:     msg.ID,
		AuthorID:  author.ID,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	}
	if msg.FeedID != nil {
		data.FeedID = *msg.FeedID
	}
	if msg.ReplyTo != nil {
		data.ReplyTo = *msg.ReplyTo
	}

	if msg.DMID != nil {
		data.DMID = *msg.DMID
		participants, err := h.store.ListDMParticipantIDs(r.Context(), *msg.DMID)
		if err != nil {
			respond.Internal(w, "failed to resolve conversation")
			return
		}
		_ = h.dispatcher.DispatchTo(r.Context(), events.MessageCreate(data), participants)
	} else {
		_ = h.dispatcher.Dispatch(r.Context(), events.MessageCreate(data))
	}

	respond.WriteJSON(w, http.StatusCreated, msg)
}

type relayTypingRequest struct {
	UserAddress string `json:"user_address"`
	DMID        *int64 `json:"dm_id,string,omitempty"`
	FeedID      *int64 `json:"feed_id,string,omitempty"`
}

// RelayTyping forwards a remote user's typing indicator. Ephemeral;
// nothing is persisted.
func (h *FederationHandler) RelayTyping(w http.ResponseWriter, r *http.Request) {
	origin := middleware.Origin(r.Context())

	var req relayTypingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := h.remoteAuthor(w, r, origin, req.UserAddress)
	if !ok {
		return
	}

	switch {
	case req.DMID != nil:
		participants, err := h.store.ListDMParticipantIDs(r.Context(), *req.DMID)
		if err != nil {
			respond.Internal(w, "failed to resolve conversation")
			return
		}
		_ = h.dispatcher.DispatchTo(r.Context(), events.TypingStart(user.ID, events.DMTarget(*req.DMID)), participants)
	case req.FeedID != nil:
		_ = h.dispatcher.Dispatch(r.Context(), events.TypingStart(user.ID, events.FeedTarget(*req.FeedID)))
	default:
		respond.BadRequest(w, "INVALID_TARGET", "dm_id or feed_id is required")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type relayReadRequest struct {
	ReaderAddress string `json:"reader_address"`
	DMID          int64  `json:"dm_id,string"`
	UpToMsgID     int64  `json:"up_to_msg_id,string"`
}

// RelayRead forwards a remote user's DM read marker.
func (h *FederationHandler) RelayRead(w http.ResponseWriter, r *http.Request) {
	origin := middleware.Origin(r.Context())

	var req relayReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := h.remoteAuthor(w, r, origin, req.ReaderAddress)
	if !ok {
		return
	}

	participants, err := h.store.ListDMParticipantIDs(r.Context(), req.DMID)
	if err != nil {
		respond.Internal(w, "failed to resolve conversation")
		return
	}
	_ = h.dispatcher.DispatchTo(r.Context(), events.DMReadNotify(req.DMID, user.ID, req.UpToMsgID), participants)
	w.WriteHeader(http.StatusNoContent)
}

// FetchUser serves a local user's public profile to a remote server.
func (h *FederationHandler) FetchUser(w http.ResponseWriter, r *http.Request) {
	username, ok := h.localUsername(w, r)
	if !ok {
		return
	}
	user, err := h.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		respond.NotFound(w, "USER_NOT_FOUND", "user does not exist")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"address":      user.Address(h.domain),
		"display_name": user.GetDisplayName(),
		"avatar":       user.Avatar,
		"bio":          user.Bio,
	})
}

// FetchPrekeys hands out key bundles for a local user's devices so a
// remote peer can start an encrypted session. One-time prekeys are
// claimed atomically and never handed out twice.
func (h *FederationHandler) FetchPrekeys(w http.ResponseWriter, r *http.Request) {
	username, ok := h.localUsername(w, r)
	if !ok {
		return
	}
	user, err := h.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		respond.NotFound(w, "USER_NOT_FOUND", "user does not exist")
		return
	}

	devices, err := h.store.ListUserDevices(r.Context(), user.ID)
	if err != nil {
		respond.Internal(w, "failed to list devices")
		return
	}

	bundles := make([]map[string]any, 0, len(devices))
	for _, dev := range devices {
		prekey, err := h.store.GetPrekeys(r.Context(), dev.ID)
		if err != nil {
			continue
		}
		bundle := map[string]any{
			"device_id":     dev.ID,
			"identity_key":  prekey.IdentityKey,
			"signed_prekey": prekey.SignedPrekey,
		}
		if otk, err := h.store.ClaimOneTimePrekey(r.Context(), dev.ID); err == nil {
			bundle["one_time_prekey"] = otk
		}
		bundles = append(bundles, bundle)
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"devices": bundles})
}

type presenceSubRequest struct {
	UserAddress string `json:"user_address"`
}

// SubscribePresence registers the origin server's standing interest in
// a local user's presence. Idempotent.
func (h *FederationHandler) SubscribePresence(w http.ResponseWriter, r *http.Request) {
	origin := middleware.Origin(r.Context())

	var req presenceSubRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username, domain := federation.SplitAddress(req.UserAddress)
	if domain != h.domain {
		respond.BadRequest(w, "NOT_LOCAL_USER", "subscription target is not served here")
		return
	}
	if _, err := h.store.GetUserByUsername(r.Context(), username); err != nil {
		respond.NotFound(w, "USER_NOT_FOUND", "user does not exist")
		return
	}

	if err := h.store.UpsertPresenceSub(r.Context(), origin, req.UserAddress); err != nil {
		respond.Internal(w, "failed to record subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnsubscribePresence drops the origin's subscription. Idempotent.
func (h *FederationHandler) UnsubscribePresence(w http.ResponseWriter, r *http.Request) {
	origin := middleware.Origin(r.Context())

	var req presenceSubRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.RemovePresenceSub(r.Context(), origin, req.UserAddress); err != nil {
		respond.Internal(w, "failed to remove subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type presenceNotifyRequest struct {
	UserAddress string `json:"user_address"`
	Status      string `json:"status"`
}

// NotifyPresence ingests a presence change for a remote user we shadow
// and fans it out to local clients.
func (h *FederationHandler) NotifyPresence(w http.ResponseWriter, r *http.Request) {
	origin := middleware.Origin(r.Context())

	var req presenceNotifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := h.remoteAuthor(w, r, origin, req.UserAddress)
	if !ok {
		return
	}

	h.hub.SetPresence(user.ID, gateway.PresenceRecord{Status: req.Status})
	h.hub.BroadcastExcept(events.PresenceUpdate(user.ID, req.Status, nil), user.ID)
	w.WriteHeader(http.StatusNoContent)
}

type blockNotifyRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Block ingests a remote server's notice that it has blocked us. The
// notice is audit-logged for operator review only; the local blocklist
// changes exclusively through the admin surface. Idempotent.
func (h *FederationHandler) Block(w http.ResponseWriter, r *http.Request) {
	origin := middleware.Origin(r.Context())

	var req blockNotifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry := &models.AuditLogEntry{
		ID:        h.ids.Next(),
		EventType: "federation_block_request_received",
		Timestamp: time.Now().UnixMilli(),
	}
	if raw, err := json.Marshal(map[string]any{"origin": origin, "reason": req.Reason}); err == nil {
		entry.Extra = string(raw)
	}
	if err := h.store.AppendAuditLog(r.Context(), entry); err != nil {
		respond.Internal(w, "failed to record block notice")
		return
	}
	logger.Info("remote server blocked us", logger.Domain(origin))
	w.WriteHeader(http.StatusNoContent)
}

// remoteAuthor resolves (and lazily creates) the shadow row for a
// remote address, rejecting addresses whose domain differs from the
// verified origin.
func (h *FederationHandler) remoteAuthor(w http.ResponseWriter, r *http.Request, origin, address string) (*models.User, bool) {
	username, domain := federation.SplitAddress(address)
	if username == "" || domain == "" {
		respond.BadRequest(w, "INVALID_ADDRESS", "malformed user address")
		return nil, false
	}
	if domain != origin {
		respond.Forbidden(w, "FED_ORIGIN_MISMATCH", "address does not belong to the signing server")
		return nil, false
	}
	user, err := h.store.EnsureFederatedUser(r.Context(), username, domain, username)
	if err != nil {
		respond.Internal(w, "failed to resolve remote user")
		return nil, false
	}
	return user, true
}

// localUsername extracts the username from an address path parameter
// and confirms it names a user homed here.
func (h *FederationHandler) localUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := chi.URLParam(r, "address")
	username, domain := federation.SplitAddress(address)
	if username == "" {
		// Bare usernames are accepted as shorthand for user@ourdomain.
		username = address
		domain = h.domain
	}
	if domain != h.domain {
		respond.NotFound(w, "USER_NOT_FOUND", "user is not served here")
		return "", false
	}
	return username, true
}

// FederationAdminHandler implements the operator-facing block and allow
// list. It sits on the authenticated surface, not the federation one.
type FederationAdminHandler struct {
	store store.Store
	ids   *snowflake.Generator
	perms *permissionChecker
}

// NewFederationAdminHandler creates the admin handler.
func NewFederationAdminHandler(st store.Store, ids *snowflake.Generator, resolver *permissions.Resolver) *FederationAdminHandler {
	return &FederationAdminHandler{store: st, ids: ids, perms: &permissionChecker{resolver: resolver}}
}

type federationEntryRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason,omitempty"`
}

// ListEntries returns the block/allow list.
func (h *FederationAdminHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	entries, err := h.store.ListFederationEntries(r.Context())
	if err != nil {
		respond.Internal(w, "failed to list federation entries")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Block adds a domain or user@domain to the blocklist. Idempotent.
func (h *FederationAdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.addEntry(w, r, models.FederationEntryBlock)
}

// Allow adds a domain to the allowlist used in allowlist policy mode.
func (h *FederationAdminHandler) Allow(w http.ResponseWriter, r *http.Request) {
	h.addEntry(w, r, models.FederationEntryAllow)
}

func (h *FederationAdminHandler) addEntry(w http.ResponseWriter, r *http.Request, kind string) {
	if !h.requireAdmin(w, r) {
		return
	}
	var req federationEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Target == "" {
		respond.BadRequest(w, "INVALID_TARGET", "target is required")
		return
	}

	entry := &models.FederationEntry{
		ID:     h.ids.Next(),
		Entry:  models.FederationEntryText(kind, req.Target),
		Reason: req.Reason,
	}
	if err := h.store.AddFederationEntry(r.Context(), entry); err != nil {
		respond.Internal(w, "failed to add federation entry")
		return
	}
	respond.WriteJSON(w, http.StatusCreated, entry)
}

// Unblock removes a blocklist row. Idempotent.
func (h *FederationAdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.removeEntry(w, r, models.FederationEntryBlock)
}

// Unallow removes an allowlist row. Idempotent.
func (h *FederationAdminHandler) Unallow(w http.ResponseWriter, r *http.Request) {
	h.removeEntry(w, r, models.FederationEntryAllow)
}

func (h *FederationAdminHandler) removeEntry(w http.ResponseWriter, r *http.Request, kind string) {
	if !h.requireAdmin(w, r) {
		return
	}
	target := chi.URLParam(r, "target")
	if target == "" {
		respond.BadRequest(w, "INVALID_TARGET", "target is required")
		return
	}
	if err := h.store.RemoveFederationEntry(r.Context(), models.FederationEntryText(kind, target)); err != nil {
		if !errors.Is(err, models.ErrFederationEntryGone) {
			respond.Internal(w, "failed to remove federation entry")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FederationAdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	id, ok := identity(w, r)
	if !ok {
		return false
	}
	return h.perms.require(w, r, id.User.ID, permissions.ManageServer)
}
