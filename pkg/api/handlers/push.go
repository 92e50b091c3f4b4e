package handlers

import (
	"net/http"

	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// PushHandler manages Web Push subscriptions. The notifier reads them
// when a user has no live gateway connection.
type PushHandler struct {
	store store.Store
	ids   *snowflake.Generator
}

// NewPushHandler creates the push handler.
func NewPushHandler(st store.Store, ids *snowflake.Generator) *PushHandler {
	return &PushHandler{store: st, ids: ids}
}

type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe registers or refreshes a push subscription. Re-registering
// the same endpoint replaces its keys.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req pushSubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		respond.BadRequest(w, "INVALID_SUBSCRIPTION", "endpoint and keys are required")
		return
	}

	sub := &models.PushSubscription{
		ID:       h.ids.Next(),
		UserID:   id.User.ID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.store.UpsertPushSubscription(r.Context(), sub); err != nil {
		respond.Internal(w, "failed to store subscription")
		return
	}
	respond.WriteJSON(w, http.StatusCreated, sub)
}

type pushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe removes a push subscription. Idempotent.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}

	var req pushUnsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		respond.BadRequest(w, "INVALID_SUBSCRIPTION", "endpoint is required")
		return
	}

	if err := h.store.DeletePushSubscription(r.Context(), req.Endpoint); err != nil {
		respond.Internal(w, "failed to remove subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
