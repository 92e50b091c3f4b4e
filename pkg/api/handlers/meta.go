package handlers

import (
	"net/http"
	"time"

	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/store"
)

// MetaHandler serves the unauthenticated discovery and health probes.
type MetaHandler struct {
	store      store.Store
	domain     string
	serverName string
	started    time.Time
}

// NewMetaHandler creates the meta handler.
func NewMetaHandler(st store.Store, domain, serverName string) *MetaHandler {
	return &MetaHandler{store: st, domain: domain, serverName: serverName, started: time.Now()}
}

// GatewayInfo tells clients where to open the socket.
func (h *MetaHandler) GatewayInfo(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"url":         "wss://" + h.domain + "/gateway",
		"server_name": h.serverName,
	})
}

// Healthz is the liveness probe.
func (h *MetaHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz is the readiness probe; it fails while the store is
// unreachable.
func (h *MetaHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Healthcheck(r.Context()); err != nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "NOT_READY", "store unreachable")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
