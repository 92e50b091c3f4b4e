package handlers

import (
	"net/http"
	"time"

	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/eventlog"
	"github.com/cmorg789/vox/pkg/store"
)

// syncPageLimit caps one delta-sync page regardless of what the client
// asks for.
const syncPageLimit = 100

// SyncHandler implements incremental catch-up for clients that were
// offline. Clients older than the log's retention window must refetch
// state over REST instead.
type SyncHandler struct {
	store store.Store
	log   eventlog.Log
}

// NewSyncHandler creates the sync handler.
func NewSyncHandler(st store.Store, log eventlog.Log) *SyncHandler {
	return &SyncHandler{store: st, log: log}
}

type syncRequest struct {
	Since      int64    `json:"since_timestamp"`
	Categories []string `json:"categories"`
	Cursor     int64    `json:"after,string,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

type syncResponse struct {
	Events          []eventlog.Entry `json:"events"`
	ServerTimestamp int64            `json:"server_timestamp"`
	Cursor          int64            `json:"cursor,string,omitempty"`
	ReadStates      *readStates      `json:"read_states,omitempty"`
}

type readStates struct {
	Feeds any `json:"feeds"`
	DMs   any `json:"dms"`
}

// Sync returns the log tail newer than the client's since timestamp,
// filtered to the requested categories. The cursor pages within one
// catch-up; read_states side-loads from its own table when asked for.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req syncRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	now := time.Now()
	if req.Since <= 0 || now.UnixMilli()-req.Since > eventlog.DefaultRetention.Milliseconds() {
		respond.BadRequest(w, "FULL_SYNC_REQUIRED", "since is outside the retention window; refetch state")
		return
	}
	// An empty category list is a valid no-op: the client gets the
	// server timestamp and nothing else.
	types, ok := events.TypesFor(req.Categories)
	if !ok {
		respond.BadRequest(w, "INVALID_CATEGORY", "unknown sync category")
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > syncPageLimit {
		limit = syncPageLimit
	}

	var entries []eventlog.Entry
	if len(types) > 0 {
		var err error
		entries, err = h.log.Read(r.Context(), eventlog.Query{
			Since:   req.Since,
			Types:   types,
			AfterID: req.Cursor,
			Limit:   limit,
		})
		if err != nil {
			respond.Internal(w, "failed to read event log")
			return
		}
	}

	resp := syncResponse{
		Events:          entries,
		ServerTimestamp: now.UnixMilli(),
	}
	if entries == nil {
		resp.Events = []eventlog.Entry{}
	}
	// A full page means more may follow; hand back the cursor.
	if len(entries) == limit && limit > 0 {
		resp.Cursor = entries[len(entries)-1].ID
	}

	if wantsReadStates(req.Categories) {
		feeds, err := h.store.ListFeedReadStates(r.Context(), id.User.ID)
		if err != nil {
			respond.Internal(w, "failed to load read states")
			return
		}
		dms, err := h.store.ListDMReadStates(r.Context(), id.User.ID)
		if err != nil {
			respond.Internal(w, "failed to load read states")
			return
		}
		resp.ReadStates = &readStates{Feeds: feeds, DMs: dms}
	}

	respond.WriteJSON(w, http.StatusOK, resp)
}

func wantsReadStates(categories []string) bool {
	for _, c := range categories {
		if c == "read_states" {
			return true
		}
	}
	return false
}
