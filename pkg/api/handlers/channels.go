package handlers

import (
	"errors"
	"net/http"

	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// ChannelHandler implements CRUD for categories, feeds, rooms, and
// threads. Every mutation commits first and dispatches after; the
// dispatch carries the committed state, never the request.
type ChannelHandler struct {
	store      store.Store
	dispatcher gateway.Dispatcher
	ids        *snowflake.Generator
	perms      *permissionChecker
}

// NewChannelHandler creates the channel handler.
func NewChannelHandler(st store.Store, d gateway.Dispatcher, ids *snowflake.Generator, resolver *permissions.Resolver) *ChannelHandler {
	return &ChannelHandler{store: st, dispatcher: d, ids: ids, perms: &permissionChecker{resolver: resolver}}
}

type createFeedRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Topic      string `json:"topic,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
	Position   int    `json:"position,omitempty"`
}

// CreateFeed creates a text channel.
func (h *ChannelHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.ManageSpaces) {
		return
	}

	var req createFeedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		respond.BadRequest(w, "INVALID_NAME", "name is required")
		return
	}
	if req.Type == "" {
		req.Type = models.FeedTypeText
	}

	feed := &models.Feed{
		ID:         h.ids.Next(),
		Name:       req.Name,
		Type:       req.Type,
		Topic:      req.Topic,
		CategoryID: req.CategoryID,
		Position:   req.Position,
	}
	if err := h.store.CreateFeed(r.Context(), feed); err != nil {
		respond.Internal(w, "failed to create feed")
		return
	}

	evt := events.FeedCreateData{FeedID: feed.ID, Name: feed.Name, Type: feed.Type, Topic: feed.Topic}
	if feed.CategoryID != nil {
		evt.CategoryID = *feed.CategoryID
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.FeedCreate(evt))

	respond.WriteJSON(w, http.StatusCreated, feed)
}

// GetFeed returns one feed.
func (h *ChannelHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, feedID, permissions.ViewSpace) {
		return
	}

	feed, err := h.store.GetFeed(r.Context(), feedID)
	if err != nil {
		respond.NotFound(w, "FEED_NOT_FOUND", "feed does not exist")
		return
	}
	respond.WriteJSON(w, http.StatusOK, feed)
}

// ListFeeds returns the feeds visible to the caller.
func (h *ChannelHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	feeds, err := h.store.ListFeeds(r.Context())
	if err != nil {
		respond.Internal(w, "failed to list feeds")
		return
	}

	visible := feeds[:0]
	for _, f := range feeds {
		resolved, err := h.perms.resolver.ResolveInSpace(r.Context(), id.User.ID, permissions.SpaceFeed, f.ID)
		if err == nil && permissions.Has(resolved, permissions.ViewSpace) {
			visible = append(visible, f)
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"feeds": visible})
}

type updateFeedRequest struct {
	Name       *string `json:"name,omitempty"`
	Topic      *string `json:"topic,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty"`
	Position   *int    `json:"position,omitempty"`
}

// UpdateFeed patches feed attributes and dispatches only the changed
// fields.
func (h *ChannelHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, feedID, permissions.ManageSpaces) {
		return
	}

	var req updateFeedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	feed, err := h.store.GetFeed(r.Context(), feedID)
	if err != nil {
		respond.NotFound(w, "FEED_NOT_FOUND", "feed does not exist")
		return
	}

	changed := map[string]any{}
	if req.Name != nil {
		feed.Name = *req.Name
		changed["name"] = feed.Name
	}
	if req.Topic != nil {
		feed.Topic = *req.Topic
		changed["topic"] = feed.Topic
	}
	if req.CategoryID != nil {
		feed.CategoryID = req.CategoryID
		changed["category_id"] = *req.CategoryID
	}
	if req.Position != nil {
		feed.Position = *req.Position
		changed["position"] = feed.Position
	}
	if len(changed) == 0 {
		respond.WriteJSON(w, http.StatusOK, feed)
		return
	}

	if err := h.store.UpdateFeed(r.Context(), feed); err != nil {
		respond.Internal(w, "failed to update feed")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.FeedUpdate(feed.ID, changed))
	respond.WriteJSON(w, http.StatusOK, feed)
}

// DeleteFeed removes a feed.
func (h *ChannelHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, feedID, permissions.ManageSpaces) {
		return
	}

	if err := h.store.DeleteFeed(r.Context(), feedID); err != nil {
		if errors.Is(err, models.ErrChannelNotFound) {
			respond.NotFound(w, "FEED_NOT_FOUND", "feed does not exist")
			return
		}
		respond.Internal(w, "failed to delete feed")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.FeedDelete(feedID))
	w.WriteHeader(http.StatusNoContent)
}

type createRoomRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Topic      string `json:"topic,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
	Position   int    `json:"position,omitempty"`
}

// CreateRoom creates a voice or stage channel.
func (h *ChannelHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.ManageSpaces) {
		return
	}

	var req createRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		respond.BadRequest(w, "INVALID_NAME", "name is required")
		return
	}
	if req.Type == "" {
		req.Type = models.RoomTypeVoice
	}

	room := &models.Room{
		ID:         h.ids.Next(),
		Name:       req.Name,
		Type:       req.Type,
		Topic:      req.Topic,
		CategoryID: req.CategoryID,
		Position:   req.Position,
	}
	if err := h.store.CreateRoom(r.Context(), room); err != nil {
		respond.Internal(w, "failed to create room")
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), events.RoomCreate(events.RoomCreateData{
		RoomID: room.ID, Name: room.Name, Type: room.Type,
	}))
	respond.WriteJSON(w, http.StatusCreated, room)
}

// ListRooms returns all rooms.
func (h *ChannelHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	rooms, err := h.store.ListRooms(r.Context())
	if err != nil {
		respond.Internal(w, "failed to list rooms")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// DeleteRoom removes a room.
func (h *ChannelHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "roomID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceRoom, roomID, permissions.ManageSpaces) {
		return
	}

	if err := h.store.DeleteRoom(r.Context(), roomID); err != nil {
		respond.Internal(w, "failed to delete room")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.RoomDelete(roomID))
	w.WriteHeader(http.StatusNoContent)
}

type createCategoryRequest struct {
	Name     string `json:"name"`
	Position int    `json:"position,omitempty"`
}

// CreateCategory creates a channel-list grouping.
func (h *ChannelHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.ManageSpaces) {
		return
	}

	var req createCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		respond.BadRequest(w, "INVALID_NAME", "name is required")
		return
	}

	cat := &models.Category{ID: h.ids.Next(), Name: req.Name, Position: req.Position}
	if err := h.store.CreateCategory(r.Context(), cat); err != nil {
		respond.Internal(w, "failed to create category")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.CategoryCreate(cat.ID, cat.Name, cat.Position))
	respond.WriteJSON(w, http.StatusCreated, cat)
}

// ListCategories returns all categories.
func (h *ChannelHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	cats, err := h.store.ListCategories(r.Context())
	if err != nil {
		respond.Internal(w, "failed to list categories")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

// DeleteCategory removes a grouping; feeds inside it survive with a
// cleared category.
func (h *ChannelHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	catID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.ManageSpaces) {
		return
	}

	if err := h.store.DeleteCategory(r.Context(), catID); err != nil {
		respond.Internal(w, "failed to delete category")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.CategoryDelete(catID))
	w.WriteHeader(http.StatusNoContent)
}

type createThreadRequest struct {
	Name        string `json:"name"`
	ParentMsgID int64  `json:"parent_msg_id,string"`
}

// CreateThread roots a thread at a feed message.
func (h *ChannelHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, feedID, permissions.CreateThreads) {
		return
	}

	var req createThreadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		respond.BadRequest(w, "INVALID_NAME", "name is required")
		return
	}

	thread := &models.Thread{
		ID:          h.ids.Next(),
		Name:        req.Name,
		FeedID:      feedID,
		ParentMsgID: req.ParentMsgID,
	}
	if err := h.store.CreateThread(r.Context(), thread); err != nil {
		respond.Internal(w, "failed to create thread")
		return
	}

	// The creator follows their own thread.
	_ = h.store.SubscribeThread(r.Context(), thread.ID, id.User.ID)

	_ = h.dispatcher.Dispatch(r.Context(), events.ThreadCreate(events.ThreadCreateData{
		ThreadID: thread.ID, ParentFeedID: feedID, Name: thread.Name, ParentMsgID: thread.ParentMsgID,
	}))
	respond.WriteJSON(w, http.StatusCreated, thread)
}

// ListThreads returns a feed's threads.
func (h *ChannelHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, feedID, permissions.ViewSpace) {
		return
	}

	includeArchived := r.URL.Query().Get("archived") == "true"
	threads, err := h.store.ListFeedThreads(r.Context(), feedID, includeArchived)
	if err != nil {
		respond.Internal(w, "failed to list threads")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"threads": threads})
}
