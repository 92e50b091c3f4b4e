package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/federation"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/notify"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// maxMessageLength bounds a message body.
const maxMessageLength = 4000

// MessageHandler implements message send, edit, delete, history,
// reactions, pins, and read markers for feeds, threads, and DMs.
type MessageHandler struct {
	store      store.Store
	dispatcher gateway.Dispatcher
	ids        *snowflake.Generator
	perms      *permissionChecker
	notifier   *notify.Notifier
	fedClient  *federation.Client
	domain     string
}

// NewMessageHandler creates the message handler. fedClient may be nil
// when federation is disabled.
func NewMessageHandler(st store.Store, d gateway.Dispatcher, ids *snowflake.Generator, resolver *permissions.Resolver, n *notify.Notifier, fedClient *federation.Client, domain string) *MessageHandler {
	return &MessageHandler{
		store:      st,
		dispatcher: d,
		ids:        ids,
		perms:      &permissionChecker{resolver: resolver},
		notifier:   n,
		fedClient:  fedClient,
		domain:     domain,
	}
}

type sendMessageRequest struct {
	Body     *string `json:"body"`
	ReplyTo  *int64  `json:"reply_to,string,omitempty"`
	Mentions []int64 `json:"mentions,omitempty"`
}

func (req *sendMessageRequest) validate(w http.ResponseWriter) bool {
	if req.Body == nil || *req.Body == "" {
		respond.BadRequest(w, "EMPTY_MESSAGE", "message body is required")
		return false
	}
	if len(*req.Body) > maxMessageLength {
		respond.TooLarge(w, "MESSAGE_TOO_LONG", "message exceeds the length limit")
		return false
	}
	return true
}

// SendFeedMessage posts to a feed: validate, check SendMessages in the
// feed, commit, dispatch message_create, then fan out notifications.
func (h *MessageHandler) SendFeedMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, feedID, permissions.SendMessages) {
		return
	}

	var req sendMessageRequest
	if !decodeJSON(w, r, &req) || !req.validate(w) {
		return
	}
	if _, err := h.store.GetFeed(r.Context(), feedID); err != nil {
		respond.NotFound(w, "FEED_NOT_FOUND", "feed does not exist")
		return
	}

	msg := &models.Message{
		ID:        h.ids.Next(),
		FeedID:    &feedID,
		AuthorID:  &id.User.ID,
		Body:      req.Body,
		Timestamp: time.Now().UnixMilli(),
		ReplyTo:   req.ReplyTo,
	}
	h.commitAndDispatch(w, r, msg, req.Mentions)
}

// SendDMMessage posts to a direct conversation. Remote participants
// get the message relayed to their home server.
func (h *MessageHandler) SendDMMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	dmID, ok := pathID(w, r, "dmID")
	if !ok {
		return
	}

	member, err := h.store.IsDMParticipant(r.Context(), dmID, id.User.ID)
	if err != nil {
		respond.Internal(w, "failed to check membership")
		return
	}
	if !member {
		respond.Forbidden(w, "NOT_DM_PARTICIPANT", "you are not in this conversation")
		return
	}

	var req sendMessageRequest
	if !decodeJSON(w, r, &req) || !req.validate(w) {
		return
	}

	msg := &models.Message{
		ID:        h.ids.Next(),
		DMID:      &dmID,
		AuthorID:  &id.User.ID,
		Body:      req.Body,
		Timestamp: time.Now().UnixMilli(),
		ReplyTo:   req.ReplyTo,
	}
	if !h.commitAndDispatchTo(w, r, msg, req.Mentions, dmID) {
		return
	}
	h.relayToRemoteParticipants(r, id.User, dmID, msg)
}

// SendThreadMessage posts inside a thread.
func (h *MessageHandler) SendThreadMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	threadID, ok := pathID(w, r, "threadID")
	if !ok {
		return
	}

	thread, err := h.store.GetThread(r.Context(), threadID)
	if err != nil {
		respond.NotFound(w, "THREAD_NOT_FOUND", "thread does not exist")
		return
	}
	if thread.Locked {
		respond.Forbidden(w, "THREAD_LOCKED", "thread is locked")
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, thread.FeedID, permissions.SendInThreads) {
		return
	}

	var req sendMessageRequest
	if !decodeJSON(w, r, &req) || !req.validate(w) {
		return
	}

	msg := &models.Message{
		ID:        h.ids.Next(),
		ThreadID:  &threadID,
		AuthorID:  &id.User.ID,
		Body:      req.Body,
		Timestamp: time.Now().UnixMilli(),
		ReplyTo:   req.ReplyTo,
	}
	h.commitAndDispatch(w, r, msg, req.Mentions)
}

// commitAndDispatch persists the message, broadcasts message_create,
// and hands it to the notifier.
func (h *MessageHandler) commitAndDispatch(w http.ResponseWriter, r *http.Request, msg *models.Message, mentions []int64) {
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		respond.Internal(w, "failed to store message")
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), messageCreateEvent(msg))
	if h.notifier != nil {
		h.notifier.MessageCreated(r.Context(), msg, mentions)
	}
	respond.WriteJSON(w, http.StatusCreated, msg)
}

// commitAndDispatchTo is commitAndDispatch scoped to a DM's
// participants.
func (h *MessageHandler) commitAndDispatchTo(w http.ResponseWriter, r *http.Request, msg *models.Message, mentions []int64, dmID int64) bool {
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		respond.Internal(w, "failed to store message")
		return false
	}

	participants, err := h.store.ListDMParticipantIDs(r.Context(), dmID)
	if err != nil {
		participants = nil
	}
	_ = h.dispatcher.DispatchTo(r.Context(), messageCreateEvent(msg), participants)
	if h.notifier != nil {
		h.notifier.MessageCreated(r.Context(), msg, mentions)
	}
	respond.WriteJSON(w, http.StatusCreated, msg)
	return true
}

// relayToRemoteParticipants forwards a DM message to each federated
// participant's home server. Best effort; local delivery already
// happened.
func (h *MessageHandler) relayToRemoteParticipants(r *http.Request, author *models.User, dmID int64, msg *models.Message) {
	if h.fedClient == nil {
		return
	}
	ids, err := h.store.ListDMParticipantIDs(r.Context(), dmID)
	if err != nil {
		return
	}

	seen := map[string]bool{}
	for _, uid := range ids {
		user, err := h.store.GetUserByID(r.Context(), uid)
		if err != nil || !user.Federated || user.HomeDomain == "" || seen[user.HomeDomain] {
			continue
		}
		seen[user.HomeDomain] = true

		payload := map[string]any{
			"author_address": author.Address(h.domain),
			"dm_id":          strconv.FormatInt(dmID, 10),
			"msg_id":         strconv.FormatInt(msg.ID, 10),
			"body":           msg.Body,
			"timestamp":      msg.Timestamp,
		}
		if err := h.fedClient.RelayMessage(r.Context(), user.HomeDomain, payload); err != nil {
			logger.Debug("dm relay failed", logger.Domain(user.HomeDomain), logger.Err(err))
		}
	}
}

func messageCreateEvent(msg *models.Message) events.Event {
	d := events.MessageCreateData{
		MsgID:     msg.ID,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	}
	if msg.AuthorID != nil {
		d.AuthorID = *msg.AuthorID
	}
	if msg.FeedID != nil {
		d.FeedID = *msg.FeedID
	}
	if msg.DMID != nil {
		d.DMID = *msg.DMID
	}
	if msg.ThreadID != nil {
		d.ThreadID = *msg.ThreadID
	}
	if msg.ReplyTo != nil {
		d.ReplyTo = *msg.ReplyTo
	}
	return events.MessageCreate(d)
}

// ListFeedMessages pages through a feed's history.
func (h *MessageHandler) ListFeedMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, feedID, permissions.ReadHistory) {
		return
	}

	q := store.MessageQuery{FeedID: &feedID, Limit: queryInt(r, "limit", 50)}
	q.Before, _ = strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)
	q.After, _ = strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

	msgs, err := h.store.ListMessages(r.Context(), q)
	if err != nil {
		respond.Internal(w, "failed to list messages")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type editMessageRequest struct {
	Body *string `json:"body"`
}

// EditMessage updates a message body. Only the author may edit.
func (h *MessageHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "msgID")
	if !ok {
		return
	}

	msg, err := h.store.GetMessage(r.Context(), msgID)
	if err != nil {
		respond.NotFound(w, "MESSAGE_NOT_FOUND", "message does not exist")
		return
	}
	if msg.AuthorID == nil || *msg.AuthorID != id.User.ID {
		respond.Forbidden(w, "NOT_MESSAGE_AUTHOR", "only the author can edit a message")
		return
	}

	var req editMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Body == nil || *req.Body == "" {
		respond.BadRequest(w, "EMPTY_MESSAGE", "message body is required")
		return
	}

	editedAt := time.Now().UnixMilli()
	if err := h.store.UpdateMessageBody(r.Context(), msgID, req.Body, editedAt); err != nil {
		respond.Internal(w, "failed to edit message")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.MessageUpdate(msgID, messageTarget(msg), req.Body, editedAt))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMessage removes a message: the author may always delete their
// own, moderators need ManageMessages.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "msgID")
	if !ok {
		return
	}

	msg, err := h.store.GetMessage(r.Context(), msgID)
	if err != nil {
		respond.NotFound(w, "MESSAGE_NOT_FOUND", "message does not exist")
		return
	}

	isAuthor := msg.AuthorID != nil && *msg.AuthorID == id.User.ID
	if !isAuthor {
		if msg.FeedID == nil {
			respond.Forbidden(w, "NOT_MESSAGE_AUTHOR", "only the author can delete this message")
			return
		}
		if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, *msg.FeedID, permissions.ManageMessages) {
			return
		}
	}

	if err := h.store.DeleteMessage(r.Context(), msgID); err != nil {
		respond.Internal(w, "failed to delete message")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.MessageDelete(msgID, messageTarget(msg)))
	w.WriteHeader(http.StatusNoContent)
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

// AddReaction attaches an emoji reaction. Idempotent per (user,
// emoji).
func (h *MessageHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "msgID")
	if !ok {
		return
	}

	var req reactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Emoji == "" {
		respond.BadRequest(w, "INVALID_EMOJI", "emoji is required")
		return
	}

	if _, err := h.store.GetMessage(r.Context(), msgID); err != nil {
		respond.NotFound(w, "MESSAGE_NOT_FOUND", "message does not exist")
		return
	}
	if err := h.store.AddReaction(r.Context(), msgID, id.User.ID, req.Emoji); err != nil {
		respond.Internal(w, "failed to add reaction")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.MessageReactionAdd(msgID, id.User.ID, req.Emoji))
	w.WriteHeader(http.StatusNoContent)
}

// RemoveReaction detaches the caller's reaction.
func (h *MessageHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "msgID")
	if !ok {
		return
	}

	emoji := r.URL.Query().Get("emoji")
	if emoji == "" {
		respond.BadRequest(w, "INVALID_EMOJI", "emoji query parameter is required")
		return
	}
	if err := h.store.RemoveReaction(r.Context(), msgID, id.User.ID, emoji); err != nil {
		respond.Internal(w, "failed to remove reaction")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.MessageReactionRemove(msgID, id.User.ID, emoji))
	w.WriteHeader(http.StatusNoContent)
}

// PinMessage pins a message in its feed.
func (h *MessageHandler) PinMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}
	msgID, ok := pathID(w, r, "msgID")
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceFeed, feedID, permissions.ManageMessages) {
		return
	}

	if err := h.store.PinMessage(r.Context(), feedID, msgID); err != nil {
		respond.Internal(w, "failed to pin message")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.MessagePinUpdate(msgID, feedID, true))
	w.WriteHeader(http.StatusNoContent)
}

// MarkFeedRead advances the caller's read marker.
func (h *MessageHandler) MarkFeedRead(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedID")
	if !ok {
		return
	}

	var req struct {
		LastReadMsgID int64 `json:"last_read_msg_id,string"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.UpsertFeedReadState(r.Context(), id.User.ID, feedID, req.LastReadMsgID); err != nil {
		respond.Internal(w, "failed to update read state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search runs a text search over message bodies.
func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}

	text := r.URL.Query().Get("q")
	if text == "" {
		respond.BadRequest(w, "EMPTY_QUERY", "q parameter is required")
		return
	}

	var feedID *int64
	if raw := r.URL.Query().Get("feed_id"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			feedID = &v
		}
	}

	msgs, err := h.store.SearchMessages(r.Context(), text, feedID, nil, queryInt(r, "limit", 25))
	if err != nil {
		respond.Internal(w, "search failed")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func messageTarget(msg *models.Message) events.Target {
	var t events.Target
	if msg.FeedID != nil {
		t.FeedID = *msg.FeedID
	}
	if msg.DMID != nil {
		t.DMID = *msg.DMID
	}
	return t
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
