// Package notify turns committed messages into targeted
// notification_create events: mentions, replies, and channel
// subscriptions, each delivered at most once per recipient with
// mention > reply > subscription precedence. Recipients with no live
// gateway connection get a Web Push delivery instead, when they have
// registered a push endpoint.
package notify

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
)

// MentionEveryone is the sentinel user id inside a mentions list that
// expands to every eligible recipient of the channel.
const MentionEveryone int64 = 0

// Notification kinds, in precedence order.
const (
	KindMention = "mention"
	KindReply   = "reply"
	KindMessage = "message"
)

// previewLen bounds the body excerpt carried in a notification.
const previewLen = 100

// Store is the data the notifier reads to expand recipients.
type Store interface {
	ListLocalUserIDs(ctx context.Context) ([]int64, error)
	ListDMParticipantIDs(ctx context.Context, dmID int64) ([]int64, error)
	ListFeedSubscriberIDs(ctx context.Context, feedID int64) ([]int64, error)
	ListThreadSubscriberIDs(ctx context.Context, threadID int64) ([]int64, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	ListUserPushSubscriptions(ctx context.Context, userID int64) ([]*models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// PushConfig carries the VAPID material for Web Push.
type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	VAPIDPublicKey  string `mapstructure:"vapid_public_key" yaml:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key" yaml:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber" yaml:"subscriber"`
}

// Notifier fans notifications out through the dispatcher and Web Push.
type Notifier struct {
	store      Store
	hub        *gateway.Hub
	dispatcher gateway.Dispatcher
	push       PushConfig
}

// New creates a notifier.
func New(store Store, hub *gateway.Hub, dispatcher gateway.Dispatcher, push PushConfig) *Notifier {
	return &Notifier{store: store, hub: hub, dispatcher: dispatcher, push: push}
}

// MessageCreated computes and delivers notifications for a committed
// message. mentions may contain MentionEveryone. Errors are logged and
// swallowed: notification delivery never fails the message send.
func (n *Notifier) MessageCreated(ctx context.Context, msg *models.Message, mentions []int64) {
	actorID := int64(0)
	if msg.AuthorID != nil {
		actorID = *msg.AuthorID
	}

	kinds := make(map[int64]string)
	claim := func(userID int64, kind string) {
		if userID == 0 || userID == actorID {
			return
		}
		if _, taken := kinds[userID]; taken {
			return
		}
		kinds[userID] = kind
	}

	// Mentions first: they outrank everything.
	for _, userID := range n.expandMentions(ctx, msg, mentions) {
		claim(userID, KindMention)
	}

	if msg.ReplyTo != nil {
		if parent, err := n.store.GetMessage(ctx, *msg.ReplyTo); err == nil && parent.AuthorID != nil {
			claim(*parent.AuthorID, KindReply)
		}
	}

	for _, userID := range n.subscribers(ctx, msg) {
		claim(userID, KindMessage)
	}

	for userID, kind := range kinds {
		n.deliver(ctx, userID, kind, msg, actorID)
	}
}

// expandMentions resolves the raw mention list, expanding the
// @everyone sentinel to DM participants or all local users.
func (n *Notifier) expandMentions(ctx context.Context, msg *models.Message, mentions []int64) []int64 {
	var out []int64
	for _, m := range mentions {
		if m != MentionEveryone {
			out = append(out, m)
			continue
		}
		var all []int64
		var err error
		if msg.DMID != nil {
			all, err = n.store.ListDMParticipantIDs(ctx, *msg.DMID)
		} else {
			all, err = n.store.ListLocalUserIDs(ctx)
		}
		if err != nil {
			logger.Warn("mention expansion failed", logger.Err(err))
			continue
		}
		out = append(out, all...)
	}
	return out
}

// subscribers lists users following the message's channel.
func (n *Notifier) subscribers(ctx context.Context, msg *models.Message) []int64 {
	var ids []int64
	var err error
	switch {
	case msg.ThreadID != nil:
		ids, err = n.store.ListThreadSubscriberIDs(ctx, *msg.ThreadID)
	case msg.FeedID != nil:
		ids, err = n.store.ListFeedSubscriberIDs(ctx, *msg.FeedID)
	case msg.DMID != nil:
		ids, err = n.store.ListDMParticipantIDs(ctx, *msg.DMID)
	}
	if err != nil {
		logger.Warn("subscriber lookup failed", logger.Err(err))
		return nil
	}
	return ids
}

func (n *Notifier) deliver(ctx context.Context, userID int64, kind string, msg *models.Message, actorID int64) {
	data := events.NotificationData{
		UserID:      userID,
		Type:        kind,
		MsgID:       msg.ID,
		ActorID:     actorID,
		BodyPreview: preview(msg.Body),
	}
	if msg.FeedID != nil {
		data.FeedID = *msg.FeedID
	}
	if msg.ThreadID != nil {
		data.ThreadID = *msg.ThreadID
	}
	if msg.DMID != nil {
		data.DMID = *msg.DMID
	}

	if err := n.dispatcher.DispatchTo(ctx, events.NotificationCreate(data), []int64{userID}); err != nil {
		logger.Warn("notification dispatch failed", logger.UserID(userID), logger.Err(err))
	}

	if !n.hub.IsConnected(userID) {
		n.webPush(ctx, userID, data)
	}
}

// webPush delivers the notification payload to each of the user's
// registered endpoints. A 404/410 from the push service means the
// subscription is dead and gets dropped.
func (n *Notifier) webPush(ctx context.Context, userID int64, data events.NotificationData) {
	if !n.push.Enabled {
		return
	}
	subs, err := n.store.ListUserPushSubscriptions(ctx, userID)
	if err != nil || len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return
	}

	// Endpoints belong to different push services; deliver in parallel
	// but bounded so one user cannot hold many outbound sockets.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, sub := range subs {
		g.Go(func() error {
			resp, err := webpush.SendNotificationWithContext(gctx, payload, &webpush.Subscription{
				Endpoint: sub.Endpoint,
				Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
			}, &webpush.Options{
				Subscriber:      n.push.Subscriber,
				VAPIDPublicKey:  n.push.VAPIDPublicKey,
				VAPIDPrivateKey: n.push.VAPIDPrivateKey,
				TTL:             3600,
			})
			if err != nil {
				logger.Debug("web push failed", logger.UserID(userID), logger.Err(err))
				return nil
			}
			if resp.StatusCode == 404 || resp.StatusCode == 410 {
				_ = n.store.DeletePushSubscription(ctx, sub.Endpoint)
			}
			_ = resp.Body.Close()
			return nil
		})
	}
	_ = g.Wait()
}

func preview(body *string) *string {
	if body == nil {
		return nil
	}
	if len(*body) <= previewLen {
		return body
	}
	// Back off to a rune boundary so the cut never splits a UTF-8
	// sequence.
	cut := previewLen
	for cut > 0 && !utf8.RuneStart((*body)[cut]) {
		cut--
	}
	short := (*body)[:cut]
	return &short
}
