package events

import (
	"time"
)

// ReadyData is the payload of the ready event sent after identify.
type ReadyData struct {
	SessionID       string   `json:"session_id"`
	UserID          int64    `json:"user_id"`
	DisplayName     string   `json:"display_name"`
	ServerName      string   `json:"server_name"`
	ServerIcon      string   `json:"server_icon,omitempty"`
	ServerTime      int64    `json:"server_time"`
	ProtocolVersion int      `json:"protocol_version"`
	Capabilities    []string `json:"capabilities"`
}

// DefaultCapabilities is advertised in ready when the server has no
// capability restrictions configured.
var DefaultCapabilities = []string{"voice", "e2ee", "federation", "bots", "webhooks"}

// Hello is the first frame on every connection.
func Hello(heartbeatIntervalMS int) Event {
	return Event{Type: TypeHello, D: map[string]any{"heartbeat_interval": heartbeatIntervalMS}}
}

// HeartbeatAck acknowledges a client heartbeat. Unsequenced.
func HeartbeatAck() Event {
	return Event{Type: TypeHeartbeatAck}
}

// Ready completes an identify handshake. ServerTime defaults to now and
// Capabilities to DefaultCapabilities when unset.
func Ready(d ReadyData) Event {
	if d.ServerTime == 0 {
		d.ServerTime = time.Now().UnixMilli()
	}
	if d.ProtocolVersion == 0 {
		d.ProtocolVersion = 1
	}
	if d.Capabilities == nil {
		d.Capabilities = DefaultCapabilities
	}
	return Event{Type: TypeReady, D: d}
}

// Resumed completes a resume handshake, reporting the restored seq.
// Unsequenced.
func Resumed(seq int64) Event {
	return Event{Type: TypeResumed, D: map[string]any{"seq": seq}}
}

// MessageCreateData is the payload of message_create.
type MessageCreateData struct {
	MsgID     int64   `json:"msg_id"`
	FeedID    int64   `json:"feed_id,omitempty"`
	DMID      int64   `json:"dm_id,omitempty"`
	ThreadID  int64   `json:"thread_id,omitempty"`
	AuthorID  int64   `json:"author_id"`
	Body      *string `json:"body"`
	Timestamp int64   `json:"timestamp"`
	ReplyTo   int64   `json:"reply_to,omitempty"`
}

func MessageCreate(d MessageCreateData) Event {
	return Event{Type: TypeMessageCreate, D: d}
}

// MessageUpdate carries only the fields that changed.
func MessageUpdate(msgID int64, t Target, body *string, editTimestamp int64) Event {
	d := map[string]any{"msg_id": msgID}
	addTarget(d, t)
	if body != nil {
		d["body"] = body
	}
	if editTimestamp != 0 {
		d["edit_timestamp"] = editTimestamp
	}
	return Event{Type: TypeMessageUpdate, D: d}
}

func MessageDelete(msgID int64, t Target) Event {
	d := map[string]any{"msg_id": msgID}
	addTarget(d, t)
	return Event{Type: TypeMessageDelete, D: d}
}

func MessageBulkDelete(feedID int64, msgIDs []int64) Event {
	return Event{Type: TypeMessageBulkDelete, D: map[string]any{"feed_id": feedID, "msg_ids": msgIDs}}
}

func MessageReactionAdd(msgID, userID int64, emoji string) Event {
	return Event{Type: TypeMessageReactionAdd, D: map[string]any{"msg_id": msgID, "user_id": userID, "emoji": emoji}}
}

func MessageReactionRemove(msgID, userID int64, emoji string) Event {
	return Event{Type: TypeMessageReactionRemove, D: map[string]any{"msg_id": msgID, "user_id": userID, "emoji": emoji}}
}

func MessagePinUpdate(msgID, feedID int64, pinned bool) Event {
	return Event{Type: TypeMessagePinUpdate, D: map[string]any{"msg_id": msgID, "feed_id": feedID, "pinned": pinned}}
}

func MemberJoin(userID int64, displayName string) Event {
	d := map[string]any{"user_id": userID}
	if displayName != "" {
		d["display_name"] = displayName
	}
	return Event{Type: TypeMemberJoin, D: d}
}

func MemberLeave(userID int64) Event {
	return Event{Type: TypeMemberLeave, D: map[string]any{"user_id": userID}}
}

func MemberUpdate(userID int64, nickname *string) Event {
	d := map[string]any{"user_id": userID}
	if nickname != nil {
		d["nickname"] = nickname
	}
	return Event{Type: TypeMemberUpdate, D: d}
}

func MemberBan(userID int64) Event {
	return Event{Type: TypeMemberBan, D: map[string]any{"user_id": userID}}
}

func MemberUnban(userID int64) Event {
	return Event{Type: TypeMemberUnban, D: map[string]any{"user_id": userID}}
}

// FeedCreateData is the payload of feed_create.
type FeedCreateData struct {
	FeedID     int64  `json:"feed_id"`
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Topic      string `json:"topic,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
}

func FeedCreate(d FeedCreateData) Event {
	return Event{Type: TypeFeedCreate, D: d}
}

// FeedUpdate merges the changed fields into the payload.
func FeedUpdate(feedID int64, changed map[string]any) Event {
	return Event{Type: TypeFeedUpdate, D: merge(map[string]any{"feed_id": feedID}, changed)}
}

func FeedDelete(feedID int64) Event {
	return Event{Type: TypeFeedDelete, D: map[string]any{"feed_id": feedID}}
}

// RoomCreateData is the payload of room_create.
type RoomCreateData struct {
	RoomID     int64  `json:"room_id"`
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
}

func RoomCreate(d RoomCreateData) Event {
	return Event{Type: TypeRoomCreate, D: d}
}

func RoomUpdate(roomID int64, changed map[string]any) Event {
	return Event{Type: TypeRoomUpdate, D: merge(map[string]any{"room_id": roomID}, changed)}
}

func RoomDelete(roomID int64) Event {
	return Event{Type: TypeRoomDelete, D: map[string]any{"room_id": roomID}}
}

func CategoryCreate(categoryID int64, name string, position int) Event {
	return Event{Type: TypeCategoryCreate, D: map[string]any{"category_id": categoryID, "name": name, "position": position}}
}

func CategoryUpdate(categoryID int64, changed map[string]any) Event {
	return Event{Type: TypeCategoryUpdate, D: merge(map[string]any{"category_id": categoryID}, changed)}
}

func CategoryDelete(categoryID int64) Event {
	return Event{Type: TypeCategoryDelete, D: map[string]any{"category_id": categoryID}}
}

// ThreadCreateData is the payload of thread_create.
type ThreadCreateData struct {
	ThreadID     int64  `json:"thread_id"`
	ParentFeedID int64  `json:"parent_feed_id"`
	Name         string `json:"name"`
	ParentMsgID  int64  `json:"parent_msg_id,omitempty"`
}

func ThreadCreate(d ThreadCreateData) Event {
	return Event{Type: TypeThreadCreate, D: d}
}

func ThreadUpdate(threadID int64, changed map[string]any) Event {
	return Event{Type: TypeThreadUpdate, D: merge(map[string]any{"thread_id": threadID}, changed)}
}

func ThreadDelete(threadID int64) Event {
	return Event{Type: TypeThreadDelete, D: map[string]any{"thread_id": threadID}}
}

// RoleCreateData is the payload of role_create.
type RoleCreateData struct {
	RoleID      int64  `json:"role_id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Permissions uint64 `json:"permissions"`
	Position    int    `json:"position"`
}

func RoleCreate(d RoleCreateData) Event {
	return Event{Type: TypeRoleCreate, D: d}
}

func RoleUpdate(roleID int64, changed map[string]any) Event {
	return Event{Type: TypeRoleUpdate, D: merge(map[string]any{"role_id": roleID}, changed)}
}

func RoleDelete(roleID int64) Event {
	return Event{Type: TypeRoleDelete, D: map[string]any{"role_id": roleID}}
}

func RoleAssign(roleID, userID int64) Event {
	return Event{Type: TypeRoleAssign, D: map[string]any{"role_id": roleID, "user_id": userID}}
}

func RoleRevoke(roleID, userID int64) Event {
	return Event{Type: TypeRoleRevoke, D: map[string]any{"role_id": roleID, "user_id": userID}}
}

func ServerUpdate(changed map[string]any) Event {
	return Event{Type: TypeServerUpdate, D: changed}
}

func InviteCreate(code string, creatorID int64, feedID int64) Event {
	d := map[string]any{"code": code, "creator_id": creatorID}
	if feedID != 0 {
		d["feed_id"] = feedID
	}
	return Event{Type: TypeInviteCreate, D: d}
}

func InviteDelete(code string) Event {
	return Event{Type: TypeInviteDelete, D: map[string]any{"code": code}}
}

// DMCreateData is the payload of dm_create.
type DMCreateData struct {
	DMID           int64   `json:"dm_id"`
	ParticipantIDs []int64 `json:"participant_ids"`
	IsGroup        bool    `json:"is_group"`
	Name           string  `json:"name,omitempty"`
}

func DMCreate(d DMCreateData) Event {
	return Event{Type: TypeDMCreate, D: d}
}

func DMUpdate(dmID int64, changed map[string]any) Event {
	return Event{Type: TypeDMUpdate, D: merge(map[string]any{"dm_id": dmID}, changed)}
}

func DMRecipientAdd(dmID, userID int64) Event {
	return Event{Type: TypeDMRecipientAdd, D: map[string]any{"dm_id": dmID, "user_id": userID}}
}

func DMRecipientRemove(dmID, userID int64) Event {
	return Event{Type: TypeDMRecipientRemove, D: map[string]any{"dm_id": dmID, "user_id": userID}}
}

func DMReadNotify(dmID, userID, upToMsgID int64) Event {
	return Event{Type: TypeDMReadNotify, D: map[string]any{"dm_id": dmID, "user_id": userID, "up_to_msg_id": upToMsgID}}
}

func TypingStart(userID int64, t Target) Event {
	d := map[string]any{"user_id": userID}
	addTarget(d, t)
	return Event{Type: TypeTypingStart, D: d}
}

// PresenceUpdate carries the broadcast status; invisible users are passed
// in as offline by the caller.
func PresenceUpdate(userID int64, status string, extra map[string]any) Event {
	return Event{Type: TypePresenceUpdate, D: merge(map[string]any{"user_id": userID, "status": status}, extra)}
}

// VoiceStateData is the payload of voice_state_update.
type VoiceStateData struct {
	UserID    int64   `json:"user_id"`
	RoomID    int64   `json:"room_id,omitempty"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
	Video     bool    `json:"video"`
	Streaming bool    `json:"streaming"`
	Members   []int64 `json:"members,omitempty"`
}

func VoiceStateUpdate(d VoiceStateData) Event {
	return Event{Type: TypeVoiceStateUpdate, D: d}
}

func FriendRequest(userID, targetID int64) Event {
	return Event{Type: TypeFriendRequest, D: map[string]any{"user_id": userID, "target_id": targetID}}
}

func FriendRemove(userID, targetID int64) Event {
	return Event{Type: TypeFriendRemove, D: map[string]any{"user_id": userID, "target_id": targetID}}
}

func BlockAdd(userID, targetID int64) Event {
	return Event{Type: TypeBlockAdd, D: map[string]any{"user_id": userID, "target_id": targetID}}
}

func BlockRemove(userID, targetID int64) Event {
	return Event{Type: TypeBlockRemove, D: map[string]any{"user_id": userID, "target_id": targetID}}
}

// NotificationData is the payload of notification_create.
type NotificationData struct {
	UserID      int64   `json:"user_id"`
	Type        string  `json:"type"` // "mention", "reply", "message", "reaction"
	FeedID      int64   `json:"feed_id,omitempty"`
	ThreadID    int64   `json:"thread_id,omitempty"`
	DMID        int64   `json:"dm_id,omitempty"`
	MsgID       int64   `json:"msg_id"`
	ActorID     int64   `json:"actor_id"`
	BodyPreview *string `json:"body_preview"`
}

func NotificationCreate(d NotificationData) Event {
	return Event{Type: TypeNotificationCreate, D: d}
}

// OverrideData is the payload of permission override events.
type OverrideData struct {
	SpaceType  string `json:"space_type"`
	SpaceID    int64  `json:"space_id"`
	TargetType string `json:"target_type"`
	TargetID   int64  `json:"target_id"`
	Allow      uint64 `json:"allow,omitempty"`
	Deny       uint64 `json:"deny,omitempty"`
}

func PermissionOverrideUpdate(d OverrideData) Event {
	return Event{Type: TypePermissionOverrideUpdate, D: d}
}

func PermissionOverrideDelete(d OverrideData) Event {
	d.Allow = 0
	d.Deny = 0
	return Event{Type: TypePermissionOverrideDelete, D: d}
}

func WebhookCreate(webhookID, feedID int64, name string) Event {
	return Event{Type: TypeWebhookCreate, D: map[string]any{"webhook_id": webhookID, "feed_id": feedID, "name": name}}
}

func WebhookUpdate(webhookID int64, changed map[string]any) Event {
	return Event{Type: TypeWebhookUpdate, D: merge(map[string]any{"webhook_id": webhookID}, changed)}
}

func WebhookDelete(webhookID int64) Event {
	return Event{Type: TypeWebhookDelete, D: map[string]any{"webhook_id": webhookID}}
}

func EmojiCreate(emojiID int64, name string, creatorID int64) Event {
	return Event{Type: TypeEmojiCreate, D: map[string]any{"emoji_id": emojiID, "name": name, "creator_id": creatorID}}
}

func EmojiDelete(emojiID int64) Event {
	return Event{Type: TypeEmojiDelete, D: map[string]any{"emoji_id": emojiID}}
}

func StickerCreate(stickerID int64, name string, creatorID int64) Event {
	return Event{Type: TypeStickerCreate, D: map[string]any{"sticker_id": stickerID, "name": name, "creator_id": creatorID}}
}

func StickerDelete(stickerID int64) Event {
	return Event{Type: TypeStickerDelete, D: map[string]any{"sticker_id": stickerID}}
}

func BotCommandsUpdate(botID int64, commands any) Event {
	return Event{Type: TypeBotCommandsUpdate, D: map[string]any{"bot_id": botID, "commands": commands}}
}

func BotCommandsDelete(botID int64) Event {
	return Event{Type: TypeBotCommandsDelete, D: map[string]any{"bot_id": botID}}
}

func UserUpdate(userID int64, changed map[string]any) Event {
	return Event{Type: TypeUserUpdate, D: merge(map[string]any{"user_id": userID}, changed)}
}

// MLSRelay maps an MLS relay subtype ("welcome", "commit", "proposal") to
// its event. Returns false for unknown subtypes.
func MLSRelay(subtype string, senderID int64, data string) (Event, bool) {
	var t string
	switch subtype {
	case "welcome":
		t = TypeMLSWelcome
	case "commit":
		t = TypeMLSCommit
	case "proposal":
		t = TypeMLSProposal
	default:
		return Event{}, false
	}
	return Event{Type: t, D: map[string]any{"sender_id": senderID, "data": data}}, true
}

// CPaceRelay maps a device-pairing relay subtype to its event. Returns
// false for unknown subtypes.
func CPaceRelay(subtype string, pairID string, data string, nonce string) (Event, bool) {
	var t string
	switch subtype {
	case "isi":
		t = TypeCPaceISI
	case "rsi":
		t = TypeCPaceRSI
	case "confirm":
		t = TypeCPaceConfirm
	case "new_device_key":
		t = TypeCPaceNewDeviceKey
	default:
		return Event{}, false
	}
	d := map[string]any{"pair_id": pairID, "data": data}
	if nonce != "" {
		d["nonce"] = nonce
	}
	return Event{Type: t, D: d}, true
}

func DeviceListUpdate(devices any) Event {
	return Event{Type: TypeDeviceListUpdate, D: map[string]any{"devices": devices}}
}

func DevicePairPrompt(deviceName, ip, location, pairID string) Event {
	return Event{Type: TypeDevicePairPrompt, D: map[string]any{
		"device_name": deviceName,
		"ip":          ip,
		"location":    location,
		"pair_id":     pairID,
	}}
}

func KeyResetNotify(userID int64) Event {
	return Event{Type: TypeKeyResetNotify, D: map[string]any{"user_id": userID}}
}

// SlashCommandData is the payload delivered to a bot when a slash command
// is invoked.
type SlashCommandData struct {
	InteractionID string         `json:"interaction_id"`
	Command       string         `json:"command"`
	Params        map[string]any `json:"params,omitempty"`
	UserID        int64          `json:"user_id"`
	FeedID        int64          `json:"feed_id,omitempty"`
	DMID          int64          `json:"dm_id,omitempty"`
}

func SlashCommand(d SlashCommandData) Event {
	return Event{Type: TypeSlashCommand, D: d}
}

func addTarget(d map[string]any, t Target) {
	if t.FeedID != 0 {
		d["feed_id"] = t.FeedID
	}
	if t.DMID != 0 {
		d["dm_id"] = t.DMID
	}
}

func merge(base, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
