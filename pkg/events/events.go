// Package events defines the gateway event catalog: the envelope type, one
// constructor per event, and the syncable category map.
//
// Builders never set a sequence number. Each connection assigns seq as
// events leave, so the same Event value can fan out to many sessions.
package events

// Event is a gateway event envelope before sequencing.
type Event struct {
	Type string `json:"type"`
	D    any    `json:"d,omitempty"`
}

// Target addresses an event at a feed or a DM conversation. At most one
// field is set; the zero value targets neither (server-wide events).
type Target struct {
	FeedID int64
	DMID   int64
}

// FeedTarget targets a feed.
func FeedTarget(feedID int64) Target {
	return Target{FeedID: feedID}
}

// DMTarget targets a DM conversation.
func DMTarget(dmID int64) Target {
	return Target{DMID: dmID}
}

// Event type names. Server->client dispatch types only; client->server
// message types are owned by the gateway connection.
const (
	// Control
	TypeHello        = "hello"
	TypeHeartbeatAck = "heartbeat_ack"
	TypeReady        = "ready"
	TypeResumed      = "resumed"

	// Messages
	TypeMessageCreate         = "message_create"
	TypeMessageUpdate         = "message_update"
	TypeMessageDelete         = "message_delete"
	TypeMessageBulkDelete     = "message_bulk_delete"
	TypeMessageReactionAdd    = "message_reaction_add"
	TypeMessageReactionRemove = "message_reaction_remove"
	TypeMessagePinUpdate      = "message_pin_update"

	// Members
	TypeMemberJoin   = "member_join"
	TypeMemberLeave  = "member_leave"
	TypeMemberUpdate = "member_update"
	TypeMemberBan    = "member_ban"
	TypeMemberUnban  = "member_unban"

	// Feeds, rooms, categories, threads
	TypeFeedCreate     = "feed_create"
	TypeFeedUpdate     = "feed_update"
	TypeFeedDelete     = "feed_delete"
	TypeRoomCreate     = "room_create"
	TypeRoomUpdate     = "room_update"
	TypeRoomDelete     = "room_delete"
	TypeCategoryCreate = "category_create"
	TypeCategoryUpdate = "category_update"
	TypeCategoryDelete = "category_delete"
	TypeThreadCreate   = "thread_create"
	TypeThreadUpdate   = "thread_update"
	TypeThreadDelete   = "thread_delete"

	// Roles
	TypeRoleCreate = "role_create"
	TypeRoleUpdate = "role_update"
	TypeRoleDelete = "role_delete"
	TypeRoleAssign = "role_assign"
	TypeRoleRevoke = "role_revoke"

	// Server
	TypeServerUpdate = "server_update"

	// Invites
	TypeInviteCreate = "invite_create"
	TypeInviteDelete = "invite_delete"

	// DMs
	TypeDMCreate          = "dm_create"
	TypeDMUpdate          = "dm_update"
	TypeDMRecipientAdd    = "dm_recipient_add"
	TypeDMRecipientRemove = "dm_recipient_remove"
	TypeDMReadNotify      = "dm_read_notify"

	// Presence and voice
	TypeTypingStart      = "typing_start"
	TypePresenceUpdate   = "presence_update"
	TypeVoiceStateUpdate = "voice_state_update"
	TypeVoiceCodecNeg    = "voice_codec_neg"
	TypeStageResponse    = "stage_response"

	// Social graph
	TypeFriendRequest = "friend_request"
	TypeFriendRemove  = "friend_remove"
	TypeBlockAdd      = "block_add"
	TypeBlockRemove   = "block_remove"

	// Notifications
	TypeNotificationCreate = "notification_create"

	// Permission overrides
	TypePermissionOverrideUpdate = "permission_override_update"
	TypePermissionOverrideDelete = "permission_override_delete"

	// Webhooks
	TypeWebhookCreate = "webhook_create"
	TypeWebhookUpdate = "webhook_update"
	TypeWebhookDelete = "webhook_delete"

	// Emoji and stickers
	TypeEmojiCreate   = "emoji_create"
	TypeEmojiDelete   = "emoji_delete"
	TypeStickerCreate = "sticker_create"
	TypeStickerDelete = "sticker_delete"

	// Bots
	TypeBotCommandsUpdate = "bot_commands_update"
	TypeBotCommandsDelete = "bot_commands_delete"

	// Users
	TypeUserUpdate = "user_update"

	// E2EE relay
	TypeMLSWelcome         = "mls_welcome"
	TypeMLSCommit          = "mls_commit"
	TypeMLSProposal        = "mls_proposal"
	TypeCPaceISI           = "cpace_isi"
	TypeCPaceRSI           = "cpace_rsi"
	TypeCPaceConfirm       = "cpace_confirm"
	TypeCPaceNewDeviceKey  = "cpace_new_device_key"
	TypeDeviceListUpdate   = "device_list_update"
	TypeDevicePairPrompt   = "device_pair_prompt"
	TypeKeyResetNotify     = "key_reset_notify"

	// Interactions
	TypeSlashCommand        = "slash_command"
	TypeInteractionResponse = "interaction_response"
)
