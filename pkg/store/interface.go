// Package store provides persistence for server state: users, channels,
// messages, roles, moderation, integrations, E2EE key material, and
// federation bookkeeping. It supports SQLite (default) and PostgreSQL
// backends behind the same interface.
//
// The event log that backs gateway replay and incremental sync is a
// separate append-heavy store and lives in pkg/eventlog.
package store

import (
	"context"
	"time"

	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/permissions"
)

// Store is the interface for server state persistence.
type Store interface {
	// The permission resolver reads roles and overrides through the
	// store.
	permissions.Source

	// ========================================================================
	// User Operations
	// ========================================================================

	// CreateUser inserts a new user and enrols it in the @everyone role.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves a user by its ID.
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// GetUserByUsername retrieves a local user by username.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByAddress retrieves a federated user by username and home
	// domain.
	GetUserByAddress(ctx context.Context, username, domain string) (*models.User, error)

	// EnsureFederatedUser returns the shadow row for a remote user,
	// creating it on first contact.
	EnsureFederatedUser(ctx context.Context, username, domain, displayName string) (*models.User, error)

	// ListUsers retrieves all users.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// ListLocalUserIDs returns the IDs of all active local users.
	ListLocalUserIDs(ctx context.Context) ([]int64, error)

	// UpdateUser persists profile changes to an existing user.
	UpdateUser(ctx context.Context, user *models.User) error

	// SetUserActive marks a user active or deactivated.
	SetUserActive(ctx context.Context, id int64, active bool) error

	// UpdatePassword replaces a user's password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// UpdateLastLogin records a successful login time.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// ValidateCredentials checks a username and password pair.
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)

	// ========================================================================
	// Session Operations
	// ========================================================================

	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, userID int64) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// ========================================================================
	// Bootstrap
	// ========================================================================

	// EnsureDefaultRoles creates the @everyone and Admin roles when
	// missing. Safe to call on every startup.
	EnsureDefaultRoles(ctx context.Context) error

	// EnsureAdminUser creates the admin user on first startup. Returns
	// the generated initial password when the user was created.
	EnsureAdminUser(ctx context.Context) (string, error)

	// ========================================================================
	// Settings Operations
	// ========================================================================

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	ListSettings(ctx context.Context) (map[string]string, error)

	// ========================================================================
	// Category Operations
	// ========================================================================

	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	// ========================================================================
	// Feed Operations
	// ========================================================================

	CreateFeed(ctx context.Context, feed *models.Feed) error
	GetFeed(ctx context.Context, id int64) (*models.Feed, error)
	ListFeeds(ctx context.Context) ([]*models.Feed, error)
	UpdateFeed(ctx context.Context, feed *models.Feed) error
	DeleteFeed(ctx context.Context, id int64) error

	// ========================================================================
	// Room Operations
	// ========================================================================

	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	ListRooms(ctx context.Context) ([]*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, id int64) error

	// ========================================================================
	// Voice State Operations
	// ========================================================================

	// UpsertVoiceState records a user's room membership, replacing any
	// previous row. A user can only ever be in one room.
	UpsertVoiceState(ctx context.Context, state *models.VoiceState) error
	GetVoiceState(ctx context.Context, userID int64) (*models.VoiceState, error)

	// RemoveVoiceState deletes a user's voice state. Removing a missing
	// state is not an error.
	RemoveVoiceState(ctx context.Context, userID int64) error
	SetServerVoiceFlags(ctx context.Context, userID int64, mute, deaf bool) error
	ListRoomVoiceStates(ctx context.Context, roomID int64) ([]*models.VoiceState, error)
	ListRoomMemberIDs(ctx context.Context, roomID int64) ([]int64, error)

	AddStageSpeaker(ctx context.Context, roomID, userID int64) error
	RemoveStageSpeaker(ctx context.Context, roomID, userID int64) error
	ListStageSpeakerIDs(ctx context.Context, roomID int64) ([]int64, error)

	// ========================================================================
	// Thread Operations
	// ========================================================================

	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, id int64) (*models.Thread, error)
	ListFeedThreads(ctx context.Context, feedID int64, includeArchived bool) ([]*models.Thread, error)
	UpdateThread(ctx context.Context, thread *models.Thread) error
	DeleteThread(ctx context.Context, id int64) error

	// ========================================================================
	// Role Operations
	// ========================================================================

	CreateRole(ctx context.Context, role *models.Role) error
	GetRole(ctx context.Context, id int64) (*models.Role, error)
	GetEveryoneRole(ctx context.Context) (*models.Role, error)
	ListRoles(ctx context.Context) ([]*models.Role, error)
	UpdateRole(ctx context.Context, role *models.Role) error
	DeleteRole(ctx context.Context, id int64) error

	// AssignRole adds a user to a role. Idempotent.
	AssignRole(ctx context.Context, roleID, userID int64) error
	RevokeRole(ctx context.Context, roleID, userID int64) error
	ListUserRoles(ctx context.Context, userID int64) ([]*models.Role, error)
	ListRoleMemberIDs(ctx context.Context, roleID int64) ([]int64, error)

	SetPermissionOverride(ctx context.Context, override *models.PermissionOverride) error
	DeletePermissionOverride(ctx context.Context, spaceType string, spaceID int64, targetType string, targetID int64) error
	ListSpaceOverrideRows(ctx context.Context, spaceType string, spaceID int64) ([]*models.PermissionOverride, error)

	// ========================================================================
	// Message Operations
	// ========================================================================

	// CreateMessage inserts a message. The caller assigns the snowflake
	// ID and timestamp before insert.
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	ListMessages(ctx context.Context, q MessageQuery) ([]*models.Message, error)
	UpdateMessageBody(ctx context.Context, id int64, body *string, editTimestamp int64) error
	DeleteMessage(ctx context.Context, id int64) error
	BulkDeleteMessages(ctx context.Context, feedID int64, ids []int64) ([]int64, error)
	SearchMessages(ctx context.Context, text string, feedID, authorID *int64, limit int) ([]*models.Message, error)

	AddReaction(ctx context.Context, msgID, userID int64, emoji string) error
	RemoveReaction(ctx context.Context, msgID, userID int64, emoji string) error
	ListMessageReactions(ctx context.Context, msgID int64) ([]*models.Reaction, error)

	PinMessage(ctx context.Context, feedID, msgID int64) error
	UnpinMessage(ctx context.Context, feedID, msgID int64) error
	ListFeedPins(ctx context.Context, feedID int64) ([]*models.Message, error)

	UpsertFeedReadState(ctx context.Context, userID, feedID, lastReadMsgID int64) error
	UpsertDMReadState(ctx context.Context, userID, dmID, lastReadMsgID int64) error
	ListFeedReadStates(ctx context.Context, userID int64) ([]*models.FeedReadState, error)
	ListDMReadStates(ctx context.Context, userID int64) ([]*models.DMReadState, error)

	SubscribeFeed(ctx context.Context, feedID, userID int64) error
	UnsubscribeFeed(ctx context.Context, feedID, userID int64) error
	ListFeedSubscriberIDs(ctx context.Context, feedID int64) ([]int64, error)
	SubscribeThread(ctx context.Context, threadID, userID int64) error
	UnsubscribeThread(ctx context.Context, threadID, userID int64) error
	ListThreadSubscriberIDs(ctx context.Context, threadID int64) ([]int64, error)

	CreateAttachment(ctx context.Context, file *models.Attachment) error
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)
	LinkAttachments(ctx context.Context, msgID int64, fileIDs []string) error
	ListMessageAttachments(ctx context.Context, msgID int64) ([]*models.Attachment, error)

	// ========================================================================
	// DM Operations
	// ========================================================================

	CreateDM(ctx context.Context, dm *models.DM, participantIDs []int64) error
	GetDM(ctx context.Context, id int64) (*models.DM, error)
	FindDirectDM(ctx context.Context, userA, userB int64) (*models.DM, error)
	ListUserDMs(ctx context.Context, userID int64) ([]*models.DM, error)
	UpdateDM(ctx context.Context, dm *models.DM) error
	ListDMParticipantIDs(ctx context.Context, dmID int64) ([]int64, error)
	IsDMParticipant(ctx context.Context, dmID, userID int64) (bool, error)
	AddDMParticipant(ctx context.Context, dmID, userID int64) error
	RemoveDMParticipant(ctx context.Context, dmID, userID int64) error
	GetDMSettings(ctx context.Context, userID int64) (*models.DMSettings, error)
	SetDMSettings(ctx context.Context, settings *models.DMSettings) error

	// ========================================================================
	// Social Operations
	// ========================================================================

	CreateFriendRequest(ctx context.Context, userID, friendID int64) error
	AcceptFriendRequest(ctx context.Context, userID, requesterID int64) error
	RemoveFriend(ctx context.Context, userID, friendID int64) error
	ListFriends(ctx context.Context, userID int64) ([]*models.Friend, error)
	ListPendingFriendRequests(ctx context.Context, userID int64) ([]*models.Friend, error)
	AreFriends(ctx context.Context, userA, userB int64) (bool, error)

	AddBlock(ctx context.Context, userID, blockedID int64) error
	RemoveBlock(ctx context.Context, userID, blockedID int64) error
	ListBlockedIDs(ctx context.Context, userID int64) ([]int64, error)
	IsBlocked(ctx context.Context, userA, userB int64) (bool, error)

	// ========================================================================
	// Moderation Operations
	// ========================================================================

	CreateBan(ctx context.Context, ban *models.Ban) error
	GetBan(ctx context.Context, userID int64) (*models.Ban, error)
	RemoveBan(ctx context.Context, userID int64) error
	ListBans(ctx context.Context) ([]*models.Ban, error)

	CreateInvite(ctx context.Context, invite *models.Invite) error
	GetInvite(ctx context.Context, code string) (*models.Invite, error)
	ListInvites(ctx context.Context) ([]*models.Invite, error)
	DeleteInvite(ctx context.Context, code string) error

	// UseInvite redeems an invite, checking expiry and the use cap
	// atomically.
	UseInvite(ctx context.Context, code string) (*models.Invite, error)

	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	ListReports(ctx context.Context, status string) ([]*models.Report, error)
	ResolveReport(ctx context.Context, id int64, status, action string) error

	AppendAuditLog(ctx context.Context, entry *models.AuditLogEntry) error
	ListAuditLog(ctx context.Context, before int64, limit int, eventType string, actorID int64) ([]*models.AuditLogEntry, error)

	// ========================================================================
	// Integration Operations
	// ========================================================================

	CreateWebhook(ctx context.Context, webhook *models.Webhook) error
	GetWebhook(ctx context.Context, id int64) (*models.Webhook, error)
	GetWebhookByTokenHash(ctx context.Context, tokenHash string) (*models.Webhook, error)
	ListFeedWebhooks(ctx context.Context, feedID int64) ([]*models.Webhook, error)
	UpdateWebhook(ctx context.Context, webhook *models.Webhook) error
	DeleteWebhook(ctx context.Context, id int64) error

	CreateBot(ctx context.Context, bot *models.Bot) error
	GetBot(ctx context.Context, id int64) (*models.Bot, error)
	GetBotByUserID(ctx context.Context, userID int64) (*models.Bot, error)
	ListBots(ctx context.Context) ([]*models.Bot, error)
	UpdateBotInteractionURL(ctx context.Context, id int64, url string) error
	DeleteBot(ctx context.Context, id int64) error
	ReplaceBotCommands(ctx context.Context, botID int64, commands []*models.BotCommand) error
	ListBotCommands(ctx context.Context, botID int64) ([]*models.BotCommand, error)
	FindCommand(ctx context.Context, name string) (*models.BotCommand, error)

	CreateEmoji(ctx context.Context, emoji *models.Emoji) error
	ListEmoji(ctx context.Context) ([]*models.Emoji, error)
	DeleteEmoji(ctx context.Context, id int64) error
	CreateSticker(ctx context.Context, sticker *models.Sticker) error
	ListStickers(ctx context.Context) ([]*models.Sticker, error)
	DeleteSticker(ctx context.Context, id int64) error

	// ========================================================================
	// E2EE Operations
	// ========================================================================

	RegisterDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListUserDevices(ctx context.Context, userID int64) ([]*models.Device, error)
	CountUserDevices(ctx context.Context, userID int64) (int64, error)
	DeleteDevice(ctx context.Context, id string) error

	SetPrekeys(ctx context.Context, prekey *models.Prekey) error
	GetPrekeys(ctx context.Context, deviceID string) (*models.Prekey, error)
	AddOneTimePrekeys(ctx context.Context, deviceID string, keys []string) error

	// ClaimOneTimePrekey atomically removes and returns one single-use
	// key for a device.
	ClaimOneTimePrekey(ctx context.Context, deviceID string) (string, error)
	CountOneTimePrekeys(ctx context.Context, deviceID string) (int64, error)

	SetKeyBackup(ctx context.Context, userID int64, blob string) error
	GetKeyBackup(ctx context.Context, userID int64) (string, error)
	DeleteKeyBackup(ctx context.Context, userID int64) error

	// ========================================================================
	// MFA Operations
	// ========================================================================

	SetTOTPSecret(ctx context.Context, userID int64, secret string) error
	GetTOTPSecret(ctx context.Context, userID int64) (*models.TOTPSecret, error)
	EnableTOTP(ctx context.Context, userID int64) error
	DeleteTOTPSecret(ctx context.Context, userID int64) error

	CreateWebAuthnCredential(ctx context.Context, cred *models.WebAuthnCredential) error
	GetWebAuthnCredential(ctx context.Context, credentialID string) (*models.WebAuthnCredential, error)
	ListWebAuthnCredentials(ctx context.Context, userID int64) ([]*models.WebAuthnCredential, error)
	UpdateWebAuthnSignCount(ctx context.Context, credentialID string, signCount int) error
	DeleteWebAuthnCredential(ctx context.Context, credentialID string) error
	CreateWebAuthnChallenge(ctx context.Context, challenge *models.WebAuthnChallenge) error
	ConsumeWebAuthnChallenge(ctx context.Context, id string) (*models.WebAuthnChallenge, error)
	DeleteExpiredChallenges(ctx context.Context) (int64, error)

	ReplaceRecoveryCodes(ctx context.Context, userID int64, codeHashes []string) error
	ConsumeRecoveryCode(ctx context.Context, userID int64, codeHash string) error
	CountUnusedRecoveryCodes(ctx context.Context, userID int64) (int64, error)
	MFAStatus(ctx context.Context, userID int64) (totp bool, webauthn bool, err error)

	// ========================================================================
	// Federation Operations
	// ========================================================================

	AddFederationEntry(ctx context.Context, entry *models.FederationEntry) error
	RemoveFederationEntry(ctx context.Context, entry string) error
	ListFederationEntries(ctx context.Context) ([]*models.FederationEntry, error)
	IsFederationBlocked(ctx context.Context, target string) (bool, error)
	IsFederationAllowed(ctx context.Context, domain string) (bool, error)

	// ClaimNonce records a request nonce. ErrNonceReplayed means another
	// request already used it.
	ClaimNonce(ctx context.Context, nonce string, ttl time.Duration) error
	DeleteExpiredNonces(ctx context.Context) (int64, error)

	UpsertPresenceSub(ctx context.Context, domain, userAddress string) error
	RemovePresenceSub(ctx context.Context, domain, userAddress string) error
	ListPresenceSubDomains(ctx context.Context, userAddress string) ([]string, error)
	RemoveDomainPresenceSubs(ctx context.Context, domain string) error

	// ========================================================================
	// Push Operations
	// ========================================================================

	UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error
	ListUserPushSubscriptions(ctx context.Context, userID int64) ([]*models.PushSubscription, error)

	// ========================================================================
	// Lifecycle Operations
	// ========================================================================

	// Healthcheck verifies the backend is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Compile-time interface check.
var _ Store = (*GORMStore)(nil)
