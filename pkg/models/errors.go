package models

import "errors"

// Common errors for store operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrUserInactive  = errors.New("user account is deactivated")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Channel errors
	ErrChannelNotFound   = errors.New("channel not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrThreadNotFound    = errors.New("thread not found")
	ErrDuplicateChannel  = errors.New("channel already exists")
	ErrVoiceStateMissing = errors.New("voice state not found")

	// Role errors
	ErrRoleNotFound  = errors.New("role not found")
	ErrDuplicateRole = errors.New("role already exists")

	// Message errors
	ErrMessageNotFound    = errors.New("message not found")
	ErrAttachmentNotFound = errors.New("attachment not found")

	// DM errors
	ErrDMNotFound      = errors.New("dm not found")
	ErrNotParticipant  = errors.New("user is not a dm participant")
	ErrDuplicateFriend = errors.New("friend relation already exists")

	// Invite / ban errors
	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteExpired  = errors.New("invite expired")
	ErrInviteExhausted = errors.New("invite has no uses left")
	ErrBanNotFound    = errors.New("ban not found")

	// Integration errors
	ErrWebhookNotFound = errors.New("webhook not found")
	ErrBotNotFound     = errors.New("bot not found")
	ErrCommandNotFound = errors.New("command not found")
	ErrEmojiNotFound   = errors.New("emoji not found")
	ErrStickerNotFound = errors.New("sticker not found")
	ErrDuplicateEmoji  = errors.New("emoji name already exists")

	// E2EE errors
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDuplicateDevice = errors.New("device already registered")
	ErrPrekeyNotFound  = errors.New("prekey bundle not found")
	ErrBackupNotFound  = errors.New("key backup not found")

	// Federation errors
	ErrNonceReplayed       = errors.New("nonce already seen")
	ErrFederationEntryGone = errors.New("federation list entry not found")

	// Moderation errors
	ErrReportNotFound = errors.New("report not found")

	// Setting errors
	ErrSettingNotFound = errors.New("setting not found")

	// Push errors
	ErrSubscriptionNotFound = errors.New("push subscription not found")
)
