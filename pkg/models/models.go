// Package models defines the persistent data model shared by the store,
// API, and gateway layers.
//
// Entity IDs are int64. Messages, audit entries, and event log rows use
// snowflake IDs assigned by the caller; everything else autoincrements.
// Junction tables (role members, DM participants, subscribers) are
// modelled explicitly so queries can join against them directly.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&Session{},
		&Setting{},
		&Category{},
		&Feed{},
		&Room{},
		&VoiceState{},
		&StageSpeaker{},
		&Thread{},
		&Role{},
		&RoleMember{},
		&PermissionOverride{},
		&Ban{},
		&Invite{},
		&DM{},
		&DMParticipant{},
		&DMSettings{},
		&Message{},
		&Reaction{},
		&Pin{},
		&Attachment{},
		&MessageAttachment{},
		&FeedReadState{},
		&DMReadState{},
		&FeedSubscriber{},
		&ThreadSubscriber{},
		&Friend{},
		&Block{},
		&Device{},
		&Prekey{},
		&OneTimePrekey{},
		&KeyBackup{},
		&Webhook{},
		&Bot{},
		&BotCommand{},
		&Emoji{},
		&Sticker{},
		&FederationEntry{},
		&FederationNonce{},
		&FederationPresenceSub{},
		&Report{},
		&AuditLogEntry{},
		&TOTPSecret{},
		&WebAuthnCredential{},
		&WebAuthnChallenge{},
		&RecoveryCode{},
		&PushSubscription{},
	}
}
