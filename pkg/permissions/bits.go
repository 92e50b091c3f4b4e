// Package permissions implements the 64-bit permission bitfield and the
// role/override resolution algorithm.
//
// Every member's effective permissions start from the @everyone role, are
// widened by the roles they hold, and are then narrowed or widened again by
// space-scoped overrides. A role carrying Administrator bypasses overrides
// entirely.
package permissions

// Bits is a 64-bit permission bitfield.
type Bits uint64

const (
	ViewSpace       Bits = 1 << 0
	SendMessages    Bits = 1 << 1
	SendEmbeds      Bits = 1 << 2
	AttachFiles     Bits = 1 << 3
	AddReactions    Bits = 1 << 4
	ReadHistory     Bits = 1 << 5
	MentionEveryone Bits = 1 << 6

	Connect         Bits = 1 << 8
	Speak           Bits = 1 << 9
	Video           Bits = 1 << 10
	MuteMembers     Bits = 1 << 11
	DeafenMembers   Bits = 1 << 12
	MoveMembers     Bits = 1 << 13
	PrioritySpeaker Bits = 1 << 14
	Stream          Bits = 1 << 15
	StageModerator  Bits = 1 << 16
	CreateThreads   Bits = 1 << 17
	ManageThreads   Bits = 1 << 18
	SendInThreads   Bits = 1 << 19

	ManageSpaces   Bits = 1 << 24
	ManageRoles    Bits = 1 << 25
	ManageEmoji    Bits = 1 << 26
	ManageWebhooks Bits = 1 << 27
	ManageServer   Bits = 1 << 28
	KickMembers    Bits = 1 << 29
	BanMembers     Bits = 1 << 30
	CreateInvites  Bits = 1 << 31
	ChangeNickname Bits = 1 << 32
	ManageNicknames Bits = 1 << 33
	ViewAuditLog   Bits = 1 << 34
	ManageMessages Bits = 1 << 35
	ViewReports    Bits = 1 << 36
	Manage2FA      Bits = 1 << 37
	ManageReports  Bits = 1 << 38

	Administrator Bits = 1 << 62
)

// All is every permission bit set.
const All Bits = 1<<63 - 1

// EveryoneDefaults is the bitfield assigned to the @everyone role when a
// server is first initialized.
const EveryoneDefaults = ViewSpace | SendMessages | ReadHistory | AddReactions |
	Connect | Speak | CreateInvites | ChangeNickname |
	CreateThreads | SendInThreads

// Has reports whether resolved contains every bit in required.
func Has(resolved, required Bits) bool {
	return resolved&required == required
}
