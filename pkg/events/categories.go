package events

// Categories maps each sync category to the event types it covers. The
// delta-sync endpoint resolves requested categories through this table,
// and dispatch persists exactly the types appearing here.
var Categories = map[string][]string{
	"members": {TypeMemberJoin, TypeMemberLeave, TypeMemberUpdate, TypeMemberBan, TypeMemberUnban},
	"roles":   {TypeRoleCreate, TypeRoleUpdate, TypeRoleDelete, TypeRoleAssign, TypeRoleRevoke},
	"feeds":   {TypeFeedCreate, TypeFeedUpdate, TypeFeedDelete},
	"rooms":   {TypeRoomCreate, TypeRoomUpdate, TypeRoomDelete},
	"categories": {
		TypeCategoryCreate, TypeCategoryUpdate, TypeCategoryDelete,
	},
	"emoji":       {TypeEmojiCreate, TypeEmojiDelete, TypeStickerCreate, TypeStickerDelete},
	"bans":        {TypeMemberBan, TypeMemberUnban},
	"invites":     {TypeInviteCreate, TypeInviteDelete},
	"permissions": {TypePermissionOverrideUpdate, TypePermissionOverrideDelete},
	"threads":     {TypeThreadCreate, TypeThreadUpdate, TypeThreadDelete},
	"webhooks":    {TypeWebhookCreate, TypeWebhookUpdate, TypeWebhookDelete},
	"bots":        {TypeBotCommandsUpdate, TypeBotCommandsDelete},
	"users":       {TypeUserUpdate},
	"server":      {TypeServerUpdate},
}

// syncable is the union of all category members, computed once.
var syncable = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, types := range Categories {
		for _, t := range types {
			m[t] = struct{}{}
		}
	}
	return m
}()

// IsSyncable reports whether events of the given type are persisted to
// the event log for delta sync.
func IsSyncable(eventType string) bool {
	_, ok := syncable[eventType]
	return ok
}

// TypesFor resolves category names to the union of their event types.
// The second return is false if any category is unknown; "read_states"
// is accepted but contributes no event types, since read state is
// side-loaded from its own table rather than replayed from the log.
func TypesFor(categories []string) ([]string, bool) {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range categories {
		if c == "read_states" {
			continue
		}
		types, ok := Categories[c]
		if !ok {
			return nil, false
		}
		for _, t := range types {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out, true
}
