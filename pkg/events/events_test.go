package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalToMap(t *testing.T, ev Event) map[string]any {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func payload(t *testing.T, ev Event) map[string]any {
	t.Helper()
	m := marshalToMap(t, ev)
	d, ok := m["d"].(map[string]any)
	require.True(t, ok, "event %s should carry an object payload", ev.Type)
	return d
}

func TestHello(t *testing.T) {
	ev := Hello(45000)
	assert.Equal(t, TypeHello, ev.Type)
	d := payload(t, ev)
	assert.Equal(t, float64(45000), d["heartbeat_interval"])
}

func TestHeartbeatAckOmitsPayload(t *testing.T) {
	m := marshalToMap(t, HeartbeatAck())
	assert.Equal(t, TypeHeartbeatAck, m["type"])
	_, hasD := m["d"]
	assert.False(t, hasD, "heartbeat_ack carries no payload")
}

func TestReadyDefaults(t *testing.T) {
	ev := Ready(ReadyData{
		SessionID:   "a1b2c3d4e5f6a7b8c9d0e1f2",
		UserID:      1000,
		DisplayName: "Alice",
		ServerName:  "vox.example",
	})
	d := payload(t, ev)

	assert.Equal(t, "a1b2c3d4e5f6a7b8c9d0e1f2", d["session_id"])
	assert.Equal(t, float64(1000), d["user_id"])
	assert.Equal(t, float64(1), d["protocol_version"])
	assert.NotZero(t, d["server_time"])

	_, hasIcon := d["server_icon"]
	assert.False(t, hasIcon, "empty server_icon is omitted")

	caps, ok := d["capabilities"].([]any)
	require.True(t, ok)
	assert.Len(t, caps, 5)
	assert.Contains(t, caps, "federation")
}

func TestResumedCarriesSeq(t *testing.T) {
	d := payload(t, Resumed(3))
	assert.Equal(t, float64(3), d["seq"])
}

func TestMessageCreateShape(t *testing.T) {
	t.Run("FeedMessage", func(t *testing.T) {
		body := "hello"
		d := payload(t, MessageCreate(MessageCreateData{
			MsgID:     12345,
			FeedID:    42,
			AuthorID:  1000,
			Body:      &body,
			Timestamp: 1700000000000,
		}))
		assert.Equal(t, float64(42), d["feed_id"])
		assert.Equal(t, "hello", d["body"])
		_, hasDM := d["dm_id"]
		assert.False(t, hasDM)
		_, hasReply := d["reply_to"]
		assert.False(t, hasReply)
	})

	t.Run("NilBodyMarshalsToNull", func(t *testing.T) {
		raw, err := json.Marshal(MessageCreate(MessageCreateData{
			MsgID:     12345,
			DMID:      7,
			AuthorID:  1000,
			Timestamp: 1700000000000,
		}))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"body":null`)
	})

	t.Run("ReplyToIncludedWhenSet", func(t *testing.T) {
		body := "re"
		d := payload(t, MessageCreate(MessageCreateData{
			MsgID:     2,
			FeedID:    42,
			AuthorID:  1001,
			Body:      &body,
			Timestamp: 1700000000001,
			ReplyTo:   1,
		}))
		assert.Equal(t, float64(1), d["reply_to"])
	})
}

func TestTargetSelectsOneChannelKey(t *testing.T) {
	t.Run("Feed", func(t *testing.T) {
		d := payload(t, TypingStart(1000, FeedTarget(42)))
		assert.Equal(t, float64(42), d["feed_id"])
		_, hasDM := d["dm_id"]
		assert.False(t, hasDM)
	})
	t.Run("DM", func(t *testing.T) {
		d := payload(t, TypingStart(1000, DMTarget(7)))
		assert.Equal(t, float64(7), d["dm_id"])
		_, hasFeed := d["feed_id"]
		assert.False(t, hasFeed)
	})
}

func TestUpdateEventsMergeChangedFields(t *testing.T) {
	d := payload(t, FeedUpdate(42, map[string]any{"name": "general-2", "topic": "renamed"}))
	assert.Equal(t, float64(42), d["feed_id"])
	assert.Equal(t, "general-2", d["name"])
	assert.Equal(t, "renamed", d["topic"])
}

func TestPresenceUpdate(t *testing.T) {
	d := payload(t, PresenceUpdate(1000, "online", map[string]any{"custom_status": "hacking"}))
	assert.Equal(t, "online", d["status"])
	assert.Equal(t, "hacking", d["custom_status"])
}

func TestNotificationPreviewNullable(t *testing.T) {
	raw, err := json.Marshal(NotificationCreate(NotificationData{
		UserID:  1001,
		Type:    "mention",
		FeedID:  42,
		MsgID:   5,
		ActorID: 1000,
	}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"body_preview":null`)
}

func TestMLSRelayMapping(t *testing.T) {
	for subtype, want := range map[string]string{
		"welcome":  TypeMLSWelcome,
		"commit":   TypeMLSCommit,
		"proposal": TypeMLSProposal,
	} {
		ev, ok := MLSRelay(subtype, 1000, "b64data")
		require.True(t, ok, subtype)
		assert.Equal(t, want, ev.Type)
		d := payload(t, ev)
		assert.Equal(t, float64(1000), d["sender_id"])
		assert.Equal(t, "b64data", d["data"])
	}

	_, ok := MLSRelay("handshake", 1000, "x")
	assert.False(t, ok, "unknown subtype is rejected")
}

func TestCPaceRelayMapping(t *testing.T) {
	for subtype, want := range map[string]string{
		"isi":            TypeCPaceISI,
		"rsi":            TypeCPaceRSI,
		"confirm":        TypeCPaceConfirm,
		"new_device_key": TypeCPaceNewDeviceKey,
	} {
		ev, ok := CPaceRelay(subtype, "pair_abc", "b64data", "")
		require.True(t, ok, subtype)
		assert.Equal(t, want, ev.Type)
		d := payload(t, ev)
		assert.Equal(t, "pair_abc", d["pair_id"])
		_, hasNonce := d["nonce"]
		assert.False(t, hasNonce, "empty nonce is omitted")
	}

	ev, ok := CPaceRelay("isi", "pair_abc", "x", "n1")
	require.True(t, ok)
	assert.Equal(t, "n1", payload(t, ev)["nonce"])

	_, ok = CPaceRelay("hello", "pair_abc", "x", "")
	assert.False(t, ok)
}

func TestIsSyncable(t *testing.T) {
	assert.True(t, IsSyncable(TypeMemberJoin))
	assert.True(t, IsSyncable(TypeRoleAssign))
	assert.True(t, IsSyncable(TypeServerUpdate))

	// Ephemeral and message traffic stays out of the event log.
	assert.False(t, IsSyncable(TypeTypingStart))
	assert.False(t, IsSyncable(TypePresenceUpdate))
	assert.False(t, IsSyncable(TypeMessageCreate))
	assert.False(t, IsSyncable(TypeHello))
}

func TestTypesFor(t *testing.T) {
	t.Run("Union", func(t *testing.T) {
		types, ok := TypesFor([]string{"feeds", "rooms"})
		require.True(t, ok)
		assert.ElementsMatch(t, []string{
			TypeFeedCreate, TypeFeedUpdate, TypeFeedDelete,
			TypeRoomCreate, TypeRoomUpdate, TypeRoomDelete,
		}, types)
	})

	t.Run("OverlapDeduplicated", func(t *testing.T) {
		// member_ban appears under both members and bans.
		types, ok := TypesFor([]string{"members", "bans"})
		require.True(t, ok)
		count := 0
		for _, tt := range types {
			if tt == TypeMemberBan {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("ReadStatesContributesNothing", func(t *testing.T) {
		types, ok := TypesFor([]string{"read_states"})
		require.True(t, ok)
		assert.Empty(t, types)
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		_, ok := TypesFor([]string{"members", "bogus"})
		assert.False(t, ok)
	})
}

func TestEveryCategoryTypeHasConstant(t *testing.T) {
	// Guard against typos drifting between the category table and the
	// constant catalog.
	known := map[string]struct{}{}
	for _, tt := range []string{
		TypeMemberJoin, TypeMemberLeave, TypeMemberUpdate, TypeMemberBan, TypeMemberUnban,
		TypeRoleCreate, TypeRoleUpdate, TypeRoleDelete, TypeRoleAssign, TypeRoleRevoke,
		TypeFeedCreate, TypeFeedUpdate, TypeFeedDelete,
		TypeRoomCreate, TypeRoomUpdate, TypeRoomDelete,
		TypeCategoryCreate, TypeCategoryUpdate, TypeCategoryDelete,
		TypeEmojiCreate, TypeEmojiDelete, TypeStickerCreate, TypeStickerDelete,
		TypeInviteCreate, TypeInviteDelete,
		TypePermissionOverrideUpdate, TypePermissionOverrideDelete,
		TypeThreadCreate, TypeThreadUpdate, TypeThreadDelete,
		TypeWebhookCreate, TypeWebhookUpdate, TypeWebhookDelete,
		TypeBotCommandsUpdate, TypeBotCommandsDelete,
		TypeUserUpdate, TypeServerUpdate,
	} {
		known[tt] = struct{}{}
	}
	for cat, types := range Categories {
		for _, tt := range types {
			_, ok := known[tt]
			assert.True(t, ok, "category %s references unknown type %s", cat, tt)
		}
	}
}
