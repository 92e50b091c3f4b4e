package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/models"
)

type fakeAuth struct {
	users map[string]*models.User
}

func (f *fakeAuth) AuthenticateGateway(_ context.Context, token string) (*models.User, error) {
	u, ok := f.users[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return u, nil
}

// hubDispatcher routes handler-raised events straight back through the
// hub, standing in for pkg/dispatch.
type hubDispatcher struct{ hub *Hub }

func (d *hubDispatcher) Dispatch(_ context.Context, evt events.Event) error {
	d.hub.Broadcast(evt, nil)
	return nil
}

func (d *hubDispatcher) DispatchTo(_ context.Context, evt events.Event, userIDs []int64) error {
	d.hub.Broadcast(evt, userIDs)
	return nil
}

type fakeVoice struct{}

func (fakeVoice) GetVoiceState(context.Context, int64) (*models.VoiceState, error) {
	return nil, models.ErrVoiceStateMissing
}
func (fakeVoice) UpsertVoiceState(context.Context, *models.VoiceState) error { return nil }
func (fakeVoice) RemoveVoiceState(context.Context, int64) error              { return nil }
func (fakeVoice) ListRoomMemberIDs(context.Context, int64) ([]int64, error)  { return nil, nil }

type gatewayFixture struct {
	hub    *Hub
	server *httptest.Server
}

func newFixture(t *testing.T, users map[string]*models.User) *gatewayFixture {
	t.Helper()
	hub := NewHub(Config{}, nil)
	deps := Deps{
		Hub:        hub,
		Auth:       &fakeAuth{users: users},
		Dispatcher: &hubDispatcher{hub: hub},
		Voice:      fakeVoice{},
	}
	server := httptest.NewServer(Handler(deps, Config{}))
	t.Cleanup(server.Close)
	return &gatewayFixture{hub: hub, server: server}
}

func (f *gatewayFixture) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	return ws
}

type testFrame struct {
	Type string          `json:"type"`
	D    json.RawMessage `json:"d"`
	Seq  int64           `json:"seq"`
}

func readServerFrame(t *testing.T, ctx context.Context, ws *websocket.Conn) testFrame {
	t.Helper()
	typ, data, err := ws.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	var f testFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func send(t *testing.T, ctx context.Context, ws *websocket.Conn, msgType string, d any) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"type": msgType, "d": d})
	require.NoError(t, err)
	require.NoError(t, ws.Write(ctx, websocket.MessageText, payload))
}

// identify drives a full handshake and returns the ready payload.
func identify(t *testing.T, ctx context.Context, ws *websocket.Conn, token string) events.ReadyData {
	t.Helper()
	hello := readServerFrame(t, ctx, ws)
	require.Equal(t, "hello", hello.Type)
	var helloD struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	require.NoError(t, json.Unmarshal(hello.D, &helloD))
	require.Equal(t, 45000, helloD.HeartbeatInterval)

	send(t, ctx, ws, "identify", map[string]any{"token": token})

	ready := readServerFrame(t, ctx, ws)
	require.Equal(t, "ready", ready.Type)
	require.Equal(t, int64(1), ready.Seq, "ready must carry seq=1")
	var d events.ReadyData
	require.NoError(t, json.Unmarshal(ready.D, &d))
	return d
}

func expectClose(t *testing.T, ctx context.Context, ws *websocket.Conn, want websocket.StatusCode) {
	t.Helper()
	for {
		_, _, err := ws.Read(ctx)
		if err == nil {
			continue // drain frames sent before the close
		}
		assert.Equal(t, want, websocket.CloseStatus(err))
		return
	}
}

func TestConnectionIdentify(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := &models.User{ID: 1, Username: "alice", Active: true}
	f := newFixture(t, map[string]*models.User{"vox_sess_alice": alice})

	ws := f.dial(t, ctx)
	defer ws.Close(websocket.StatusNormalClosure, "")

	ready := identify(t, ctx, ws, "vox_sess_alice")
	assert.Equal(t, int64(1), ready.UserID)
	assert.Len(t, ready.SessionID, 24)
	assert.Equal(t, 1, ready.ProtocolVersion)

	require.Eventually(t, func() bool { return f.hub.IsConnected(1) },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusOnline, f.hub.Presence(1).Status)
}

func TestConnectionIdentifyFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := &models.User{ID: 1, Username: "alice", Active: true}
	f := newFixture(t, map[string]*models.User{"vox_sess_alice": alice})

	t.Run("bad token closes 4004", func(t *testing.T) {
		ws := f.dial(t, ctx)
		readServerFrame(t, ctx, ws) // hello
		send(t, ctx, ws, "identify", map[string]any{"token": "vox_sess_wrong"})
		expectClose(t, ctx, ws, CloseAuthFailed)
	})

	t.Run("unsupported protocol version closes 4011", func(t *testing.T) {
		for _, version := range []int{0, 2} {
			ws := f.dial(t, ctx)
			readServerFrame(t, ctx, ws)
			send(t, ctx, ws, "identify", map[string]any{"token": "vox_sess_alice", "protocol_version": version})
			expectClose(t, ctx, ws, CloseVersionMismatch)
		}
	})

	t.Run("duplicate identify closes 4005", func(t *testing.T) {
		ws := f.dial(t, ctx)
		identify(t, ctx, ws, "vox_sess_alice")
		send(t, ctx, ws, "identify", map[string]any{"token": "vox_sess_alice"})
		expectClose(t, ctx, ws, CloseAlreadyAuthenticated)
	})
}

func TestConnectionHeartbeat(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := &models.User{ID: 1, Username: "alice", Active: true}
	f := newFixture(t, map[string]*models.User{"vox_sess_alice": alice})

	ws := f.dial(t, ctx)
	defer ws.Close(websocket.StatusNormalClosure, "")
	identify(t, ctx, ws, "vox_sess_alice")

	send(t, ctx, ws, "heartbeat", nil)
	ack := readServerFrame(t, ctx, ws)
	assert.Equal(t, "heartbeat_ack", ack.Type)
	assert.Zero(t, ack.Seq, "heartbeat_ack is unsequenced")
}

func TestConnectionResume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	bob := &models.User{ID: 2, Username: "bob", Active: true}
	f := newFixture(t, map[string]*models.User{"vox_sess_bob": bob})

	ws1 := f.dial(t, ctx)
	ready := identify(t, ctx, ws1, "vox_sess_bob")

	// Two broadcast events land as seq 2 and 3.
	f.hub.Broadcast(events.FeedCreate(events.FeedCreateData{FeedID: 10, Name: "general"}), nil)
	f.hub.Broadcast(events.FeedCreate(events.FeedCreateData{FeedID: 11, Name: "random"}), nil)
	first := readServerFrame(t, ctx, ws1)
	require.Equal(t, int64(2), first.Seq)
	ws1.Close(websocket.StatusGoingAway, "client vanished")

	// Resume claiming only seq 1 was seen: both frames replay in order.
	ws2 := f.dial(t, ctx)
	defer ws2.Close(websocket.StatusNormalClosure, "")
	hello := readServerFrame(t, ctx, ws2)
	require.Equal(t, "hello", hello.Type)
	send(t, ctx, ws2, "resume", map[string]any{
		"token": "vox_sess_bob", "session_id": ready.SessionID, "last_seq": 1,
	})

	r1 := readServerFrame(t, ctx, ws2)
	assert.Equal(t, "feed_create", r1.Type)
	assert.Equal(t, int64(2), r1.Seq)
	r2 := readServerFrame(t, ctx, ws2)
	assert.Equal(t, "feed_create", r2.Type)
	assert.Equal(t, int64(3), r2.Seq)

	resumed := readServerFrame(t, ctx, ws2)
	assert.Equal(t, "resumed", resumed.Type)
	assert.Zero(t, resumed.Seq)
	var resumedD struct {
		Seq int64 `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(resumed.D, &resumedD))
	assert.Equal(t, int64(3), resumedD.Seq)
}

func TestConnectionResumeFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bob := &models.User{ID: 2, Username: "bob", Active: true}
	carol := &models.User{ID: 3, Username: "carol", Active: true}
	f := newFixture(t, map[string]*models.User{
		"vox_sess_bob":   bob,
		"vox_sess_carol": carol,
	})

	t.Run("unknown session closes 4009", func(t *testing.T) {
		ws := f.dial(t, ctx)
		readServerFrame(t, ctx, ws)
		send(t, ctx, ws, "resume", map[string]any{
			"token": "vox_sess_bob", "session_id": "deadbeefdeadbeefdeadbeef", "last_seq": 0,
		})
		expectClose(t, ctx, ws, CloseSessionExpired)
	})

	t.Run("user mismatch closes 4004", func(t *testing.T) {
		ws := f.dial(t, ctx)
		ready := identify(t, ctx, ws, "vox_sess_bob")
		ws.Close(websocket.StatusGoingAway, "")

		ws2 := f.dial(t, ctx)
		readServerFrame(t, ctx, ws2)
		send(t, ctx, ws2, "resume", map[string]any{
			"token": "vox_sess_carol", "session_id": ready.SessionID, "last_seq": 1,
		})
		expectClose(t, ctx, ws2, CloseAuthFailed)
	})

	t.Run("exhausted replay closes 4010", func(t *testing.T) {
		ws := f.dial(t, ctx)
		ready := identify(t, ctx, ws, "vox_sess_bob")
		ws.Close(websocket.StatusGoingAway, "")

		session := f.hub.GetSession(ready.SessionID)
		require.NotNil(t, session)
		// Push the buffer far past its depth so seq 1 is long gone.
		fill(session, 2000)

		ws2 := f.dial(t, ctx)
		readServerFrame(t, ctx, ws2)
		send(t, ctx, ws2, "resume", map[string]any{
			"token": "vox_sess_bob", "session_id": ready.SessionID, "last_seq": 1,
		})
		expectClose(t, ctx, ws2, CloseReplayExhausted)
	})
}

func TestConnectionPresenceUpdate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := &models.User{ID: 1, Username: "alice", Active: true}
	bob := &models.User{ID: 2, Username: "bob", Active: true}
	f := newFixture(t, map[string]*models.User{
		"vox_sess_alice": alice,
		"vox_sess_bob":   bob,
	})

	wsA := f.dial(t, ctx)
	defer wsA.Close(websocket.StatusNormalClosure, "")
	identify(t, ctx, wsA, "vox_sess_alice")

	wsB := f.dial(t, ctx)
	defer wsB.Close(websocket.StatusNormalClosure, "")
	identify(t, ctx, wsB, "vox_sess_bob")

	// Alice hears bob come online.
	online := readServerFrame(t, ctx, wsA)
	require.Equal(t, "presence_update", online.Type)

	// Bob goes invisible; alice must see offline.
	send(t, ctx, wsB, "presence_update", map[string]any{"status": "invisible"})
	update := readServerFrame(t, ctx, wsA)
	require.Equal(t, "presence_update", update.Type)
	var d struct {
		UserID int64  `json:"user_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(update.D, &d))
	assert.Equal(t, int64(2), d.UserID)
	assert.Equal(t, StatusOffline, d.Status)

	// The hub itself stores the truth.
	require.Eventually(t, func() bool {
		return f.hub.Presence(2).Status == StatusInvisible
	}, time.Second, 10*time.Millisecond)
}

func TestConnectionZstdCompression(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := &models.User{ID: 1, Username: "alice", Active: true}
	f := newFixture(t, map[string]*models.User{"vox_sess_alice": alice})

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?compress=zstd"
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "")

	typ, data, err := ws.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageBinary, typ, "negotiated frames are binary")

	decoded, err := decompressFrame(data)
	require.NoError(t, err)
	var f2 testFrame
	require.NoError(t, json.Unmarshal(decoded, &f2))
	assert.Equal(t, "hello", f2.Type)
}

func TestConnectionResumeReplayOrdering(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	bob := &models.User{ID: 2, Username: "bob", Active: true}
	f := newFixture(t, map[string]*models.User{"vox_sess_bob": bob})

	ws1 := f.dial(t, ctx)
	ready := identify(t, ctx, ws1, "vox_sess_bob")
	f.hub.Broadcast(events.FeedCreate(events.FeedCreateData{FeedID: 10, Name: "general"}), nil)
	f.hub.Broadcast(events.FeedCreate(events.FeedCreateData{FeedID: 11, Name: "random"}), nil)
	readServerFrame(t, ctx, ws1)
	ws1.Close(websocket.StatusGoingAway, "client vanished")

	ws2 := f.dial(t, ctx)
	defer ws2.Close(websocket.StatusNormalClosure, "")
	readServerFrame(t, ctx, ws2) // hello

	// Hammer broadcasts while the resume is in flight. Frames raised
	// before registration are simply dropped; any that do land must
	// land behind both replayed frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			f.hub.Broadcast(events.FeedCreate(events.FeedCreateData{FeedID: int64(100 + i), Name: "noise"}), nil)
		}
	}()
	send(t, ctx, ws2, "resume", map[string]any{
		"token": "vox_sess_bob", "session_id": ready.SessionID, "last_seq": 1,
	})
	<-done

	// Presence flips online only after registration, so the sentinel
	// below is guaranteed to be delivered.
	require.Eventually(t, func() bool {
		return f.hub.Presence(2).Status == StatusOnline
	}, 2*time.Second, 10*time.Millisecond)
	f.hub.Broadcast(events.FeedCreate(events.FeedCreateData{FeedID: 999, Name: "sentinel"}), nil)

	var seqs []int64
	for {
		fr := readServerFrame(t, ctx, ws2)
		if fr.Seq != 0 {
			seqs = append(seqs, fr.Seq)
		}
		if fr.Type != "feed_create" {
			continue
		}
		var d events.FeedCreateData
		require.NoError(t, json.Unmarshal(fr.D, &d))
		if d.FeedID == 999 {
			break
		}
	}

	require.GreaterOrEqual(t, len(seqs), 3)
	assert.Equal(t, int64(2), seqs[0], "first replayed frame")
	assert.Equal(t, int64(3), seqs[1], "second replayed frame")
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1], "sequenced frames must arrive in order")
	}
}
