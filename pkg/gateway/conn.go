package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/models"
)

// ErrConnClosed is returned by SendEvent on a connection whose write
// path has shut down.
var ErrConnClosed = errors.New("gateway: connection closed")

// writeTimeout bounds a single WebSocket write; a peer that cannot
// drain a frame in this window is dead.
const writeTimeout = 10 * time.Second

// outboundQueueDepth is the per-connection send queue. A client that
// falls this far behind is disconnected rather than slowing dispatch.
const outboundQueueDepth = 256

// Authenticator resolves a gateway identify token to a user.
type Authenticator interface {
	AuthenticateGateway(ctx context.Context, token string) (*models.User, error)
}

// Dispatcher routes events raised by connection handlers (typing,
// voice) back through the normal dispatch pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt events.Event) error
	DispatchTo(ctx context.Context, evt events.Event, userIDs []int64) error
}

// VoiceStore is the slice of the store the connection touches for
// voice state cleanup and room fan-out.
type VoiceStore interface {
	GetVoiceState(ctx context.Context, userID int64) (*models.VoiceState, error)
	UpsertVoiceState(ctx context.Context, state *models.VoiceState) error
	RemoveVoiceState(ctx context.Context, userID int64) error
	ListRoomMemberIDs(ctx context.Context, roomID int64) ([]int64, error)
}

// PresenceSink receives local presence transitions for delivery beyond
// connected clients, e.g. to remote servers holding a presence
// subscription. Optional.
type PresenceSink interface {
	PresenceChanged(ctx context.Context, username, status string)
}

// Deps are the collaborators a connection needs. Dispatcher is an
// interface here because pkg/dispatch sits above the gateway.
type Deps struct {
	Hub        *Hub
	Auth       Authenticator
	Dispatcher Dispatcher
	Voice      VoiceStore
	Presence   PresenceSink
}

// serverFrame is the wire shape of every server->client frame.
type serverFrame struct {
	Type string `json:"type"`
	D    any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// clientFrame is the wire shape of every client->server frame.
type clientFrame struct {
	Type string          `json:"type"`
	D    json.RawMessage `json:"d"`
}

type typingKey struct {
	kind string
	id   int64
}

// Connection runs one WebSocket lifecycle: hello, identify or resume,
// heartbeat monitoring, the message loop, and cleanup. All outbound
// frames pass through a single queue drained by one writer goroutine,
// which is what gives each connection its FIFO guarantee.
type Connection struct {
	deps Deps
	cfg  Config

	ws       *websocket.Conn
	ip       string
	compress bool
	accepted time.Time

	mu         sync.Mutex
	identified bool
	user       *models.User
	userID     int64
	sessionID  string
	session    *SessionState
	lastTyping map[typingKey]time.Time

	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	closeCode websocket.StatusCode

	heartbeat chan struct{}
}

// NewConnection wraps an accepted WebSocket. ip is the client address
// without port; compress is true when ?compress=zstd was negotiated.
func NewConnection(deps Deps, cfg Config, ws *websocket.Conn, ip string, compress bool) *Connection {
	cfg.ApplyDefaults()
	return &Connection{
		deps:       deps,
		cfg:        cfg,
		ws:         ws,
		ip:         ip,
		compress:   compress,
		accepted:   time.Now(),
		lastTyping: make(map[typingKey]time.Time),
		out:        make(chan []byte, outboundQueueDepth),
		closed:     make(chan struct{}),
		heartbeat:  make(chan struct{}, 1),
	}
}

// UserID returns the authenticated user, or 0 before identify.
func (c *Connection) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// SessionID returns the gateway session id, or "" before identify.
func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Close terminates the connection with the given code. Safe to call
// from any goroutine; only the first call wins.
func (c *Connection) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		close(c.closed)
		_ = c.ws.Close(code, reason)
	})
}

func (c *Connection) closeWith(code websocket.StatusCode) {
	c.Close(code, closeReasons[code])
}

// Run drives the connection until it closes. The caller's context is
// the HTTP request context; cancellation tears the socket down.
func (c *Connection) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)
	defer c.cleanup()

	c.sendControl(events.Hello(int(c.cfg.HeartbeatInterval.Milliseconds())))

	if !c.awaitAuth(ctx) {
		return
	}

	go c.heartbeatMonitor(ctx)
	c.readLoop(ctx)
}

// awaitAuth waits for exactly one identify or resume frame.
func (c *Connection) awaitAuth(ctx context.Context) bool {
	authCtx, cancel := context.WithTimeout(ctx, c.cfg.IdentifyTimeout)
	defer cancel()

	frame, err := c.readFrame(authCtx)
	if err != nil {
		c.closeWith(CloseNotAuthenticated)
		return false
	}

	switch frame.Type {
	case "identify":
		return c.handleIdentify(ctx, frame.D)
	case "resume":
		return c.handleResume(ctx, frame.D)
	default:
		c.closeWith(CloseNotAuthenticated)
		return false
	}
}

// readFrame reads and decodes one client frame. Client frames are
// always JSON text, never compressed.
func (c *Connection) readFrame(ctx context.Context) (*clientFrame, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("unexpected binary frame")
	}
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.closeWith(CloseDecodeError)
		return nil, err
	}
	return &frame, nil
}

// readLoop processes frames after authentication.
func (c *Connection) readLoop(ctx context.Context) {
	for {
		frame, err := c.readFrame(ctx)
		if err != nil {
			c.closeWith(CloseUnknownError)
			return
		}

		switch frame.Type {
		case "heartbeat":
			c.handleHeartbeat()
		case "typing":
			c.handleTyping(ctx, frame.D)
		case "presence_update":
			c.handlePresenceUpdate(ctx, frame.D)
		case "voice_state_update":
			c.handleVoiceState(ctx, frame.D)
		case "mls_relay":
			c.handleMLSRelay(ctx, frame.D)
		case "cpace_relay":
			c.handleCPaceRelay(ctx, frame.D)
		case "voice_codec_neg":
			c.handleRoomFanout(ctx, events.TypeVoiceCodecNeg, frame.D)
		case "stage_response":
			c.handleRoomFanout(ctx, events.TypeStageResponse, frame.D)
		case "identify", "resume":
			c.closeWith(CloseAlreadyAuthenticated)
			return
		default:
			// Unknown types are tolerated so older servers don't break
			// newer clients.
			logger.Debug("ignoring unknown gateway frame",
				logger.Event(frame.Type), logger.SessionID(c.SessionID()))
		}

		select {
		case <-c.closed:
			return
		default:
		}
	}
}

// writeLoop is the sole writer on the socket.
func (c *Connection) writeLoop(ctx context.Context) {
	for {
		select {
		case data := <-c.out:
			if err := c.writeFrame(ctx, data); err != nil {
				c.closeWith(CloseUnknownError)
				return
			}
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

// writeFrame transmits one serialized frame, zstd-compressed as binary
// when the client negotiated compression.
func (c *Connection) writeFrame(ctx context.Context, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if c.compress {
		return c.ws.Write(wctx, websocket.MessageBinary, compressFrame(data))
	}
	return c.ws.Write(wctx, websocket.MessageText, data)
}

// enqueue hands a frame to the writer without ever blocking the
// caller. A full queue means the peer is hopeless; cut it loose.
func (c *Connection) enqueue(data []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	default:
		c.Close(CloseUnknownError, "send queue overflow")
		return ErrConnClosed
	}
}

// sendControl sends an unsequenced frame (hello, heartbeat_ack,
// resumed). These bypass the sequencer but still honor compression.
func (c *Connection) sendControl(evt events.Event) {
	data, err := json.Marshal(serverFrame{Type: evt.Type, D: evt.D})
	if err != nil {
		logger.Error("failed to encode control frame", logger.Event(evt.Type), logger.Err(err))
		return
	}
	_ = c.enqueue(data)
}

// SendEvent assigns the next sequence number, records the frame in the
// session's replay buffer, and queues it for transmission. Events from
// a single caller goroutine are delivered in call order.
func (c *Connection) SendEvent(evt events.Event) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return ErrConnClosed
	}

	session.mu.Lock()
	session.seq++
	seq := session.seq
	data, err := json.Marshal(serverFrame{Type: evt.Type, D: evt.D, Seq: seq})
	if err != nil {
		session.seq-- // the frame never existed
		session.mu.Unlock()
		return fmt.Errorf("failed to encode event %s: %w", evt.Type, err)
	}
	session.replay = append(session.replay, SequencedFrame{Seq: seq, Frame: data})
	if len(session.replay) > session.maxReplay {
		session.replay = session.replay[len(session.replay)-session.maxReplay:]
	}
	session.mu.Unlock()

	return c.enqueue(data)
}

// newSessionID returns a fresh 24-character hex session id.
func newSessionID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic("gateway: rand.Read: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
