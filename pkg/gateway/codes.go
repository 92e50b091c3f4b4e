package gateway

import (
	"github.com/coder/websocket"
)

// Gateway close codes. These mirror the protocol and are the only
// error channel a WebSocket client gets.
const (
	CloseUnknownError         websocket.StatusCode = 4000
	CloseUnknownType          websocket.StatusCode = 4001
	CloseDecodeError          websocket.StatusCode = 4002
	CloseNotAuthenticated     websocket.StatusCode = 4003
	CloseAuthFailed           websocket.StatusCode = 4004
	CloseAlreadyAuthenticated websocket.StatusCode = 4005
	CloseRateLimited          websocket.StatusCode = 4006
	CloseSessionTimeout       websocket.StatusCode = 4007
	CloseServerRestart        websocket.StatusCode = 4008
	CloseSessionExpired       websocket.StatusCode = 4009
	CloseReplayExhausted      websocket.StatusCode = 4010
	CloseVersionMismatch      websocket.StatusCode = 4011
)

// closeReasons are the human-readable close frame texts.
var closeReasons = map[websocket.StatusCode]string{
	CloseUnknownError:         "Unknown error",
	CloseUnknownType:          "Unknown message type",
	CloseDecodeError:          "Malformed frame",
	CloseNotAuthenticated:     "Not authenticated",
	CloseAuthFailed:           "Authentication failed",
	CloseAlreadyAuthenticated: "Already authenticated",
	CloseRateLimited:          "Rate limited",
	CloseSessionTimeout:       "Heartbeat timeout",
	CloseServerRestart:        "Server restarting",
	CloseSessionExpired:       "Session expired",
	CloseReplayExhausted:      "Replay buffer exhausted",
	CloseVersionMismatch:      "Unsupported protocol version",
}
