package gateway

import (
	"net"
	"net/http"

	"github.com/coder/websocket"

	"github.com/cmorg789/vox/internal/logger"
)

// Handler upgrades HTTP requests at /gateway into gateway connections.
// The handler blocks for the life of each connection; chi runs it on
// the request goroutine, which is exactly what we want.
func Handler(deps Deps, cfg Config) http.HandlerFunc {
	cfg.ApplyDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Token auth happens inside the socket; origin checks
			// add nothing for non-browser clients and break them.
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Debug("websocket accept failed", logger.Err(err))
			return
		}

		compress := r.URL.Query().Get("compress") == "zstd"
		conn := NewConnection(deps, cfg, ws, clientIP(r), compress)
		conn.Run(r.Context())
	}
}

// clientIP extracts the peer address, preferring the value chi's
// RealIP middleware placed in RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
