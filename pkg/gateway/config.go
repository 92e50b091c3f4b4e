package gateway

import (
	"time"
)

// Config controls gateway limits and timings. The protocol constants
// (heartbeat interval, identify timeout, replay depth) are part of the
// wire contract; the connection caps are operational knobs.
type Config struct {
	// HeartbeatInterval is advertised in hello. Clients must beat at
	// least this often; the server tolerates 1.5x before disconnecting.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`

	// IdentifyTimeout bounds the wait for the first identify/resume
	// frame after hello.
	IdentifyTimeout time.Duration `mapstructure:"identify_timeout" yaml:"identify_timeout"`

	// SessionTTL is how long a disconnected session stays resumable.
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`

	// ReplayBufferSize caps buffered events per session.
	ReplayBufferSize int `mapstructure:"replay_buffer_size" yaml:"replay_buffer_size"`

	// MaxTotalConnections caps concurrent connections process-wide.
	MaxTotalConnections int `mapstructure:"max_total_connections" yaml:"max_total_connections"`

	// MaxConnsPerIP caps concurrent connections per client address.
	MaxConnsPerIP int `mapstructure:"max_conns_per_ip" yaml:"max_conns_per_ip"`

	// MaxSessionsPerUser caps concurrent connections per account.
	MaxSessionsPerUser int `mapstructure:"max_sessions_per_user" yaml:"max_sessions_per_user"`

	// ServerName and ServerIcon are surfaced in ready.
	ServerName string `mapstructure:"server_name" yaml:"server_name"`
	ServerIcon string `mapstructure:"server_icon" yaml:"server_icon"`
}

// Protocol constants shared with clients.
const (
	// ProtocolVersionMin and ProtocolVersionMax bound accepted
	// identify protocol_version values.
	ProtocolVersionMin = 1
	ProtocolVersionMax = 1

	// MaxRelayPayload bounds mls_relay / cpace_relay data fields.
	MaxRelayPayload = 16 * 1024

	// TypingDebounce suppresses repeated typing frames per channel.
	TypingDebounce = 5 * time.Second

	// heartbeatGraceNum/Den: a peer is dead after interval * 3/2
	// without a heartbeat.
	heartbeatGraceNum = 3
	heartbeatGraceDen = 2
)

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 45 * time.Second
	}
	if c.IdentifyTimeout <= 0 {
		c.IdentifyTimeout = 30 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 5 * time.Minute
	}
	if c.ReplayBufferSize <= 0 {
		c.ReplayBufferSize = 1000
	}
	if c.MaxTotalConnections <= 0 {
		c.MaxTotalConnections = 10000
	}
	if c.MaxConnsPerIP <= 0 {
		c.MaxConnsPerIP = 10
	}
	if c.MaxSessionsPerUser <= 0 {
		c.MaxSessionsPerUser = 5
	}
	if c.ServerName == "" {
		c.ServerName = "Vox"
	}
}

// heartbeatDeadline is the dead-peer window derived from the interval.
func (c *Config) heartbeatDeadline() time.Duration {
	return c.HeartbeatInterval * heartbeatGraceNum / heartbeatGraceDen
}
