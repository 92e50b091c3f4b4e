package eventlog

import (
	"context"
	"fmt"
	"time"
)

// Backend selects the event log storage engine.
type Backend string

const (
	// BackendMemory keeps events in process memory. Dev and test only.
	BackendMemory Backend = "memory"

	// BackendBadger stores events in an embedded Badger database.
	BackendBadger Backend = "badger"

	// BackendPostgres stores events in PostgreSQL.
	BackendPostgres Backend = "postgres"
)

// Config selects and configures the event log backend.
type Config struct {
	Backend   Backend        `mapstructure:"backend" yaml:"backend"`
	Retention time.Duration  `mapstructure:"retention" yaml:"retention"`
	Badger    BadgerConfig   `mapstructure:"badger" yaml:"badger"`
	Postgres  PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendBadger
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.Badger.Retention <= 0 {
		c.Badger.Retention = c.Retention
	}
	if c.Postgres.Retention <= 0 {
		c.Postgres.Retention = c.Retention
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendBadger:
		if c.Badger.Path == "" {
			return fmt.Errorf("event log badger path is required")
		}
		return nil
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("event log postgres dsn is required")
		}
		return nil
	default:
		return fmt.Errorf("unsupported event log backend: %s", c.Backend)
	}
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config) (Log, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryLog(cfg.Retention), nil
	case BackendBadger:
		return NewBadgerLog(cfg.Badger)
	case BackendPostgres:
		return NewPostgresLog(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported event log backend: %s", cfg.Backend)
	}
}
