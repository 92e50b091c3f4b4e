package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for errors.
//
// Struct-tag rules (oneof, min/max, gt) are enforced first, then the
// cross-field rules the tags cannot express. Validation never mutates
// the config; normalization happens in ApplyDefaults.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := cfg.EventLog.Validate(); err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	if err := cfg.Federation.Validate(); err != nil {
		return fmt.Errorf("federation: %w", err)
	}

	if cfg.Push.Enabled {
		if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
			return fmt.Errorf("push is enabled but VAPID keys are not configured")
		}
		if cfg.Push.Subscriber == "" {
			return fmt.Errorf("push is enabled but no subscriber contact is configured")
		}
	}

	return nil
}
