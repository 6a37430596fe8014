package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid values.
//
// Struct tags cover the per-field invariants (worker count >= 1, timeouts
// > 0, port ranges, log level/format enums); cross-field rules that tags
// cannot express are checked by hand below.
//
// Validate never mutates the configuration; normalization happens in
// ApplyDefaults.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Telemetry needs a collector endpoint once enabled
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when telemetry is enabled")
	}

	// Static S3 credentials only make sense as a pair
	s3 := cfg.Assets.S3
	if (s3.AccessKeyID == "") != (s3.SecretAccessKey == "") {
		return fmt.Errorf("assets s3 access_key_id and secret_access_key must be set together")
	}

	// A probe that outlives its interval would overlap itself
	if cfg.Health.Timeout > cfg.Health.Interval {
		return fmt.Errorf("health timeout (%s) must not exceed the probe interval (%s)",
			cfg.Health.Timeout, cfg.Health.Interval)
	}

	return nil
}
