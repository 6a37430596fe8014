package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 70000 // Out of range

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_NegativePort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for negative port")
	}
}

func TestValidate_ZeroWorkers(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Workers = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for zero workers")
	}
	errStr := strings.ToLower(err.Error())
	if !strings.Contains(errStr, "workers") {
		t.Errorf("Expected error about workers, got: %v", err)
	}
}

func TestValidate_NegativeWorkers(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Workers = -4

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for negative workers")
	}
	if !strings.Contains(err.Error(), "min") {
		t.Errorf("Expected 'min' validation error, got: %v", err)
	}
}

func TestValidate_ZeroRequestTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.RequestTimeout = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for zero request timeout")
	}
	errStr := strings.ToLower(err.Error())
	if !strings.Contains(errStr, "requesttimeout") {
		t.Errorf("Expected error about request timeout, got: %v", err)
	}
}

func TestValidate_NegativeRequestTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.RequestTimeout = -1 * time.Second

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for negative request timeout")
	}
}

func TestValidate_TelemetryEnabledWithoutEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for telemetry enabled without endpoint")
	}
	if !strings.Contains(err.Error(), "telemetry") && !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("Expected error about telemetry endpoint, got: %v", err)
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = "localhost:4317"
	cfg.Telemetry.SampleRate = 1.5 // Out of range (should be 0.0-1.0)

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for sample rate out of range")
	}
}

func TestValidate_LoneS3Credential(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Assets.S3.Bucket = "assets"
	cfg.Assets.S3.AccessKeyID = "AKIA..."

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for access key without secret")
	}
	if !strings.Contains(err.Error(), "together") {
		t.Errorf("Expected paired-credentials error, got: %v", err)
	}
}

func TestValidate_HealthTimeoutExceedsInterval(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Health.Interval = 10 * time.Second
	cfg.Health.Timeout = 20 * time.Second

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for timeout exceeding interval")
	}

	// Equal values are the documented default and must pass
	cfg.Health.Timeout = 10 * time.Second
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected timeout == interval to be valid, got: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	// Test that validation accepts both uppercase and lowercase log levels
	testCases := []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"}

	for _, level := range testCases {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		err := Validate(cfg)
		if err != nil {
			t.Errorf("Validation failed for level %q: %v", level, err)
		}

		// Validation should NOT normalize - level should remain as-is
		if cfg.Logging.Level != level {
			t.Errorf("Expected level to remain %q after validation, got %q", level, cfg.Logging.Level)
		}
	}

	// Test that normalization happens in ApplyDefaults
	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected ApplyDefaults to normalize 'info' to 'INFO', got %q", cfg.Logging.Level)
	}
}
