package config

import (
	"testing"
	"time"
)

func TestDefaultAppConfig(t *testing.T) {
	cfg := DefaultAppConfig()

	if cfg.ClientName != "mcporter" {
		t.Errorf("ClientName = %q, want %q", cfg.ClientName, "mcporter")
	}
	if cfg.Daemon.IdleCheckInterval != 30*time.Second {
		t.Errorf("Daemon.IdleCheckInterval = %v, want %v", cfg.Daemon.IdleCheckInterval, 30*time.Second)
	}
	if !cfg.Daemon.LogEnabled {
		t.Errorf("Daemon.LogEnabled = false, want true")
	}
	if cfg.HTTP.DefaultTimeout != 30*time.Second {
		t.Errorf("HTTP.DefaultTimeout = %v, want %v", cfg.HTTP.DefaultTimeout, 30*time.Second)
	}
	if cfg.Catalog.Path == "" {
		t.Errorf("Catalog.Path should default to a non-empty path")
	}
}

func TestAppConfig_Validate(t *testing.T) {
	cfg := DefaultAppConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestAppConfig_ValidateIdleCheckInterval(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Daemon.IdleCheckInterval = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() should fail for negative idle check interval")
	}
}

func TestAppConfig_ValidateHTTPTimeout(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.HTTP.DefaultTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() should fail for a non-positive http timeout")
	}
}

func TestAppConfig_ValidateClientName(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.ClientName = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() should fail for empty client name")
	}
}
