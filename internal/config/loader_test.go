package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ClientName != "mcporter" {
		t.Errorf("ClientName = %q, want %q", cfg.ClientName, "mcporter")
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "mcporter.yaml")

	yaml := `
client_name: my-client
catalog:
  path: /tmp/catalog.yaml
daemon:
  socket_dir: /tmp/mcporter/run
  idle_check_interval: 45s
http:
  default_timeout: 10s
`
	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ClientName != "my-client" {
		t.Errorf("ClientName = %q, want %q", cfg.ClientName, "my-client")
	}
	if cfg.Catalog.Path != "/tmp/catalog.yaml" {
		t.Errorf("Catalog.Path = %q, want %q", cfg.Catalog.Path, "/tmp/catalog.yaml")
	}
	if cfg.Daemon.IdleCheckInterval != 45*time.Second {
		t.Errorf("Daemon.IdleCheckInterval = %v, want %v", cfg.Daemon.IdleCheckInterval, 45*time.Second)
	}
	if cfg.HTTP.DefaultTimeout != 10*time.Second {
		t.Errorf("HTTP.DefaultTimeout = %v, want %v", cfg.HTTP.DefaultTimeout, 10*time.Second)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MCPORTER_CLIENT_NAME", "env-client")
	t.Setenv("MCPORTER_HTTP_DEFAULT_TIMEOUT", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ClientName != "env-client" {
		t.Errorf("ClientName = %q, want %q from env", cfg.ClientName, "env-client")
	}
	if cfg.HTTP.DefaultTimeout != 5*time.Second {
		t.Errorf("HTTP.DefaultTimeout = %v, want %v from env", cfg.HTTP.DefaultTimeout, 5*time.Second)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: ["), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should fail with invalid YAML")
	}
}

func TestLoad_OverridesHighestPrecedence(t *testing.T) {
	cfg, err := LoadWithOverrides("", map[string]any{"client_name": "override-client"})
	if err != nil {
		t.Fatalf("LoadWithOverrides() error = %v", err)
	}
	if cfg.ClientName != "override-client" {
		t.Errorf("ClientName = %q, want %q", cfg.ClientName, "override-client")
	}
}
