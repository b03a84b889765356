// Package config defines application configuration models.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// AppConfig holds all mcporter configuration loaded from files/env/flags.
type AppConfig struct {
	Catalog CatalogConfig `koanf:"catalog"`
	Daemon  DaemonConfig  `koanf:"daemon"`
	HTTP    HTTPConfig    `koanf:"http"`

	ClientName string `koanf:"client_name"`
}

// CatalogConfig points at the normalized catalog file the Runtime loads
// ServerDefinitions from.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// DaemonConfig controls where the daemon binds its socket and metadata,
// where it logs, and how aggressively it evicts idle servers.
type DaemonConfig struct {
	SocketDir         string        `koanf:"socket_dir"`
	LogDir            string        `koanf:"log_dir"`
	IdleCheckInterval time.Duration `koanf:"idle_check_interval"`
	LogEnabled        bool          `koanf:"log_enabled"`
	// LogAllServers and LogServers are the config-file/env equivalents of
	// the daemon's --log and --log-servers flags (spec.md §4.E).
	LogAllServers bool     `koanf:"log_all_servers"`
	LogServers    []string `koanf:"log_servers"`
}

// HTTPConfig holds defaults for the streaming-HTTP McpClient leg.
type HTTPConfig struct {
	DefaultTimeout time.Duration `koanf:"default_timeout"`
}

// DefaultAppConfig returns the default configuration.
func DefaultAppConfig() AppConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".mcporter")

	return AppConfig{
		Catalog: CatalogConfig{
			Path: filepath.Join(base, "catalog.yaml"),
		},
		Daemon: DaemonConfig{
			SocketDir:         filepath.Join(base, "daemon"),
			LogDir:            filepath.Join(base, "logs"),
			IdleCheckInterval: 30 * time.Second,
			LogEnabled:        true,
		},
		HTTP: HTTPConfig{
			DefaultTimeout: 30 * time.Second,
		},
		ClientName: "mcporter",
	}
}

// Validate checks the configuration for errors.
func (c *AppConfig) Validate() error {
	if c.Daemon.IdleCheckInterval < 0 {
		return errors.New("daemon idle check interval cannot be negative")
	}
	if c.HTTP.DefaultTimeout <= 0 {
		return errors.New("http default timeout must be positive")
	}
	if c.ClientName == "" {
		return errors.New("client name is required")
	}
	return nil
}
