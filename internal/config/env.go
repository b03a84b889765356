package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds the subset of settings that are purely env-driven rather
// than layered through the koanf file/default chain: flags that only make
// sense as process-environment toggles for the process that reads them.
type EnvConfig struct {
	// StdioLogForceAlways reports MCPORTER_STDIO_LOG_FORCE_ALWAYS. No other
	// package reads this field; the stdio log policy's force-always switch is
	// MCPORTER_STDIO_LOG_ALWAYS, which stdiosupervisor reads directly.
	StdioLogForceAlways bool `env:"MCPORTER_STDIO_LOG_FORCE_ALWAYS" envDefault:"false"`

	// DaemonChild is set by keepalive.spawnDaemon on the child it launches,
	// so EnsureDaemon can refuse to recurse (spec.md §4.F).
	DaemonChild bool `env:"MCPORTER_DAEMON_CHILD" envDefault:"false"`
}

// LoadEnv parses environment variables into EnvConfig.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parsing env config: %w", err)
	}
	return cfg, nil
}
