package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg, err := LoadEnv()
	require.NoError(t, err)

	assert.False(t, cfg.StdioLogForceAlways)
	assert.False(t, cfg.DaemonChild)
}

func TestLoadEnv_StdioLogForceAlways(t *testing.T) {
	t.Setenv("MCPORTER_STDIO_LOG_FORCE_ALWAYS", "true")

	cfg, err := LoadEnv()
	require.NoError(t, err)
	assert.True(t, cfg.StdioLogForceAlways)
}

func TestLoadEnv_DaemonChild(t *testing.T) {
	t.Setenv("MCPORTER_DAEMON_CHILD", "true")

	cfg, err := LoadEnv()
	require.NoError(t, err)
	assert.True(t, cfg.DaemonChild)
}
