package keepalive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcporter/mcporter/internal/catalog"
	"github.com/mcporter/mcporter/internal/daemonhost"
	"github.com/mcporter/mcporter/internal/runtime"
	"github.com/mcporter/mcporter/test/testutil"
)

func startTestDaemon(t *testing.T, def catalog.ServerDefinition) (sockPath string, stop func()) {
	t.Helper()
	dir := t.TempDir()
	rt := runtime.New(dir)
	normalized, err := def.Validate(dir)
	require.NoError(t, err)
	require.NoError(t, rt.RegisterDefinition(normalized))

	sockPath = filepath.Join(dir, "d.sock")
	host, err := daemonhost.New(daemonhost.Options{
		SocketPath:        sockPath,
		MetaPath:          filepath.Join(dir, "d.meta.json"),
		ConfigPath:        "cfg.yaml",
		IdleCheckInterval: time.Hour,
	}, rt, []catalog.ServerDefinition{normalized})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = host.Run(ctx)
		close(done)
	}()

	testutil.WaitForSocket(t, sockPath, 2*time.Second)

	return sockPath, func() {
		cancel()
		<-done
	}
}

func TestKeepAliveRuntime_RoutesKeepAliveServersThroughDaemon(t *testing.T) {
	def := catalog.ServerDefinition{
		Name: "svc",
		Stdio: &catalog.StdioCommand{
			Executable: "/bin/sh",
			Args:       []string{"-c", testutil.StdioEchoServerScript("ok")},
		},
		Lifecycle: catalog.Lifecycle{KeepAlive: true, IdleTimeout: time.Hour},
	}
	sockPath, stop := startTestDaemon(t, def)
	defer stop()

	base := runtime.New(t.TempDir())
	kr := New(base, sockPath, LaunchConfig{}, []catalog.ServerDefinition{def})

	ctx := context.Background()
	result, err := kr.CallTool(ctx, "svc", "echo", map[string]any{}, time.Second)
	require.NoError(t, err)
	require.NotNil(t, result.Text())
	assert.Equal(t, "ok", *result.Text())
}

func TestKeepAliveRuntime_ReusesChildProcessAcrossCalls(t *testing.T) {
	def := catalog.ServerDefinition{
		Name: "daemon-e2e",
		Stdio: &catalog.StdioCommand{
			Executable: "/bin/sh",
			Args:       []string{"-c", testutil.StatefulStdioServerScript()},
		},
		Lifecycle: catalog.Lifecycle{KeepAlive: true, IdleTimeout: time.Hour},
	}
	sockPath, stop := startTestDaemon(t, def)
	defer stop()

	base := runtime.New(t.TempDir())
	kr := New(base, sockPath, LaunchConfig{}, []catalog.ServerDefinition{def})

	ctx := context.Background()
	first, err := kr.CallTool(ctx, "daemon-e2e", "next_value", map[string]any{}, time.Second)
	require.NoError(t, err)
	firstVal, ok := first.JSON().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), firstVal["count"])

	second, err := kr.CallTool(ctx, "daemon-e2e", "next_value", map[string]any{}, time.Second)
	require.NoError(t, err)
	secondVal, ok := second.JSON().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), secondVal["count"])

	assert.Equal(t, firstVal["instanceId"], secondVal["instanceId"], "both calls must be answered by the same child process")
}

func TestKeepAliveRuntime_NonKeepAliveServerUsesBaseRuntime(t *testing.T) {
	def := catalog.ServerDefinition{
		Name: "transient-svc",
		Stdio: &catalog.StdioCommand{
			Executable: "/bin/sh",
			Args:       []string{"-c", testutil.StdioEchoServerScript("ok")},
		},
	}
	base := runtime.New(t.TempDir())
	normalized, err := def.Validate(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, base.RegisterDefinition(normalized))

	kr := New(base, filepath.Join(t.TempDir(), "nonexistent.sock"), LaunchConfig{}, []catalog.ServerDefinition{normalized})

	result, err := kr.CallTool(context.Background(), "transient-svc", "echo", map[string]any{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", *result.Text())
}

func TestEnsureDaemon_ChildGateBlocksRecursion(t *testing.T) {
	t.Setenv("MCPORTER_DAEMON_CHILD", "1")
	base := runtime.New(t.TempDir())
	kr := New(base, filepath.Join(t.TempDir(), "absent.sock"), LaunchConfig{}, nil)

	err := kr.EnsureDaemon(context.Background())
	require.Error(t, err)
}

func TestKeepAliveRuntime_RestartsOnceOnFatalThenSucceeds(t *testing.T) {
	statefile := filepath.Join(t.TempDir(), "failed-once")
	def := catalog.ServerDefinition{
		Name: "flaky-svc",
		Stdio: &catalog.StdioCommand{
			Executable: "/bin/sh",
			Args:       []string{"-c", testutil.FlakyStdioServerScript(), "sh", statefile},
		},
		Lifecycle: catalog.Lifecycle{KeepAlive: true, IdleTimeout: time.Hour},
	}
	sockPath, stop := startTestDaemon(t, def)
	defer stop()

	base := runtime.New(t.TempDir())
	kr := New(base, sockPath, LaunchConfig{}, []catalog.ServerDefinition{def})

	result, err := kr.CallTool(context.Background(), "flaky-svc", "flaky", map[string]any{}, time.Second)
	require.NoError(t, err, "the first call's fatal error must be absorbed by exactly one retry")
	require.NotNil(t, result.Text())
	assert.Equal(t, "recovered", *result.Text())
}

func TestKeepAliveRuntime_SecondFatalErrorSurfaces(t *testing.T) {
	def := catalog.ServerDefinition{
		Name: "always-flaky-svc",
		Stdio: &catalog.StdioCommand{
			Executable: "/bin/sh",
			Args:       []string{"-c", testutil.AlwaysFatalStdioServerScript()},
		},
		Lifecycle: catalog.Lifecycle{KeepAlive: true, IdleTimeout: time.Hour},
	}
	sockPath, stop := startTestDaemon(t, def)
	defer stop()

	base := runtime.New(t.TempDir())
	kr := New(base, sockPath, LaunchConfig{}, []catalog.ServerDefinition{def})

	_, err := kr.CallTool(context.Background(), "always-flaky-svc", "flaky", map[string]any{}, time.Second)
	require.Error(t, err, "a server that keeps failing must surface an error after the single retry")
}

func TestIsNonFatal(t *testing.T) {
	assert.True(t, isNonFatal("-32601"))
	assert.True(t, isNonFatal("-32602"))
	assert.False(t, isNonFatal("-32000"))
	assert.False(t, isNonFatal("not-a-number"))
}
