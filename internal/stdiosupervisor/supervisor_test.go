package stdiosupervisor

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mcporter/mcporter/pkg/mcporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertAs(err error, target **mcporter.StartupFailedError) bool {
	return errors.As(err, target)
}

func fastTimings() ShutdownTimings {
	return ShutdownTimings{
		StreamsWait: 50 * time.Millisecond,
		TermWait:    50 * time.Millisecond,
		KillWait:    50 * time.Millisecond,
	}
}

func TestSupervisor_EchoRoundTrip(t *testing.T) {
	sup := New(StartOptions{
		Executable: "/bin/sh",
		Args:       []string{"-c", "while IFS= read -r line; do echo \"echo:$line\"; done"},
		Env:        os.Environ(),
	})
	sup.SetShutdownTimings(fastTimings())

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))
	require.NotZero(t, sup.Pid())

	require.NoError(t, sup.Send([]byte(`{"hello":"world"}`)))
	line, err := sup.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `echo:{"hello":"world"}`, string(line))

	require.NoError(t, sup.Close(ctx))
	// Idempotent.
	require.NoError(t, sup.Close(ctx))

	assert.NotNil(t, sup.Pid())
}

func TestSupervisor_CrashPathReportsExitCode(t *testing.T) {
	sup := New(StartOptions{
		Executable: "/bin/sh",
		Args:       []string{"-c", "exit 3"},
		Env:        os.Environ(),
	})
	sup.SetShutdownTimings(fastTimings())

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))

	// Give the child a moment to exit before we try to send.
	_, _ = sup.ReadLine()

	deadline := time.Now().Add(2 * time.Second)
	var lastErr error
	var startupErr *mcporter.StartupFailedError
	for time.Now().Before(deadline) {
		lastErr = sup.Send([]byte(`{}`))
		if lastErr != nil && assertAs(lastErr, &startupErr) && startupErr.ExitCode != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	require.Error(t, lastErr)
	require.NotNil(t, startupErr)
	require.NotNil(t, startupErr.ExitCode)
	assert.Equal(t, 3, *startupErr.ExitCode)
}

func TestSupervisor_CloseIsIdempotentAndStreamsAreReleased(t *testing.T) {
	sup := New(StartOptions{
		Executable: "/bin/sh",
		Args:       []string{"-c", "sleep 5"},
		Env:        os.Environ(),
	})
	sup.SetShutdownTimings(fastTimings())

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))

	closeDone := make(chan error, 1)
	go func() { closeDone <- sup.Close(ctx) }()

	select {
	case err := <-closeDone:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("close did not return within budget")
	}

	// A second Close is a no-op that returns the first result.
	require.NoError(t, sup.Close(ctx))

	// stdin should now reject writes.
	err := sup.Send([]byte(`{}`))
	require.Error(t, err)
}

func TestSupervisor_OnExitFiresOnce(t *testing.T) {
	sup := New(StartOptions{
		Executable: "/bin/sh",
		Args:       []string{"-c", "echo to-stderr 1>&2; exit 1"},
		Env:        os.Environ(),
	})
	sup.SetShutdownTimings(fastTimings())

	calls := 0
	done := make(chan struct{})
	sup.OnExit(func(meta ProcessStreamMeta) {
		calls++
		close(done)
	})

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnExit never fired")
	}

	require.NoError(t, sup.Close(ctx))
	assert.Equal(t, 1, calls)
}
