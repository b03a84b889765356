// Package stdiosupervisor owns the spawn/wire/terminate lifecycle of a
// child process speaking line-delimited JSON-RPC over its standard streams
// (spec.md §4.A). It deliberately does not depend on the MCP SDK's own
// stdio transport: spec.md §9 asks for direct ownership instead of a
// monkey-patched vendored transport, so every stream and the shutdown
// escalation live here.
package stdiosupervisor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/mcporter/mcporter/pkg/mcporter"
)

// ShutdownTimings are the three escalation waits of the close contract.
// Configurable per spec.md §9 ("these SHOULD be configurable constants"),
// defaulting to the observed 700ms/700ms/500ms budget (1.9s total).
type ShutdownTimings struct {
	StreamsWait  time.Duration
	TermWait     time.Duration
	KillWait     time.Duration
}

// DefaultShutdownTimings is the 1.9s default budget.
var DefaultShutdownTimings = ShutdownTimings{
	StreamsWait: 700 * time.Millisecond,
	TermWait:    700 * time.Millisecond,
	KillWait:    500 * time.Millisecond,
}

// ProcessStreamMeta is the per-child bookkeeping record of spec.md §3,
// held in a field of the Supervisor — no weak-map indirection is needed
// once the supervisor is the sole owner (spec.md §9).
type ProcessStreamMeta struct {
	mu           sync.Mutex
	Command      string
	StderrChunks []string
	ExitCode     *int
	Flushed      bool
}

func (m *ProcessStreamMeta) appendStderr(chunk string) {
	m.mu.Lock()
	m.StderrChunks = append(m.StderrChunks, chunk)
	m.mu.Unlock()
}

func (m *ProcessStreamMeta) setExitCode(code int) {
	m.mu.Lock()
	m.ExitCode = &code
	m.mu.Unlock()
}

// Snapshot returns a copy safe to read without holding the supervisor's
// lock.
func (m *ProcessStreamMeta) Snapshot() ProcessStreamMeta {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunks := make([]string, len(m.StderrChunks))
	copy(chunks, m.StderrChunks)
	return ProcessStreamMeta{
		Command:      m.Command,
		StderrChunks: chunks,
		ExitCode:     m.ExitCode,
		Flushed:      m.Flushed,
	}
}

func (m *ProcessStreamMeta) markFlushed() (already bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	already = m.Flushed
	m.Flushed = true
	return already
}

// StartOptions are the inputs to Start.
type StartOptions struct {
	Executable string
	Args       []string
	Cwd        string
	// Env is the fully resolved environment to hand the child (ambient env
	// is never mutated to build this — see spec.md §9 re-architecture (a)).
	Env []string
}

// Supervisor owns one spawned child process.
type Supervisor struct {
	opts StartOptions

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	reader  *bufio.Reader
	meta    *ProcessStreamMeta
	timings ShutdownTimings

	exited    chan struct{}
	waitOnce  sync.Once
	waitErr   error
	closeOnce sync.Once
	closeErr  error

	onExit func(meta ProcessStreamMeta)
}

// New constructs a Supervisor for the given start options. OnExit, if set
// before Start, is invoked exactly once when the child has been confirmed
// exited, with the final stderr snapshot — this is where the STDIO log
// policy (§4.A.1) is applied by callers.
func New(opts StartOptions) *Supervisor {
	return &Supervisor{
		opts:    opts,
		timings: DefaultShutdownTimings,
		exited:  make(chan struct{}),
	}
}

// SetShutdownTimings overrides the default escalation budget (for tests).
func (s *Supervisor) SetShutdownTimings(t ShutdownTimings) {
	s.timings = t
}

// OnExit registers a callback fired once the child's exit has been
// observed, carrying the final ProcessStreamMeta snapshot.
func (s *Supervisor) OnExit(fn func(meta ProcessStreamMeta)) {
	s.onExit = fn
}

// Start spawns the child, wiring all three streams. Stderr is always piped
// regardless of any caller preference, per the start contract.
func (s *Supervisor) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.opts.Executable, s.opts.Args...)
	cmd.Dir = s.opts.Cwd
	cmd.Env = s.opts.Env
	// Avoid exec.CommandContext's default of killing with SIGKILL the instant
	// ctx is cancelled: Close() drives its own escalation, so detach Cancel.
	cmd.Cancel = func() error { return nil }

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	meta := &ProcessStreamMeta{Command: commandLabel(s.opts)}

	if err := cmd.Start(); err != nil {
		return &mcporter.StartupFailedError{Command: meta.Command, StderrTail: err.Error()}
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.stdout = stdout
	s.stderr = stderr
	s.reader = bufio.NewReader(stdout)
	s.meta = meta
	s.mu.Unlock()

	go s.drainStderr(stderr, meta)
	go s.waitForExit(cmd)

	return nil
}

func commandLabel(opts StartOptions) string {
	label := opts.Executable
	for _, a := range opts.Args {
		label += " " + a
	}
	return label
}

func (s *Supervisor) drainStderr(r io.Reader, meta *ProcessStreamMeta) {
	buf := bufio.NewReader(r)
	for {
		line, err := buf.ReadString('\n')
		if line != "" {
			meta.appendStderr(line)
		}
		if err != nil {
			return
		}
	}
}

func (s *Supervisor) waitForExit(cmd *exec.Cmd) {
	err := cmd.Wait()
	s.waitOnce.Do(func() {
		s.waitErr = err
		code := exitCodeOf(cmd, err)
		s.meta.setExitCode(code)
		close(s.exited)
		if already := s.meta.markFlushed(); !already && s.onExit != nil {
			s.onExit(s.meta.Snapshot())
		}
	})
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr == nil {
		return 0
	}
	return -1
}

// Send serializes one JSON-RPC message as a newline-terminated UTF-8 line
// and writes it to stdin.
func (s *Supervisor) Send(payload []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()

	select {
	case <-s.exited:
		meta := s.meta.Snapshot()
		return &mcporter.StartupFailedError{Command: meta.Command, ExitCode: meta.ExitCode, StderrTail: tail(meta.StderrChunks)}
	default:
	}

	if stdin == nil {
		return mcporter.ErrTransportWrite
	}

	line := append(bytes.TrimRight(payload, "\n"), '\n')
	if _, err := stdin.Write(line); err != nil {
		return fmt.Errorf("%w: %v", mcporter.ErrTransportWrite, err)
	}
	return nil
}

// ReadLine blocks for the next newline-terminated line from stdout. On EOF
// (crash or clean exit), it returns an error wrapping ErrTransportClosed
// and the read error; the exit code is not part of it.
func (s *Supervisor) ReadLine() ([]byte, error) {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return nil, mcporter.ErrTransportClosed
	}

	line, err := reader.ReadBytes('\n')
	if err != nil {
		if len(line) > 0 {
			return line, nil
		}
		return nil, fmt.Errorf("%w: %v", mcporter.ErrTransportClosed, err)
	}
	return bytes.TrimRight(line, "\n"), nil
}

// Pid returns the child's process ID, or 0 if it has not started.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Close is the idempotent, escalating shutdown contract of spec.md §4.A.
func (s *Supervisor) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.doClose(ctx)
	})
	return s.closeErr
}

func (s *Supervisor) doClose(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	stdin, stdout, stderr := s.stdin, s.stdout, s.stderr
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	// Step 1: destroy all three standard streams, wait bounded.
	closeStreams(stdin, stdout, stderr)
	if s.waitBounded(s.timings.StreamsWait) {
		return nil
	}

	// Step 2: polite termination signal.
	_ = cmd.Process.Signal(terminationSignal())
	if s.waitBounded(s.timings.TermWait) {
		return nil
	}

	// Step 3: forceful termination signal.
	_ = cmd.Process.Kill()
	if s.waitBounded(s.timings.KillWait) {
		return nil
	}

	// Still alive: destroy streams again (some platforms recreate handles)
	// and report it as an error.
	closeStreams(stdin, stdout, stderr)
	return fmt.Errorf("process did not exit after shutdown escalation (pid %d)", s.Pid())
}

func (s *Supervisor) waitBounded(d time.Duration) bool {
	select {
	case <-s.exited:
		return true
	case <-time.After(d):
		return false
	}
}

func closeStreams(closers ...io.Closer) {
	for _, c := range closers {
		if c == nil {
			continue
		}
		_ = c.Close()
	}
}
