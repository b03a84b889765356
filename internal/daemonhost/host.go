// Package daemonhost is the long-lived local-socket server of spec.md
// §4.E: it owns a runtime.Runtime, serves daemonproto requests over a
// local domain socket, runs the idle-eviction loop, and handles its own
// single-shot shutdown.
package daemonhost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mcporter/mcporter/internal/applog"
	"github.com/mcporter/mcporter/internal/catalog"
	"github.com/mcporter/mcporter/internal/daemonproto"
	"github.com/mcporter/mcporter/internal/runtime"
)

// activity is the daemon-internal per-server bookkeeping of spec.md §3
// ServerActivity.
type activity struct {
	mu          sync.Mutex
	connected   bool
	lastUsedAt  *time.Time
	idleTimeout time.Duration
}

func (a *activity) markUsed() {
	a.mu.Lock()
	now := time.Now()
	a.connected = true
	a.lastUsedAt = &now
	a.mu.Unlock()
}

func (a *activity) reset() {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
}

// Options configures a Host.
type Options struct {
	SocketPath string
	MetaPath   string
	ConfigPath string
	LogPath    string

	// LogEnabled mirrors spec.md §4.E's "--log flag; --log-file given;
	// env equivalents set" enable conditions; the catalog-driven
	// "or any managed server has logging.daemon.enabled" condition is
	// folded in by New itself, since that's where the defs are.
	LogEnabled bool
	// LogAllServers is spec.md §4.E's logAllServers: when true every call
	// to every managed server is logged regardless of LogServers/the
	// per-server catalog setting.
	LogAllServers bool
	// LogServers is the explicit --log-servers filter; servers whose
	// ServerDefinition.Logging.DaemonEnabled is true are added to this
	// filter automatically.
	LogServers []string

	// IdleCheckInterval is the idle-eviction tick period; zero means the
	// 30s default.
	IdleCheckInterval time.Duration
}

// Host is the daemon process itself.
type Host struct {
	opts          Options
	rt            *runtime.Runtime
	logEnabled    bool
	logAllServers bool
	logFilter     map[string]bool

	mu      sync.Mutex
	managed map[string]*activity

	listener net.Listener
	ticker   *time.Ticker

	logFile  io.WriteCloser
	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Host from a catalog, computing the keep-alive subset.
// Returns an error if that subset is empty, per the startup contract.
func New(opts Options, rt *runtime.Runtime, defs []catalog.ServerDefinition) (*Host, error) {
	managed := make(map[string]*activity)
	logFilter := make(map[string]bool, len(opts.LogServers))
	for _, name := range opts.LogServers {
		logFilter[name] = true
	}

	anyServerLoggingEnabled := false
	for _, d := range defs {
		if d.Lifecycle.KeepAlive {
			managed[d.Name] = &activity{idleTimeout: d.Lifecycle.IdleTimeout}
		}
		if d.Logging.DaemonEnabled {
			anyServerLoggingEnabled = true
			logFilter[d.Name] = true
		}
	}
	if len(managed) == 0 {
		return nil, fmt.Errorf("daemonhost: no keep-alive servers configured, refusing to start")
	}

	if opts.IdleCheckInterval == 0 {
		opts.IdleCheckInterval = 30 * time.Second
	}

	return &Host{
		opts:          opts,
		rt:            rt,
		managed:       managed,
		logEnabled:    opts.LogEnabled || anyServerLoggingEnabled,
		logAllServers: opts.LogAllServers,
		logFilter:     logFilter,
		stopped:       make(chan struct{}),
	}, nil
}

// Run binds the socket, writes metadata, and serves until ctx is canceled
// or a "stop" request arrives. It blocks until shutdown completes.
func (h *Host) Run(ctx context.Context) error {
	listener, err := Listen(h.opts.SocketPath)
	if err != nil {
		return fmt.Errorf("bind socket: %w", err)
	}
	h.listener = listener

	if h.logEnabled && h.opts.LogPath != "" {
		f, err := os.OpenFile(h.opts.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("open log file: %w", err)
		}
		h.logFile = f
	}

	meta := Metadata{
		PID:        os.Getpid(),
		SocketPath: h.opts.SocketPath,
		ConfigPath: h.opts.ConfigPath,
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
		LogPath:    h.opts.LogPath,
	}
	if err := WriteMetadata(h.opts.MetaPath, meta); err != nil {
		h.closeAll()
		return fmt.Errorf("write metadata: %w", err)
	}

	h.log("Daemon host started")

	h.ticker = time.NewTicker(h.opts.IdleCheckInterval)
	go h.idleEvictionLoop()

	go h.acceptLoop()

	select {
	case <-ctx.Done():
	case <-h.stopped:
	}

	return h.shutdown()
}

func (h *Host) log(text string) {
	if !h.logEnabled {
		return
	}
	if h.logFile != nil {
		applog.DaemonLine(h.logFile, text)
	}
	applog.DaemonLine(os.Stdout, text)
}

// shouldLogServer implements spec.md §4.E's per-server filtering: log
// every call if logAllServers, else only when the server is in the filter
// (explicit --log-servers entries or a server whose catalog Logging.DaemonEnabled
// is true).
func (h *Host) shouldLogServer(name string) bool {
	if !h.logEnabled {
		return false
	}
	if h.logAllServers {
		return true
	}
	return h.logFilter[name]
}

// logCall records one per-call log line when shouldLogServer(server) is true.
func (h *Host) logCall(op, server string) {
	if !h.shouldLogServer(server) {
		return
	}
	h.log(fmt.Sprintf("%s %s", op, server))
}

func (h *Host) acceptLoop() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			return
		}
		go h.handleConn(conn)
	}
}

func (h *Host) handleConn(conn net.Conn) {
	defer conn.Close()

	raw, err := daemonproto.ReadFramedRequest(conn)
	if err != nil {
		return
	}

	resp := daemonproto.Dispatch(context.Background(), h.table(), raw)
	_ = daemonproto.WriteFramedResponse(conn, resp)

	var req daemonproto.Request
	if err := json.Unmarshal(raw, &req); err == nil && req.Method == daemonproto.MethodStop {
		h.requestStop()
	}
}

func (h *Host) requestStop() {
	h.stopOnce.Do(func() {
		close(h.stopped)
	})
}

func (h *Host) idleEvictionLoop() {
	for range h.ticker.C {
		h.evictIdle()
	}
}

func (h *Host) evictIdle() {
	h.mu.Lock()
	names := make([]string, 0, len(h.managed))
	for name := range h.managed {
		names = append(names, name)
	}
	h.mu.Unlock()

	now := time.Now()
	for _, name := range names {
		h.mu.Lock()
		act := h.managed[name]
		h.mu.Unlock()

		act.mu.Lock()
		idle := act.idleTimeout
		last := act.lastUsedAt
		act.mu.Unlock()

		if idle <= 0 || last == nil {
			continue
		}
		if now.Sub(*last) >= idle {
			_ = h.rt.CloseServer(name)
			act.reset()
		}
	}
}

func (h *Host) shutdown() error {
	if h.ticker != nil {
		h.ticker.Stop()
	}
	h.closeAll()
	closeErr := h.rt.Close()
	h.log("Daemon host stopped")
	if h.logFile != nil {
		_ = h.logFile.Close()
	}
	_ = RemoveMetadata(h.opts.MetaPath)
	return closeErr
}

func (h *Host) closeAll() {
	if h.listener != nil {
		_ = h.listener.Close()
	}
}
