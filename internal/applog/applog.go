// Package applog is the thin log/slog wrapper every component logs
// through, matching the teacher's own choice of log/slog directly
// rather than adopting a third-party logging library the corpus never
// reaches for.
package applog

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// DaemonLine writes one "[daemon] <iso8601> <text>" line to w, the exact
// format spec.md §4.E Logging requires for the daemon's own log file and
// its stdout mirror.
func DaemonLine(w io.Writer, text string) {
	io.WriteString(w, "[daemon] "+time.Now().UTC().Format(time.RFC3339)+" "+text+"\n")
}

// New builds a slog.Logger writing structured key/value records to w at
// the given level, for every component other than the daemon's own
// plain-text log lines.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Default is a package-level logger writing to stderr at Info level, used
// by components that do not thread a logger through explicitly — mirroring
// the teacher's own use of slog.Default().
func Default() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
