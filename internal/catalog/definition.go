// Package catalog models the normalized ServerDefinition the rest of the
// aggregator operates on. Reconciling raw, ecosystem-specific config files
// (Cursor, Claude, Codex, VSCode, Windsurf) into this shape is explicitly the
// job of an external CatalogLoader — this package only defines the
// normalized shape and the invariants normalization must uphold.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AuthKind enumerates the recognized auth schemes. Today only "oauth" is
// meaningful; everything else is treated as no auth.
type AuthKind string

// OAuthAuth is the only currently supported AuthKind.
const OAuthAuth AuthKind = "oauth"

// HTTPCommand describes a remote streaming-HTTP MCP endpoint.
type HTTPCommand struct {
	URL     string
	Headers map[string]string
}

// StdioCommand describes a child-process MCP server.
type StdioCommand struct {
	Executable string
	Args       []string
	Cwd        string
}

// Lifecycle tags whether a server's sessions are worth keeping warm across
// foreground invocations.
type Lifecycle struct {
	KeepAlive      bool
	IdleTimeout    time.Duration // zero means "never idle-evict"
}

// LoggingConfig controls whether the daemon logs calls to this server.
type LoggingConfig struct {
	DaemonEnabled bool
}

// ServerDefinition is the normalized, immutable-after-normalization shape
// every component downstream of the catalog loader consumes.
type ServerDefinition struct {
	Name        string
	Description string

	HTTP  *HTTPCommand
	Stdio *StdioCommand

	Env map[string]string

	Auth             AuthKind
	TokenCacheDir    string
	ClientName       string
	OAuthRedirectURL string

	Lifecycle Lifecycle
	Logging   LoggingConfig

	Source  string
	Sources []string
}

// Validate checks the tagged-union and naming invariants spec.md §3
// requires, and returns a normalized copy (HTTP Accept header completed,
// effective token cache directory filled in).
func (d ServerDefinition) Validate(homeDir string) (ServerDefinition, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return ServerDefinition{}, fmt.Errorf("server definition: name is required")
	}
	d.Name = name

	hasHTTP := d.HTTP != nil
	hasStdio := d.Stdio != nil
	if hasHTTP == hasStdio {
		return ServerDefinition{}, fmt.Errorf("server %q: exactly one of http/stdio must be set", name)
	}

	if hasHTTP {
		if strings.TrimSpace(d.HTTP.URL) == "" {
			return ServerDefinition{}, fmt.Errorf("server %q: http.url is required", name)
		}
		http := *d.HTTP
		http.Headers = EnsureHTTPAcceptHeader(http.Headers)
		d.HTTP = &http
	}

	if hasStdio {
		if strings.TrimSpace(d.Stdio.Executable) == "" {
			return ServerDefinition{}, fmt.Errorf("server %q: stdio.executable is required", name)
		}
	}

	if d.Auth == OAuthAuth && strings.TrimSpace(d.TokenCacheDir) == "" {
		d.TokenCacheDir = filepath.Join(homeDir, ".mcporter", name)
	}

	return d, nil
}

// EnsureHTTPAcceptHeader returns headers with an Accept value that contains
// both required tokens, preserving any other caller-supplied value.
// Idempotent: calling it again on its own output is a no-op.
func EnsureHTTPAcceptHeader(headers map[string]string) map[string]string {
	const (
		tokenJSON = "application/json"
		tokenSSE  = "text/event-stream"
	)

	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}

	key := "Accept"
	existing := ""
	for k, v := range out {
		if strings.EqualFold(k, "Accept") {
			key = k
			existing = v
			delete(out, k)
			break
		}
	}

	lower := strings.ToLower(existing)
	if strings.Contains(lower, tokenJSON) && strings.Contains(lower, tokenSSE) {
		out[key] = existing
		return out
	}

	out[key] = tokenJSON + ", " + tokenSSE
	return out
}

// DefaultHomeDir returns the user's home directory, falling back to the
// current directory if it cannot be determined (keeps normalization total).
func DefaultHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return "."
}
