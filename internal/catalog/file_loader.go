package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileServer is the on-disk shape of a single catalog entry. Reconciling the
// raw formats of external tool ecosystems (Cursor, Claude, Codex, VSCode,
// Windsurf) into this shape is out of scope (spec.md §1); this is
// mcporter's own normalized catalog file format.
type fileServer struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	HTTP        *fileHTTPCommand  `yaml:"http,omitempty"`
	Stdio       *fileStdioCommand `yaml:"stdio,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`

	Auth             string `yaml:"auth,omitempty"`
	TokenCacheDir    string `yaml:"tokenCacheDir,omitempty"`
	ClientName       string `yaml:"clientName,omitempty"`
	OAuthRedirectURL string `yaml:"oauthRedirectUrl,omitempty"`

	Lifecycle fileLifecycle `yaml:"lifecycle,omitempty"`
	Logging   fileLogging   `yaml:"logging,omitempty"`
}

type fileHTTPCommand struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

type fileStdioCommand struct {
	Executable string   `yaml:"executable"`
	Args       []string `yaml:"args,omitempty"`
	Cwd        string   `yaml:"cwd,omitempty"`
}

type fileLifecycle struct {
	KeepAlive     bool  `yaml:"keepAlive,omitempty"`
	IdleTimeoutMs int64 `yaml:"idleTimeoutMs,omitempty"`
}

type fileLogging struct {
	Daemon struct {
		Enabled bool `yaml:"enabled,omitempty"`
	} `yaml:"daemon,omitempty"`
}

type fileCatalog struct {
	Servers []fileServer `yaml:"servers"`
}

// FileLoader reads mcporter's own normalized catalog YAML format from disk
// and validates it. Each file contributes its path to ServerDefinition's
// Source/Sources provenance.
type FileLoader struct {
	Path    string
	HomeDir string
}

// Load implements Loader.
func (l FileLoader) Load(context.Context) ([]ServerDefinition, error) {
	// #nosec G304 -- the catalog path is explicitly operator-configured.
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", l.Path, err)
	}

	var parsed fileCatalog
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse catalog %q: %w", l.Path, err)
	}

	homeDir := l.HomeDir
	if homeDir == "" {
		homeDir = DefaultHomeDir()
	}

	seen := make(map[string]struct{}, len(parsed.Servers))
	out := make([]ServerDefinition, 0, len(parsed.Servers))
	for _, s := range parsed.Servers {
		def := ServerDefinition{
			Name:             s.Name,
			Description:      s.Description,
			Env:              s.Env,
			Auth:             AuthKind(s.Auth),
			TokenCacheDir:    s.TokenCacheDir,
			ClientName:       s.ClientName,
			OAuthRedirectURL: s.OAuthRedirectURL,
			Lifecycle: Lifecycle{
				KeepAlive:   s.Lifecycle.KeepAlive,
				IdleTimeout: time.Duration(s.Lifecycle.IdleTimeoutMs) * time.Millisecond,
			},
			Logging: LoggingConfig{
				DaemonEnabled: s.Logging.Daemon.Enabled,
			},
			Source:  l.Path,
			Sources: []string{l.Path},
		}
		if s.HTTP != nil {
			def.HTTP = &HTTPCommand{URL: s.HTTP.URL, Headers: s.HTTP.Headers}
		}
		if s.Stdio != nil {
			def.Stdio = &StdioCommand{Executable: s.Stdio.Executable, Args: s.Stdio.Args, Cwd: s.Stdio.Cwd}
		}

		normalized, err := def.Validate(homeDir)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[normalized.Name]; dup {
			return nil, fmt.Errorf("catalog %q: duplicate server name %q", l.Path, normalized.Name)
		}
		seen[normalized.Name] = struct{}{}
		out = append(out, normalized)
	}

	return out, nil
}
