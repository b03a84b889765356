package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/mcporter/mcporter/internal/catalog"
	"github.com/mcporter/mcporter/internal/config"
	"github.com/mcporter/mcporter/internal/daemonhost"
	"github.com/mcporter/mcporter/internal/keepalive"
	"github.com/mcporter/mcporter/internal/runtime"
)

// app bundles everything a subcommand needs: the resolved config, the
// catalog, a base Runtime, and the daemon socket/metadata paths derived
// from it (spec.md §6.1/§6.2).
type app struct {
	cfg        config.AppConfig
	defs       []catalog.ServerDefinition
	base       *runtime.Runtime
	socketPath string
	metaPath   string
	logPath    string
}

func loadApp(configPath string) (*app, error) {
	appCfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	homeDir := catalog.DefaultHomeDir()
	loader := catalog.FileLoader{Path: appCfg.Catalog.Path, HomeDir: homeDir}
	defs, err := loader.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	base := runtime.New(homeDir)
	for _, def := range defs {
		if err := base.RegisterDefinition(def); err != nil {
			return nil, fmt.Errorf("register %q: %w", def.Name, err)
		}
	}

	effectiveConfigPath := appCfg.Catalog.Path
	socketPath, metaPath := daemonhost.Paths(appCfg.Daemon.SocketDir, effectiveConfigPath)
	logPath := filepath.Join(appCfg.Daemon.LogDir, logFileName(effectiveConfigPath))

	return &app{
		cfg:        appCfg,
		defs:       defs,
		base:       base,
		socketPath: socketPath,
		metaPath:   metaPath,
		logPath:    logPath,
	}, nil
}

func logFileName(configPath string) string {
	sum := sha256.Sum256([]byte(configPath))
	return hex.EncodeToString(sum[:])[:16] + ".log"
}

// keepAliveRuntime builds the client-facing Runtime that routes keep-alive
// servers through the daemon.
func (a *app) keepAliveRuntime() *keepalive.Runtime {
	launch := keepalive.LaunchConfig{
		ConfigPath: a.cfg.Catalog.Path,
		SocketPath: a.socketPath,
		MetaPath:   a.metaPath,
	}
	return keepalive.New(a.base, a.socketPath, launch, a.defs)
}

// daemonLogOptions carries the daemon's --log/--log-file/--log-servers
// flags (spec.md §4.E); the zero value defers entirely to config-file/env
// settings.
type daemonLogOptions struct {
	all     bool
	file    string
	servers []string
}

// daemonHost builds the daemon process's own Host, bound to a fresh
// Runtime (the daemon owns its own connections, separate from any
// foreground caller's base Runtime).
func (a *app) daemonHost(logOpts daemonLogOptions) (*daemonhost.Host, error) {
	homeDir := catalog.DefaultHomeDir()
	rt := runtime.New(homeDir)
	for _, def := range a.defs {
		if err := rt.RegisterDefinition(def); err != nil {
			return nil, fmt.Errorf("register %q: %w", def.Name, err)
		}
	}

	logPath := a.logPath
	if logOpts.file != "" {
		logPath = logOpts.file
	}
	logEnabled := a.cfg.Daemon.LogEnabled || logOpts.all || logOpts.file != "" || len(logOpts.servers) > 0
	logServers := append(append([]string{}, a.cfg.Daemon.LogServers...), logOpts.servers...)

	return daemonhost.New(daemonhost.Options{
		SocketPath:        a.socketPath,
		MetaPath:          a.metaPath,
		ConfigPath:        a.cfg.Catalog.Path,
		LogPath:           logPath,
		LogEnabled:        logEnabled,
		LogAllServers:     a.cfg.Daemon.LogAllServers || logOpts.all,
		LogServers:        logServers,
		IdleCheckInterval: a.cfg.Daemon.IdleCheckInterval,
	}, rt, a.defs)
}
