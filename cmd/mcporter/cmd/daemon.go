package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mcporter/mcporter/internal/daemonproto"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the keep-alive daemon",
	}
	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool
	var logAll bool
	var logFile string
	var logServers []string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logOpts := daemonLogOptions{all: logAll, file: logFile, servers: logServers}
			if foreground {
				return runDaemonForeground(cmd.Context(), logOpts)
			}
			return runDaemonDetached(logOpts)
		},
	}
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run the daemon in the foreground instead of detaching")
	cmd.Flags().BoolVar(&logAll, "log", false, "Log every call to every managed server")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Override the daemon's log file path")
	cmd.Flags().StringSliceVar(&logServers, "log-servers", nil, "Only log calls to these servers (comma-separated)")
	return cmd
}

func runDaemonForeground(ctx context.Context, logOpts daemonLogOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	host, err := a.daemonHost(logOpts)
	if err != nil {
		return fmt.Errorf("build daemon host: %w", err)
	}
	return host.Run(ctx)
}

func runDaemonDetached(logOpts daemonLogOptions) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := []string{"daemon", "start", "--foreground"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if logOpts.all {
		args = append(args, "--log")
	}
	if logOpts.file != "" {
		args = append(args, "--log-file", logOpts.file)
	}
	for _, s := range logOpts.servers {
		args = append(args, "--log-servers", s)
	}
	daemonCmd := exec.Command(exe, args...)
	daemonCmd.Env = os.Environ()
	setDaemonDetached(daemonCmd)

	if err := daemonCmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	fmt.Printf("daemon started (pid %d)\n", daemonCmd.Process.Pid)
	return nil
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			resp, err := dialDaemon(ctx, a.socketPath, daemonproto.MethodStop, daemonproto.StatusParams{})
			if err != nil {
				return fmt.Errorf("stop daemon: %w", err)
			}
			if !resp.OK {
				return fmt.Errorf("stop daemon: %s", resp.Error.Message)
			}
			fmt.Println("daemon stopped")
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			resp, err := dialDaemon(ctx, a.socketPath, daemonproto.MethodStatus, daemonproto.StatusParams{})
			if err != nil {
				fmt.Println("daemon is not running")
				return nil
			}
			if !resp.OK {
				return fmt.Errorf("status: %s", resp.Error.Message)
			}
			var status daemonproto.StatusResult
			if err := resp.DecodeResult(&status); err != nil {
				return err
			}
			fmt.Printf("pid: %d\nstarted at: %s\nmanaged servers: %d\n", status.PID, status.StartedAt, len(status.Servers))
			for _, s := range status.Servers {
				fmt.Printf("  - %s\n", s)
			}
			return nil
		},
	}
}

// dialDaemon is the one-shot CLI-side sibling of keepalive's daemonClient:
// dial, write the framed request, half-close, read the framed response.
func dialDaemon(ctx context.Context, socketPath, method string, params any) (daemonproto.Response, error) {
	return rawDialDaemon(ctx, socketPath, method, params, uuid.NewString())
}
