package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Warm up keep-alive servers and hold the process open",
		Long: `serve ensures the daemon is running and every keep-alive server in the
catalog has a warm session, then blocks until interrupted. This is the
foreground entry point clients that want mcporter always warm should run;
short-lived CLI invocations like "list" and "call" never need it, since
they auto-launch the daemon themselves on first use.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	return cmd
}

func runServe(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	kr := a.keepAliveRuntime()

	if err := kr.EnsureDaemon(ctx); err != nil {
		return fmt.Errorf("ensure daemon: %w", err)
	}

	for _, def := range a.defs {
		if !def.Lifecycle.KeepAlive {
			continue
		}
		if _, err := kr.ListTools(ctx, def.Name, false); err != nil {
			fmt.Fprintf(os.Stderr, "warm %s: %v\n", def.Name, err)
		}
	}

	fmt.Fprintln(os.Stderr, "mcporter serve: keep-alive servers warmed, holding open")
	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "mcporter serve: shutting down")
	return nil
}
