package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	var argsJSON string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "call <server> <tool>",
		Short: "Call a tool on a configured server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), args[0], args[1], argsJSON, timeout)
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Call timeout")
	return cmd
}

func runCall(ctx context.Context, server, tool, argsJSON string, timeout time.Duration) error {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Errorf("parse --args: %w", err)
	}

	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	kr := a.keepAliveRuntime()

	result, err := kr.CallTool(ctx, server, tool, args, timeout)
	if err != nil {
		return fmt.Errorf("call %s/%s: %w", server, tool, err)
	}

	if text := result.Text(); text != nil {
		fmt.Println(*text)
		return nil
	}
	if structured := result.Structured(); structured != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(structured)
	}
	fmt.Printf("%+v\n", result.Raw())
	return nil
}
