package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var includeSchema bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog servers and their tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), includeSchema)
		},
	}
	cmd.Flags().BoolVar(&includeSchema, "schema", false, "Include tool input schemas")
	return cmd
}

func runList(ctx context.Context, includeSchema bool) error {
	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	kr := a.keepAliveRuntime()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, def := range a.defs {
		fmt.Printf("%s\n", def.Name)
		tools, err := kr.ListTools(ctx, def.Name, includeSchema)
		if err != nil {
			fmt.Printf("  (error: %v)\n", err)
			continue
		}
		for _, tool := range tools {
			fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
		}
	}
	return nil
}
