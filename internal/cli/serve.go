package cli

import (
	"context"

	"github.com/spf13/cobra"

	"hmdoc/internal/app"
)

func init() {
	rootCmd.AddCommand(serveMCPCmd)
	rootCmd.AddCommand(watchCmd)
}

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Run the MCP server on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.ServeMCP(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run publish schedules and the import watcher until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.Watch(ctx)
		})
	},
}
