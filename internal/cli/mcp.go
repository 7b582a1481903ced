package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	tfmcp "github.com/valter-silva-au/taskflow/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the taskflow MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the taskflow MCP server on stdio",
	Long: `Start the taskflow MCP server on stdio transport.

The server acts as the signed-in user and exposes these tools to AI
assistants: list_tasks, create_task, update_task_status, delete_task,
analyze_task, get_activity. Sign in with "taskflow login" first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if API == nil || Sessions == nil {
			return errNotInitialized
		}

		srv := tfmcp.NewServer(taskListConfig(nil, nil), Suggester, Summarizer, appVersion)
		if err := srv.Run(commandContext(cmd)); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
