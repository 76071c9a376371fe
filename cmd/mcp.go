package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/bugboard/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an agent read and file bugs against the same store the REST
API uses. Configure it in your MCP client with:

  {
    "mcpServers": {
      "bugboard": { "command": "bugboard", "args": ["mcp"] }
    }
  }

Available tools: bugs_list, bugs_get, bugs_create, bugs_update,
bugs_delete, bugs_stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	// stdout carries the protocol; keep all other output off it.
	ui.Out = ui.ErrOut
	return mcp.NewServer(svc, buildVersion).ServeStdio(cmd.Context())
}
