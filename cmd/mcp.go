package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	mcpserver "github.com/ziadkadry99/minutes/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol server on stdio, exposing the meeting
notes as question and search tools. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		topics, err := a.initialize(cmd.Context())
		if err != nil {
			return err
		}

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "minutes MCP server started on stdio (%d topic(s))\n", len(topics))
		return mcpserver.NewServer(a.pipeline).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
