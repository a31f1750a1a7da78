package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pmorales/segmint/internal/mcpserv"
	"github.com/pmorales/segmint/internal/store"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Segmint MCP server",
	Long:  `Launch an MCP server that allows AI agents to run the pipeline and review blocks via standard tools.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Suppress the normal header logs when running in MCP mode
		// to avoid polluting stdio which is used for the protocol.
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcpserv.StartMCPServer(rootCtx, cfg, store.Manager)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
