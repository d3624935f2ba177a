// Command hatena-mcp runs the Hatena blog MCP bridge.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version can be set during build with -ldflags
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hatena-mcp",
	Short: "MCP server that links Hatena blog accounts through OAuth",
	Long: `hatena-mcp is an OAuth 2.0 authorization server and a bearer-protected
MCP endpoint. Users link their Hatena account through the OAuth 1.0a flow and
the linked credential is kept for later tool calls.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version
	rootCmd.AddCommand(newServeCmd(), newKeygenCmd(), newClientCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
