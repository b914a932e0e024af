package cmd

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/springfield-ops/townctl/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve read-only game server tools over MCP on stdio",
	Long: `Starts an MCP server on stdio exposing server status, user search,
the moderation queue, town info and the local audit trail. It uses the
stored staff login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		c, err := a.staff(cmd.Context())
		if err != nil {
			return err
		}
		return mcpserver.NewServer(c, a.audit).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
