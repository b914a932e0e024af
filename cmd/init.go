package cmd

import (
	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize townctl configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that asks for the game server URL, panel port and backup target, and writes .townctl.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
