package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/api"
)

var (
	cfgFile    string
	verbose    bool
	assumeYes  bool
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "townctl",
	Short: "Operate a TSTO game server from the command line",
	Long: `townctl is the operator's client for a TSTO game server. It moves town
saves between disk and server, runs the admin dashboard controls, searches
and edits the user directories, and serves a local staff web panel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetFlags(0)
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

// Execute runs the root command and prints any error as one line.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".townctl.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every confirmation")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
}

// userMessage turns an error into the line shown to the operator.
func userMessage(err error) string {
	if errors.Is(err, errNoSession) {
		return err.Error()
	}
	return api.Message(err)
}
