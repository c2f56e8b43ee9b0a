package command

import (
	"os"

	"github.com/screenbeam/screenbeam/internal/ui"
	"github.com/screenbeam/screenbeam/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "screenbeam",
	Short:   "Broadcast your screen to any number of viewers via a shareable room link",
	Long:    `screenbeam lets one host broadcast their screen through a media relay to any number of anonymous viewers. Hosting creates a room on the registry and starts publishing; anyone with the room link can watch. No accounts: possession of the room's host token is the only credential.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
