// Package commands implements the rlcam-sim CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rlcam-sim",
	Short: "Loopback simulator for the RLC Acknowledged Mode entity",
	Long: `rlcam-sim drives two RLC AM entities against each other over an
in-process lossy channel, so the ARQ/segmentation/reassembly machinery can
be exercised and observed without a real MAC/PHY stack underneath.

Use "rlcam-sim [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/rlcam/config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string { return cfgFile }

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
