package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "refactord",
	Short: "Plan and apply AI-assisted refactors with verifiable diffs",
	Long: `refactord plans which files of a workspace to refactor, generates
candidate rewrites, normalizes both sides, and reports unified diffs with
content digests. Changed files can be committed to a fresh branch.

Available commands:
  serve     - Run the HTTP API (/plan, /refactor, /refactor/stream)
  plan      - Plan target files for a local directory
  refactor  - Refactor local files and print the diffs
  version   - Print version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .refactord/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(refactorCmd)
}
