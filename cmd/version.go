package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/alantheprice/refactord/pkg/planner"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersionInfo(cmd.OutOrStdout())
	},
}

// These variables are set at build time using -ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = ""
)

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.RunE = runRoot
}

// runRoot handles a bare invocation: -v prints the version, anything else
// prints help.
func runRoot(cmd *cobra.Command, args []string) error {
	if versionFlag, _ := cmd.Flags().GetBool("version"); versionFlag {
		printVersionInfo(cmd.OutOrStdout())
		return nil
	}
	return cmd.Help()
}

func printVersionInfo(w io.Writer) {
	fmt.Fprintf(w, "refactord version %s\n", version)
	fmt.Fprintf(w, "Planner version: %s\n", planner.Version)
	if buildDate != "unknown" {
		fmt.Fprintf(w, "Build date: %s\n", buildDate)
	}
	if gitCommit != "" {
		fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
	}
	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	if info, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, "Module: %s\n", info.Main.Path)
	}
	fmt.Fprintf(w, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
