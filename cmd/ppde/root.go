package main

import (
	"github.com/spf13/cobra"

	"ppde/internal/version"
)

var (
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "ppde",
	Short: "ppde - personal pattern deviation engine",
	Long: `ppde learns how you usually write Python from your own git history and
points out code in the working tree that departs from those habits.

It reports only statistically clear deviations. A repository without enough
history produces no findings.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("ppde version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
}
