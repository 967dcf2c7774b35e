// Package commands implements the factory CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "factory",
	Short: "Task queue for agent workers",
	Long: `Factory coordinates a pool of agent workers over a shared task queue.

Producers add typed, prioritized tasks; workers claim them one at a time,
report progress, and hand back results. The claim protocol guarantees a
task is never run by two workers at once, even across processes.`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.config/factory/config.yaml)")
}
