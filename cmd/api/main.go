package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "driving-alerts",
	Short: "Driving alerts - unsafe driving rule engine",
	Long: `Driving alerts ingests driving events and raises an alert whenever the
number of unsafe events for a location category in the trailing window
reaches that category's threshold.

Configuration is read from defaults, then an optional YAML file, then
environment variables (DB_URL, STORAGE_BACKEND, RULES, ...).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("driving-alerts version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (default: CONFIG_PATH or ./config.yaml)")

	// Running the binary without a subcommand serves.
	rootCmd.RunE = serveCmd.RunE

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
}
