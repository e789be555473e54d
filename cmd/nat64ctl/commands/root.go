// Package commands implements the nat64ctl CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the path to the nat64d YAML configuration file being
	// inspected. Empty means DefaultConfig().
	configPath string

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string
)

// rootCmd is the top-level cobra command for nat64ctl.
var rootCmd = &cobra.Command{
	Use:   "nat64ctl",
	Short: "Inspection and validation tool for nat64d configuration",
	Long:  "nat64ctl loads a nat64d configuration file and reports the pool4 addresses and filtering settings it would produce.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to nat64d configuration file (YAML); defaults built in if omitted")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "output format: table, json")

	rootCmd.AddCommand(pool4Cmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
