package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "anvil",
	Short: "Anvil - hardware inspection rule engine",
	Long: `Anvil is a rule engine for bare-metal hardware inspection.

It evaluates operator-defined and built-in rules against the inventory
collected from a node, providing:
  - Condition checks against node fields and inventory data
  - Actions that set attributes, capabilities, traits, and plugin data
  - Fail-fast batch application with priority ordering
  - Masking of sensitive inventory fields
  - A history of batch applications per node`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
