// Package cmd provides the CLI commands for extcare.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/extcare-billing/config"
	"github.com/warp/extcare-billing/logging"
	"github.com/warp/extcare-billing/store"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
	jsonOut bool
	cfg     *config.Config
)

var logger = zap.NewNop()

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "extcare",
	Short: "Calculate extended-care fees",
	Long: `extcare computes monthly extended-care fees for students attending
outside the school's free window, and saves them as fee records.

Examples:
  extcare seed --scenario activity-overlap --db ./demo.db
  extcare calc -f request.yaml --db ./demo.db
  extcare calc --scenario sibling-chauffeur
  extcare save -f request.yaml --reason "Hardship waiver"
  extcare fees student-ava
  extcare recalc --month 2025-09`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (defaults apply without one)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")

	// Add subcommands
	rootCmd.AddCommand(calcCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(feesCmd)
	rootCmd.AddCommand(recalcCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	loaded, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if dbPath != "" {
		loaded.Database.Driver = "sqlite"
		loaded.Database.Path = dbPath
	}
	cfg = loaded

	// The CLI logs to stderr in console format so stdout stays parseable.
	logCfg := cfg.Logging
	logCfg.Format = "console"
	logCfg.Output = "stderr"
	if verbose {
		logCfg.Level = "debug"
	} else if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	l, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return
	}
	logger = l
}

// openStore opens the configured store. An in-memory store only lives for
// the duration of one command.
func openStore() (store.Store, error) {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "extcare version 0.1.0")
	},
}
