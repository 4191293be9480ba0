// Package cmd defines and implements the CLI commands for the feedlint
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedlint/feedlint/internal/config"
	"github.com/feedlint/feedlint/internal/logging"
)

var (
	cfgFile string
	devMode bool
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedlint",
		Short: "A syndicated-feed fetcher and validator.",
		Long: `feedlint retrieves syndicated feeds (RSS, Atom, RDF, KML and the
Atom Publishing Protocol documents), checks transport and content
negotiation behavior along the way, and reports every finding as a
structured diagnostic.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVar(&devMode, "dev", false, "development logging")

	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadEnv builds the config and logger shared by all subcommands.
func loadEnv() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(devMode || cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
