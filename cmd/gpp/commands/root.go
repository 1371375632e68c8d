// Package commands provides the CLI commands for gpp.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-prime-paths/internal/config"
	"github.com/l3aro/go-prime-paths/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gpp",
	Short: "gpp - control flow graphs and prime paths for C and C++",
	Long: `gpp builds control flow graphs for C and C++ functions and extracts their
prime paths for structural test coverage.

Commands:
  cfg         Build and print the CFGs of a source file
  build       Build CFG artifacts for a file or a source tree
  paths       Extract prime paths from an edge list
  init        Write a configuration file interactively

Use "gpp [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

var (
	configPath string
	logLevel   string
	logJSON    bool
)

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

// loadSettings loads the configuration and applies its logging settings to the
// default logger. Flags win over the configuration.
func loadSettings(cmd *cobra.Command) (*config.Config, log.Logger, error) {
	var (
		settings *config.Config
		err      error
	)
	if configPath != "" {
		settings, err = config.LoadFromFile(configPath)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		settings.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		settings.LogJSON = logJSON
	}
	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	logger := log.Default()
	logger.SetLevel(level)
	logger.SetJSONOutput(settings.LogJSON)
	return settings, logger, nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.gpp/config.yaml and ./.gpp/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")

	RootCmd.AddCommand(cfgCmd)
	RootCmd.AddCommand(buildCmd)
	RootCmd.AddCommand(pathsCmd)
	RootCmd.AddCommand(initCmd)
}
