/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/unbag/pkg/config"
	"github.com/ssargent/unbag/pkg/di"
	"github.com/ssargent/unbag/pkg/logging"
)

var (
	container *di.Container
	cfg       *config.Config
)

// SetContainer injects the dependency container the commands run with
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "unbag",
	Short: "unbag - ROS1 bag decoder",
	Long: `unbag reads ROS1 bag files chunk by chunk and decodes their records
against the message schemas it knows, optionally restricted to a set of topics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}

		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Flags override the file
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format, _ = cmd.Flags().GetString("log-format")
		}

		logger, err := logging.New(loaded.Logging, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to configure logging: %w", err)
		}
		container.SetLogger(logger)
		cfg = loaded
		return nil
	},
}

// loadConfig reads --config, or the default config path when it exists.
// Without a file the defaults apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}

	if !config.ConfigExists(configPath) {
		if explicit {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}
		return config.DefaultConfig(), nil
	}

	loaded, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return loaded, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.config/unbag/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
}
