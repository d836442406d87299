/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/unbag/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the unbag configuration file",
	// The file may not exist yet, so nothing is loaded here.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}
		return nil
	},
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file with a generated API key",
	Long: `Write a default configuration file. The server API key is generated.

The path is taken from the argument, then --config, then the default location.

Examples:
  unbag config init
  unbag config init ./unbag.yaml --bag-dir ./bags --print-key`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if len(args) == 1 {
			configPath = args[0]
		}
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		bagDir, _ := cmd.Flags().GetString("bag-dir")
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")

		if config.ConfigExists(configPath) && !force {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
		}

		created, err := config.BootstrapConfig(configPath, bagDir)
		if err != nil {
			return err
		}

		cmd.Printf("Configuration created at %s\n", configPath)
		if printKey {
			cmd.Printf("API key: %s\n", created.Server.APIKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().String("bag-dir", "", "Directory of bags the server reads")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	configInitCmd.Flags().Bool("print-key", false, "Print the generated API key")
}
