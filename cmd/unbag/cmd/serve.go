/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/unbag/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the unbag REST API server over the bags in a directory.

Requests to /api/v1 need the X-API-Key header when an API key is configured.
Prometheus metrics are served unauthenticated at /metrics.

Examples:
  unbag serve --bag-dir ./bags --api-key=mysecretkey
  unbag serve --bag-dir ./bags --port 9400 --bind 0.0.0.0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := cfg.Server

		// Override config with command line flags if provided
		if cmd.Flags().Changed("bag-dir") {
			server.BagDir, _ = cmd.Flags().GetString("bag-dir")
		}
		if cmd.Flags().Changed("port") {
			server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			server.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			server.APIKey, _ = cmd.Flags().GetString("api-key")
		}

		if server.APIKey == "" {
			container.GetLogger().Warn("no API key configured; the API is open to anyone who can reach it")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Printf("Serving bags from %s on %s:%d\n", server.BagDir, server.Bind, server.Port)
		cmd.Printf("Metrics available at: http://%s:%d/metrics\n", server.Bind, server.Port)

		starter := container.GetServerFactory().CreateServerStarter()
		return starter.StartServer(ctx, api.ServerConfig{
			Port:   server.Port,
			Bind:   server.Bind,
			APIKey: server.APIKey,
			BagDir: server.BagDir,
		}, container.Dependencies())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("bag-dir", ".", "Directory of bags to serve")
	serveCmd.Flags().IntP("port", "p", 9300, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind server to")
	serveCmd.Flags().String("api-key", "", "API key clients must send in X-API-Key")
}
