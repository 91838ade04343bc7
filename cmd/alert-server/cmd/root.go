package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/emergency-alert/internal/config"
	"github.com/oshokin/emergency-alert/internal/logger"
	"github.com/oshokin/emergency-alert/internal/service/server"
	"github.com/oshokin/emergency-alert/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// dotEnvPath to an optional .env file with credentials.
	dotEnvPath string

	// rootCmd represents the base command for running the gRPC server.
	rootCmd = &cobra.Command{
		Use:   "alert-server [listen-address]",
		Short: "Run the emergency alert gRPC server.",
		Long: `Starts the gRPC server that triggers emergency alerts, notifies emergency
services, contacts and the subject, and escalates alerts left uncancelled.

The server listens on the specified address or uses settings from configuration file.
Only the port from server_addr is used for listening (e.g., :50051).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:8080).
Credentials for SMS, email, places and the emergency API may come from the environment
or from a .env file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			logger.InfoKV(ctx, "Starting alert server", "version", version.Full())

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				DotEnvPath:    dotEnvPath,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the alert-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&dotEnvPath, "env-file", "e", ".env", "path to an optional .env file")
}
