package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/emergency-alert/internal/config"
	"github.com/oshokin/emergency-alert/internal/service/client"
	"github.com/oshokin/emergency-alert/internal/version"
)

var (
	// options shared by every subcommand.
	options client.Options

	// rootCmd is the base command of the alert client.
	rootCmd = &cobra.Command{
		Use:   "alertctl",
		Short: "Trigger, cancel and inspect emergency alerts.",
		Long: `alertctl talks to the alert server: it registers subjects and their emergency
contacts, records locations, triggers and cancels alerts, and shows what is active.

The server address comes from the configuration file unless --server is given.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			options.Out = cmd.OutOrStdout()
		},
	}
)

// Execute runs the alertctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful cancellation of in-flight calls and retries.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly before exiting.
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&options.ServerAddress, "server", "s", "", "alert server address, overrides the configuration")

	rootCmd.AddCommand(
		newRegisterCommand(),
		newContactCommand(),
		newLocationCommand(),
		newTriggerCommand(),
		newQuickCommand(),
		newCancelCommand(),
		newResolveCommand(),
		newStatusCommand(),
		newActiveCommand(),
		newWatchCommand(),
		newSelfTestCommand(),
	)
}
