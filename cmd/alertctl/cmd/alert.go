package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
	"github.com/oshokin/emergency-alert/internal/service/client"
	"github.com/oshokin/emergency-alert/internal/service/watcher"
)

// defaultTriggerRetries is how many extra attempts a trigger makes while the server is unavailable.
const defaultTriggerRetries = 5

var errHalfCoordinates = errors.New("--lat and --lng must be given together")

func newTriggerCommand() *cobra.Command {
	var (
		trigger  client.TriggerOptions
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "trigger <phone>",
		Short: "Trigger an emergency alert.",
		Long: `Trigger an emergency alert for a registered subject.

Without --lat/--lng the server uses the last known location of the subject and
falls back to IP geolocation. The alert is escalated if it is not cancelled in time.`,
		Example: `  alertctl trigger +15550100 --type medical --lat 40.7128 --lng -74.0060 --message "Car accident"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger.Phone = args[0]

			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return errHalfCoordinates
			}

			if latSet {
				trigger.Latitude, trigger.Longitude = &lat, &lng
			}

			return client.Trigger(cmd.Context(), &options, &trigger)
		},
	}

	cmd.Flags().StringVarP(&trigger.AlertType, "type", "t", string(emergency.CategoryMedical),
		"alert type: medical, fire, police or general")
	cmd.Flags().StringVarP(&trigger.Message, "message", "m", "", "free-text description of the emergency")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the emergency")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude of the emergency")
	cmd.Flags().IntVar(&trigger.Retries, "retries", defaultTriggerRetries, "extra attempts while the server is unavailable")

	return cmd
}

func newQuickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "quick <phone>",
		Short: "Trigger a general alert at the last known location.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Trigger(cmd.Context(), &options, &client.TriggerOptions{
				Phone:     args[0],
				AlertType: string(emergency.CategoryGeneral),
				Message:   client.QuickAlertMessage,
				Retries:   defaultTriggerRetries,
			})
		},
	}
}

func newCancelCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <alert-id>",
		Short: "Cancel an alert and notify the subject.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAlertID(args[0])
			if err != nil {
				return err
			}

			return client.Cancel(cmd.Context(), &options, id, reason)
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why the alert is cancelled")

	return cmd
}

func newResolveCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Resolve an alert as an administrator.",
		Long: `Resolve an alert as an administrator. Unlike cancel, the subject is not notified,
and alerts left active in the database after a server restart can be resolved too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAlertID(args[0])
			if err != nil {
				return err
			}

			return client.Resolve(cmd.Context(), &options, id, reason)
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "resolution note")

	return cmd
}

func newActiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List active alerts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.ListActive(cmd.Context(), &options)
		},
	}
}

func parseAlertID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse alert id %q: %w", raw, err)
	}

	return id, nil
}

func newWatchCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow alerts as they open and close.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watcher.Run(cmd.Context(), &watcher.Options{
				ConfigPath:    options.ConfigPath,
				ServerAddress: options.ServerAddress,
				PollInterval:  interval,
				Out:           cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", watcher.DefaultPollInterval, "polling interval")

	return cmd
}
