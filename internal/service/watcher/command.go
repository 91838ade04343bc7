package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	api "github.com/oshokin/emergency-alert/internal/api/grpc/alert"
	"github.com/oshokin/emergency-alert/internal/config"
	"github.com/oshokin/emergency-alert/internal/logger"
	"github.com/oshokin/emergency-alert/internal/service/common"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file; a missing file means defaults.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// PollInterval defines the interval between checks.
	PollInterval time.Duration
	// Out receives one line per opened or closed alert; os.Stdout when nil.
	Out io.Writer
}

// DefaultPollInterval defines the polling interval when none is given.
const DefaultPollInterval = 5 * time.Second

// lister is the part of the client the watcher uses.
type lister interface {
	ListActive(ctx context.Context) (*api.ListActiveResponse, error)
}

// Run polls active alerts until the context is cancelled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alert-watcher")

	// Load settings from configuration file.
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Establish gRPC connection with timeout from configuration.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	logger.InfoKV(ctx, "Watching active alerts", "server_address", serverAddress, "interval", interval.String())

	watch(ctx, client, interval, out)

	return nil
}

// watch reports changes of the active set on every tick until ctx is done.
func watch(ctx context.Context, client lister, interval time.Duration, out io.Writer) {
	known := make(map[int64]*api.ActiveAlert)

	// Check once before the first tick so the current set is shown immediately.
	known = check(ctx, client, known, out)

	// Setup polling ticker with fixed interval.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return
		case <-ticker.C:
			known = check(ctx, client, known, out)
		}
	}
}

// check lists active alerts, prints the difference with known and returns the new set.
// A failed call keeps the previous set.
func check(
	ctx context.Context,
	client lister,
	known map[int64]*api.ActiveAlert,
	out io.Writer,
) map[int64]*api.ActiveAlert {
	resp, err := client.ListActive(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "List active alerts failed", "error", err)

		return known
	}

	current := make(map[int64]*api.ActiveAlert, len(resp.Alerts))
	for _, a := range resp.Alerts {
		current[a.AlertID] = a

		if _, ok := known[a.AlertID]; !ok {
			coordinates := "unknown location"
			if a.Location != nil {
				coordinates = a.Location.Coordinates
			}

			_, _ = fmt.Fprintf(out, "OPEN   %d %s %s at %s\n", a.AlertID, a.AlertType, a.SubjectPhone, coordinates)
		}
	}

	closed := make([]int64, 0)

	for id := range known {
		if _, ok := current[id]; !ok {
			closed = append(closed, id)
		}
	}

	slices.Sort(closed)

	for _, id := range closed {
		_, _ = fmt.Fprintf(out, "CLOSED %d %s\n", id, known[id].SubjectPhone)
	}

	return current
}
