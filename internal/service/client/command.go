package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/emergency-alert/internal/api/grpc/alert"
	"github.com/oshokin/emergency-alert/internal/config"
	"github.com/oshokin/emergency-alert/internal/logger"
	"github.com/oshokin/emergency-alert/internal/service/common"
)

// Options configures how alertctl reaches the alert server.
type Options struct {
	// ConfigPath to YAML settings file; a missing file means defaults.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Out receives the human-readable results; os.Stdout when nil.
	Out io.Writer
}

// TriggerOptions describes an alert to raise.
type TriggerOptions struct {
	Phone     string
	AlertType string
	Message   string
	// Latitude and Longitude are optional and must be given together.
	Latitude  *float64
	Longitude *float64
	// Retries is how many extra attempts are made while the server is unavailable.
	Retries int
	// RetryInterval is the delay between attempts.
	RetryInterval time.Duration
}

const (
	// defaultRetryInterval defines retry delay when pushing an alert to the server.
	defaultRetryInterval = 1 * time.Second
	// callTimeoutFactor scales the configured timeout; a trigger chains several collaborator calls.
	callTimeoutFactor = 4
	// QuickAlertMessage is the message of the quick trigger.
	QuickAlertMessage = "Quick emergency alert"
)

// Register registers a subject with its emergency contacts.
func Register(ctx context.Context, opts *Options, req *api.RegisterSubjectRequest) error {
	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		resp, err := c.RegisterSubject(ctx, req)
		if err != nil {
			return err
		}

		printSubject(out, resp)

		return nil
	})
}

// AddContact appends one contact in the "Name: phone" shorthand.
func AddContact(ctx context.Context, opts *Options, phone, contact string) error {
	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		resp, err := c.AddContact(ctx, phone, contact)
		if err != nil {
			return err
		}

		printSubject(out, resp)

		return nil
	})
}

// UpdateLocation records the current coordinates of a subject.
func UpdateLocation(ctx context.Context, opts *Options, phone string, lat, lng float64) error {
	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		resp, err := c.UpdateLocation(ctx, phone, lat, lng)
		if err != nil {
			return err
		}

		printLocation(out, resp)

		return nil
	})
}

// Trigger raises an alert, retrying while the server is unavailable.
func Trigger(ctx context.Context, opts *Options, trigger *TriggerOptions) error {
	ctx = logger.WithName(ctx, "alertctl")

	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		request := &api.TriggerRequest{
			Phone:     trigger.Phone,
			AlertType: trigger.AlertType,
			Message:   trigger.Message,
			Latitude:  trigger.Latitude,
			Longitude: trigger.Longitude,
		}

		// attempt tries once to raise the alert, returns (completed, error).
		attempt := func() (bool, error) {
			resp, err := c.Trigger(ctx, request)
			if err != nil {
				if retryable(err) {
					logger.ErrorKV(ctx, "Trigger failed, retrying", "error", err)

					return false, nil
				}

				return false, err
			}

			printTrigger(out, resp)

			return true, nil
		}

		// Attempt immediately before starting retry loop.
		if done, err := attempt(); err != nil || done {
			return err
		}

		interval := trigger.RetryInterval
		if interval <= 0 {
			interval = defaultRetryInterval
		}

		// Setup retry timer for subsequent attempts.
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range trigger.Retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				done, err := attempt()
				if err != nil || done {
					return err
				}
			}
		}

		return errRetriesExhausted
	})
}

// Cancel cancels an alert on behalf of its subject.
func Cancel(ctx context.Context, opts *Options, alertID int64, reason string) error {
	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		resp, err := c.Cancel(ctx, alertID, reason)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(out, resp.Message)

		return nil
	})
}

// Resolve resolves an alert administratively.
func Resolve(ctx context.Context, opts *Options, alertID int64, reason string) error {
	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		resp, err := c.Resolve(ctx, alertID, reason)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(out, resp.Message)

		return nil
	})
}

// Status prints the status of a subject.
func Status(ctx context.Context, opts *Options, phone string) error {
	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		resp, err := c.Status(ctx, phone)
		if err != nil {
			return err
		}

		printStatus(out, resp)

		return nil
	})
}

// ListActive prints every registered alert.
func ListActive(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		resp, err := c.ListActive(ctx)
		if err != nil {
			return err
		}

		printActive(out, resp)

		return nil
	})
}

// SelfTest runs the self-test for a subject; it fails when any step failed.
func SelfTest(ctx context.Context, opts *Options, phone string) error {
	return withClient(ctx, opts, func(ctx context.Context, c *common.Client, out io.Writer) error {
		resp, err := c.SelfTest(ctx, phone)
		if err != nil {
			return err
		}

		if !printSelfTest(out, resp) {
			return errSelfTestFailed
		}

		return nil
	})
}

var (
	// errRetriesExhausted is returned when the server stayed unavailable.
	errRetriesExhausted = errors.New("alert server unavailable, retries exhausted")
	// errSelfTestFailed is returned when at least one self-test step failed.
	errSelfTestFailed = errors.New("self-test failed")
)

// withClient loads settings, dials the server and runs fn with the connection.
func withClient(
	ctx context.Context,
	opts *Options,
	fn func(ctx context.Context, c *common.Client, out io.Writer) error,
) error {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	clientOptions := []common.Option{common.WithCallTimeout(cfg.Timeout * callTimeoutFactor)}

	// Identify current user and hostname for audit logging.
	if actor, err := common.DetectActor(); err == nil {
		clientOptions = append(clientOptions, common.WithActor(actor))
	}

	client, err := common.Dial(ctx, serverAddress, clientOptions...)
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return fn(ctx, client, out)
}

// retryable reports whether the call may succeed when repeated.
func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
