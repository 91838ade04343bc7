//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	api "github.com/oshokin/emergency-alert/internal/api/grpc/alert"
	"github.com/oshokin/emergency-alert/internal/config"
)

// Client wraps a gRPC connection to the alert server with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the alert server.
	conn *grpc.ClientConn

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is sent as the actor header for audit logging.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches the given "user@host" actor to every call.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errPhoneRequired is returned when a call needs a subject phone.
	errPhoneRequired = errors.New("phone must be provided")
	// errAlertIDRequired is returned when a call needs an alert id.
	errAlertIDRequired = errors.New("alert id must be provided")
)

// Dial establishes a gRPC connection to the alert server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial alert server: %w", err)
	}

	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// RegisterSubject registers a subject with contacts in the "Name: phone" shorthand.
func (c *Client) RegisterSubject(ctx context.Context, req *api.RegisterSubjectRequest) (*api.SubjectResponse, error) {
	if req == nil || req.Phone == "" {
		return nil, errPhoneRequired
	}

	return invoke[api.SubjectResponse](ctx, c, api.MethodRegisterSubject, req)
}

// AddContact appends one contact to a subject.
func (c *Client) AddContact(ctx context.Context, phone, contact string) (*api.SubjectResponse, error) {
	if phone == "" {
		return nil, errPhoneRequired
	}

	return invoke[api.SubjectResponse](ctx, c, api.MethodAddContact, &api.AddContactRequest{
		Phone:   phone,
		Contact: contact,
	})
}

// UpdateLocation records the current coordinates of a subject.
func (c *Client) UpdateLocation(ctx context.Context, phone string, lat, lng float64) (*api.LocationResponse, error) {
	if phone == "" {
		return nil, errPhoneRequired
	}

	return invoke[api.LocationResponse](ctx, c, api.MethodUpdateLocation, &api.UpdateLocationRequest{
		Phone:     phone,
		Latitude:  lat,
		Longitude: lng,
	})
}

// Trigger raises an alert.
func (c *Client) Trigger(ctx context.Context, req *api.TriggerRequest) (*api.TriggerResponse, error) {
	if req == nil || req.Phone == "" {
		return nil, errPhoneRequired
	}

	return invoke[api.TriggerResponse](ctx, c, api.MethodTrigger, req)
}

// Cancel cancels an alert on behalf of its subject.
func (c *Client) Cancel(ctx context.Context, alertID int64, reason string) (*api.ResolveResponse, error) {
	if alertID <= 0 {
		return nil, errAlertIDRequired
	}

	return invoke[api.ResolveResponse](ctx, c, api.MethodCancel, &api.CancelRequest{
		AlertID: alertID,
		Reason:  reason,
	})
}

// Resolve resolves an alert administratively.
func (c *Client) Resolve(ctx context.Context, alertID int64, reason string) (*api.ResolveResponse, error) {
	if alertID <= 0 {
		return nil, errAlertIDRequired
	}

	return invoke[api.ResolveResponse](ctx, c, api.MethodResolve, &api.ResolveRequest{
		AlertID: alertID,
		Reason:  reason,
	})
}

// Status returns the status of a subject.
func (c *Client) Status(ctx context.Context, phone string) (*api.StatusResponse, error) {
	if phone == "" {
		return nil, errPhoneRequired
	}

	return invoke[api.StatusResponse](ctx, c, api.MethodStatus, &api.StatusRequest{Phone: phone})
}

// ListActive returns every registered alert.
func (c *Client) ListActive(ctx context.Context) (*api.ListActiveResponse, error) {
	return invoke[api.ListActiveResponse](ctx, c, api.MethodListActive, &api.ListActiveRequest{})
}

// SelfTest runs the self-test for a subject.
func (c *Client) SelfTest(ctx context.Context, phone string) (*api.SelfTestResponse, error) {
	if phone == "" {
		return nil, errPhoneRequired
	}

	return invoke[api.SelfTestResponse](ctx, c, api.MethodSelfTest, &api.SelfTestRequest{Phone: phone})
}

// invoke performs one unary call with the client's timeout and actor header.
func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if c.actor != "" {
		callCtx = metadata.AppendToOutgoingContext(callCtx, api.ActorHeader, c.actor)
	}

	resp := new(Resp)
	if err := c.conn.Invoke(callCtx, api.FullMethod(method), req, resp); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return resp, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
