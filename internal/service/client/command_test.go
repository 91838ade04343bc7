package client

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	api "github.com/oshokin/emergency-alert/internal/api/grpc/alert"
)

// fakeAPI implements the alert service with canned responses.
type fakeAPI struct {
	// unavailable is the number of trigger calls rejected before one succeeds.
	unavailable atomic.Int32
	triggers    atomic.Int32
}

func (f *fakeAPI) RegisterSubject(_ context.Context, req *api.RegisterSubjectRequest) (*api.SubjectResponse, error) {
	return &api.SubjectResponse{
		Success: true,
		Message: "User registered successfully",
		Subject: &api.Subject{
			Phone:    req.Phone,
			Name:     req.Name,
			Contacts: []api.Contact{{Name: "Bob", Phone: "+1555"}},
		},
	}, nil
}

func (f *fakeAPI) AddContact(context.Context, *api.AddContactRequest) (*api.SubjectResponse, error) {
	return &api.SubjectResponse{Success: true, Message: "Emergency contact added"}, nil
}

func (f *fakeAPI) UpdateLocation(_ context.Context, req *api.UpdateLocationRequest) (*api.LocationResponse, error) {
	return &api.LocationResponse{
		Success:      true,
		Message:      "Location updated successfully",
		Location:     &api.LocationFix{Latitude: req.Latitude, Longitude: req.Longitude, Method: "explicit"},
		HighRiskZone: true,
	}, nil
}

func (f *fakeAPI) Trigger(_ context.Context, req *api.TriggerRequest) (*api.TriggerResponse, error) {
	f.triggers.Add(1)

	if f.unavailable.Add(-1) >= 0 {
		return nil, status.Error(codes.Unavailable, "collaborator failure")
	}

	if req.Phone == "+2" {
		return nil, status.Error(codes.NotFound, "subject not found")
	}

	return &api.TriggerResponse{
		Success: true,
		Message: "Emergency alert sent successfully",
		AlertID: 1,
		Location: &api.LocationSummary{
			Coordinates: "40.0, -74.0",
			Method:      "explicit",
			MapsLink:    "https://www.google.com/maps?q=40.0,-74.0",
		},
		Notifications: &api.NotificationReport{Services: "succeeded", Contacts: "failed", Subject: "succeeded"},
	}, nil
}

func (f *fakeAPI) Cancel(_ context.Context, req *api.CancelRequest) (*api.ResolveResponse, error) {
	return &api.ResolveResponse{Success: true, Message: "Alert cancelled successfully. Reason: " + req.Reason}, nil
}

func (f *fakeAPI) Resolve(context.Context, *api.ResolveRequest) (*api.ResolveResponse, error) {
	return &api.ResolveResponse{Success: true, Message: "Alert resolved"}, nil
}

func (f *fakeAPI) Status(_ context.Context, req *api.StatusRequest) (*api.StatusResponse, error) {
	return &api.StatusResponse{
		Success: true,
		Subject: &api.Subject{Phone: req.Phone, Name: "Alice"},
		ActiveAlert: &api.ActiveAlert{
			AlertID:   1,
			AlertType: "medical",
			CreatedAt: timestamppb.New(time.Unix(0, 0)),
		},
	}, nil
}

func (f *fakeAPI) ListActive(context.Context, *api.ListActiveRequest) (*api.ListActiveResponse, error) {
	return &api.ListActiveResponse{
		Success: true,
		Message: "1 active alert(s)",
		Alerts:  []*api.ActiveAlert{{AlertID: 1, AlertType: "fire", SubjectPhone: "+1"}},
	}, nil
}

func (f *fakeAPI) SelfTest(context.Context, *api.SelfTestRequest) (*api.SelfTestResponse, error) {
	return &api.SelfTestResponse{
		Success: true,
		Steps: []api.SelfTestStep{
			{Name: "subject_lookup", Passed: true, Detail: "Subject found"},
			{Name: "notifications", Detail: "sms: not configured"},
		},
	}, nil
}

// startServer serves fake on a loopback port and returns options pointing at it.
func startServer(t *testing.T, fake *fakeAPI) (*Options, *bytes.Buffer) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	api.Register(srv, fake)

	go func() {
		_ = srv.Serve(lis) //nolint:errcheck // Serve returns once the test stops the server.
	}()

	t.Cleanup(srv.Stop)

	out := new(bytes.Buffer)

	return &Options{
		ConfigPath:    filepath.Join(t.TempDir(), "missing.yaml"),
		ServerAddress: lis.Addr().String(),
		Out:           out,
	}, out
}

// TestTrigger_RetriesWhileUnavailable retries transient failures and prints the alert.
func TestTrigger_RetriesWhileUnavailable(t *testing.T) {
	t.Parallel()

	fake := new(fakeAPI)
	fake.unavailable.Store(2)

	opts, out := startServer(t, fake)
	lat, lng := 40.0, -74.0

	err := Trigger(context.Background(), opts, &TriggerOptions{
		Phone:         "+1",
		Latitude:      &lat,
		Longitude:     &lng,
		Retries:       3,
		RetryInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, int32(3), fake.triggers.Load())
	require.Contains(t, out.String(), "Emergency alert sent successfully (alert 1)")
	require.Contains(t, out.String(), "location: 40.0, -74.0 (explicit)")
	require.Contains(t, out.String(), "contacts failed")
}

// TestTrigger_StopsOnPermanentErrors neither retries rejections nor retries forever.
func TestTrigger_StopsOnPermanentErrors(t *testing.T) {
	t.Parallel()

	fake := new(fakeAPI)
	opts, _ := startServer(t, fake)

	err := Trigger(context.Background(), opts, &TriggerOptions{Phone: "+2", Retries: 3})
	require.Equal(t, codes.NotFound, status.Code(err))
	require.Equal(t, int32(1), fake.triggers.Load())

	fake.unavailable.Store(10)

	err = Trigger(context.Background(), opts, &TriggerOptions{
		Phone:         "+1",
		Retries:       2,
		RetryInterval: 5 * time.Millisecond,
	})
	require.ErrorIs(t, err, errRetriesExhausted)
	require.Equal(t, int32(4), fake.triggers.Load())
}

// TestCommands_Print renders each response.
func TestCommands_Print(t *testing.T) {
	t.Parallel()

	opts, out := startServer(t, new(fakeAPI))
	ctx := context.Background()

	require.NoError(t, Register(ctx, opts, &api.RegisterSubjectRequest{Phone: "+1", Name: "Alice"}))
	require.Contains(t, out.String(), "Alice (+1)")
	require.Contains(t, out.String(), "contact: Bob: +1555")

	require.NoError(t, UpdateLocation(ctx, opts, "+1", 40, -74))
	require.Contains(t, out.String(), "inside a high-risk zone")

	require.NoError(t, Status(ctx, opts, "+1"))
	require.Contains(t, out.String(), "active alert: 1 (medical)")

	require.NoError(t, ListActive(ctx, opts))
	require.Contains(t, out.String(), "1 active alert(s)")

	require.NoError(t, Cancel(ctx, opts, 1, "false alarm"))
	require.Contains(t, out.String(), "Reason: false alarm")

	err := SelfTest(ctx, opts, "+1")
	require.ErrorIs(t, err, errSelfTestFailed)
	require.Contains(t, out.String(), "subject_lookup: passed (Subject found)")
	require.Contains(t, out.String(), "notifications: failed (sms: not configured)")
}
