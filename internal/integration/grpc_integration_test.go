package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/emergency-alert/internal/api/grpc/alert"
	"github.com/oshokin/emergency-alert/internal/config"
	"github.com/oshokin/emergency-alert/internal/service/common"
	"github.com/oshokin/emergency-alert/internal/service/server"
)

// startProviders serves the geocoding endpoints the server depends on.
func startProviders(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/reverse", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"display_name": "Broadway, New York"})
	})
	mux.HandleFunc("/ip", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success", "lat": 51.5, "lon": -0.12, "city": "London", "country": "UK",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

// startGRPC starts the alert server with a temporary config and a sqlite database.
// Returns a stop function to gracefully shutdown the server.
func startGRPC(t *testing.T, addr, providers string) (stop func()) {
	t.Helper()

	// Create cancellable context for server lifecycle.
	ctx, cancel := context.WithCancel(context.Background())
	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")

	// Create temporary configuration file.
	require.NoError(
		t,
		config.Save(cfgPath, &config.Config{
			ServerAddress:     addr,
			Timeout:           2 * time.Second,
			EscalationDelay:   time.Hour,
			ReconcileSchedule: config.ReconcileOff,
			Database: config.Database{
				Driver: "sqlite",
				DSN:    filepath.Join(t.TempDir(), "alerts.db"),
			},
			Geocoding: config.Geocoding{
				NominatimURL: providers,
				IPLocateURL:  providers + "/ip",
				PlacesURL:    providers + "/places",
			},
		}),
	)

	done := make(chan struct{})

	// Start server in background goroutine.
	go func() {
		defer close(done)

		options := &server.Options{
			ConfigPath:    cfgPath,
			ListenAddress: addr,
			DotEnvPath:    filepath.Join(t.TempDir(), "missing.env"),
		}

		_ = server.Run(ctx, options) //nolint:errcheck // Failures surface as dial errors in the test.
	}()

	// Wait briefly for server to start listening.
	time.Sleep(150 * time.Millisecond)

	return func() {
		cancel()
		<-done
	}
}

// TestGRPC_AlertLifecycle starts the real server and walks the register, trigger,
// status and cancel path over the wire.
func TestGRPC_AlertLifecycle(t *testing.T) {
	t.Parallel()

	// Reserve a free port for the test server.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	providers := startProviders(t)

	// Start test gRPC server.
	stop := startGRPC(t, addr, providers.URL)
	defer stop()

	ctx := context.Background()

	// Connect to the test server with timeout.
	c, err := common.Dial(ctx, addr, common.WithCallTimeout(10*time.Second), common.WithActor("tester@host"))
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	_, err = c.RegisterSubject(ctx, &api.RegisterSubjectRequest{
		Phone:    "+15550100",
		Name:     "Alice",
		Contacts: []string{"Bob: +15550101"},
	})
	require.NoError(t, err)

	_, err = c.RegisterSubject(ctx, &api.RegisterSubjectRequest{Phone: "+15550100", Name: "Alice"})
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	lat, lng := 40.0, -74.0

	triggered, err := c.Trigger(ctx, &api.TriggerRequest{
		Phone:     "+15550100",
		AlertType: "medical",
		Latitude:  &lat,
		Longitude: &lng,
	})
	require.NoError(t, err)
	require.True(t, triggered.Success)
	require.Equal(t, int64(1), triggered.AlertID)
	require.Equal(t, "40.0, -74.0", triggered.Location.Coordinates)
	require.Equal(t, "Broadway, New York", triggered.Location.Address)
	// No SMS transport is configured, the log-only services notice still succeeds.
	require.Equal(t, "succeeded", triggered.Notifications.Services)
	require.Equal(t, "failed", triggered.Notifications.Contacts)

	_, err = c.Trigger(ctx, &api.TriggerRequest{Phone: "+15550100"})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	st, err := c.Status(ctx, "+15550100")
	require.NoError(t, err)
	require.NotNil(t, st.ActiveAlert)
	require.Equal(t, int64(1), st.ActiveAlert.AlertID)
	require.Equal(t, "medical", st.ActiveAlert.AlertType)
	require.Equal(t, "explicit", st.Location.Method)

	active, err := c.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active.Alerts, 1)

	cancelled, err := c.Cancel(ctx, 1, "false alarm")
	require.NoError(t, err)
	require.True(t, cancelled.Success)

	_, err = c.Cancel(ctx, 1, "false alarm")
	require.Equal(t, codes.NotFound, status.Code(err))

	st, err = c.Status(ctx, "+15550100")
	require.NoError(t, err)
	require.Nil(t, st.ActiveAlert)

	// The stored fix is reused and tagged as last known.
	again, err := c.Trigger(ctx, &api.TriggerRequest{Phone: "+15550100", AlertType: "fire"})
	require.NoError(t, err)
	require.Equal(t, "last-known", again.Location.Method)

	_, err = c.Resolve(ctx, again.AlertID, "")
	require.NoError(t, err)

	_, err = c.Status(ctx, "+19999999")
	require.Equal(t, codes.NotFound, status.Code(err))
}
