package server

import (
	"context"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/emergency-alert/internal/config"
	"github.com/oshokin/emergency-alert/internal/events"
	"github.com/oshokin/emergency-alert/internal/repository/store"
)

func testSettings(t *testing.T, driver string) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Database: config.Database{Driver: driver},
	}

	if driver == "sqlite" {
		cfg.Database.DSN = filepath.Join(t.TempDir(), "alerts.db")
	}

	require.NoError(t, config.Validate(cfg))

	return cfg
}

// TestNewService_Backends opens each local persistence backend and falls back to no-op
// collaborators when nothing is configured.
func TestNewService_Backends(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			s, err := newService(ctx, testSettings(t, driver))
			require.NoError(t, err)

			t.Cleanup(func() { s.close(ctx) })

			require.IsType(t, events.Nop{}, s.publisher)
			require.NotNil(t, s.metrics)
			require.Empty(t, s.orchestrator.ListActive())

			if driver == "memory" {
				require.IsType(t, new(store.MemoryRepository), s.repo)
			} else {
				require.IsType(t, new(store.GormRepository), s.repo)
			}
		})
	}
}

// TestNewService_UnknownDriver surfaces backend errors.
func TestNewService_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := openRepository(context.Background(), config.Database{Driver: "oracle"})
	require.Error(t, err)
}

// TestNewServicesDispatcher returns a nil interface unless the endpoint is fully configured.
func TestNewServicesDispatcher(t *testing.T) {
	t.Parallel()

	cfg := testSettings(t, "memory")
	require.Nil(t, newServicesDispatcher(context.Background(), cfg))

	cfg.EmergencyAPI = config.EmergencyAPI{Endpoint: "http://127.0.0.1:1/dispatch", APIKey: "k"}
	dispatcher := newServicesDispatcher(context.Background(), cfg)
	require.NotNil(t, dispatcher)
	require.Equal(t, "http://127.0.0.1:1/dispatch", dispatcher.Endpoint())
}

// TestNewPublisher selects Kafka only when brokers are configured.
func TestNewPublisher(t *testing.T) {
	t.Parallel()

	cfg := testSettings(t, "memory")
	require.IsType(t, events.Nop{}, newPublisher(context.Background(), cfg))

	cfg.Kafka.Brokers = []string{"127.0.0.1:9092"}
	publisher := newPublisher(context.Background(), cfg)
	require.IsType(t, new(events.Kafka), publisher)
	require.NoError(t, publisher.Close())
}

// TestStartReconciler runs the job on its schedule and rejects malformed specs.
func TestStartReconciler(t *testing.T) {
	t.Parallel()

	_, err := startReconciler(context.Background(), "not a schedule", func(context.Context) {})
	require.Error(t, err)

	stop, err := startReconciler(context.Background(), config.ReconcileOff, func(context.Context) {})
	require.NoError(t, err)
	stop()

	synctest.Test(t, func(t *testing.T) {
		runs := make(chan struct{}, 10)

		stop, err := startReconciler(context.Background(), "@every 1m", func(context.Context) {
			runs <- struct{}{}
		})
		require.NoError(t, err)

		time.Sleep(3*time.Minute + time.Second)
		synctest.Wait()
		stop()

		require.Len(t, runs, 3)
	})
}

// TestResolveListenAddress covers override and port extraction.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	addr, err := resolveListenAddress("example.com:50051", "")
	require.NoError(t, err)
	require.Equal(t, ":50051", addr)

	addr, err = resolveListenAddress("example.com:50051", "127.0.0.1:9000")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", addr)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoServerAddress)

	_, err = resolveListenAddress("no-port", "")
	require.Error(t, err)
}
