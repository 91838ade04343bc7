package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"google.golang.org/grpc"

	api "github.com/oshokin/emergency-alert/internal/api/grpc/alert"
	"github.com/oshokin/emergency-alert/internal/config"
	"github.com/oshokin/emergency-alert/internal/logger"
)

// Options controls the alert-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// DotEnvPath is an optional .env file exporting credentials before the settings load.
	DotEnvPath string
}

const (
	// requestTimeoutFactor scales the collaborator timeout into a per-RPC bound;
	// a trigger chains geocoding, places and fan-out calls.
	requestTimeoutFactor = 4
	// metricsReadHeaderTimeout bounds header reads on the metrics listener.
	metricsReadHeaderTimeout = 5 * time.Second
	// metricsShutdownTimeout bounds the metrics listener shutdown.
	metricsShutdownTimeout = 5 * time.Second
)

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and blocks until context is canceled or server stops.
// Loads configuration first, then determines listen address from config or override.
//
//nolint:funlen // Startup and shutdown steps read best in one place.
func Run(ctx context.Context, opts *Options) error {
	if err := config.LoadDotEnv(opts.DotEnvPath); err != nil {
		return err
	}

	// Load configuration first to get server and logging settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	setupLogger(settings)

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alert-server")

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	svc, err := newService(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	defer svc.close(ctx)

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		api.UnaryInterceptors(ctx, settings.Timeout*requestTimeoutFactor, svc.metrics)...,
	))
	api.Register(grpcServer, api.NewServer(svc.orchestrator))

	stopMetrics := startMetrics(ctx, settings.MetricsAddress, svc.metrics.Handler())
	defer stopMetrics()

	stopReconciler, err := startReconciler(ctx, settings.ReconcileSchedule, svc.reconcile)
	if err != nil {
		_ = lis.Close()

		return err
	}

	defer stopReconciler()

	logger.InfoKV(ctx, "Alert server listening",
		"listen_address", listenAddress,
		"database", settings.Database.Driver,
		"escalation_delay", settings.EscalationDelay)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// setupLogger applies the configured level and optional log file to the global logger.
func setupLogger(settings *config.Config) {
	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	if settings.LogFile != "" {
		logger.SetLogger(logger.New(logger.AtomicLevel(), logger.WithFile(settings.LogFile)))
	}
}

// startMetrics serves the Prometheus handler on addr; an empty addr disables it.
func startMetrics(ctx context.Context, addr string, handler http.Handler) (stop func()) {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		logger.InfoKV(ctx, "Metrics listening", "metrics_address", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(ctx, "Metrics listener failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "Failed to stop metrics listener", "error", err)
		}
	}
}

// startReconciler schedules job on the cron spec; an empty or "off" spec disables it.
func startReconciler(ctx context.Context, schedule string, job func(context.Context)) (stop func(), err error) {
	if schedule == "" || schedule == config.ReconcileOff {
		return func() {}, nil
	}

	log := cronLogger{ctx: logger.WithName(ctx, "reconciler")}

	scheduler := cron.New(cron.WithLogger(log), cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)))

	if _, err := scheduler.AddFunc(schedule, func() { job(log.ctx) }); err != nil {
		return nil, fmt.Errorf("schedule reconciler %q: %w", schedule, err)
	}

	scheduler.Start()
	logger.InfoKV(ctx, "Reconciler scheduled", "schedule", schedule)

	return func() {
		<-scheduler.Stop().Done()
	}, nil
}

// cronLogger routes cron's own logs through the context logger.
type cronLogger struct {
	ctx context.Context //nolint:containedctx // Carries the scoped logger only.
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	logger.DebugKV(l.ctx, msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.ErrorKV(l.ctx, msg, append(keysAndValues, "error", err)...)
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Parse the address to extract port.
	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
