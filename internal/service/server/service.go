package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/emergency-alert/internal/alert"
	"github.com/oshokin/emergency-alert/internal/config"
	"github.com/oshokin/emergency-alert/internal/events"
	"github.com/oshokin/emergency-alert/internal/geocoding"
	"github.com/oshokin/emergency-alert/internal/location"
	"github.com/oshokin/emergency-alert/internal/logger"
	"github.com/oshokin/emergency-alert/internal/messaging"
	"github.com/oshokin/emergency-alert/internal/metrics"
	"github.com/oshokin/emergency-alert/internal/notify"
	"github.com/oshokin/emergency-alert/internal/repository/store"
)

// service bundles the orchestrator with the collaborators Run must tear down.
type service struct {
	repo         store.Repository
	publisher    events.Publisher
	metrics      *metrics.Collectors
	orchestrator *alert.Orchestrator
}

// newService builds every collaborator from the settings and wires the orchestrator.
func newService(ctx context.Context, settings *config.Config) (*service, error) {
	repo, err := openRepository(ctx, settings.Database)
	if err != nil {
		return nil, err
	}

	geocoder := geocoding.New(geocoding.Options{
		NominatimURL:       settings.Geocoding.NominatimURL,
		IPLocateURL:        settings.Geocoding.IPLocateURL,
		PlacesURL:          settings.Geocoding.PlacesURL,
		APIKey:             settings.Geocoding.GoogleAPIKey,
		UserAgent:          settings.Geocoding.UserAgent,
		RequestsPerSecond:  settings.Geocoding.RequestsPerSecond,
		CacheTTL:           settings.Geocoding.CacheTTL,
		SearchRadiusMeters: settings.Geocoding.SearchRadiusMeters,
		Timeout:            settings.Timeout,
	})

	fanout := notify.NewFanout(notify.Options{
		Messenger:       newMessenger(ctx, settings),
		Services:        newServicesDispatcher(ctx, settings),
		EmergencyNumber: settings.EmergencyNumber,
	})

	resolver := location.NewResolver(location.Options{
		Geocoder: geocoder,
		History:  repo,
		Zones:    settings.HighRiskZones,
	})

	collectors := metrics.New()
	publisher := newPublisher(ctx, settings)

	orchestrator := alert.New(ctx, alert.Options{
		Repository:      repo,
		Resolver:        resolver,
		Notifier:        fanout,
		Publisher:       publisher,
		Recorder:        collectors,
		EscalationDelay: settings.EscalationDelay,
		MaxContacts:     settings.MaxEmergencyContacts,
	})

	return &service{
		repo:         repo,
		publisher:    publisher,
		metrics:      collectors,
		orchestrator: orchestrator,
	}, nil
}

// close stops the escalation timers first so none fires into closed collaborators.
func (s *service) close(ctx context.Context) {
	s.orchestrator.Shutdown()

	err := errors.Join(s.publisher.Close(), s.repo.Close())
	if err != nil {
		logger.WarnKV(ctx, "Failed to release collaborators", "error", err)
	}
}

// reconcile runs one reconciliation pass; it is scheduled by cron.
func (s *service) reconcile(ctx context.Context) {
	report, err := s.orchestrator.Reconcile(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Reconciliation failed", "error", err)

		return
	}

	logger.DebugKV(ctx, "Reconciliation finished",
		"retried", report.Retried,
		"pending", report.Pending,
		"orphaned", len(report.Orphaned))
}

// openRepository opens the configured persistence backend.
//
//nolint:ireturn // The backend is chosen at runtime.
func openRepository(ctx context.Context, db config.Database) (store.Repository, error) {
	if db.Driver == "memory" {
		logger.WarnKV(ctx, "Using in-memory persistence, records are lost on restart")

		return store.NewMemoryRepository(), nil
	}

	repo, err := store.OpenGorm(ctx, db.Driver, db.DSN)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return repo, nil
}

// newMessenger wires the configured transports; missing ones fail their sends.
func newMessenger(ctx context.Context, settings *config.Config) *messaging.Messenger {
	var (
		sms  messaging.SMSSender
		mail messaging.EmailSender
	)

	twilio := settings.Messaging.Twilio
	if client := messaging.NewTwilio(messaging.TwilioOptions{
		AccountSID: twilio.AccountSID,
		AuthToken:  twilio.AuthToken,
		FromNumber: twilio.FromNumber,
		BaseURL:    twilio.BaseURL,
		Timeout:    settings.Timeout,
	}); client != nil {
		sms = client
	} else {
		logger.WarnKV(ctx, "SMS transport is not configured, SMS sends will fail")
	}

	smtp := settings.Messaging.SMTP
	if client := messaging.NewSMTP(messaging.SMTPOptions{
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     smtp.From,
	}); client != nil {
		mail = client
	} else {
		logger.WarnKV(ctx, "Email transport is not configured, email sends will fail")
	}

	return messaging.NewMessenger(sms, mail)
}

// newServicesDispatcher returns the emergency-services endpoint, or nil to fall back
// to the log-only notice.
//
//nolint:ireturn // A nil interface selects the fallback.
func newServicesDispatcher(ctx context.Context, settings *config.Config) notify.ServicesDispatcher {
	dispatcher := messaging.NewEmergencyAPI(messaging.EmergencyAPIOptions{
		Endpoint: settings.EmergencyAPI.Endpoint,
		APIKey:   settings.EmergencyAPI.APIKey,
		Timeout:  settings.Timeout,
	})
	if dispatcher == nil {
		logger.WarnKV(ctx, "Emergency services endpoint is not configured, notices are logged only",
			"emergency_number", settings.EmergencyNumber)

		return nil
	}

	return dispatcher
}

// newPublisher returns a Kafka publisher when brokers are configured.
//
//nolint:ireturn // The publisher is chosen at runtime.
func newPublisher(ctx context.Context, settings *config.Config) events.Publisher {
	if len(settings.Kafka.Brokers) == 0 {
		return events.Nop{}
	}

	logger.InfoKV(ctx, "Publishing lifecycle events", "brokers", settings.Kafka.Brokers, "topic", settings.Kafka.Topic)

	return events.NewKafka(events.KafkaOptions{
		Brokers: settings.Kafka.Brokers,
		Topic:   settings.Kafka.Topic,
		Timeout: settings.Timeout,
	})
}
