package notify

import (
	"context"
	"sync"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
	"github.com/oshokin/emergency-alert/internal/logger"
	"github.com/oshokin/emergency-alert/internal/messaging"
)

// Messenger is the messaging collaborator.
type Messenger interface {
	SendSMS(ctx context.Context, to, text string) error
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ServicesDispatcher posts dispatch requests to an emergency-services endpoint.
type ServicesDispatcher interface {
	Dispatch(ctx context.Context, req *messaging.DispatchRequest) error
	Endpoint() string
}

// Options configures a Fanout.
type Options struct {
	// Messenger delivers SMS and email.
	Messenger Messenger
	// Services is the emergency-services endpoint; nil degrades to logging the message
	// addressed to EmergencyNumber.
	Services ServicesDispatcher
	// EmergencyNumber is the services recipient when no endpoint is configured.
	EmergencyNumber string
}

// Fanout dispatches notifications concurrently and never fails as a whole.
type Fanout struct {
	messenger       Messenger
	services        ServicesDispatcher
	emergencyNumber string
}

// NewFanout creates a Fanout.
func NewFanout(opts Options) *Fanout {
	return &Fanout{
		messenger:       opts.Messenger,
		services:        opts.Services,
		emergencyNumber: opts.EmergencyNumber,
	}
}

// send is one independent unit of work writing into its own outcome slot.
type send struct {
	outcome emergency.NotificationOutcome
	run     func(ctx context.Context) error
}

// Dispatch notifies emergency services, every contact and the subject concurrently.
// Outcomes are ordered: services, contacts in list order, subject sms, subject email.
func (f *Fanout) Dispatch(
	ctx context.Context,
	subject *emergency.Subject,
	alert *emergency.Alert,
	summary *emergency.LocationSummary,
) *emergency.FanoutReport {
	sends := make([]send, 0, len(subject.Contacts)+3)
	sends = append(sends, f.servicesSend(subject, alert, summary))

	contactText := EmergencySMS(ContactMessage(subject, alert, summary))
	for _, c := range subject.Contacts {
		sends = append(sends, send{
			outcome: emergency.NotificationOutcome{
				Target:    emergency.TargetContact,
				Channel:   emergency.ChannelSMS,
				Recipient: c.Phone,
			},
			run: func(ctx context.Context) error {
				return f.messenger.SendSMS(ctx, c.Phone, contactText)
			},
		})
	}

	confirmation := ConfirmationMessage(summary)

	if subject.Phone != "" {
		sends = append(sends, send{
			outcome: emergency.NotificationOutcome{
				Target:    emergency.TargetSubject,
				Channel:   emergency.ChannelSMS,
				Recipient: subject.Phone,
			},
			run: func(ctx context.Context) error {
				return f.messenger.SendSMS(ctx, subject.Phone, confirmation)
			},
		})
	}

	if subject.Email != "" {
		sends = append(sends, send{
			outcome: emergency.NotificationOutcome{
				Target:    emergency.TargetSubject,
				Channel:   emergency.ChannelEmail,
				Recipient: subject.Email,
			},
			run: func(ctx context.Context) error {
				return f.messenger.SendEmail(ctx, subject.Email, EmergencySubject(confirmationSubject), confirmation)
			},
		})
	}

	return &emergency.FanoutReport{Outcomes: f.runAll(ctx, sends)}
}

func (f *Fanout) servicesSend(
	subject *emergency.Subject,
	alert *emergency.Alert,
	summary *emergency.LocationSummary,
) send {
	if f.services == nil {
		text := ServicesMessage(subject, alert, summary)

		return send{
			outcome: emergency.NotificationOutcome{
				Target:    emergency.TargetServices,
				Channel:   emergency.ChannelSMS,
				Recipient: f.emergencyNumber,
			},
			run: func(ctx context.Context) error {
				logger.WarnKV(ctx, "No emergency-services endpoint configured, would send emergency SMS",
					"number", f.emergencyNumber,
					"message", text)

				return nil
			},
		}
	}

	req := &messaging.DispatchRequest{
		AlertType: string(alert.Category),
		Location: messaging.DispatchLocation{
			Latitude:  summary.Fix.Latitude,
			Longitude: summary.Fix.Longitude,
			Address:   summary.Fix.Address,
		},
		UserInfo: messaging.DispatchUser{
			Name:        subject.Name,
			Phone:       subject.Phone,
			MedicalInfo: subject.MedicalNotes,
		},
		Timestamp: alert.CreatedAt.Format(TimestampLayout),
		Message:   alert.Message,
	}

	return send{
		outcome: emergency.NotificationOutcome{
			Target:    emergency.TargetServices,
			Channel:   emergency.ChannelAPI,
			Recipient: f.services.Endpoint(),
		},
		run: func(ctx context.Context) error {
			return f.services.Dispatch(ctx, req)
		},
	}
}

// runAll executes every send concurrently and joins before returning.
func (f *Fanout) runAll(ctx context.Context, sends []send) []emergency.NotificationOutcome {
	outcomes := make([]emergency.NotificationOutcome, len(sends))

	var wg sync.WaitGroup

	for i, s := range sends {
		wg.Go(func() {
			outcome := s.outcome

			if err := s.run(ctx); err != nil {
				outcome.Error = err.Error()

				logger.WarnKV(ctx, "Notification failed",
					"target", outcome.Target,
					"channel", outcome.Channel,
					"recipient", outcome.Recipient,
					"error", err)
			} else {
				outcome.Success = true
			}

			outcomes[i] = outcome
		})
	}

	wg.Wait()

	return outcomes
}

// SendCancellation tells the subject the alert was cancelled.
func (f *Fanout) SendCancellation(ctx context.Context, phone, reason string) error {
	return f.messenger.SendSMS(ctx, phone, CancellationMessage(reason))
}

// SendEscalation sends the follow-up notice to the subject.
func (f *Fanout) SendEscalation(ctx context.Context, phone string) error {
	return f.messenger.SendSMS(ctx, phone, EmergencySMS(EscalationText))
}

// SendTest sends a test message to each configured channel of the subject.
func (f *Fanout) SendTest(ctx context.Context, subject *emergency.Subject) *emergency.FanoutReport {
	sends := make([]send, 0, 2)

	if subject.Phone != "" {
		sends = append(sends, send{
			outcome: emergency.NotificationOutcome{
				Target:    emergency.TargetSubject,
				Channel:   emergency.ChannelSMS,
				Recipient: subject.Phone,
			},
			run: func(ctx context.Context) error {
				return f.messenger.SendSMS(ctx, subject.Phone, TestText)
			},
		})
	}

	if subject.Email != "" {
		sends = append(sends, send{
			outcome: emergency.NotificationOutcome{
				Target:    emergency.TargetSubject,
				Channel:   emergency.ChannelEmail,
				Recipient: subject.Email,
			},
			run: func(ctx context.Context) error {
				return f.messenger.SendEmail(ctx, subject.Email, testSubject, TestText)
			},
		})
	}

	return &emergency.FanoutReport{Outcomes: f.runAll(ctx, sends)}
}
