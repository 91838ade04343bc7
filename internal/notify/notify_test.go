package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
	"github.com/oshokin/emergency-alert/internal/messaging"
)

var errGatewayDown = errors.New("gateway down")

type sentMessage struct {
	channel emergency.Channel
	to      string
	subject string
	body    string
}

// fakeMessenger records messages and fails for recipients listed in failFor.
type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]bool
}

func (f *fakeMessenger) SendSMS(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor[to] {
		return errGatewayDown
	}

	f.sent = append(f.sent, sentMessage{channel: emergency.ChannelSMS, to: to, body: text})

	return nil
}

func (f *fakeMessenger) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor[to] {
		return errGatewayDown
	}

	f.sent = append(f.sent, sentMessage{channel: emergency.ChannelEmail, to: to, subject: subject, body: body})

	return nil
}

func (f *fakeMessenger) messagesTo(to string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []sentMessage

	for _, m := range f.sent {
		if m.to == to {
			result = append(result, m)
		}
	}

	return result
}

type fakeServices struct {
	mu       sync.Mutex
	requests []*messaging.DispatchRequest
	err      error
}

func (f *fakeServices) Dispatch(_ context.Context, req *messaging.DispatchRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	return f.err
}

func (f *fakeServices) Endpoint() string { return "https://dispatch.example.com" }

func fixtures() (*emergency.Subject, *emergency.Alert, *emergency.LocationSummary) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	subject := &emergency.Subject{
		Phone:        "+1000",
		Name:         "Alice",
		Email:        "alice@example.com",
		MedicalNotes: "asthma",
		Contacts: []emergency.Contact{
			{Name: "Bob", Phone: "+1555"},
			{Name: "Carol", Phone: "+1666"},
		},
	}

	fix := emergency.LocationFix{
		SubjectPhone: "+1000",
		Latitude:     40,
		Longitude:    -74,
		Address:      "1 Main Street",
		Method:       emergency.MethodExplicit,
		Timestamp:    created,
	}

	alert := &emergency.Alert{
		ID:           1,
		SubjectPhone: "+1000",
		Category:     emergency.CategoryMedical,
		Fix:          fix,
		Status:       emergency.StatusActive,
		CreatedAt:    created,
	}

	summary := &emergency.LocationSummary{
		Fix:         fix,
		Coordinates: "40.0, -74.0",
		Address:     "1 Main Street",
		MapsLink:    "https://www.google.com/maps?q=40.0,-74.0",
		NearestServices: []emergency.NearbyService{
			{Name: "City General Hospital", Address: "Main Street", DistanceKm: 1.4},
		},
		Timestamp: created,
	}

	return subject, alert, summary
}

func TestContactMessage(t *testing.T) {
	t.Parallel()

	subject, alert, summary := fixtures()

	const want = "Emergency Alert for Alice\n\n" +
		"Location: 1 Main Street\n" +
		"Coordinates: 40.0, -74.0\n" +
		"Google Maps: https://www.google.com/maps?q=40.0,-74.0\n\n" +
		"Time: 2026-01-02 03:04:05\n" +
		"Alert Type: medical\n\n" +
		"Emergency services have been notified."

	require.Equal(t, want, ContactMessage(subject, alert, summary))
	require.Equal(t, ContactMessage(subject, alert, summary), ContactMessage(subject, alert, summary))
}

func TestServicesMessage(t *testing.T) {
	t.Parallel()

	subject, alert, summary := fixtures()

	const want = "🚨 EMERGENCY ALERT 🚨\n\n" +
		"Alert Type: medical\n" +
		"User: Alice\n" +
		"Phone: +1000\n\n" +
		"LOCATION:\n" +
		"Coordinates: 40.0, -74.0\n" +
		"Address: 1 Main Street\n" +
		"Google Maps: https://www.google.com/maps?q=40.0,-74.0\n\n" +
		"Time: 2026-01-02 03:04:05\n" +
		"Message: No additional message\n\n" +
		"Medical Info: asthma\n\n" +
		"NEAREST EMERGENCY SERVICES:\n" +
		"1. City General Hospital\n" +
		"   Address: Main Street\n" +
		"   Distance: 1.40 km"

	require.Equal(t, want, ServicesMessage(subject, alert, summary))

	summary.NearestServices = nil
	summary.HighRiskZone = true
	text := ServicesMessage(subject, alert, summary)
	require.Contains(t, text, "High-risk zone: yes\n")
	require.True(t, strings.HasSuffix(text, "No nearby services found"))
}

func TestConfirmationAndCancellation(t *testing.T) {
	t.Parallel()

	_, _, summary := fixtures()

	require.Equal(t,
		"Help is on the way!\n\n"+
			"Emergency services have been notified of your location:\n"+
			"1 Main Street\n\n"+
			"Your emergency contacts have been informed.\n\n"+
			"Stay calm and wait for assistance.",
		ConfirmationMessage(summary))
	require.Equal(t, "Emergency alert has been cancelled. Reason: false alarm", CancellationMessage("false alarm"))
}

func TestDispatch_AllSucceed(t *testing.T) {
	t.Parallel()

	subject, alert, summary := fixtures()
	messenger := new(fakeMessenger)
	services := new(fakeServices)

	f := NewFanout(Options{Messenger: messenger, Services: services, EmergencyNumber: "911"})
	report := f.Dispatch(context.Background(), subject, alert, summary)

	require.Equal(t, []emergency.NotificationOutcome{
		{Target: emergency.TargetServices, Channel: emergency.ChannelAPI, Recipient: "https://dispatch.example.com", Success: true},
		{Target: emergency.TargetContact, Channel: emergency.ChannelSMS, Recipient: "+1555", Success: true},
		{Target: emergency.TargetContact, Channel: emergency.ChannelSMS, Recipient: "+1666", Success: true},
		{Target: emergency.TargetSubject, Channel: emergency.ChannelSMS, Recipient: "+1000", Success: true},
		{Target: emergency.TargetSubject, Channel: emergency.ChannelEmail, Recipient: "alice@example.com", Success: true},
	}, report.Outcomes)
	require.Equal(t, 5, report.Succeeded())

	require.Len(t, services.requests, 1)
	require.Equal(t, "medical", services.requests[0].AlertType)
	require.Equal(t, "asthma", services.requests[0].UserInfo.MedicalInfo)
	require.Equal(t, "2026-01-02 03:04:05", services.requests[0].Timestamp)

	bob := messenger.messagesTo("+1555")
	require.Len(t, bob, 1)
	require.True(t, strings.HasPrefix(bob[0].body, "🚨 EMERGENCY ALERT 🚨\nEmergency Alert for Alice"))

	email := messenger.messagesTo("alice@example.com")
	require.Len(t, email, 1)
	require.Equal(t, "🚨 EMERGENCY ALERT: Emergency Alert Confirmation", email[0].subject)
}

func TestDispatch_PartialFailure(t *testing.T) {
	t.Parallel()

	subject, alert, summary := fixtures()
	messenger := &fakeMessenger{failFor: map[string]bool{"+1555": true, "+1666": true}}

	f := NewFanout(Options{Messenger: messenger, EmergencyNumber: "911"})
	report := f.Dispatch(context.Background(), subject, alert, summary)

	require.Equal(t, emergency.GroupSucceeded, report.Group(emergency.TargetServices))
	require.Equal(t, emergency.GroupFailed, report.Group(emergency.TargetContact))
	require.Equal(t, emergency.GroupSucceeded, report.Group(emergency.TargetSubject))

	// Without an endpoint the services notification goes to the emergency number.
	require.Equal(t, emergency.ChannelSMS, report.Outcomes[0].Channel)
	require.Equal(t, "911", report.Outcomes[0].Recipient)
	require.Equal(t, errGatewayDown.Error(), report.Outcomes[1].Error)
}

func TestDispatch_EverythingFails(t *testing.T) {
	t.Parallel()

	subject, alert, summary := fixtures()
	subject.Contacts = nil
	subject.Email = ""

	messenger := &fakeMessenger{failFor: map[string]bool{"+1000": true}}
	services := &fakeServices{err: errGatewayDown}

	f := NewFanout(Options{Messenger: messenger, Services: services})
	report := f.Dispatch(context.Background(), subject, alert, summary)

	require.Len(t, report.Outcomes, 2)
	require.Zero(t, report.Succeeded())
	require.Equal(t, emergency.GroupFailed, report.Group(emergency.TargetServices))
	require.Equal(t, emergency.GroupSkipped, report.Group(emergency.TargetContact))
	require.Equal(t, emergency.GroupFailed, report.Group(emergency.TargetSubject))
}

func TestSingleMessages(t *testing.T) {
	t.Parallel()

	subject, _, _ := fixtures()
	messenger := new(fakeMessenger)
	f := NewFanout(Options{Messenger: messenger})

	require.NoError(t, f.SendEscalation(context.Background(), "+1000"))
	require.NoError(t, f.SendCancellation(context.Background(), "+1000", "false alarm"))

	report := f.SendTest(context.Background(), subject)
	require.Len(t, report.Outcomes, 2)
	require.Equal(t, 2, report.Succeeded())

	toAlice := messenger.messagesTo("+1000")
	require.Len(t, toAlice, 3)
	require.Equal(t, EmergencySMS(EscalationText), toAlice[0].body)
	require.Equal(t, "Emergency alert has been cancelled. Reason: false alarm", toAlice[1].body)
	require.Equal(t, TestText, toAlice[2].body)

	email := messenger.messagesTo("alice@example.com")
	require.Len(t, email, 1)
	require.Equal(t, "Test Notification", email[0].subject)
}
