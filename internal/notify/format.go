package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

const (
	// TimestampLayout renders times in messages.
	TimestampLayout = "2006-01-02 15:04:05"

	emergencySMSPrefix   = "🚨 EMERGENCY ALERT 🚨\n"
	emergencyEmailPrefix = "🚨 EMERGENCY ALERT: "

	confirmationSubject = "Emergency Alert Confirmation"
	testSubject         = "Test Notification"

	// EscalationText is the follow-up notice sent when an alert stays uncancelled.
	EscalationText = "Emergency services have been dispatched to your location. " +
		"If this was sent in error, please contact emergency services immediately."
	// TestText is the body of self-test messages.
	TestText = "This is a test message from the Emergency Alert System. The system is working correctly."
)

// EmergencySMS prefixes a text with the emergency banner.
func EmergencySMS(text string) string {
	return emergencySMSPrefix + text
}

// EmergencySubject prefixes an email subject with the emergency banner.
func EmergencySubject(subject string) string {
	return emergencyEmailPrefix + subject
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}

	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Not specified"
	}

	return t.Format(TimestampLayout)
}

// ServicesMessage renders the dispatch message for emergency services.
func ServicesMessage(subject *emergency.Subject, alert *emergency.Alert, summary *emergency.LocationSummary) string {
	var b strings.Builder

	b.WriteString("🚨 EMERGENCY ALERT 🚨\n\n")
	fmt.Fprintf(&b, "Alert Type: %s\n", alert.Category)
	fmt.Fprintf(&b, "User: %s\n", orDefault(subject.Name, "Unknown"))
	fmt.Fprintf(&b, "Phone: %s\n\n", orDefault(subject.Phone, "Not provided"))
	b.WriteString("LOCATION:\n")
	fmt.Fprintf(&b, "Coordinates: %s\n", summary.Coordinates)
	fmt.Fprintf(&b, "Address: %s\n", summary.Address)
	fmt.Fprintf(&b, "Google Maps: %s\n", summary.MapsLink)

	if summary.HighRiskZone {
		b.WriteString("High-risk zone: yes\n")
	}

	fmt.Fprintf(&b, "\nTime: %s\n", formatTime(alert.CreatedAt))
	fmt.Fprintf(&b, "Message: %s\n\n", orDefault(alert.Message, "No additional message"))
	fmt.Fprintf(&b, "Medical Info: %s\n\n", orDefault(subject.MedicalNotes, "None provided"))
	b.WriteString("NEAREST EMERGENCY SERVICES:")

	if len(summary.NearestServices) == 0 {
		b.WriteString("\nNo nearby services found")
	}

	for i, s := range summary.NearestServices {
		fmt.Fprintf(&b, "\n%d. %s", i+1, orDefault(s.Name, "Unknown"))
		fmt.Fprintf(&b, "\n   Address: %s", orDefault(s.Address, "Unknown"))
		fmt.Fprintf(&b, "\n   Distance: %.2f km", s.DistanceKm)
	}

	return b.String()
}

// ContactMessage renders the message sent to one emergency contact.
func ContactMessage(subject *emergency.Subject, alert *emergency.Alert, summary *emergency.LocationSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Emergency Alert for %s\n\n", orDefault(subject.Name, "Unknown"))
	fmt.Fprintf(&b, "Location: %s\n", summary.Address)
	fmt.Fprintf(&b, "Coordinates: %s\n", summary.Coordinates)
	fmt.Fprintf(&b, "Google Maps: %s\n\n", summary.MapsLink)
	fmt.Fprintf(&b, "Time: %s\n", formatTime(alert.CreatedAt))
	fmt.Fprintf(&b, "Alert Type: %s\n\n", alert.Category)
	b.WriteString("Emergency services have been notified.")

	return b.String()
}

// ConfirmationMessage renders the confirmation sent to the subject.
func ConfirmationMessage(summary *emergency.LocationSummary) string {
	var b strings.Builder

	b.WriteString("Help is on the way!\n\n")
	b.WriteString("Emergency services have been notified of your location:\n")
	b.WriteString(summary.Address)
	b.WriteString("\n\nYour emergency contacts have been informed.\n\n")
	b.WriteString("Stay calm and wait for assistance.")

	return b.String()
}

// CancellationMessage renders the notice sent when an alert is cancelled.
func CancellationMessage(reason string) string {
	return "Emergency alert has been cancelled. Reason: " + reason
}
