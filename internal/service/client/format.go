package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	api "github.com/oshokin/emergency-alert/internal/api/grpc/alert"
)

func printSubject(w io.Writer, resp *api.SubjectResponse) {
	_, _ = fmt.Fprintln(w, resp.Message)

	if resp.Subject == nil {
		return
	}

	_, _ = fmt.Fprintf(w, "%s (%s)\n", resp.Subject.Name, resp.Subject.Phone)

	for _, c := range resp.Subject.Contacts {
		_, _ = fmt.Fprintf(w, "  contact: %s: %s\n", c.Name, c.Phone)
	}
}

func printLocation(w io.Writer, resp *api.LocationResponse) {
	_, _ = fmt.Fprintln(w, resp.Message)

	if fix := resp.Location; fix != nil {
		_, _ = fmt.Fprintf(w, "  %v, %v %s\n", fix.Latitude, fix.Longitude, fix.Address)
	}

	if resp.HighRiskZone {
		_, _ = fmt.Fprintln(w, "  inside a high-risk zone")
	}
}

func printTrigger(w io.Writer, resp *api.TriggerResponse) {
	_, _ = fmt.Fprintf(w, "%s (alert %d)\n", resp.Message, resp.AlertID)

	printSummary(w, resp.Location)

	if n := resp.Notifications; n != nil {
		_, _ = fmt.Fprintf(w, "  notifications: services %s, contacts %s, user %s\n",
			n.Services, n.Contacts, n.Subject)
	}
}

func printSummary(w io.Writer, summary *api.LocationSummary) {
	if summary == nil {
		return
	}

	_, _ = fmt.Fprintf(w, "  location: %s (%s) %s\n", summary.Coordinates, summary.Method, summary.Address)
	_, _ = fmt.Fprintf(w, "  map: %s\n", summary.MapsLink)

	for _, svc := range summary.NearestServices {
		_, _ = fmt.Fprintf(w, "  nearby: %s, %.2f km\n", svc.Name, svc.DistanceKm)
	}
}

func printStatus(w io.Writer, resp *api.StatusResponse) {
	if s := resp.Subject; s != nil {
		_, _ = fmt.Fprintf(w, "%s (%s), %d emergency contact(s)\n", s.Name, s.Phone, len(s.Contacts))
	}

	if fix := resp.Location; fix != nil {
		_, _ = fmt.Fprintf(w, "  last location: %v, %v (%s) at %s\n",
			fix.Latitude, fix.Longitude, fix.Method, formatTime(fix.Timestamp))
	}

	if a := resp.ActiveAlert; a != nil {
		_, _ = fmt.Fprintf(w, "  active alert: %d (%s) since %s\n", a.AlertID, a.AlertType, formatTime(a.CreatedAt))
	} else {
		_, _ = fmt.Fprintln(w, "  no active alert")
	}
}

func printActive(w io.Writer, resp *api.ListActiveResponse) {
	_, _ = fmt.Fprintln(w, resp.Message)

	for _, a := range resp.Alerts {
		coordinates := ""
		if a.Location != nil {
			coordinates = a.Location.Coordinates
		}

		_, _ = fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n",
			a.AlertID, a.AlertType, a.SubjectPhone, coordinates, formatTime(a.CreatedAt))
	}
}

// printSelfTest prints each step and reports whether all of them passed.
func printSelfTest(w io.Writer, resp *api.SelfTestResponse) bool {
	passed := true

	for _, step := range resp.Steps {
		result := "passed"
		if !step.Passed {
			result = "failed"
			passed = false
		}

		line := fmt.Sprintf("%s: %s", step.Name, result)
		if step.Detail != "" {
			line += " (" + strings.TrimSpace(step.Detail) + ")"
		}

		_, _ = fmt.Fprintln(w, line)
	}

	return passed
}

func formatTime(ts *timestamppb.Timestamp) string {
	if ts == nil {
		return "<unknown>"
	}

	return ts.AsTime().Local().Format(time.RFC3339)
}
