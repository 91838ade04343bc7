package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

func TestCollectors(t *testing.T) {
	t.Parallel()

	c := New()

	c.AlertTriggered(emergency.CategoryFire)
	c.AlertTriggered(emergency.CategoryFire)
	c.AlertResolved("cancelled")
	c.Escalated()
	c.SetActive(3)
	c.SetOrphaned(1)
	c.Notifications(&emergency.FanoutReport{Outcomes: []emergency.NotificationOutcome{
		{Target: emergency.TargetContact, Channel: emergency.ChannelSMS, Success: true},
		{Target: emergency.TargetContact, Channel: emergency.ChannelSMS},
		{Target: emergency.TargetContact, Channel: emergency.ChannelSMS},
	}})
	c.ObserveRPC("Trigger", "OK", 20*time.Millisecond)

	require.InDelta(t, 2, testutil.ToFloat64(c.alertsTriggered.WithLabelValues("fire")), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(c.alertsResolved.WithLabelValues("cancelled")), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(c.escalations), 1e-9)
	require.InDelta(t, 3, testutil.ToFloat64(c.activeAlerts), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(c.orphanedAlerts), 1e-9)
	require.InDelta(t, 2, testutil.ToFloat64(c.notifications.WithLabelValues("contact", "sms", "failed")), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(c.notifications.WithLabelValues("contact", "sms", "succeeded")), 1e-9)

	srv := httptest.NewServer(c.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL) //nolint:noctx // Test server.
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "emergency_alerts_triggered_total{category=\"fire\"} 2")
	require.Contains(t, string(body), "emergency_rpc_duration_seconds_count{code=\"0\",method=\"Trigger\"} 1")
}
