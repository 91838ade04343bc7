package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

const namespace = "emergency"

// Collectors holds every collector of the alert server on its own registry.
type Collectors struct {
	registry *prometheus.Registry

	alertsTriggered *prometheus.CounterVec
	alertsResolved  *prometheus.CounterVec
	escalations     prometheus.Counter
	notifications   *prometheus.CounterVec
	activeAlerts    prometheus.Gauge
	orphanedAlerts  prometheus.Gauge
	rpcDuration     *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,
		alertsTriggered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_triggered_total",
				Help:      "Alerts that became active, by category.",
			},
			[]string{"category"},
		),
		alertsResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_resolved_total",
				Help:      "Alerts resolved, by resolution kind.",
			},
			[]string{"reason_kind"},
		),
		escalations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escalations_total",
				Help:      "Follow-up notices sent for uncancelled alerts.",
			},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification sends, by target, channel and result.",
			},
			[]string{"target", "channel", "result"},
		),
		activeAlerts: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_alerts",
				Help:      "Alerts currently held in the registry.",
			},
		),
		orphanedAlerts: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "orphaned_alerts",
				Help:      "Alerts active in persistence but absent from the registry at the last reconcile.",
			},
		),
		rpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_duration_seconds",
				Help:      "gRPC handling time, by method and status code.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// AlertTriggered counts a new active alert.
func (c *Collectors) AlertTriggered(category emergency.Category) {
	c.alertsTriggered.WithLabelValues(string(category)).Inc()
}

// AlertResolved counts a resolution; kind is "cancelled" or "admin".
func (c *Collectors) AlertResolved(kind string) {
	c.alertsResolved.WithLabelValues(kind).Inc()
}

// Escalated counts a follow-up notice.
func (c *Collectors) Escalated() {
	c.escalations.Inc()
}

// Notifications counts every outcome of a report.
func (c *Collectors) Notifications(report *emergency.FanoutReport) {
	for _, o := range report.Outcomes {
		result := "failed"
		if o.Success {
			result = "succeeded"
		}

		c.notifications.WithLabelValues(string(o.Target), string(o.Channel), result).Inc()
	}
}

// SetActive sets the number of active alerts.
func (c *Collectors) SetActive(n int) {
	c.activeAlerts.Set(float64(n))
}

// SetOrphaned sets the number of orphaned alerts.
func (c *Collectors) SetOrphaned(n int) {
	c.orphanedAlerts.Set(float64(n))
}

// ObserveRPC records the duration of one call.
func (c *Collectors) ObserveRPC(method, code string, elapsed time.Duration) {
	c.rpcDuration.WithLabelValues(method, code).Observe(elapsed.Seconds())
}
