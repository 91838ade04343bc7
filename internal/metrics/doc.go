// Package metrics exposes Prometheus collectors for alerts, notifications and RPCs.
package metrics
