// Package alert implements the alert lifecycle: the in-memory registry of active
// alerts with their escalation timers, and the orchestrator driving location
// resolution, persistence and notification fan-out.
package alert
