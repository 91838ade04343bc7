// Package events publishes alert lifecycle events to an event stream.
package events
