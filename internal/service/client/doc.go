// Package client implements the alertctl operations.
//
// Each operation loads the settings, connects to the alert server, performs one
// call and prints a human-readable result. Triggers are retried while the
// server is unavailable.
package client
