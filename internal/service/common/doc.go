// Package common holds helpers shared by several services.
//
// It provides a gRPC client for the alert service with per-call timeouts and
// a helper that detects the calling user and host for the audit trail.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
