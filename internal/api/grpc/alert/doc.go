// Package alert implements the gRPC transport for the emergency alert service.
//
// The service descriptor is declared by hand and messages travel as JSON through
// a codec registered under the "json" content subtype, so no generated stubs are
// needed. The server adapts orchestrator results to wire messages and maps
// domain errors to gRPC status codes.
package alert
