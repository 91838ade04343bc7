// Package version exposes build metadata for the alert binaries.
//
// Version, Commit and BuildTime are injected at build time via ldflags. When no
// commit is injected, the VCS revision recorded by the Go toolchain is used.
package version
