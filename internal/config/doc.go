// Package config defines the settings shared by the alert binaries and provides
// helpers to load, validate and save them in YAML format.
//
// Secrets (Twilio, SMTP, Google Maps, emergency API, database DSN) may be
// supplied through environment variables, optionally read from a .env file.
package config
