// Package geocoding talks to the HTTP providers that turn coordinates into
// addresses, derive a position from the caller's IP address and list nearby
// emergency services.
package geocoding
