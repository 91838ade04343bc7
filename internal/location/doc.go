// Package location resolves the best known position of a subject through an
// ordered fallback chain and enriches it for emergency notification.
package location
