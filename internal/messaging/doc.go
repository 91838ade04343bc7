// Package messaging delivers SMS and email messages and posts dispatch requests
// to the emergency-services endpoint.
package messaging
