// Package notify formats emergency messages and fans them out to emergency
// services, personal contacts and the subject.
package notify
