// Package watcher polls the alert server and reports alerts as they open and close.
//
// It backs the alertctl watch command used by operators who follow active
// emergencies from a console.
package watcher
