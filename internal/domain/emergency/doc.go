// Package emergency contains core domain types for personal-emergency alerting.
//
// It defines Subject (the person covered by alerts), LocationFix (a resolved
// position with provenance), Alert (one emergency event) and the records the
// notification fan-out produces. Clone helpers avoid leaking internal references
// between the registry, the persistence layer and the transport.
package emergency
