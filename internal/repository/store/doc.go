// Package store implements the persistence collaborator of the alert core.
//
// Repository is the CRUD-style contract the orchestrator depends on. Two
// implementations are provided: MemoryRepository for tests and ephemeral runs,
// and GormRepository backed by sqlite, postgres or mysql.
package store
