package alert

import "errors"

var (
	// ErrSubjectNotFound is returned when the subject is not registered.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrSubjectExists is returned when registering an already registered phone.
	ErrSubjectExists = errors.New("subject already registered")
	// ErrTooManyContacts is returned when a contact list would exceed the configured limit.
	ErrTooManyContacts = errors.New("too many emergency contacts")
	// ErrInvalidRequest is returned for requests missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrLocationUnavailable is returned when every location fallback failed.
	ErrLocationUnavailable = errors.New("no location data available")
	// ErrAlertNotFound is returned when the alert is absent or already resolved.
	ErrAlertNotFound = errors.New("alert not found or already resolved")
	// ErrAlertAlreadyActive is returned when the subject already has an active alert.
	ErrAlertAlreadyActive = errors.New("subject already has an active alert")
	// ErrRegistryClosed is returned once the orchestrator is shut down.
	ErrRegistryClosed = errors.New("alert registry is closed")
	// ErrCollaborator wraps a failure of persistence or another collaborator that
	// the operation could not absorb.
	ErrCollaborator = errors.New("collaborator failure")

	errDuplicateAlertID = errors.New("alert id is already registered")
)
