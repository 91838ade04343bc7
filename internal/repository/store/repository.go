package store

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a subject with the same phone is already registered.
	ErrAlreadyExists = errors.New("record already exists")
)

// Repository defines persistence operations for subjects, locations and alerts.
type Repository interface {
	// GetSubject returns the subject keyed by phone or ErrNotFound.
	GetSubject(ctx context.Context, phone string) (*emergency.Subject, error)
	// AddSubject stores a new subject or returns ErrAlreadyExists.
	AddSubject(ctx context.Context, subject *emergency.Subject) error
	// AddContact appends an emergency contact to the subject's list.
	AddContact(ctx context.Context, phone string, contact emergency.Contact) error
	// AppendLocationFix appends a fix to the subject's history and returns its id.
	AppendLocationFix(ctx context.Context, fix *emergency.LocationFix) (int64, error)
	// LatestLocationFix returns the most recent fix of the subject or ErrNotFound.
	LatestLocationFix(ctx context.Context, phone string) (*emergency.LocationFix, error)
	// CreateAlert stores a new active alert and returns its identifier.
	CreateAlert(ctx context.Context, alert *emergency.Alert) (int64, error)
	// GetAlert returns the alert by id or ErrNotFound.
	GetAlert(ctx context.Context, id int64) (*emergency.Alert, error)
	// ResolveAlert marks an active alert resolved; false means it was absent or already resolved.
	ResolveAlert(ctx context.Context, id int64, reason string, at time.Time) (bool, error)
	// ListActiveAlerts returns alerts whose persisted status is active, newest first.
	ListActiveAlerts(ctx context.Context) ([]*emergency.Alert, error)
	// SaveNotificationReport attaches the fan-out outcomes to an alert.
	SaveNotificationReport(ctx context.Context, alertID int64, report *emergency.FanoutReport) error
	// Close releases underlying resources.
	Close() error
}
