package emergency

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category enumerates alert kinds.
type Category string

const (
	// CategoryMedical is a medical emergency.
	CategoryMedical Category = "medical"
	// CategoryFire is a fire emergency.
	CategoryFire Category = "fire"
	// CategoryPolice is an emergency requiring police.
	CategoryPolice Category = "police"
	// CategoryGeneral is any other emergency.
	CategoryGeneral Category = "general"
)

// ErrUnknownCategory is returned by ParseCategory for unsupported values.
var ErrUnknownCategory = errors.New("unknown alert category")

// ParseCategory converts user input to a Category. Empty input means medical.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CategoryMedical, nil
	case CategoryMedical, CategoryFire, CategoryPolice, CategoryGeneral:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// ServiceKind maps a category to the nearby-service kind worth listing.
func (c Category) ServiceKind() string {
	switch c {
	case CategoryFire:
		return "fire_station"
	case CategoryPolice:
		return "police"
	default:
		return "hospital"
	}
}

// Status is the lifecycle status of an alert.
type Status string

const (
	// StatusActive is an alert awaiting resolution.
	StatusActive Status = "active"
	// StatusResolved is terminal.
	StatusResolved Status = "resolved"
)

// Alert is one emergency event instance.
type Alert struct {
	// ID is assigned by persistence and never reused.
	ID int64
	// SubjectPhone references the owning subject.
	SubjectPhone string
	// Category of the emergency.
	Category Category
	// Fix is the location captured at trigger time.
	Fix LocationFix
	// Message is optional free text from the subject.
	Message string
	// Status is the lifecycle status.
	Status Status
	// CreatedAt is the trigger time.
	CreatedAt time.Time
	// ResolvedAt is set only on transition to resolved.
	ResolvedAt time.Time
	// ResolutionReason explains why the alert was resolved.
	ResolutionReason string
}

// Clone returns a copy of the alert.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// IsActive reports whether the alert still awaits resolution.
func (a *Alert) IsActive() bool {
	return a.Status == StatusActive
}

// ActiveAlert is the registry's view of an alert, used by status queries.
type ActiveAlert struct {
	// ID of the alert.
	ID int64
	// SubjectPhone of the owning subject.
	SubjectPhone string
	// Category of the alert.
	Category Category
	// Summary is the location summary captured at trigger time.
	Summary LocationSummary
	// CreatedAt is the trigger time.
	CreatedAt time.Time
}

// StatusView joins the latest location, the contact list and the active alert of a subject.
type StatusView struct {
	// Subject is the subject record.
	Subject Subject
	// Location is the latest fix, nil when none was ever stored.
	Location *LocationFix
	// ActiveAlert is the subject's active alert, nil when there is none.
	ActiveAlert *ActiveAlert
}
