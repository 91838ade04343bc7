package emergency

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultContactName is used when a contact is given as a bare phone number.
const DefaultContactName = "Emergency Contact"

// ErrEmptyContact is returned when a contact entry carries no phone number.
var ErrEmptyContact = errors.New("contact phone must be provided")

// Contact is one emergency-contact entry of a subject.
type Contact struct {
	// Name is how the contact is addressed in messages.
	Name string
	// Phone is the SMS channel of the contact.
	Phone string
}

// ParseContact accepts either "Name: phone" or a bare phone number.
func ParseContact(raw string) (Contact, error) {
	raw = strings.TrimSpace(raw)

	name, phone, found := strings.Cut(raw, ":")
	if !found {
		name, phone = DefaultContactName, raw
	}

	contact := Contact{
		Name:  strings.TrimSpace(name),
		Phone: strings.TrimSpace(phone),
	}

	if contact.Phone == "" {
		return Contact{}, fmt.Errorf("parse contact %q: %w", raw, ErrEmptyContact)
	}

	if contact.Name == "" {
		contact.Name = DefaultContactName
	}

	return contact, nil
}

// String renders the contact in the "Name: phone" shorthand.
func (c Contact) String() string {
	return c.Name + ": " + c.Phone
}

// Subject is a person who may trigger or be covered by an emergency alert.
type Subject struct {
	// Phone is the identity key of the subject and its SMS channel.
	Phone string
	// Name is the display name used in notifications.
	Name string
	// Email is an optional secondary channel.
	Email string
	// MedicalNotes is optional free text forwarded to emergency services.
	MedicalNotes string
	// Contacts is the ordered list of emergency contacts.
	Contacts []Contact
	// CreatedAt is the registration time.
	CreatedAt time.Time
}

// Clone returns a deep copy of the subject.
func (s *Subject) Clone() *Subject {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.Contacts = append([]Contact(nil), s.Contacts...)

	return &cloned
}
