package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

// MemoryRepository keeps every record in process memory.
type MemoryRepository struct {
	// mu protects all maps below.
	mu sync.RWMutex
	// subjects is keyed by phone.
	subjects map[string]*emergency.Subject
	// locations holds the append-only history per phone.
	locations map[string][]*emergency.LocationFix
	// alerts is keyed by alert id.
	alerts map[int64]*emergency.Alert
	// reports holds the fan-out outcomes per alert id.
	reports map[int64][]emergency.NotificationOutcome
	// lastLocationID and lastAlertID are monotonically increasing id sequences.
	lastLocationID int64
	lastAlertID    int64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		subjects:  make(map[string]*emergency.Subject),
		locations: make(map[string][]*emergency.LocationFix),
		alerts:    make(map[int64]*emergency.Alert),
		reports:   make(map[int64][]emergency.NotificationOutcome),
	}
}

// GetSubject returns the subject keyed by phone.
func (r *MemoryRepository) GetSubject(_ context.Context, phone string) (*emergency.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subject, ok := r.subjects[phone]
	if !ok {
		return nil, ErrNotFound
	}

	return subject.Clone(), nil
}

// AddSubject stores a new subject.
func (r *MemoryRepository) AddSubject(_ context.Context, subject *emergency.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subjects[subject.Phone]; ok {
		return fmt.Errorf("add subject %s: %w", subject.Phone, ErrAlreadyExists)
	}

	r.subjects[subject.Phone] = subject.Clone()

	return nil
}

// AddContact appends a contact to the subject's list.
func (r *MemoryRepository) AddContact(_ context.Context, phone string, contact emergency.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subject, ok := r.subjects[phone]
	if !ok {
		return ErrNotFound
	}

	subject.Contacts = append(subject.Contacts, contact)

	return nil
}

// AppendLocationFix appends a fix to the history.
func (r *MemoryRepository) AppendLocationFix(_ context.Context, fix *emergency.LocationFix) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastLocationID++

	stored := fix.Clone()
	stored.ID = r.lastLocationID
	r.locations[fix.SubjectPhone] = append(r.locations[fix.SubjectPhone], stored)

	return stored.ID, nil
}

// LatestLocationFix returns the most recent fix of the subject.
func (r *MemoryRepository) LatestLocationFix(_ context.Context, phone string) (*emergency.LocationFix, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *emergency.LocationFix

	for _, fix := range r.locations[phone] {
		if latest == nil || !fix.Timestamp.Before(latest.Timestamp) {
			latest = fix
		}
	}

	if latest == nil {
		return nil, ErrNotFound
	}

	return latest.Clone(), nil
}

// CreateAlert stores a new alert and assigns it the next identifier.
func (r *MemoryRepository) CreateAlert(_ context.Context, alert *emergency.Alert) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastAlertID++

	stored := alert.Clone()
	stored.ID = r.lastAlertID
	stored.Status = emergency.StatusActive
	r.alerts[stored.ID] = stored

	return stored.ID, nil
}

// GetAlert returns the alert by id.
func (r *MemoryRepository) GetAlert(_ context.Context, id int64) (*emergency.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, ok := r.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}

	return alert.Clone(), nil
}

// ResolveAlert marks an active alert resolved.
func (r *MemoryRepository) ResolveAlert(_ context.Context, id int64, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok || !alert.IsActive() {
		return false, nil
	}

	alert.Status = emergency.StatusResolved
	alert.ResolvedAt = at
	alert.ResolutionReason = reason

	return true, nil
}

// ListActiveAlerts returns active alerts, newest first.
func (r *MemoryRepository) ListActiveAlerts(_ context.Context) ([]*emergency.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*emergency.Alert, 0, len(r.alerts))

	for _, alert := range r.alerts {
		if alert.IsActive() {
			result = append(result, alert.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// SaveNotificationReport attaches the fan-out outcomes to an alert.
func (r *MemoryRepository) SaveNotificationReport(
	_ context.Context,
	alertID int64,
	report *emergency.FanoutReport,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[alertID]; !ok {
		return ErrNotFound
	}

	r.reports[alertID] = append(r.reports[alertID], report.Outcomes...)

	return nil
}

// NotificationOutcomes returns the outcomes stored for an alert.
func (r *MemoryRepository) NotificationOutcomes(alertID int64) []emergency.NotificationOutcome {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]emergency.NotificationOutcome(nil), r.reports[alertID]...)
}

// Close is a no-op.
func (r *MemoryRepository) Close() error {
	return nil
}
