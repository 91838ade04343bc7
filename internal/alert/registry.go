package alert

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

// pendingClaim marks a subject whose trigger is still in flight.
const pendingClaim int64 = 0

// EscalationFunc is called once per alert whose escalation timer fired while registered.
type EscalationFunc func(active emergency.ActiveAlert)

// entry is one registered alert and its escalation timer.
type entry struct {
	active emergency.ActiveAlert
	timer  *time.Timer
}

// Registry is the authoritative in-memory table of active alerts.
// Its lock is held only for map mutation, never across a callback.
type Registry struct {
	mu sync.Mutex
	// entries is keyed by alert id.
	entries map[int64]*entry
	// subjects maps a phone to its alert id, or pendingClaim during trigger.
	subjects map[string]int64
	closed   bool

	delay    time.Duration
	escalate EscalationFunc
	// firing tracks escalation callbacks so Close can wait for them.
	firing sync.WaitGroup
}

// NewRegistry creates a Registry that schedules escalate after delay for every put alert.
func NewRegistry(delay time.Duration, escalate EscalationFunc) *Registry {
	return &Registry{
		entries:  make(map[int64]*entry),
		subjects: make(map[string]int64),
		delay:    delay,
		escalate: escalate,
	}
}

// Claim reserves the subject for a trigger in flight. It fails with ErrAlertAlreadyActive
// and the existing alert id (zero while that trigger is in flight) if the subject is taken.
func (r *Registry) Claim(phone string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRegistryClosed
	}

	if id, ok := r.subjects[phone]; ok {
		return id, ErrAlertAlreadyActive
	}

	r.subjects[phone] = pendingClaim

	return 0, nil
}

// Release drops an in-flight claim. A claim already converted by Put is kept.
func (r *Registry) Release(phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.subjects[phone]; ok && id == pendingClaim {
		delete(r.subjects, phone)
	}
}

// Put registers an active alert and starts its escalation timer.
func (r *Registry) Put(active emergency.ActiveAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}

	if _, ok := r.entries[active.ID]; ok {
		return fmt.Errorf("put alert %d: %w", active.ID, errDuplicateAlertID)
	}

	id := active.ID
	r.entries[id] = &entry{
		active: active,
		timer:  time.AfterFunc(r.delay, func() { r.fire(id) }),
	}
	r.subjects[active.SubjectPhone] = id

	return nil
}

// fire runs the escalation callback if the alert is still registered. It never removes the entry.
func (r *Registry) fire(id int64) {
	r.mu.Lock()

	e, ok := r.entries[id]
	if !ok || r.closed {
		r.mu.Unlock()

		return
	}

	active := e.active
	r.firing.Add(1)
	r.mu.Unlock()

	defer r.firing.Done()

	if r.escalate != nil {
		r.escalate(active)
	}
}

// Get returns the registered alert.
func (r *Registry) Get(id int64) (emergency.ActiveAlert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return emergency.ActiveAlert{}, false
	}

	return e.active, true
}

// Take removes the alert and stops its timer. False means it was absent, i.e. already resolved.
func (r *Registry) Take(id int64) (emergency.ActiveAlert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return emergency.ActiveAlert{}, false
	}

	e.timer.Stop()
	delete(r.entries, id)

	if r.subjects[e.active.SubjectPhone] == id {
		delete(r.subjects, e.active.SubjectPhone)
	}

	return e.active, true
}

// FindBySubject returns the subject's registered alert.
func (r *Registry) FindBySubject(phone string) (emergency.ActiveAlert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.subjects[phone]
	if !ok || id == pendingClaim {
		return emergency.ActiveAlert{}, false
	}

	return r.entries[id].active, true
}

// ListActive returns a snapshot of the registered alerts ordered by id.
func (r *Registry) ListActive() []emergency.ActiveAlert {
	r.mu.Lock()

	result := make([]emergency.ActiveAlert, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.active)
	}

	r.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Len returns the number of registered alerts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Contains reports whether the alert is registered.
func (r *Registry) Contains(id int64) bool {
	_, ok := r.Get(id)

	return ok
}

// Close stops every timer, rejects further puts and waits for running escalations.
// It returns the number of timers that were still pending.
func (r *Registry) Close() int {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()

		return 0
	}

	r.closed = true

	stopped := 0
	for _, e := range r.entries {
		if e.timer.Stop() {
			stopped++
		}
	}

	clear(r.entries)
	clear(r.subjects)
	r.mu.Unlock()

	r.firing.Wait()

	return stopped
}
