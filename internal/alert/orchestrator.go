package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
	"github.com/oshokin/emergency-alert/internal/events"
	"github.com/oshokin/emergency-alert/internal/location"
	"github.com/oshokin/emergency-alert/internal/logger"
	"github.com/oshokin/emergency-alert/internal/repository/store"
)

const (
	// DefaultCancelReason is used when a cancel carries no reason.
	DefaultCancelReason = "User cancelled"
	// DefaultAdminReason is used when an administrative resolve carries no reason.
	DefaultAdminReason = "Resolved by administrator"

	resolvedByCancel = "cancelled"
	resolvedByAdmin  = "admin"
)

// LocationResolver produces and enriches location fixes.
type LocationResolver interface {
	Resolve(ctx context.Context, phone string, explicit *location.Coordinates) (*emergency.LocationFix, error)
	Update(ctx context.Context, phone string, lat, lng float64) *emergency.LocationFix
	Probe(ctx context.Context) (*emergency.LocationFix, error)
	Enrich(ctx context.Context, fix *emergency.LocationFix, kind string) *emergency.LocationSummary
	InHighRiskZone(lat, lng float64) bool
}

// Notifier sends alert notifications.
type Notifier interface {
	Dispatch(
		ctx context.Context,
		subject *emergency.Subject,
		alert *emergency.Alert,
		summary *emergency.LocationSummary,
	) *emergency.FanoutReport
	SendCancellation(ctx context.Context, phone, reason string) error
	SendEscalation(ctx context.Context, phone string) error
	SendTest(ctx context.Context, subject *emergency.Subject) *emergency.FanoutReport
}

// Recorder receives lifecycle measurements.
type Recorder interface {
	AlertTriggered(category emergency.Category)
	AlertResolved(kind string)
	Escalated()
	Notifications(report *emergency.FanoutReport)
	SetActive(n int)
	SetOrphaned(n int)
}

// Options configures an Orchestrator.
type Options struct {
	// Repository is the persistence collaborator.
	Repository store.Repository
	// Resolver resolves and enriches locations.
	Resolver LocationResolver
	// Notifier fans out notifications.
	Notifier Notifier
	// Publisher receives lifecycle events; events.Nop when nil.
	Publisher events.Publisher
	// Recorder receives measurements; discarded when nil.
	Recorder Recorder
	// EscalationDelay is how long an alert may stay uncancelled before the follow-up notice.
	EscalationDelay time.Duration
	// MaxContacts caps the contact list; zero means no limit.
	MaxContacts int
	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// Orchestrator is the alert lifecycle state machine.
type Orchestrator struct {
	repo      store.Repository
	resolver  LocationResolver
	notifier  Notifier
	publisher events.Publisher
	recorder  Recorder
	registry  *Registry

	maxContacts int
	now         func() time.Time

	// baseCtx carries the logger for work not bound to a caller, such as escalations.
	baseCtx context.Context

	pendingMu sync.Mutex
	// pendingResolves holds alerts removed from the registry whose resolve write failed.
	pendingResolves map[int64]pendingResolve
}

// pendingResolve is a persistence resolution awaiting retry.
type pendingResolve struct {
	reason string
	at     time.Time
}

// New creates an Orchestrator. ctx supplies the logger used by background work.
func New(ctx context.Context, opts Options) *Orchestrator {
	o := &Orchestrator{
		repo:            opts.Repository,
		resolver:        opts.Resolver,
		notifier:        opts.Notifier,
		publisher:       opts.Publisher,
		recorder:        opts.Recorder,
		maxContacts:     opts.MaxContacts,
		now:             opts.Now,
		baseCtx:         context.WithoutCancel(logger.WithName(ctx, "orchestrator")),
		pendingResolves: make(map[int64]pendingResolve),
	}

	if o.publisher == nil {
		o.publisher = events.Nop{}
	}

	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}

	if o.now == nil {
		o.now = time.Now
	}

	o.registry = NewRegistry(opts.EscalationDelay, o.escalate)

	return o
}

// TriggerRequest asks for a new alert.
type TriggerRequest struct {
	// Phone identifies the subject.
	Phone string
	// Category of the emergency; medical when empty in user input.
	Category emergency.Category
	// Message is optional free text.
	Message string
	// Coordinates are optional explicit coordinates.
	Coordinates *location.Coordinates
}

// TriggerResult describes a triggered alert.
type TriggerResult struct {
	AlertID int64
	Summary *emergency.LocationSummary
	Report  *emergency.FanoutReport
}

// Trigger creates an alert, notifies everyone concerned and schedules the escalation.
func (o *Orchestrator) Trigger(ctx context.Context, req TriggerRequest) (*TriggerResult, error) {
	ctx = logger.WithKV(ctx, "phone", req.Phone)

	if req.Category == "" {
		req.Category = emergency.CategoryMedical
	}

	subject, err := o.subject(ctx, req.Phone)
	if err != nil {
		return nil, err
	}

	if existing, err := o.registry.Claim(req.Phone); err != nil {
		if existing != 0 {
			return nil, fmt.Errorf("trigger for %s: %w (alert %d)", req.Phone, err, existing)
		}

		return nil, fmt.Errorf("trigger for %s: %w", req.Phone, err)
	}

	registered := false

	defer func() {
		if !registered {
			o.registry.Release(req.Phone)
		}
	}()

	fix, err := o.resolver.Resolve(ctx, req.Phone, req.Coordinates)
	if err != nil {
		if errors.Is(err, location.ErrUnavailable) {
			return nil, fmt.Errorf("trigger for %s: %w", req.Phone, ErrLocationUnavailable)
		}

		return nil, fmt.Errorf("trigger for %s: %w: %w", req.Phone, ErrCollaborator, err)
	}

	summary := o.resolver.Enrich(ctx, fix, req.Category.ServiceKind())

	alert := &emergency.Alert{
		SubjectPhone: req.Phone,
		Category:     req.Category,
		Fix:          *fix,
		Message:      req.Message,
		Status:       emergency.StatusActive,
		CreatedAt:    o.now(),
	}

	alert.ID, err = o.repo.CreateAlert(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("create alert: %w: %w", ErrCollaborator, err)
	}

	ctx = logger.WithKV(ctx, "alert_id", alert.ID)

	report := o.notifier.Dispatch(ctx, subject, alert, summary)
	o.recorder.Notifications(report)

	if err = o.repo.SaveNotificationReport(ctx, alert.ID, report); err != nil {
		logger.WarnKV(ctx, "Failed to store notification outcomes", "error", err)
	}

	err = o.registry.Put(emergency.ActiveAlert{
		ID:           alert.ID,
		SubjectPhone: req.Phone,
		Category:     req.Category,
		Summary:      *summary.Clone(),
		CreatedAt:    alert.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("register alert %d: %w", alert.ID, err)
	}

	registered = true

	o.recorder.AlertTriggered(req.Category)
	o.recorder.SetActive(o.registry.Len())
	o.publish(ctx, events.Event{
		Kind:         events.KindTriggered,
		AlertID:      alert.ID,
		SubjectPhone: req.Phone,
		Category:     string(req.Category),
		Latitude:     fix.Latitude,
		Longitude:    fix.Longitude,
		At:           alert.CreatedAt,
	})

	logger.WarnKV(ctx, "Emergency alert triggered",
		"category", req.Category,
		"method", fix.Method,
		"coordinates", fix.Coordinates(),
		"notified", report.Succeeded(),
		"attempted", len(report.Outcomes))

	return &TriggerResult{
		AlertID: alert.ID,
		Summary: summary,
		Report:  report,
	}, nil
}

// Cancel resolves a registered alert on behalf of its subject and confirms the cancellation.
func (o *Orchestrator) Cancel(ctx context.Context, alertID int64, reason string) error {
	ctx = logger.WithKV(ctx, "alert_id", alertID)

	if strings.TrimSpace(reason) == "" {
		reason = DefaultCancelReason
	}

	// Taking the entry stops the timer and decides the race with a firing escalation.
	active, ok := o.registry.Take(alertID)
	if !ok {
		return fmt.Errorf("cancel alert %d: %w", alertID, ErrAlertNotFound)
	}

	at := o.now()
	if err := o.resolvePersisted(ctx, alertID, reason, at); err != nil {
		logger.ErrorKV(ctx, "Failed to resolve alert in persistence, queued for retry", "error", err)
		o.queueResolve(alertID, reason, at)
	}

	if err := o.notifier.SendCancellation(ctx, active.SubjectPhone, reason); err != nil {
		logger.WarnKV(ctx, "Failed to send cancellation notice", "error", err)
	}

	o.resolved(ctx, active.ID, active.SubjectPhone, reason, resolvedByCancel, at)

	return nil
}

// AdminResolve resolves an alert administratively. It also resolves alerts that are active
// in persistence but unknown to the registry, e.g. after a restart.
func (o *Orchestrator) AdminResolve(ctx context.Context, alertID int64, reason string) error {
	ctx = logger.WithKV(ctx, "alert_id", alertID)

	if strings.TrimSpace(reason) == "" {
		reason = DefaultAdminReason
	}

	at := o.now()

	if active, ok := o.registry.Take(alertID); ok {
		if err := o.resolvePersisted(ctx, alertID, reason, at); err != nil {
			o.queueResolve(alertID, reason, at)

			return fmt.Errorf("resolve alert %d: %w: %w", alertID, ErrCollaborator, err)
		}

		o.resolved(ctx, alertID, active.SubjectPhone, reason, resolvedByAdmin, at)

		return nil
	}

	ok, err := o.repo.ResolveAlert(ctx, alertID, reason, at)
	if err != nil {
		return fmt.Errorf("resolve alert %d: %w: %w", alertID, ErrCollaborator, err)
	}

	if !ok {
		return fmt.Errorf("resolve alert %d: %w", alertID, ErrAlertNotFound)
	}

	o.dropPending(alertID)

	phone := ""
	if stored, err := o.repo.GetAlert(ctx, alertID); err == nil {
		phone = stored.SubjectPhone
	}

	o.resolved(ctx, alertID, phone, reason, resolvedByAdmin, at)

	return nil
}

// resolvePersisted marks the alert resolved; an already resolved row is only logged.
func (o *Orchestrator) resolvePersisted(ctx context.Context, alertID int64, reason string, at time.Time) error {
	ok, err := o.repo.ResolveAlert(ctx, alertID, reason, at)
	if err != nil {
		return err
	}

	if !ok {
		logger.WarnKV(ctx, "Alert was not active in persistence")
	}

	return nil
}

func (o *Orchestrator) resolved(ctx context.Context, alertID int64, phone, reason, kind string, at time.Time) {
	o.recorder.AlertResolved(kind)
	o.recorder.SetActive(o.registry.Len())
	o.publish(ctx, events.Event{
		Kind:         events.KindResolved,
		AlertID:      alertID,
		SubjectPhone: phone,
		Reason:       reason,
		At:           at,
	})

	logger.InfoKV(ctx, "Emergency alert resolved", "reason", reason, "kind", kind)
}

// escalate runs on the registry timer of an alert that is still registered.
// The alert stays active.
func (o *Orchestrator) escalate(active emergency.ActiveAlert) {
	ctx := logger.WithKV(o.baseCtx, "alert_id", active.ID, "phone", active.SubjectPhone)

	if err := o.notifier.SendEscalation(ctx, active.SubjectPhone); err != nil {
		logger.WarnKV(ctx, "Failed to send escalation notice", "error", err)
	} else {
		logger.InfoKV(ctx, "Escalation notice sent")
	}

	o.recorder.Escalated()
	o.publish(ctx, events.Event{
		Kind:         events.KindEscalated,
		AlertID:      active.ID,
		SubjectPhone: active.SubjectPhone,
		Category:     string(active.Category),
		At:           o.now(),
	})
}

// Status joins the subject, its latest location and its active alert. It never mutates state.
func (o *Orchestrator) Status(ctx context.Context, phone string) (*emergency.StatusView, error) {
	subject, err := o.subject(ctx, phone)
	if err != nil {
		return nil, err
	}

	view := &emergency.StatusView{Subject: *subject}

	fix, err := o.repo.LatestLocationFix(ctx, phone)
	switch {
	case err == nil:
		view.Location = fix
	case !errors.Is(err, store.ErrNotFound):
		logger.WarnKV(ctx, "Failed to read latest location", "phone", phone, "error", err)
	}

	if active, ok := o.registry.FindBySubject(phone); ok {
		view.ActiveAlert = &active
	}

	return view, nil
}

// ListActive returns the registered alerts ordered by id.
func (o *Orchestrator) ListActive() []emergency.ActiveAlert {
	return o.registry.ListActive()
}

// RegisterRequest describes a new subject.
type RegisterRequest struct {
	Phone        string
	Name         string
	Email        string
	MedicalNotes string
	Contacts     []emergency.Contact
}

// RegisterSubject stores a new subject.
func (o *Orchestrator) RegisterSubject(ctx context.Context, req RegisterRequest) (*emergency.Subject, error) {
	phone := strings.TrimSpace(req.Phone)
	name := strings.TrimSpace(req.Name)

	if phone == "" || name == "" {
		return nil, fmt.Errorf("register subject: %w: name and phone are required", ErrInvalidRequest)
	}

	if o.maxContacts > 0 && len(req.Contacts) > o.maxContacts {
		return nil, fmt.Errorf("register subject %s: %w: %d > %d",
			phone, ErrTooManyContacts, len(req.Contacts), o.maxContacts)
	}

	subject := &emergency.Subject{
		Phone:        phone,
		Name:         name,
		Email:        strings.TrimSpace(req.Email),
		MedicalNotes: req.MedicalNotes,
		Contacts:     append([]emergency.Contact(nil), req.Contacts...),
		CreatedAt:    o.now(),
	}

	if err := o.repo.AddSubject(ctx, subject); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, fmt.Errorf("register subject %s: %w", phone, ErrSubjectExists)
		}

		return nil, fmt.Errorf("register subject %s: %w: %w", phone, ErrCollaborator, err)
	}

	logger.InfoKV(ctx, "Subject registered", "phone", phone, "contacts", len(subject.Contacts))

	return subject, nil
}

// AddContact appends an emergency contact to the subject's list.
func (o *Orchestrator) AddContact(ctx context.Context, phone string, contact emergency.Contact) (*emergency.Subject, error) {
	if strings.TrimSpace(contact.Phone) == "" {
		return nil, fmt.Errorf("add contact: %w: contact phone is required", ErrInvalidRequest)
	}

	subject, err := o.subject(ctx, phone)
	if err != nil {
		return nil, err
	}

	if o.maxContacts > 0 && len(subject.Contacts) >= o.maxContacts {
		return nil, fmt.Errorf("add contact to %s: %w: limit is %d", phone, ErrTooManyContacts, o.maxContacts)
	}

	if contact.Name == "" {
		contact.Name = emergency.DefaultContactName
	}

	if err = o.repo.AddContact(ctx, phone, contact); err != nil {
		return nil, fmt.Errorf("add contact to %s: %w: %w", phone, ErrCollaborator, err)
	}

	subject.Contacts = append(subject.Contacts, contact)

	return subject, nil
}

// LocationUpdate is the result of UpdateLocation.
type LocationUpdate struct {
	Fix          *emergency.LocationFix
	HighRiskZone bool
}

// UpdateLocation records explicit coordinates as the subject's current location.
func (o *Orchestrator) UpdateLocation(ctx context.Context, phone string, lat, lng float64) (*LocationUpdate, error) {
	if _, err := o.subject(ctx, phone); err != nil {
		return nil, err
	}

	fix := o.resolver.Update(ctx, phone, lat, lng)

	return &LocationUpdate{
		Fix:          fix,
		HighRiskZone: o.resolver.InHighRiskZone(lat, lng),
	}, nil
}

// SelfTestStep is the result of one self-test step.
type SelfTestStep struct {
	Name   string
	Passed bool
	Detail string
}

// SelfTest checks the subject lookup, the IP location service and the subject's channels.
func (o *Orchestrator) SelfTest(ctx context.Context, phone string) ([]SelfTestStep, error) {
	subject, err := o.subject(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return []SelfTestStep{{Name: "subject_lookup", Detail: "Subject not found"}}, err
		}

		return nil, err
	}

	steps := []SelfTestStep{{Name: "subject_lookup", Passed: true, Detail: "Subject found"}}

	if fix, err := o.resolver.Probe(ctx); err != nil {
		steps = append(steps, SelfTestStep{Name: "location_service", Detail: err.Error()})
	} else {
		steps = append(steps, SelfTestStep{
			Name:   "location_service",
			Passed: true,
			Detail: fix.Coordinates(),
		})
	}

	report := o.notifier.SendTest(ctx, subject)

	details := make([]string, 0, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		result := "ok"
		if !outcome.Success {
			result = outcome.Error
		}

		details = append(details, fmt.Sprintf("%s: %s", outcome.Channel, result))
	}

	steps = append(steps, SelfTestStep{
		Name:   "notifications",
		Passed: report.Succeeded() > 0,
		Detail: strings.Join(details, "; "),
	})

	return steps, nil
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	// Retried lists alerts whose pending resolve write succeeded.
	Retried []int64
	// Pending lists alerts whose resolve write still fails.
	Pending []int64
	// Orphaned lists alerts active in persistence but absent from the registry.
	Orphaned []int64
}

// Reconcile retries failed resolve writes and reports persisted active alerts the registry
// does not hold. It never resolves an alert on its own.
func (o *Orchestrator) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := new(ReconcileReport)

	for id, p := range o.pendingSnapshot() {
		if _, err := o.repo.ResolveAlert(ctx, id, p.reason, p.at); err != nil {
			report.Pending = append(report.Pending, id)

			continue
		}

		o.dropPending(id)
		report.Retried = append(report.Retried, id)
	}

	stored, err := o.repo.ListActiveAlerts(ctx)
	if err != nil {
		return report, fmt.Errorf("list active alerts: %w: %w", ErrCollaborator, err)
	}

	pending := o.pendingSnapshot()

	for _, a := range stored {
		if _, ok := pending[a.ID]; ok || o.registry.Contains(a.ID) {
			continue
		}

		report.Orphaned = append(report.Orphaned, a.ID)
	}

	o.recorder.SetOrphaned(len(report.Orphaned))
	o.recorder.SetActive(o.registry.Len())

	if len(report.Orphaned) > 0 {
		logger.WarnKV(ctx, "Alerts active in persistence but not registered", "alert_ids", report.Orphaned)
	}

	return report, nil
}

// Shutdown cancels every pending escalation timer and rejects further triggers.
func (o *Orchestrator) Shutdown() {
	stopped := o.registry.Close()
	logger.InfoKV(o.baseCtx, "Alert registry closed", "stopped_timers", stopped)
}

func (o *Orchestrator) subject(ctx context.Context, phone string) (*emergency.Subject, error) {
	subject, err := o.repo.GetSubject(ctx, phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup %s: %w", phone, ErrSubjectNotFound)
		}

		return nil, fmt.Errorf("lookup %s: %w: %w", phone, ErrCollaborator, err)
	}

	return subject, nil
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if err := o.publisher.Publish(ctx, event); err != nil {
		logger.WarnKV(ctx, "Failed to publish lifecycle event", "kind", event.Kind, "error", err)
	}
}

func (o *Orchestrator) queueResolve(alertID int64, reason string, at time.Time) {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()

	o.pendingResolves[alertID] = pendingResolve{reason: reason, at: at}
}

func (o *Orchestrator) dropPending(alertID int64) {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()

	delete(o.pendingResolves, alertID)
}

func (o *Orchestrator) pendingSnapshot() map[int64]pendingResolve {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()

	snapshot := make(map[int64]pendingResolve, len(o.pendingResolves))
	for id, p := range o.pendingResolves {
		snapshot[id] = p
	}

	return snapshot
}

// nopRecorder discards measurements.
type nopRecorder struct{}

func (nopRecorder) AlertTriggered(emergency.Category) {}
func (nopRecorder) AlertResolved(string) {}
func (nopRecorder) Escalated() {}
func (nopRecorder) Notifications(*emergency.FanoutReport) {}
func (nopRecorder) SetActive(int) {}
func (nopRecorder) SetOrphaned(int) {}
