package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	core "github.com/oshokin/emergency-alert/internal/alert"
	"github.com/oshokin/emergency-alert/internal/domain/emergency"
	"github.com/oshokin/emergency-alert/internal/location"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	RegisterSubject(ctx context.Context, req core.RegisterRequest) (*emergency.Subject, error)
	AddContact(ctx context.Context, phone string, contact emergency.Contact) (*emergency.Subject, error)
	UpdateLocation(ctx context.Context, phone string, lat, lng float64) (*core.LocationUpdate, error)
	Trigger(ctx context.Context, req core.TriggerRequest) (*core.TriggerResult, error)
	Cancel(ctx context.Context, alertID int64, reason string) error
	AdminResolve(ctx context.Context, alertID int64, reason string) error
	Status(ctx context.Context, phone string) (*emergency.StatusView, error)
	ListActive() []emergency.ActiveAlert
	SelfTest(ctx context.Context, phone string) ([]core.SelfTestStep, error)
}

// Server implements the AlertService gRPC API.
type Server struct {
	// service provides the alert lifecycle operations.
	service Service
}

var _ API = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// RegisterSubject stores a new subject with its emergency contacts.
func (s *Server) RegisterSubject(ctx context.Context, req *RegisterSubjectRequest) (*SubjectResponse, error) {
	if req == nil || strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, status.Error(codes.InvalidArgument, "name and phone are required fields")
	}

	contacts := make([]emergency.Contact, 0, len(req.Contacts))

	for _, raw := range req.Contacts {
		contact, err := emergency.ParseContact(raw)
		if err != nil {
			return nil, toStatus(err)
		}

		contacts = append(contacts, contact)
	}

	subject, err := s.service.RegisterSubject(ctx, core.RegisterRequest{
		Phone:        req.Phone,
		Name:         req.Name,
		Email:        req.Email,
		MedicalNotes: req.MedicalInfo,
		Contacts:     contacts,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &SubjectResponse{
		Success: true,
		Message: "User registered successfully",
		Subject: toWireSubject(subject),
	}, nil
}

// AddContact appends one emergency contact.
func (s *Server) AddContact(ctx context.Context, req *AddContactRequest) (*SubjectResponse, error) {
	if req == nil || strings.TrimSpace(req.Phone) == "" {
		return nil, status.Error(codes.InvalidArgument, "phone number is required")
	}

	contact, err := emergency.ParseContact(req.Contact)
	if err != nil {
		return nil, toStatus(err)
	}

	subject, err := s.service.AddContact(ctx, req.Phone, contact)
	if err != nil {
		return nil, toStatus(err)
	}

	return &SubjectResponse{
		Success: true,
		Message: "Emergency contact added",
		Subject: toWireSubject(subject),
	}, nil
}

// UpdateLocation records the current coordinates of a subject.
func (s *Server) UpdateLocation(ctx context.Context, req *UpdateLocationRequest) (*LocationResponse, error) {
	if req == nil || strings.TrimSpace(req.Phone) == "" {
		return nil, status.Error(codes.InvalidArgument, "phone, latitude, and longitude are required")
	}

	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}

	update, err := s.service.UpdateLocation(ctx, req.Phone, req.Latitude, req.Longitude)
	if err != nil {
		return nil, toStatus(err)
	}

	return &LocationResponse{
		Success:      true,
		Message:      "Location updated successfully",
		Location:     toWireFix(update.Fix),
		HighRiskZone: update.HighRiskZone,
	}, nil
}

// Trigger raises an emergency alert.
func (s *Server) Trigger(ctx context.Context, req *TriggerRequest) (*TriggerResponse, error) {
	if req == nil || strings.TrimSpace(req.Phone) == "" {
		return nil, status.Error(codes.InvalidArgument, "phone number is required")
	}

	category, err := emergency.ParseCategory(req.AlertType)
	if err != nil {
		return nil, toStatus(err)
	}

	request := core.TriggerRequest{
		Phone:    req.Phone,
		Category: category,
		Message:  req.Message,
	}

	switch {
	case req.Latitude != nil && req.Longitude != nil:
		if err := validateCoordinates(*req.Latitude, *req.Longitude); err != nil {
			return nil, err
		}

		request.Coordinates = &location.Coordinates{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
		}
	case req.Latitude != nil || req.Longitude != nil:
		return nil, status.Error(codes.InvalidArgument, "latitude and longitude must be given together")
	}

	result, err := s.service.Trigger(ctx, request)
	if err != nil {
		return nil, toStatus(err)
	}

	return &TriggerResponse{
		Success:       true,
		Message:       "Emergency alert sent successfully",
		AlertID:       result.AlertID,
		Location:      toWireSummary(result.Summary),
		Notifications: toWireReport(result.Report),
	}, nil
}

// Cancel resolves an alert on behalf of its subject.
func (s *Server) Cancel(ctx context.Context, req *CancelRequest) (*ResolveResponse, error) {
	if req == nil || req.AlertID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "alert id is required")
	}

	if err := s.service.Cancel(ctx, req.AlertID, req.Reason); err != nil {
		return nil, toStatus(err)
	}

	return &ResolveResponse{
		Success: true,
		Message: "Alert cancelled successfully. Reason: " + reasonOr(req.Reason, core.DefaultCancelReason),
	}, nil
}

// Resolve resolves an alert administratively.
func (s *Server) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	if req == nil || req.AlertID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "alert id is required")
	}

	if err := s.service.AdminResolve(ctx, req.AlertID, req.Reason); err != nil {
		return nil, toStatus(err)
	}

	return &ResolveResponse{
		Success: true,
		Message: "Alert resolved. Reason: " + reasonOr(req.Reason, core.DefaultAdminReason),
	}, nil
}

// Status returns the subject, its latest location and its active alert.
func (s *Server) Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	if req == nil || strings.TrimSpace(req.Phone) == "" {
		return nil, status.Error(codes.InvalidArgument, "phone number is required")
	}

	view, err := s.service.Status(ctx, req.Phone)
	if err != nil {
		return nil, toStatus(err)
	}

	response := &StatusResponse{
		Success:  true,
		Message:  "Status retrieved",
		Subject:  toWireSubject(&view.Subject),
		Location: toWireFix(view.Location),
	}

	if view.ActiveAlert != nil {
		response.ActiveAlert = toWireActive(view.ActiveAlert)
	}

	return response, nil
}

// ListActive returns every registered alert ordered by id.
func (s *Server) ListActive(context.Context, *ListActiveRequest) (*ListActiveResponse, error) {
	active := s.service.ListActive()

	alerts := make([]*ActiveAlert, 0, len(active))
	for i := range active {
		alerts = append(alerts, toWireActive(&active[i]))
	}

	return &ListActiveResponse{
		Success: true,
		Message: fmt.Sprintf("%d active alert(s)", len(alerts)),
		Alerts:  alerts,
	}, nil
}

// SelfTest checks the subject's channels and the location service.
func (s *Server) SelfTest(ctx context.Context, req *SelfTestRequest) (*SelfTestResponse, error) {
	if req == nil || strings.TrimSpace(req.Phone) == "" {
		return nil, status.Error(codes.InvalidArgument, "phone number is required for testing")
	}

	steps, err := s.service.SelfTest(ctx, req.Phone)
	if err != nil {
		return nil, toStatus(err)
	}

	response := &SelfTestResponse{
		Success: true,
		Message: "System test completed",
		Steps:   make([]SelfTestStep, 0, len(steps)),
	}

	for _, step := range steps {
		response.Steps = append(response.Steps, SelfTestStep{
			Name:   step.Name,
			Passed: step.Passed,
			Detail: step.Detail,
		})
	}

	return response, nil
}

// toStatus maps domain errors to gRPC status errors.
func toStatus(err error) error {
	var code codes.Code

	switch {
	case errors.Is(err, core.ErrSubjectNotFound), errors.Is(err, core.ErrAlertNotFound):
		code = codes.NotFound
	case errors.Is(err, core.ErrSubjectExists):
		code = codes.AlreadyExists
	case errors.Is(err, core.ErrAlertAlreadyActive),
		errors.Is(err, core.ErrLocationUnavailable),
		errors.Is(err, core.ErrTooManyContacts):
		code = codes.FailedPrecondition
	case errors.Is(err, core.ErrCollaborator), errors.Is(err, core.ErrRegistryClosed):
		code = codes.Unavailable
	case errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, emergency.ErrUnknownCategory),
		errors.Is(err, emergency.ErrEmptyContact):
		code = codes.InvalidArgument
	default:
		return status.Error(codes.Internal, "internal error")
	}

	return status.Error(code, err.Error())
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return status.Errorf(codes.InvalidArgument, "coordinates out of range: %v, %v", lat, lng)
	}

	return nil
}

func reasonOr(reason, fallback string) string {
	if strings.TrimSpace(reason) == "" {
		return fallback
	}

	return reason
}

func toTimestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}

	return timestamppb.New(t)
}

// toWireSubject converts a domain Subject to its wire form.
func toWireSubject(subject *emergency.Subject) *Subject {
	if subject == nil {
		return nil
	}

	contacts := make([]Contact, 0, len(subject.Contacts))
	for _, c := range subject.Contacts {
		contacts = append(contacts, Contact{Name: c.Name, Phone: c.Phone})
	}

	return &Subject{
		Phone:       subject.Phone,
		Name:        subject.Name,
		Email:       subject.Email,
		MedicalInfo: subject.MedicalNotes,
		Contacts:    contacts,
		CreatedAt:   toTimestamp(subject.CreatedAt),
	}
}

func toWireFix(fix *emergency.LocationFix) *LocationFix {
	if fix == nil {
		return nil
	}

	return &LocationFix{
		ID:        fix.ID,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Address:   fix.Address,
		Method:    string(fix.Method),
		Timestamp: toTimestamp(fix.Timestamp),
	}
}

func toWireSummary(summary *emergency.LocationSummary) *LocationSummary {
	if summary == nil {
		return nil
	}

	services := make([]NearbyService, 0, len(summary.NearestServices))
	for _, svc := range summary.NearestServices {
		services = append(services, NearbyService{
			Name:       svc.Name,
			Address:    svc.Address,
			Kind:       svc.Kind,
			Phone:      svc.Phone,
			Latitude:   svc.Latitude,
			Longitude:  svc.Longitude,
			Rating:     svc.Rating,
			DistanceKm: svc.DistanceKm,
		})
	}

	return &LocationSummary{
		Coordinates:     summary.Coordinates,
		Address:         summary.Address,
		MapsLink:        summary.MapsLink,
		Method:          string(summary.Fix.Method),
		HighRiskZone:    summary.HighRiskZone,
		NearestServices: services,
		Timestamp:       toTimestamp(summary.Timestamp),
	}
}

func toWireReport(report *emergency.FanoutReport) *NotificationReport {
	if report == nil {
		return nil
	}

	outcomes := make([]NotificationOutcome, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		outcomes = append(outcomes, NotificationOutcome{
			Target:    string(o.Target),
			Channel:   string(o.Channel),
			Recipient: o.Recipient,
			Success:   o.Success,
			Error:     o.Error,
		})
	}

	return &NotificationReport{
		Services: string(report.Group(emergency.TargetServices)),
		Contacts: string(report.Group(emergency.TargetContact)),
		Subject:  string(report.Group(emergency.TargetSubject)),
		Outcomes: outcomes,
	}
}

func toWireActive(active *emergency.ActiveAlert) *ActiveAlert {
	return &ActiveAlert{
		AlertID:      active.ID,
		AlertType:    string(active.Category),
		SubjectPhone: active.SubjectPhone,
		Location:     toWireSummary(&active.Summary),
		CreatedAt:    toTimestamp(active.CreatedAt),
	}
}
