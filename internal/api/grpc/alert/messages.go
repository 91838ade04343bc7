package alert

import "google.golang.org/protobuf/types/known/timestamppb"

// Contact is an emergency contact on the wire.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Subject is a registered subject on the wire.
type Subject struct {
	Phone       string                 `json:"phone"`
	Name        string                 `json:"name"`
	Email       string                 `json:"email,omitempty"`
	MedicalInfo string                 `json:"medical_info,omitempty"`
	Contacts    []Contact              `json:"emergency_contacts"`
	CreatedAt   *timestamppb.Timestamp `json:"created_at,omitempty"`
}

// LocationFix is a stored location on the wire.
type LocationFix struct {
	ID        int64                  `json:"id,omitempty"`
	Latitude  float64                `json:"latitude"`
	Longitude float64                `json:"longitude"`
	Address   string                 `json:"address,omitempty"`
	Method    string                 `json:"method"`
	Timestamp *timestamppb.Timestamp `json:"timestamp,omitempty"`
}

// NearbyService is one emergency service near an alert.
type NearbyService struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Kind       string  `json:"kind,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Rating     float64 `json:"rating,omitempty"`
	DistanceKm float64 `json:"distance_km"`
}

// LocationSummary is the enriched location of an alert.
type LocationSummary struct {
	Coordinates     string                 `json:"coordinates"`
	Address         string                 `json:"address"`
	MapsLink        string                 `json:"maps_link"`
	Method          string                 `json:"method"`
	HighRiskZone    bool                   `json:"high_risk_zone"`
	NearestServices []NearbyService        `json:"nearest_services"`
	Timestamp       *timestamppb.Timestamp `json:"timestamp,omitempty"`
}

// NotificationOutcome is the result of one send.
type NotificationOutcome struct {
	Target    string `json:"target"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// NotificationReport summarises a fan-out per target group.
type NotificationReport struct {
	Services string                `json:"emergency_services"`
	Contacts string                `json:"emergency_contacts"`
	Subject  string                `json:"user"`
	Outcomes []NotificationOutcome `json:"outcomes"`
}

// ActiveAlert is a registered alert on the wire.
type ActiveAlert struct {
	AlertID      int64                  `json:"alert_id"`
	AlertType    string                 `json:"alert_type"`
	SubjectPhone string                 `json:"user_phone"`
	Location     *LocationSummary       `json:"location,omitempty"`
	CreatedAt    *timestamppb.Timestamp `json:"created_at,omitempty"`
}

// RegisterSubjectRequest registers a subject. Contacts use the "Name: phone" shorthand.
type RegisterSubjectRequest struct {
	Phone       string   `json:"phone"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	MedicalInfo string   `json:"medical_info,omitempty"`
	Contacts    []string `json:"emergency_contacts,omitempty"`
}

// AddContactRequest appends one contact given in the "Name: phone" shorthand.
type AddContactRequest struct {
	Phone   string `json:"phone"`
	Contact string `json:"contact"`
}

// SubjectResponse carries a subject after a change.
type SubjectResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Subject *Subject `json:"user,omitempty"`
}

// UpdateLocationRequest records the current position of a subject.
type UpdateLocationRequest struct {
	Phone     string  `json:"phone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationResponse carries the stored fix.
type LocationResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	Location     *LocationFix `json:"location,omitempty"`
	HighRiskZone bool         `json:"high_risk_zone"`
}

// TriggerRequest raises an alert. Coordinates are optional and must come in pairs.
type TriggerRequest struct {
	Phone     string   `json:"phone"`
	AlertType string   `json:"alert_type,omitempty"`
	Message   string   `json:"message,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// TriggerResponse describes the raised alert.
type TriggerResponse struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message"`
	AlertID       int64               `json:"alert_id"`
	Location      *LocationSummary    `json:"location,omitempty"`
	Notifications *NotificationReport `json:"notifications_sent,omitempty"`
}

// CancelRequest cancels an alert on behalf of its subject.
type CancelRequest struct {
	AlertID int64  `json:"alert_id"`
	Reason  string `json:"reason,omitempty"`
}

// ResolveRequest resolves an alert administratively.
type ResolveRequest struct {
	AlertID int64  `json:"alert_id"`
	Reason  string `json:"reason,omitempty"`
}

// ResolveResponse acknowledges a cancel or resolve.
type ResolveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatusRequest asks for the status of a subject.
type StatusRequest struct {
	Phone string `json:"phone"`
}

// StatusResponse joins the subject, its latest location and its active alert.
type StatusResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Subject     *Subject     `json:"user,omitempty"`
	Location    *LocationFix `json:"location,omitempty"`
	ActiveAlert *ActiveAlert `json:"active_alert"`
}

// ListActiveRequest lists registered alerts.
type ListActiveRequest struct{}

// ListActiveResponse carries registered alerts ordered by id.
type ListActiveResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Alerts  []*ActiveAlert `json:"alerts"`
}

// SelfTestRequest runs the self-test for a subject.
type SelfTestRequest struct {
	Phone string `json:"phone"`
}

// SelfTestStep is the result of one self-test step.
type SelfTestStep struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// SelfTestResponse carries every step result.
type SelfTestResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Steps   []SelfTestStep `json:"steps"`
}
