package messaging

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DispatchLocation is the location block of a dispatch request.
type DispatchLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// DispatchUser is the subject block of a dispatch request.
type DispatchUser struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	MedicalInfo string `json:"medical_info,omitempty"`
}

// DispatchRequest is the body posted to the emergency-services endpoint.
type DispatchRequest struct {
	AlertType string           `json:"alert_type"`
	Location  DispatchLocation `json:"location"`
	UserInfo  DispatchUser     `json:"user_info"`
	Timestamp string           `json:"timestamp"`
	Message   string           `json:"message,omitempty"`
}

// EmergencyAPIOptions configures the emergency-services endpoint.
type EmergencyAPIOptions struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// EmergencyAPI posts dispatch requests to an emergency-services endpoint.
type EmergencyAPI struct {
	endpoint string
	http     *resty.Client
}

// NewEmergencyAPI creates the poster. It returns nil unless both endpoint and key are set.
func NewEmergencyAPI(opts EmergencyAPIOptions) *EmergencyAPI {
	if opts.Endpoint == "" || opts.APIKey == "" {
		return nil
	}

	return &EmergencyAPI{
		endpoint: opts.Endpoint,
		http: resty.New().
			SetTimeout(opts.Timeout).
			SetAuthToken(opts.APIKey).
			SetHeader("Content-Type", "application/json"),
	}
}

// Endpoint returns the configured URL.
func (a *EmergencyAPI) Endpoint() string {
	return a.endpoint
}

// Dispatch posts the request; only 200 OK counts as accepted.
func (a *EmergencyAPI) Dispatch(ctx context.Context, req *DispatchRequest) error {
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(a.endpoint)
	if err != nil {
		return fmt.Errorf("post dispatch request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("post dispatch request: %w: %s", errUnexpectedStatus, resp.Status())
	}

	return nil
}
