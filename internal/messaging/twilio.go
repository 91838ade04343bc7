package messaging

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TwilioOptions configures the Twilio REST transport.
type TwilioOptions struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

// Twilio sends SMS through the Twilio Messages API.
type Twilio struct {
	opts TwilioOptions
	http *resty.Client
}

// NewTwilio creates the transport. It returns nil when credentials are incomplete.
func NewTwilio(opts TwilioOptions) *Twilio {
	if opts.AccountSID == "" || opts.AuthToken == "" || opts.FromNumber == "" {
		return nil
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetBasicAuth(opts.AccountSID, opts.AuthToken).
		SetHeader("Accept", "application/json")

	return &Twilio{
		opts: opts,
		http: httpClient,
	}
}

// twilioError is the error body returned by the API.
type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendSMS posts one message. The API answers 201 Created on success.
func (t *Twilio) SendSMS(ctx context.Context, to, text string) error {
	var apiErr twilioError

	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": t.opts.FromNumber,
			"Body": text,
		}).
		SetError(&apiErr).
		SetPathParam("sid", t.opts.AccountSID).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return fmt.Errorf("post twilio message: %w", err)
	}

	if resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("post twilio message: %w: %s %s", errUnexpectedStatus, resp.Status(), apiErr.Message)
	}

	return nil
}
