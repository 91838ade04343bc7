package messaging

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSMSNotConfigured is returned when no SMS transport is configured.
	ErrSMSNotConfigured = errors.New("sms transport is not configured")
	// ErrEmailNotConfigured is returned when no email transport is configured.
	ErrEmailNotConfigured = errors.New("email transport is not configured")
	// ErrEmptyRecipient is returned when a message has no recipient.
	ErrEmptyRecipient = errors.New("recipient is empty")

	errUnexpectedStatus = errors.New("unexpected response status")
)

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

// EmailSender delivers one email message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Messenger combines an SMS and an email transport; either may be nil.
type Messenger struct {
	sms  SMSSender
	mail EmailSender
}

// NewMessenger creates a Messenger from the configured transports.
func NewMessenger(sms SMSSender, mail EmailSender) *Messenger {
	return &Messenger{
		sms:  sms,
		mail: mail,
	}
}

// SendSMS sends a text message through the SMS transport.
func (m *Messenger) SendSMS(ctx context.Context, to, text string) error {
	if m.sms == nil {
		return ErrSMSNotConfigured
	}

	if to == "" {
		return ErrEmptyRecipient
	}

	if err := m.sms.SendSMS(ctx, to, text); err != nil {
		return fmt.Errorf("send sms to %s: %w", to, err)
	}

	return nil
}

// SendEmail sends an email through the email transport.
func (m *Messenger) SendEmail(ctx context.Context, to, subject, body string) error {
	if m.mail == nil {
		return ErrEmailNotConfigured
	}

	if to == "" {
		return ErrEmptyRecipient
	}

	if err := m.mail.SendEmail(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	return nil
}
