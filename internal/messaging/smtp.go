package messaging

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPOptions configures the SMTP transport.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends plain-text email through an SMTP server.
type SMTP struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTP creates the transport. It returns nil when credentials are missing.
func NewSMTP(opts SMTPOptions) *SMTP {
	if opts.Host == "" || opts.Username == "" || opts.Password == "" {
		return nil
	}

	from := opts.From
	if from == "" {
		from = opts.Username
	}

	return &SMTP{
		from:   from,
		dialer: gomail.NewDialer(opts.Host, opts.Port, opts.Username, opts.Password),
	}
}

// SendEmail dials the server and sends one message. Context cancellation
// abandons the wait; the dial itself runs to completion in the background.
func (s *SMTP) SendEmail(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)

	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("dial and send: %w", err)
		}

		return nil
	case <-ctx.Done():
		return fmt.Errorf("dial and send: %w", ctx.Err())
	}
}
