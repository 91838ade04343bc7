package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	to   string
	text string
	err  error
}

func (r *recordingSender) SendSMS(_ context.Context, to, text string) error {
	r.to, r.text = to, text

	return r.err
}

func (r *recordingSender) SendEmail(_ context.Context, to, subject, body string) error {
	r.to, r.text = to, subject+"|"+body

	return r.err
}

func TestMessenger(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()

		m := NewMessenger(nil, nil)
		require.ErrorIs(t, m.SendSMS(context.Background(), "+1", "hi"), ErrSMSNotConfigured)
		require.ErrorIs(t, m.SendEmail(context.Background(), "a@b", "s", "b"), ErrEmailNotConfigured)
	})

	t.Run("empty recipient", func(t *testing.T) {
		t.Parallel()

		m := NewMessenger(new(recordingSender), new(recordingSender))
		require.ErrorIs(t, m.SendSMS(context.Background(), "", "hi"), ErrEmptyRecipient)
		require.ErrorIs(t, m.SendEmail(context.Background(), "", "s", "b"), ErrEmptyRecipient)
	})

	t.Run("delegates", func(t *testing.T) {
		t.Parallel()

		sms := new(recordingSender)
		mail := &recordingSender{err: errors.New("smtp down")}
		m := NewMessenger(sms, mail)

		require.NoError(t, m.SendSMS(context.Background(), "+1555", "hello"))
		require.Equal(t, "+1555", sms.to)
		require.Equal(t, "hello", sms.text)

		err := m.SendEmail(context.Background(), "a@b", "subj", "body")
		require.ErrorContains(t, err, "smtp down")
		require.Equal(t, "subj|body", mail.text)
	})
}

func TestNewTransportsRequireCredentials(t *testing.T) {
	t.Parallel()

	require.Nil(t, NewTwilio(TwilioOptions{AccountSID: "AC1"}))
	require.Nil(t, NewSMTP(SMTPOptions{Host: "smtp.example.com"}))
	require.Nil(t, NewEmergencyAPI(EmergencyAPIOptions{Endpoint: "http://x"}))
	require.NotNil(t, NewSMTP(SMTPOptions{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p"}))
}

func TestTwilio_SendSMS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.URL.Path != "/2010-04-01/Accounts/AC1/Messages.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if r.PostForm.Get("To") == "+1000" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To number"}`))

			return
		}

		if r.PostForm.Get("From") != "+1999" || r.PostForm.Get("Body") != "hello" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	tw := NewTwilio(TwilioOptions{
		AccountSID: "AC1",
		AuthToken:  "secret",
		FromNumber: "+1999",
		BaseURL:    srv.URL,
		Timeout:    time.Second,
	})
	require.NotNil(t, tw)

	require.NoError(t, tw.SendSMS(context.Background(), "+1555", "hello"))

	err := tw.SendSMS(context.Background(), "+1000", "hello")
	require.ErrorIs(t, err, errUnexpectedStatus)
	require.ErrorContains(t, err, "invalid To number")
}

func TestEmergencyAPI_Dispatch(t *testing.T) {
	t.Parallel()

	received := make(chan DispatchRequest, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var got DispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		received <- got

		if got.AlertType == "fire" {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	api := NewEmergencyAPI(EmergencyAPIOptions{Endpoint: srv.URL, APIKey: "token", Timeout: time.Second})
	require.NotNil(t, api)
	require.Equal(t, srv.URL, api.Endpoint())

	req := &DispatchRequest{
		AlertType: "medical",
		Location:  DispatchLocation{Latitude: 40, Longitude: -74, Address: "Main Street"},
		UserInfo:  DispatchUser{Name: "Alice", Phone: "+1000", MedicalInfo: "asthma"},
		Timestamp: "2026-01-02 03:04:05",
	}
	require.NoError(t, api.Dispatch(context.Background(), req))
	require.Equal(t, *req, <-received)

	// Anything but 200 is a rejection.
	req.AlertType = "fire"
	require.ErrorIs(t, api.Dispatch(context.Background(), req), errUnexpectedStatus)
}
