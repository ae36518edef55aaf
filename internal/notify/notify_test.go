package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPost(t *testing.T) {
	var gotPath string
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("Congratulations! You've fired the ace_status event"))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "ace_status", "secret", time.Second)
	require.NoError(t, wh.Post(context.Background(), "Train 01 is On Time."))

	assert.Equal(t, "/trigger/ace_status/with/key/secret", gotPath)
	assert.Equal(t, "Train 01 is On Time.", got.Value1)
}

func TestWebhookMissingCredentials(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	for _, tc := range []struct{ event, key string }{{"", ""}, {"ev", ""}, {"", "k"}} {
		err := NewWebhook(srv.URL, tc.event, tc.key, time.Second).Post(context.Background(), "x")
		assert.ErrorIs(t, err, ErrMissingCredentials)
	}
	assert.False(t, called)
}

func TestWebhookDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "ev", "k", time.Second).Post(context.Background(), "x")
	var nerr *NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusUnauthorized, nerr.StatusCode)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestWebhookTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	err := NewWebhook(base, "ev", "topsecret", time.Second).Post(context.Background(), "x")
	var nerr *NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.False(t, strings.Contains(err.Error(), "topsecret"))
}

type connMetrics struct{ connected, observed int }

func (m *connMetrics) NATSSetConnected(b bool) {
	if b {
		m.connected++
	}
}
func (m *connMetrics) PublishObserve(time.Duration) { m.observed++ }

func TestNATSSinkConnectsOnPost(t *testing.T) {
	m := &connMetrics{}
	s := NewNATSSink("nats://127.0.0.1:1", "ace.status", m)
	defer s.Close()
	assert.Zero(t, m.connected, "building the sink must not dial")

	err := s.Post(context.Background(), "Train 01 is On Time.")
	var nerr *NotificationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "nats", nerr.Sink)
	assert.Zero(t, m.connected)
	assert.Zero(t, m.observed)
}

func TestSubjectName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ace.status", "ace.status"},
		{" ace status. ", "ace_status"},
		{"ace.*", "ace._"},
		{"", "ace.status"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, subjectName(tc.in), "subject %q", tc.in)
	}
}
