package webhook

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialoghub/dialog-backend/internal/config"
	"github.com/dialoghub/dialog-backend/internal/domain"
)

type capturedRequest struct {
	body    []byte
	headers http.Header
}

// testEndpoint records deliveries and replies with a scripted status per
// attempt (last status repeats).
type testEndpoint struct {
	mu       sync.Mutex
	requests []capturedRequest
	statuses []int
}

func (e *testEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	e.mu.Lock()
	e.requests = append(e.requests, capturedRequest{body: body, headers: r.Header.Clone()})
	idx := len(e.requests) - 1
	if idx >= len(e.statuses) {
		idx = len(e.statuses) - 1
	}
	status := e.statuses[idx]
	e.mu.Unlock()
	w.WriteHeader(status)
}

func (e *testEndpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func newTestSender(t *testing.T, url string, maxRetries int) *HTTPSender {
	t.Helper()
	cfg := config.WebhookConfig{
		URL:        url,
		Secret:     "test-secret",
		QueueSize:  16,
		MaxRetries: maxRetries,
		RetryBase:  5 * time.Millisecond,
		Timeout:    time.Second,
	}
	return NewHTTPSender(cfg, zerolog.Nop())
}

func TestHTTPSender_DeliversSignedEvent(t *testing.T) {
	ep := &testEndpoint{statuses: []int{200}}
	srv := httptest.NewServer(http.HandlerFunc(ep.handler))
	defer srv.Close()

	s := newTestSender(t, srv.URL, 0)
	msg := domain.NewMessage("d1", "u1", "hi")
	ev := NewEvent(EventMessageNew, MessagePayload{DialogID: "d1", Message: msg})
	require.True(t, s.Enqueue(ev))
	s.Close()

	require.Equal(t, 1, ep.count())
	got := ep.requests[0]

	assert.Equal(t, "application/json", got.headers.Get("Content-Type"))
	assert.Equal(t, ev.Type, got.headers.Get(HeaderEvent))
	assert.Equal(t, ev.ID, got.headers.Get(HeaderID))
	// The signature covers the exact bytes on the wire.
	assert.True(t, Verify("test-secret", got.body, got.headers.Get(HeaderSignature)))

	var env Event
	require.NoError(t, json.Unmarshal(got.body, &env))
	assert.Equal(t, ev.ID, env.ID)
	assert.Equal(t, EventMessageNew, env.Type)
	assert.NotEmpty(t, env.Timestamp)
}

func TestHTTPSender_RetriesTransientFailure(t *testing.T) {
	ep := &testEndpoint{statuses: []int{500, 503, 200}}
	srv := httptest.NewServer(http.HandlerFunc(ep.handler))
	defer srv.Close()

	s := newTestSender(t, srv.URL, 3)
	require.True(t, s.Enqueue(NewEvent(EventParticipantJoined, ParticipantPayload{DialogID: "d1", UserID: "u1"})))
	s.Close()

	assert.Equal(t, 3, ep.count(), "two failures then success")
}

func TestHTTPSender_ClientErrorIsPermanent(t *testing.T) {
	ep := &testEndpoint{statuses: []int{422}}
	srv := httptest.NewServer(http.HandlerFunc(ep.handler))
	defer srv.Close()

	s := newTestSender(t, srv.URL, 3)
	require.True(t, s.Enqueue(NewEvent(EventParticipantLeft, ParticipantPayload{DialogID: "d1", UserID: "u1"})))
	s.Close()

	assert.Equal(t, 1, ep.count(), "4xx must not be retried")
}

func TestHTTPSender_DropsAfterRetryBudget(t *testing.T) {
	ep := &testEndpoint{statuses: []int{500}}
	srv := httptest.NewServer(http.HandlerFunc(ep.handler))
	defer srv.Close()

	s := newTestSender(t, srv.URL, 2)
	require.True(t, s.Enqueue(NewEvent(EventMessageNew, MessagePayload{DialogID: "d1"})))
	s.Close()

	assert.Equal(t, 3, ep.count(), "initial attempt plus two retries")
}

func TestHTTPSender_ReusesConnectionAcrossRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	conns := 0

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
		}
		// A response body on every attempt. Unless the sender drains it the
		// client abandons the connection and re-dials for the next attempt.
		_, _ = w.Write([]byte(`{"detail":"noted"}`))
	}))
	srv.Config.ConnState = func(c net.Conn, state http.ConnState) {
		if state == http.StateNew {
			mu.Lock()
			conns++
			mu.Unlock()
		}
	}
	srv.Start()
	defer srv.Close()

	s := newTestSender(t, srv.URL, 3)
	require.True(t, s.Enqueue(NewEvent(EventMessageNew, MessagePayload{DialogID: "d1"})))
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts, "two failures then success")
	assert.Equal(t, 1, conns, "all attempts ride one keep-alive connection")
}

func TestNoop_DiscardsEverything(t *testing.T) {
	var s Sender = Noop{}
	assert.False(t, s.Enqueue(NewEvent(EventMessageNew, nil)))
	s.Close()
}
