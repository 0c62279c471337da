package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dialoghub/dialog-backend/internal/config"
)

// Signature and metadata headers on every delivery.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderID        = "X-Webhook-Id"
)

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_deliveries_total",
	Help: "Webhook delivery outcomes.",
}, []string{"result"})

// Sender accepts events for asynchronous delivery. Enqueue reports false
// when the event was discarded (queue full or delivery disabled).
type Sender interface {
	Enqueue(ev Event) bool
	Close()
}

// Noop discards all events. Used when no webhook endpoint is configured.
type Noop struct{}

// Enqueue implements Sender.
func (Noop) Enqueue(Event) bool { return false }

// Close implements Sender.
func (Noop) Close() {}

// HTTPSender posts signed events to a single endpoint from one background
// worker. The queue is bounded; when it is full new events are dropped with
// a warning rather than blocking the caller.
type HTTPSender struct {
	cfg    config.WebhookConfig
	client *http.Client
	queue  chan Event
	done   chan struct{}
	log    zerolog.Logger
}

// NewHTTPSender starts the delivery worker.
func NewHTTPSender(cfg config.WebhookConfig, log zerolog.Logger) *HTTPSender {
	s := &HTTPSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		log:    log.With().Str("component", "webhook").Logger(),
	}
	go s.run()
	return s
}

// Enqueue implements Sender.
func (s *HTTPSender) Enqueue(ev Event) bool {
	select {
	case s.queue <- ev:
		return true
	default:
		deliveries.WithLabelValues("queue_full").Inc()
		s.log.Warn().Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("queue full, event dropped")
		return false
	}
}

// Close stops accepting events and waits for the worker to drain the queue.
func (s *HTTPSender) Close() {
	close(s.queue)
	<-s.done
}

func (s *HTTPSender) run() {
	defer close(s.done)
	for ev := range s.queue {
		s.deliver(ev)
	}
}

// deliver posts one event, retrying transient failures with exponential
// backoff. 4xx responses are treated as permanent rejections; after the
// retry budget is exhausted the event is dropped with an error log.
func (s *HTTPSender) deliver(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		deliveries.WithLabelValues("encode_error").Inc()
		s.log.Error().Err(err).Str("event_id", ev.ID).Msg("encode event")
		return
	}
	signature := Sign(s.cfg.Secret, body)

	b := &backoff.Backoff{
		Min:    s.cfg.RetryBase,
		Max:    30 * time.Second,
		Factor: 2,
	}

	attempts := 1 + s.cfg.MaxRetries
	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := s.post(body, signature, ev)
		switch {
		case err == nil && status >= 200 && status < 300:
			deliveries.WithLabelValues("delivered").Inc()
			if attempt > 1 {
				s.log.Info().Str("event_id", ev.ID).Int("attempt", attempt).Msg("delivered after retry")
			}
			return
		case err == nil && status >= 400 && status < 500:
			// The receiver rejected the event; retrying cannot help.
			deliveries.WithLabelValues("rejected").Inc()
			s.log.Error().Str("event_id", ev.ID).Str("event_type", ev.Type).Int("status", status).
				Msg("endpoint rejected event")
			return
		}
		if attempt < attempts {
			delay := b.Duration()
			s.log.Warn().Err(err).Str("event_id", ev.ID).Int("status", status).Int("attempt", attempt).
				Dur("retry_in", delay).Msg("delivery failed, retrying")
			time.Sleep(delay)
		}
	}

	deliveries.WithLabelValues("exhausted").Inc()
	s.log.Error().Str("event_id", ev.ID).Str("event_type", ev.Type).Int("attempts", attempts).
		Msg("delivery failed, event dropped")
}

func (s *HTTPSender) post(body []byte, signature string, ev Event) (int, error) {
	req, err := http.NewRequest(http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, ev.Type)
	req.Header.Set(HeaderID, ev.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	// Drain before closing so the keep-alive connection is reusable on the
	// next attempt instead of forcing a re-dial.
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
