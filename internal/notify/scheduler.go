package notify

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/cache"
	"github.com/dialoghub/dialog-backend/internal/config"
	"github.com/dialoghub/dialog-backend/internal/repo"
	"github.com/dialoghub/dialog-backend/internal/webhook"
)

// Evaluation outcomes, as exposed through the jobs metric.
const (
	outcomeNotified   = "notified"
	outcomeSuperseded = "superseded"
	outcomeLeft       = "skipped_left"
	outcomeDisabled   = "skipped_disabled"
	outcomeRead       = "skipped_read"
	outcomeMissing    = "skipped_missing"
	outcomeFailed     = "failed"
	outcomeDropped    = "dropped"
)

var jobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notification_jobs_total",
	Help: "Notification job evaluation outcomes.",
}, []string{"outcome"})

// Scheduler runs the debounced notification pipeline: Enqueue registers a
// job and hands it to the background worker after the debounce delay; the
// worker re-checks recipient state and emits a notification.pending webhook
// when the recipient still has unread messages.
//
// Evaluation is at-least-once: transient storage errors re-run the job up
// to MaxRetries times. All skip checks are idempotent, so a duplicate
// evaluation can at worst produce a duplicate webhook, never a wrong one.
type Scheduler struct {
	db     *gorm.DB
	cache  cache.Cache
	sender webhook.Sender
	cfg    config.NotifyConfig
	log    zerolog.Logger

	queue chan Job
	quit  chan struct{}
	done  chan struct{}
}

// NewScheduler starts the worker goroutine.
func NewScheduler(db *gorm.DB, c cache.Cache, sender webhook.Sender, cfg config.NotifyConfig, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		db:     db,
		cache:  c,
		sender: sender,
		cfg:    cfg,
		log:    log.With().Str("component", "notify").Logger(),
		queue:  make(chan Job, cfg.QueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue registers a notification job for one recipient of a new message.
// The debounce token is written immediately so this job supersedes any
// older pending job for the same (dialog, recipient) pair; the job itself
// reaches the worker after the configured delay.
func (s *Scheduler) Enqueue(ctx context.Context, dialogID, recipientID, messageID, senderID string) {
	job := NewJob(dialogID, recipientID, messageID, senderID)

	// TTL outlives the delay so the token is still there at evaluation
	// time, but stale tokens do not linger forever.
	ttl := s.cfg.Delay + time.Minute
	if err := s.cache.Set(ctx, job.debounceKey(), job.ID, ttl); err != nil {
		// Evaluation treats a missing token as "proceed", so the job
		// still runs; it just loses debouncing.
		s.log.Error().Err(err).Str("dialog_id", dialogID).Str("recipient_id", recipientID).
			Msg("debounce token write failed")
	}

	time.AfterFunc(s.cfg.Delay, func() {
		select {
		case s.queue <- job:
		default:
			jobOutcomes.WithLabelValues(outcomeDropped).Inc()
			s.log.Warn().Str("dialog_id", dialogID).Str("recipient_id", recipientID).
				Msg("notification queue full, job dropped")
		}
	})
}

// Close stops the worker. Jobs whose delay has not elapsed are abandoned.
func (s *Scheduler) Close() {
	close(s.quit)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		select {
		case job := <-s.queue:
			s.process(job)
		case <-s.quit:
			return
		}
	}
}

// process evaluates one job, retrying storage failures with backoff.
func (s *Scheduler) process(job Job) {
	b := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 5 * time.Second, Factor: 2}
	attempts := 1 + s.cfg.MaxRetries
	for attempt := 1; attempt <= attempts; attempt++ {
		outcome, err := s.evaluate(context.Background(), job)
		if err == nil {
			jobOutcomes.WithLabelValues(outcome).Inc()
			return
		}
		if attempt < attempts {
			delay := b.Duration()
			s.log.Warn().Err(err).Str("dialog_id", job.DialogID).Str("recipient_id", job.RecipientID).
				Int("attempt", attempt).Dur("retry_in", delay).Msg("evaluation failed, retrying")
			time.Sleep(delay)
		} else {
			jobOutcomes.WithLabelValues(outcomeFailed).Inc()
			s.log.Error().Err(err).Str("dialog_id", job.DialogID).Str("recipient_id", job.RecipientID).
				Msg("evaluation failed, job dropped")
		}
	}
}

// evaluate runs the debounce check and the idempotent skip conditions, and
// emits the webhook when the recipient should be notified. A non-nil error
// means a transient storage failure worth retrying.
func (s *Scheduler) evaluate(ctx context.Context, job Job) (string, error) {
	// Debounce: a different stored token means a newer message took over
	// this pair. A cache failure must not lose the notification, so it
	// counts as "proceed".
	stored, ok, err := s.cache.Get(ctx, job.debounceKey())
	if err != nil {
		s.log.Warn().Err(err).Str("dialog_id", job.DialogID).Str("recipient_id", job.RecipientID).
			Msg("debounce read failed, proceeding")
	} else if ok && stored != job.ID {
		return outcomeSuperseded, nil
	} else {
		_ = s.cache.Del(ctx, job.debounceKey())
	}

	p, err := repo.GetParticipant(ctx, s.db, job.DialogID, job.RecipientID)
	if errors.Is(err, repo.ErrNotFound) {
		return outcomeLeft, nil
	}
	if err != nil {
		return "", err
	}
	if !p.NotificationsEnabled {
		return outcomeDisabled, nil
	}
	if p.UnreadCount == 0 {
		return outcomeRead, nil
	}

	dialog, err := repo.GetDialog(ctx, s.db, job.DialogID)
	if errors.Is(err, repo.ErrNotFound) {
		s.log.Warn().Str("dialog_id", job.DialogID).Msg("dialog vanished before notification")
		return outcomeMissing, nil
	}
	if err != nil {
		return "", err
	}
	msg, err := repo.GetMessage(ctx, s.db, job.DialogID, job.MessageID)
	if errors.Is(err, repo.ErrNotFound) {
		s.log.Warn().Str("message_id", job.MessageID).Msg("message vanished before notification")
		return outcomeMissing, nil
	}
	if err != nil {
		return "", err
	}

	s.sender.Enqueue(webhook.NewEvent(webhook.EventNotificationPending, webhook.NotificationPayload{
		Dialog:      dialog,
		Message:     msg,
		RecipientID: job.RecipientID,
		UnreadCount: p.UnreadCount,
	}))
	return outcomeNotified, nil
}
