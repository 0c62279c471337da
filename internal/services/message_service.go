// Message write-path service.
//
// This file implements the MessageService, which owns the write path for
// messages: validation and sanitization, persistence together with unread
// bookkeeping, and the post-commit side effects (realtime broadcast,
// message.new webhook, notification enqueue per recipient). Storage commits
// first; side effects never fail the request.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/domain"
	"github.com/dialoghub/dialog-backend/internal/notify"
	"github.com/dialoghub/dialog-backend/internal/realtime"
	"github.com/dialoghub/dialog-backend/internal/repo"
	"github.com/dialoghub/dialog-backend/internal/webhook"
)

// MessageService provides message-level operations: sending, editing,
// deleting, history pagination, and read tracking.
type MessageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Broadcaster pushes realtime frames; may be shared with other services.
	Broadcaster *realtime.Broadcaster
	// Webhooks receives outbound events; a Noop sender when unconfigured.
	Webhooks webhook.Sender
	// Notifier schedules debounced missed-message notifications.
	Notifier *notify.Scheduler

	// MaxLen caps stored message content by rune length.
	MaxLen int

	policy *bluemonday.Policy
	log    zerolog.Logger
}

// NewMessageService constructs a MessageService with sane defaults.
func NewMessageService(db *gorm.DB, bc *realtime.Broadcaster, wh webhook.Sender, n *notify.Scheduler, log zerolog.Logger) *MessageService {
	return &MessageService{
		DB:          db,
		Broadcaster: bc,
		Webhooks:    wh,
		Notifier:    n,
		MaxLen:      4000,
		policy:      bluemonday.UGCPolicy(),
		log:         log.With().Str("component", "message_service").Logger(),
	}
}

// sanitize strips unsafe HTML, normalizes to NFC, and trims whitespace.
func (s *MessageService) sanitize(content string) string {
	return strings.TrimSpace(norm.NFC.String(s.policy.Sanitize(content)))
}

// Send validates and persists a user message, updates unread counters, and
// fires the post-commit side effects. The sender's own copy is marked read
// immediately.
func (s *MessageService) Send(ctx context.Context, dialogID, senderID, content string, replyTo *string) (*domain.Message, error) {
	ok, err := repo.ParticipantExists(ctx, s.DB, dialogID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, derr := repo.GetDialog(ctx, s.DB, dialogID); errors.Is(derr, repo.ErrNotFound) {
			return nil, ErrDialogNotFound
		}
		return nil, ErrNotParticipant
	}

	content = s.sanitize(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.MaxLen {
		return nil, ErrTooLong
	}
	if replyTo != nil {
		if _, err := repo.GetMessage(ctx, s.DB, dialogID, *replyTo); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrMessageNotFound
			}
			return nil, err
		}
	}

	msg := domain.NewMessage(dialogID, senderID, content)
	msg.ReplyToID = replyTo

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateMessage(ctx, tx, msg); err != nil {
			return err
		}
		if err := repo.IncrementUnreadExcept(ctx, tx, dialogID, senderID); err != nil {
			return err
		}
		if err := repo.MarkRead(ctx, tx, dialogID, senderID, &msg.ID); err != nil {
			return err
		}
		return repo.TouchDialog(ctx, tx, dialogID, msg.SentAt)
	})
	if err != nil {
		return nil, err
	}

	s.afterSend(ctx, msg)
	return msg, nil
}

// afterSend runs the post-commit side effects of a new message.
func (s *MessageService) afterSend(ctx context.Context, msg *domain.Message) {
	s.Broadcaster.MessageNew(msg)
	s.Webhooks.Enqueue(webhook.NewEvent(webhook.EventMessageNew, webhook.MessagePayload{
		DialogID: msg.DialogID,
		Message:  msg,
	}))

	participants, err := repo.ListParticipants(ctx, s.DB, msg.DialogID)
	if err != nil {
		s.log.Error().Err(err).Str("dialog_id", msg.DialogID).Msg("list recipients for notification")
		return
	}
	sender := ""
	if msg.SenderID != nil {
		sender = *msg.SenderID
	}
	for _, p := range participants {
		if p.UserID == sender {
			continue
		}
		s.Notifier.Enqueue(ctx, msg.DialogID, p.UserID, msg.ID, sender)
	}
}

// Edit replaces the content of the caller's own user message and broadcasts
// the change. System messages and other users' messages are rejected.
func (s *MessageService) Edit(ctx context.Context, dialogID, messageID, userID, content string) (*domain.Message, error) {
	msg, err := repo.GetMessage(ctx, s.DB, dialogID, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if msg.Type == domain.MessageTypeSystem {
		return nil, ErrSystemMessage
	}
	if msg.SenderID == nil || *msg.SenderID != userID {
		return nil, ErrNotMessageOwner
	}

	content = s.sanitize(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.MaxLen {
		return nil, ErrTooLong
	}

	editedAt := time.Now().UTC()
	if err := repo.UpdateMessageContent(ctx, s.DB, dialogID, messageID, content, editedAt); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.EditedAt = &editedAt

	s.Broadcaster.MessageEdited(msg)
	return msg, nil
}

// Delete removes the caller's own message and broadcasts the deletion.
func (s *MessageService) Delete(ctx context.Context, dialogID, messageID, userID string) error {
	msg, err := repo.GetMessage(ctx, s.DB, dialogID, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	if msg.Type == domain.MessageTypeSystem {
		return ErrSystemMessage
	}
	if msg.SenderID == nil || *msg.SenderID != userID {
		return ErrNotMessageOwner
	}

	if err := repo.DeleteMessage(ctx, s.DB, dialogID, messageID); err != nil {
		return err
	}
	s.Broadcaster.MessageDeleted(dialogID, messageID)
	return nil
}

// Get fetches a single message, enforcing membership.
func (s *MessageService) Get(ctx context.Context, dialogID, userID, messageID string) (*domain.Message, error) {
	if err := s.requireMember(ctx, dialogID, userID); err != nil {
		return nil, err
	}
	msg, err := repo.GetMessage(ctx, s.DB, dialogID, messageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	return msg, err
}

// List returns a page of history, newest first, together with an exact
// has-more flag. limit is clamped to [1, 100] with a default of 50.
func (s *MessageService) List(ctx context.Context, dialogID, userID string, before *time.Time, limit int) ([]domain.Message, bool, error) {
	if err := s.requireMember(ctx, dialogID, userID); err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	// One extra row answers has_more without a count query.
	page, err := repo.ListMessagesPage(ctx, s.DB, dialogID, before, limit+1)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	return page, hasMore, nil
}

// MarkRead resets the caller's unread counter to the newest message and
// broadcasts the read event.
func (s *MessageService) MarkRead(ctx context.Context, dialogID, userID string) error {
	if err := s.requireMember(ctx, dialogID, userID); err != nil {
		return err
	}

	var lastID *string
	if newest, err := repo.ListMessagesPage(ctx, s.DB, dialogID, nil, 1); err != nil {
		return err
	} else if len(newest) > 0 {
		lastID = &newest[0].ID
	}

	if err := repo.MarkRead(ctx, s.DB, dialogID, userID, lastID); err != nil {
		return err
	}
	s.Broadcaster.MessageRead(dialogID, userID, lastID)
	return nil
}

// requireMember maps membership failures to service errors.
func (s *MessageService) requireMember(ctx context.Context, dialogID, userID string) error {
	ok, err := repo.ParticipantExists(ctx, s.DB, dialogID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := repo.GetDialog(ctx, s.DB, dialogID); errors.Is(err, repo.ErrNotFound) {
		return ErrDialogNotFound
	}
	return ErrNotParticipant
}
