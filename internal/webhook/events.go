// Package webhook delivers signed event callbacks to the host business
// system. Events are queued in-process and pushed by a single background
// worker with bounded retries; delivery is at-most-once and an unreachable
// endpoint never blocks request handling.
package webhook

import (
	"time"

	"github.com/google/uuid"

	"github.com/dialoghub/dialog-backend/internal/domain"
)

// Outbound event types.
const (
	EventMessageNew          = "message.new"
	EventParticipantJoined   = "participant.joined"
	EventParticipantLeft     = "participant.left"
	EventNotificationPending = "notification.pending"
)

// Event is the wire envelope. Payload shape depends on Type.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// NewEvent stamps an envelope with a fresh ID and the current UTC time.
func NewEvent(typ string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// MessagePayload accompanies message.new.
type MessagePayload struct {
	DialogID string          `json:"dialog_id"`
	Message  *domain.Message `json:"message"`
}

// ParticipantPayload accompanies participant.joined and participant.left.
type ParticipantPayload struct {
	DialogID    string `json:"dialog_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// NotificationPayload accompanies notification.pending: a participant has
// unread messages and did not catch up within the debounce window. The host
// system decides how to reach them (email, push, SMS).
type NotificationPayload struct {
	Dialog      *domain.Dialog  `json:"dialog"`
	Message     *domain.Message `json:"message"`
	RecipientID string          `json:"recipient_id"`
	UnreadCount int             `json:"unread_count"`
}
