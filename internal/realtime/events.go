package realtime

import (
	"time"

	"github.com/dialoghub/dialog-backend/internal/domain"
)

// WebSocket frame types pushed to clients.
const (
	EventConnected        = "connected"
	EventMessageNew       = "message.new"
	EventMessageEdited    = "message.edited"
	EventMessageDeleted   = "message.deleted"
	EventMessageRead      = "message.read"
	EventParticipantJoin  = "participant.joined"
	EventParticipantLeave = "participant.left"
	EventDialogArchived   = "dialog.archived"
	EventDialogUnarchived = "dialog.unarchived"
	EventPresenceUpdate   = "presence.update"
	EventPong             = "pong"
	EventError            = "error"
)

// ConnectedFrame is the first frame a client receives after the upgrade.
type ConnectedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// MessageFrame carries a full message for message.new / message.edited.
type MessageFrame struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// MessageRefFrame references a message by id, for message.deleted.
type MessageRefFrame struct {
	Type      string `json:"type"`
	DialogID  string `json:"dialog_id"`
	MessageID string `json:"message_id"`
}

// ReadFrame announces that a user caught up in a dialog (message.read).
type ReadFrame struct {
	Type      string  `json:"type"`
	DialogID  string  `json:"dialog_id"`
	UserID    string  `json:"user_id"`
	MessageID *string `json:"message_id,omitempty"`
}

// ParticipantFrame carries membership changes (participant.joined/left).
type ParticipantFrame struct {
	Type        string `json:"type"`
	DialogID    string `json:"dialog_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// ArchiveFrame is sent to the acting user on dialog.archived/unarchived.
type ArchiveFrame struct {
	Type     string `json:"type"`
	DialogID string `json:"dialog_id"`
}

// PresenceFrame announces a peer going online or offline (presence.update).
type PresenceFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
	At     string `json:"at"`
}

// PongFrame answers a client ping.
type PongFrame struct {
	Type string `json:"type"`
}

// ErrorFrame reports a malformed client frame without closing the socket.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }
