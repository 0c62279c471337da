// Package domain defines the persistence models for dialogs, participants,
// and messages. These types are mapped with GORM and form the core data
// layer of the dialog backend. A dialog is a chat room bound to exactly one
// record in the host business system (a tender, an order, a route, ...).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message type discriminators. System messages are generated by the service
// itself (participant joined, dialog created, ...) and have no sender.
const (
	MessageTypeUser   = "user"
	MessageTypeSystem = "system"
)

// How a participant ended up in a dialog.
const (
	JoinedAsCreator     = "creator"
	JoinedAsParticipant = "participant"
	JoinedAsJoined      = "joined"
)

// Dialog represents a chat room bound to a business object. Each dialog is
// uniquely identified by its (object_type, object_id) pair.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ObjectID / ObjectType: the host-system record this dialog is attached to.
//   - Title: optional human-readable title shown in dialog lists.
//   - ObjectURL: optional deep link to the object page in the host system.
//   - CreatedBy: external user id of the creator, when known.
//   - LastMessageAt: timestamp of the most recent message; drives the
//     inactivity-based auto-archive sweep.
type Dialog struct {
	ID            string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ObjectID      string    `json:"object_id"   gorm:"type:char(36);not null;uniqueIndex:ux_dialog_object,priority:2"`
	ObjectType    string    `json:"object_type" gorm:"type:varchar(64);not null;uniqueIndex:ux_dialog_object,priority:1"`
	Title         string    `json:"title,omitempty"      gorm:"type:varchar(255)"`
	ObjectURL     string    `json:"object_url,omitempty" gorm:"type:varchar(1024)"`
	CreatedBy     *string   `json:"created_by,omitempty" gorm:"type:char(36)"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"index"`
}

// TableName returns the database table name for Dialog.
func (Dialog) TableName() string { return "dialogs" }

// NewDialog constructs a Dialog with a generated ID and current timestamps.
func NewDialog(objectID, objectType, title, objectURL string, createdBy *string) *Dialog {
	now := time.Now().UTC()
	return &Dialog{
		ID:            uuid.NewString(),
		ObjectID:      objectID,
		ObjectType:    objectType,
		Title:         title,
		ObjectURL:     objectURL,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		LastMessageAt: now,
	}
}

// Message represents a single message within a dialog. User messages carry
// the external sender id; system messages have a nil sender.
type Message struct {
	ID       string  `json:"id"        gorm:"type:char(36);primaryKey"`
	DialogID string  `json:"dialog_id" gorm:"type:char(36);not null;index:idx_dialog_msgs,priority:1"`
	SenderID *string `json:"sender_id,omitempty" gorm:"type:char(36)"`
	// Type is "user" or "system" (enforced by DB constraint).
	Type      string     `json:"type"    gorm:"type:varchar(16);not null;default:'user';check:type IN ('user','system')"`
	Content   string     `json:"content" gorm:"type:text;not null"`
	SentAt    time.Time  `json:"sent_at" gorm:"index:idx_dialog_msgs,priority:2"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	ReplyToID *string    `json:"reply_to,omitempty" gorm:"type:char(36)"`

	// Dialog is the parent room. Messages are cascade-deleted with it.
	Dialog Dialog `json:"-" gorm:"foreignKey:DialogID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// IsEdited reports whether the message content has been changed after send.
func (m *Message) IsEdited() bool { return m.EditedAt != nil }

// NewMessage constructs a user message with a generated ID.
func NewMessage(dialogID, senderID, content string) *Message {
	return &Message{
		ID:       uuid.NewString(),
		DialogID: dialogID,
		SenderID: &senderID,
		Type:     MessageTypeUser,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
}

// NewSystemMessage constructs a sender-less system message.
func NewSystemMessage(dialogID, content string) *Message {
	return &Message{
		ID:       uuid.NewString(),
		DialogID: dialogID,
		Type:     MessageTypeSystem,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
}

// Participant represents durable membership of a user in a dialog, together
// with the per-user read/notification state the notification pipeline
// evaluates.
//
// Fields:
//   - DialogID / UserID: composite primary key.
//   - JoinedAs: "creator", "participant" (added at creation) or "joined"
//     (entered later).
//   - NotificationsEnabled: per-user opt-out for the missed-message pipeline.
//   - LastReadMessageID / UnreadCount: read state; UnreadCount == 0 means
//     everything is read.
//   - DisplayName / Company / Email / Phone: profile snapshot provided by the
//     host system at join time.
//   - IsArchived: per-user archive flag (the dialog stays visible to others).
type Participant struct {
	DialogID             string    `json:"dialog_id" gorm:"type:char(36);primaryKey"`
	UserID               string    `json:"user_id"   gorm:"type:char(36);primaryKey"`
	JoinedAt             time.Time `json:"joined_at"`
	JoinedAs             string    `json:"joined_as" gorm:"type:varchar(16);not null;default:'participant'"`
	NotificationsEnabled bool      `json:"notifications_enabled" gorm:"not null;default:true"`
	LastReadMessageID    *string   `json:"last_read_message_id,omitempty" gorm:"type:char(36)"`
	UnreadCount          int       `json:"unread_count" gorm:"not null;default:0"`
	DisplayName          string    `json:"display_name,omitempty" gorm:"type:varchar(255)"`
	Company              string    `json:"company,omitempty"      gorm:"type:varchar(255)"`
	Email                string    `json:"email,omitempty"        gorm:"type:varchar(255)"`
	Phone                string    `json:"phone,omitempty"        gorm:"type:varchar(64)"`
	IsArchived           bool      `json:"is_archived" gorm:"not null;default:false;index"`

	// Dialog association; membership rows go away with the dialog.
	Dialog Dialog `json:"-" gorm:"foreignKey:DialogID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Participant.
func (Participant) TableName() string { return "participants" }

// Profile carries the host-system profile snapshot for a joining user.
type Profile struct {
	DisplayName string `json:"display_name"`
	Company     string `json:"company,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// NewParticipant constructs a membership row with notifications enabled.
func NewParticipant(dialogID, userID, joinedAs string, profile Profile) *Participant {
	return &Participant{
		DialogID:             dialogID,
		UserID:               userID,
		JoinedAt:             time.Now().UTC(),
		JoinedAs:             joinedAs,
		NotificationsEnabled: true,
		DisplayName:          profile.DisplayName,
		Company:              profile.Company,
		Email:                profile.Email,
		Phone:                profile.Phone,
	}
}
