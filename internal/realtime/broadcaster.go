package realtime

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/dialoghub/dialog-backend/internal/domain"
)

// Broadcaster turns domain changes into JSON frames and routes them through
// the Registry. Message and membership events go to every connected user;
// archive state changes and presence updates are targeted. Each frame is
// encoded exactly once regardless of recipient count.
//
// Delivery is fire-and-forget: no method returns an error, failures only
// surface in logs and metrics.
type Broadcaster struct {
	reg *Registry
	log zerolog.Logger
}

// NewBroadcaster wraps a Registry.
func NewBroadcaster(reg *Registry, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		reg: reg,
		log: log.With().Str("component", "broadcaster").Logger(),
	}
}

func (b *Broadcaster) encode(v any) ([]byte, bool) {
	frame, err := json.Marshal(v)
	if err != nil {
		b.log.Error().Err(err).Msg("encode frame")
		return nil, false
	}
	return frame, true
}

// Connected sends the post-upgrade handshake frame to one user.
func (b *Broadcaster) Connected(userID string) {
	if frame, ok := b.encode(ConnectedFrame{Type: EventConnected, UserID: userID}); ok {
		b.reg.SendTo(userID, frame)
	}
}

// MessageNew announces a persisted message to all connected users.
func (b *Broadcaster) MessageNew(m *domain.Message) {
	if frame, ok := b.encode(MessageFrame{Type: EventMessageNew, Message: m}); ok {
		b.reg.Broadcast(frame)
	}
}

// MessageEdited announces an edit to all connected users.
func (b *Broadcaster) MessageEdited(m *domain.Message) {
	if frame, ok := b.encode(MessageFrame{Type: EventMessageEdited, Message: m}); ok {
		b.reg.Broadcast(frame)
	}
}

// MessageDeleted announces a deletion to all connected users.
func (b *Broadcaster) MessageDeleted(dialogID, messageID string) {
	if frame, ok := b.encode(MessageRefFrame{Type: EventMessageDeleted, DialogID: dialogID, MessageID: messageID}); ok {
		b.reg.Broadcast(frame)
	}
}

// MessageRead announces that userID caught up in dialogID.
func (b *Broadcaster) MessageRead(dialogID, userID string, messageID *string) {
	if frame, ok := b.encode(ReadFrame{Type: EventMessageRead, DialogID: dialogID, UserID: userID, MessageID: messageID}); ok {
		b.reg.Broadcast(frame)
	}
}

// ParticipantJoined announces a new member to all connected users.
func (b *Broadcaster) ParticipantJoined(dialogID, userID, displayName string) {
	if frame, ok := b.encode(ParticipantFrame{Type: EventParticipantJoin, DialogID: dialogID, UserID: userID, DisplayName: displayName}); ok {
		b.reg.Broadcast(frame)
	}
}

// ParticipantLeft announces a departure to all connected users.
func (b *Broadcaster) ParticipantLeft(dialogID, userID string) {
	if frame, ok := b.encode(ParticipantFrame{Type: EventParticipantLeave, DialogID: dialogID, UserID: userID}); ok {
		b.reg.Broadcast(frame)
	}
}

// DialogArchived tells the acting user their archive flag changed.
func (b *Broadcaster) DialogArchived(userID, dialogID string) {
	if frame, ok := b.encode(ArchiveFrame{Type: EventDialogArchived, DialogID: dialogID}); ok {
		b.reg.SendTo(userID, frame)
	}
}

// DialogUnarchived tells the acting user their archive flag changed.
func (b *Broadcaster) DialogUnarchived(userID, dialogID string) {
	if frame, ok := b.encode(ArchiveFrame{Type: EventDialogUnarchived, DialogID: dialogID}); ok {
		b.reg.SendTo(userID, frame)
	}
}

// PresenceUpdate tells each peer that userID went online or offline.
func (b *Broadcaster) PresenceUpdate(peers []string, userID string, online bool) {
	frame, ok := b.encode(PresenceFrame{Type: EventPresenceUpdate, UserID: userID, Online: online, At: nowRFC3339()})
	if !ok {
		return
	}
	for _, peer := range peers {
		b.reg.SendTo(peer, frame)
	}
}

// Pong answers a client ping.
func (b *Broadcaster) Pong(userID string) {
	if frame, ok := b.encode(PongFrame{Type: EventPong}); ok {
		b.reg.SendTo(userID, frame)
	}
}

// ErrorTo reports a malformed client frame back to its sender.
func (b *Broadcaster) ErrorTo(userID, message string) {
	if frame, ok := b.encode(ErrorFrame{Type: EventError, Message: message}); ok {
		b.reg.SendTo(userID, frame)
	}
}
