package realtime

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialoghub/dialog-backend/internal/domain"
)

func decodeFrame(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestBroadcaster_MessageNew_ReachesAllConnected(t *testing.T) {
	r := newTestRegistry(4)
	b := NewBroadcaster(r, zerolog.Nop())
	chA := r.Register("a")
	chB := r.Register("b")

	msg := domain.NewMessage("d1", "a", "hello")
	b.MessageNew(msg)

	for _, ch := range []chan []byte{chA, chB} {
		frame := decodeFrame(t, <-ch)
		assert.Equal(t, EventMessageNew, frame["type"])
		payload := frame["message"].(map[string]any)
		assert.Equal(t, msg.ID, payload["id"])
		assert.Equal(t, "hello", payload["content"])
	}
}

func TestBroadcaster_ArchiveEventsAreTargeted(t *testing.T) {
	r := newTestRegistry(4)
	b := NewBroadcaster(r, zerolog.Nop())
	chActor := r.Register("actor")
	chOther := r.Register("other")

	b.DialogArchived("actor", "d1")
	b.DialogUnarchived("actor", "d1")

	frame := decodeFrame(t, <-chActor)
	assert.Equal(t, EventDialogArchived, frame["type"])
	assert.Equal(t, "d1", frame["dialog_id"])
	frame = decodeFrame(t, <-chActor)
	assert.Equal(t, EventDialogUnarchived, frame["type"])

	select {
	case raw := <-chOther:
		t.Fatalf("bystander received targeted frame: %s", raw)
	default:
	}
}

func TestBroadcaster_PresenceUpdate_PeersOnly(t *testing.T) {
	r := newTestRegistry(4)
	b := NewBroadcaster(r, zerolog.Nop())
	chPeer := r.Register("peer")
	chStranger := r.Register("stranger")

	b.PresenceUpdate([]string{"peer", "offline-peer"}, "u1", true)

	frame := decodeFrame(t, <-chPeer)
	assert.Equal(t, EventPresenceUpdate, frame["type"])
	assert.Equal(t, "u1", frame["user_id"])
	assert.Equal(t, true, frame["online"])
	assert.NotEmpty(t, frame["at"])

	select {
	case raw := <-chStranger:
		t.Fatalf("stranger received presence frame: %s", raw)
	default:
	}
}

func TestBroadcaster_ConnectedPongError(t *testing.T) {
	r := newTestRegistry(4)
	b := NewBroadcaster(r, zerolog.Nop())
	ch := r.Register("u1")

	b.Connected("u1")
	frame := decodeFrame(t, <-ch)
	assert.Equal(t, EventConnected, frame["type"])
	assert.Equal(t, "u1", frame["user_id"])

	b.Pong("u1")
	assert.Equal(t, EventPong, decodeFrame(t, <-ch)["type"])

	b.ErrorTo("u1", "invalid frame")
	frame = decodeFrame(t, <-ch)
	assert.Equal(t, EventError, frame["type"])
	assert.Equal(t, "invalid frame", frame["message"])
}

func TestBroadcaster_MembershipAndReadFrames(t *testing.T) {
	r := newTestRegistry(8)
	b := NewBroadcaster(r, zerolog.Nop())
	ch := r.Register("u1")

	b.ParticipantJoined("d1", "u2", "User Two")
	frame := decodeFrame(t, <-ch)
	assert.Equal(t, EventParticipantJoin, frame["type"])
	assert.Equal(t, "User Two", frame["display_name"])

	b.ParticipantLeft("d1", "u2")
	frame = decodeFrame(t, <-ch)
	assert.Equal(t, EventParticipantLeave, frame["type"])
	_, hasName := frame["display_name"]
	assert.False(t, hasName, "left frame omits the display name")

	last := "m9"
	b.MessageRead("d1", "u2", &last)
	frame = decodeFrame(t, <-ch)
	assert.Equal(t, EventMessageRead, frame["type"])
	assert.Equal(t, "m9", frame["message_id"])

	b.MessageDeleted("d1", "m1")
	frame = decodeFrame(t, <-ch)
	assert.Equal(t, EventMessageDeleted, frame["type"])
	assert.Equal(t, "m1", frame["message_id"])
}
