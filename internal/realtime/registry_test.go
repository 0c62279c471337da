package realtime

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(buffer int) *Registry {
	return NewRegistry(buffer, zerolog.Nop())
}

func TestRegistry_RegisterAndSendTo(t *testing.T) {
	r := newTestRegistry(4)
	ch := r.Register("u1")

	require.True(t, r.IsConnected("u1"))
	assert.True(t, r.SendTo("u1", []byte("hi")))
	assert.Equal(t, []byte("hi"), <-ch)

	// Unknown recipient: dropped, no error.
	assert.False(t, r.SendTo("ghost", []byte("hi")))
}

func TestRegistry_RegisterReplacesAndClosesOldChannel(t *testing.T) {
	r := newTestRegistry(4)
	old := r.Register("u1")
	replacement := r.Register("u1")

	// Old writer pump sees a closed channel and exits.
	_, open := <-old
	assert.False(t, open, "old channel should be closed on replacement")

	// Traffic flows to the replacement only.
	require.True(t, r.SendTo("u1", []byte("x")))
	assert.Equal(t, []byte("x"), <-replacement)
}

func TestRegistry_DeregisterIsCompareAndDelete(t *testing.T) {
	r := newTestRegistry(4)
	stale := r.Register("u1")
	current := r.Register("u1")

	// The stale connection's teardown must not evict the replacement, and
	// the caller learns nothing was removed.
	assert.False(t, r.Deregister("u1", stale))
	require.True(t, r.IsConnected("u1"))
	require.True(t, r.SendTo("u1", []byte("still here")))
	assert.Equal(t, []byte("still here"), <-current)

	// The current handle deregisters normally.
	assert.True(t, r.Deregister("u1", current))
	assert.False(t, r.IsConnected("u1"))
	_, open := <-current
	assert.False(t, open)

	// Double deregister is a no-op.
	assert.False(t, r.Deregister("u1", current))
}

func TestRegistry_SendTo_DropsWhenBufferFull(t *testing.T) {
	r := newTestRegistry(2)
	ch := r.Register("u1")

	assert.True(t, r.SendTo("u1", []byte("1")))
	assert.True(t, r.SendTo("u1", []byte("2")))
	assert.False(t, r.SendTo("u1", []byte("3")), "third frame exceeds the buffer")

	// Earlier frames are intact.
	assert.Equal(t, []byte("1"), <-ch)
	assert.Equal(t, []byte("2"), <-ch)
}

func TestRegistry_Broadcast_PerRecipientDrop(t *testing.T) {
	r := newTestRegistry(1)
	chA := r.Register("a")
	chB := r.Register("b")

	// Fill b's buffer so the broadcast drops only for b.
	require.True(t, r.SendTo("b", []byte("fill")))

	sent := r.Broadcast([]byte("ev"))
	assert.Equal(t, 1, sent)
	assert.Equal(t, []byte("ev"), <-chA)
	assert.Equal(t, []byte("fill"), <-chB)
}
