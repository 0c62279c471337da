// Package realtime implements the in-process event coordination core: the
// connection registry that tracks one outbound frame channel per connected
// user, and the broadcaster that turns domain changes into typed WebSocket
// frames. Scope is a single replica; there is no cross-replica fan-out.
package realtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Number of currently registered WebSocket connections.",
	})
	droppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_dropped_frames_total",
		Help: "Outbound frames dropped because a client buffer was full.",
	})
)

// Registry maps each connected user to the outbound channel of their single
// active WebSocket connection. A user has at most one handle: registering
// again (e.g. a reconnect racing the old socket's teardown) replaces the
// previous channel and closes it, which ends the old writer pump.
//
// Sends never block: a full or missing buffer drops the frame. Missed frames
// are acceptable; clients rebuild state over the HTTP API.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]chan []byte
	buffer int
	log    zerolog.Logger
}

// NewRegistry creates a Registry whose per-connection buffers hold up to
// buffer frames.
func NewRegistry(buffer int, log zerolog.Logger) *Registry {
	if buffer < 1 {
		buffer = 100
	}
	return &Registry{
		conns:  make(map[string]chan []byte),
		buffer: buffer,
		log:    log.With().Str("component", "registry").Logger(),
	}
}

// Register creates and returns the outbound channel for userID's new
// connection. Any previous channel for the same user is closed.
func (r *Registry) Register(userID string) chan []byte {
	ch := make(chan []byte, r.buffer)

	r.mu.Lock()
	old, replaced := r.conns[userID]
	r.conns[userID] = ch
	if replaced {
		// Sends happen under the read lock, so nobody can be mid-send here.
		close(old)
	}
	r.mu.Unlock()

	if replaced {
		r.log.Debug().Str("user_id", userID).Msg("connection replaced")
	} else {
		activeConnections.Inc()
	}
	return ch
}

// Deregister removes userID's entry only if ch is still the current handle,
// and reports whether it did. A stale connection's cleanup therefore never
// evicts its replacement, and callers must skip their own offline side
// effects when Deregister returns false: the user still holds a live
// connection.
func (r *Registry) Deregister(userID string, ch chan []byte) bool {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	if ok && cur == ch {
		delete(r.conns, userID)
		close(cur)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		activeConnections.Dec()
	}
	return ok
}

// IsConnected reports whether userID currently has a registered connection.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	_, ok := r.conns[userID]
	r.mu.RUnlock()
	return ok
}

// SendTo delivers one frame to userID without blocking. It reports false
// when the user is offline or their buffer is full.
func (r *Registry) SendTo(userID string, frame []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.conns[userID]
	if !ok {
		return false
	}
	select {
	case ch <- frame:
		return true
	default:
		droppedFrames.Inc()
		r.log.Warn().Str("user_id", userID).Msg("send buffer full, frame dropped")
		return false
	}
}

// Broadcast delivers one frame to every connected user, dropping per
// recipient on full buffers. It returns the number of successful sends.
func (r *Registry) Broadcast(frame []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sent := 0
	for userID, ch := range r.conns {
		select {
		case ch <- frame:
			sent++
		default:
			droppedFrames.Inc()
			r.log.Warn().Str("user_id", userID).Msg("send buffer full, frame dropped")
		}
	}
	return sent
}
