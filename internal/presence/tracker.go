// Package presence tracks which users are online using TTL keys in the
// shared cache, and fans presence changes out to the peers who share a
// dialog with the affected user. Absence of a key means offline, so a
// crashed replica's users decay to offline within one TTL without any
// cleanup pass.
package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/cache"
	"github.com/dialoghub/dialog-backend/internal/realtime"
	"github.com/dialoghub/dialog-backend/internal/repo"
)

const keyPrefix = "online:"

// Tracker maintains `online:<user_id>` cache keys and notifies dialog peers
// on transitions. Reads degrade gracefully: if the cache is unreachable,
// everyone reports as offline rather than failing the request.
type Tracker struct {
	cache cache.Cache
	db    *gorm.DB
	bc    *realtime.Broadcaster
	ttl   time.Duration
	log   zerolog.Logger
}

// NewTracker wires the tracker. ttl is how long a user stays online without
// a refresh (client pings refresh it).
func NewTracker(c cache.Cache, db *gorm.DB, bc *realtime.Broadcaster, ttl time.Duration, log zerolog.Logger) *Tracker {
	return &Tracker{
		cache: c,
		db:    db,
		bc:    bc,
		ttl:   ttl,
		log:   log.With().Str("component", "presence").Logger(),
	}
}

func key(userID string) string { return keyPrefix + userID }

// SetOnline marks userID online and notifies their dialog peers.
func (t *Tracker) SetOnline(ctx context.Context, userID string) error {
	if err := t.cache.Set(ctx, key(userID), "1", t.ttl); err != nil {
		t.log.Error().Err(err).Str("user_id", userID).Msg("set online")
		return err
	}
	t.fanout(ctx, userID, true)
	return nil
}

// Refresh renews the online TTL without a peer notification. Writing the
// key again also repairs the state if it already expired.
func (t *Tracker) Refresh(ctx context.Context, userID string) error {
	if err := t.cache.Set(ctx, key(userID), "1", t.ttl); err != nil {
		t.log.Error().Err(err).Str("user_id", userID).Msg("refresh online")
		return err
	}
	return nil
}

// SetOffline removes the online key and notifies dialog peers.
func (t *Tracker) SetOffline(ctx context.Context, userID string) error {
	if err := t.cache.Del(ctx, key(userID)); err != nil {
		t.log.Error().Err(err).Str("user_id", userID).Msg("set offline")
		return err
	}
	t.fanout(ctx, userID, false)
	return nil
}

// GetOnline reports online status for a batch of users with one cache round
// trip. On cache failure it logs and reports everyone offline.
func (t *Tracker) GetOnline(ctx context.Context, userIDs []string) map[string]bool {
	out := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = key(id)
	}
	vals, err := t.cache.MGet(ctx, keys...)
	if err != nil {
		t.log.Error().Err(err).Msg("presence batch lookup, degrading to offline")
		return out
	}
	for i, v := range vals {
		out[userIDs[i]] = v.OK
	}
	return out
}

// fanout sends presence.update to every user sharing a dialog with userID.
// Lookup failures are logged; presence changes are best-effort.
func (t *Tracker) fanout(ctx context.Context, userID string, online bool) {
	dialogIDs, err := repo.ListDialogIDsForUser(ctx, t.db, userID)
	if err != nil {
		t.log.Error().Err(err).Str("user_id", userID).Msg("presence fanout: list dialogs")
		return
	}
	peers, err := repo.ListPeerUserIDs(ctx, t.db, dialogIDs, userID)
	if err != nil {
		t.log.Error().Err(err).Str("user_id", userID).Msg("presence fanout: list peers")
		return
	}
	if len(peers) == 0 {
		return
	}
	t.bc.PresenceUpdate(peers, userID, online)
}
