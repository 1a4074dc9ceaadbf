package domain

import (
	"sync"
	"time"
)

const DefaultTypingTTL = 10 * time.Second

// TypingTracker broadcasts ephemeral start/stop typing events to the other
// members of a room. Nothing is persisted. Each active indicator carries a
// server-side TTL so a client that disconnects mid-typing does not leave a
// stale indicator behind.
type TypingTracker struct {
	mu          sync.Mutex
	broadcaster Broadcaster
	ttl         time.Duration
	active      map[typingKey]*time.Timer
}

type typingKey struct {
	roomID string
	userID string
}

func NewTypingTracker(b Broadcaster, ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{
		broadcaster: b,
		ttl:         ttl,
		active:      make(map[typingKey]*time.Timer),
	}
}

// Start broadcasts START_TYPING to the other room members and arms the TTL.
// A repeated Start while already typing only re-arms the timer.
func (t *TypingTracker) Start(roomID, userID string) {
	if roomID == "" || userID == "" {
		return
	}
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	timer, already := t.active[key]
	if already {
		timer.Reset(t.ttl)
		t.mu.Unlock()
		return
	}
	t.active[key] = time.AfterFunc(t.ttl, func() { t.expire(roomID, userID) })
	t.mu.Unlock()

	t.broadcaster.Publish(roomID, NewTypingEvent(true, roomID, userID), userID)
}

// Stop clears the indicator and broadcasts STOP_TYPING. A Stop with no prior
// Start is a harmless no-op.
func (t *TypingTracker) Stop(roomID, userID string) {
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	timer, typing := t.active[key]
	if !typing {
		t.mu.Unlock()
		return
	}
	timer.Stop()
	delete(t.active, key)
	t.mu.Unlock()

	t.broadcaster.Publish(roomID, NewTypingEvent(false, roomID, userID), userID)
}

// Clear drops any indicator a departing user left behind, announcing the
// stop to the room's remaining members.
func (t *TypingTracker) Clear(roomID, userID string) {
	t.Stop(roomID, userID)
}

func (t *TypingTracker) expire(roomID, userID string) {
	key := typingKey{roomID: roomID, userID: userID}

	t.mu.Lock()
	if _, typing := t.active[key]; !typing {
		t.mu.Unlock()
		return
	}
	delete(t.active, key)
	t.mu.Unlock()

	t.broadcaster.Publish(roomID, NewTypingEvent(false, roomID, userID), userID)
}
