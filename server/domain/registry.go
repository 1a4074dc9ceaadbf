package domain

import (
	"fmt"
	"sync"
	"time"
)

const ringSize = 256

type registryImpl struct {
	mu        sync.RWMutex
	rooms     map[string]*roomImpl
	sessions  map[string]Participant
	outbound  map[string]chan<- Event
	stats     Stats
	startTime time.Time
}

type roomImpl struct {
	mu       sync.RWMutex
	id       string
	members  map[string]Participant
	fanout   chan envelope
	closed   bool
	registry *registryImpl
}

// envelope carries one event through a room's fanout loop together with its
// exclusion rule. excludeConn skips a single connection (join/leave echoes),
// excludeUser skips every connection of one identity (optimistic senders).
type envelope struct {
	event       Event
	excludeConn string
	excludeUser string
}

func NewRegistry() Registry {
	return &registryImpl{
		rooms:     make(map[string]*roomImpl),
		sessions:  make(map[string]Participant),
		outbound:  make(map[string]chan<- Event),
		startTime: time.Now(),
	}
}

func newRoom(id string, registry *registryImpl) *roomImpl {
	r := &roomImpl{
		id:       id,
		members:  make(map[string]Participant),
		fanout:   make(chan envelope, ringSize),
		registry: registry,
	}
	go r.run()
	return r
}

// run serializes every broadcast for one room. All members observe events in
// the order they entered the fanout channel; cross-room work is independent.
func (r *roomImpl) run() {
	for env := range r.fanout {
		r.mu.RLock()
		members := make([]Participant, 0, len(r.members))
		for _, p := range r.members {
			members = append(members, p)
		}
		r.mu.RUnlock()

		for _, p := range members {
			if env.excludeConn != "" && p.ConnID == env.excludeConn {
				continue
			}
			if env.excludeUser != "" && p.UserID == env.excludeUser {
				continue
			}
			r.registry.send(p.ConnID, env.event)
		}
	}
}

// push enqueues an envelope for the fanout loop. It refuses once the room is
// reaped and drops the envelope when the buffer is full; either way the
// caller never blocks. Holding the lock over the send is what keeps a
// publish from racing the close in reap.
func (r *roomImpl) push(env envelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.fanout <- env:
		return true
	default:
		return false
	}
}

// reap closes the fanout channel exactly once.
func (r *roomImpl) reap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.fanout)
	}
}

// send pushes an event into a connection's outbound channel. A missing
// channel means the peer is stale and is skipped; a full channel drops the
// event rather than block the room loop.
func (reg *registryImpl) send(connID string, event Event) {
	reg.mu.RLock()
	ch, ok := reg.outbound[connID]
	reg.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case ch <- event:
	default:
	}
}

func (reg *registryImpl) Join(roomID, connID, userID string) error {
	p := NewParticipant(connID, userID, roomID)
	// Missing room context is tolerated rather than raised.
	if !p.IsValid() {
		return nil
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if prev, exists := reg.sessions[connID]; exists {
		if prev.RoomID == roomID {
			// Already a member: idempotent, no duplicate broadcast.
			return nil
		}
		// A connection belongs to at most one room at a time.
		reg.leaveLocked(connID)
	}

	room, exists := reg.rooms[roomID]
	if !exists {
		room = newRoom(roomID, reg)
		reg.rooms[roomID] = room
	}

	reg.sessions[connID] = p
	reg.stats.ActiveSessions = len(reg.sessions)
	reg.stats.ActiveRooms = len(reg.rooms)

	// Membership and the join broadcast happen under reg.mu so a concurrent
	// reap cannot slip between the room lookup and the member insert.
	room.mu.Lock()
	hadMembers := len(room.members) > 0
	room.members[connID] = p
	if hadMembers {
		select {
		case room.fanout <- envelope{event: NewUserJoinEvent(roomID, userID), excludeConn: connID}:
		default:
		}
	}
	room.mu.Unlock()
	return nil
}

func (reg *registryImpl) Leave(connID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.leaveLocked(connID)
	return nil
}

// leaveLocked removes connID from its room, broadcasting USER_LEAVE to the
// remaining members and reaping the room if it became empty. Unknown
// connections are a no-op. Caller holds reg.mu.
func (reg *registryImpl) leaveLocked(connID string) {
	p, exists := reg.sessions[connID]
	if !exists {
		return
	}
	delete(reg.sessions, connID)
	reg.stats.ActiveSessions = len(reg.sessions)

	room, ok := reg.rooms[p.RoomID]
	if !ok {
		return
	}

	room.mu.Lock()
	delete(room.members, connID)
	if len(room.members) == 0 {
		room.closed = true
		close(room.fanout)
	} else {
		select {
		case room.fanout <- envelope{event: NewUserLeaveEvent(p.RoomID, p.UserID), excludeConn: connID}:
		default:
		}
	}
	closed := room.closed
	room.mu.Unlock()

	if closed {
		delete(reg.rooms, p.RoomID)
	}
	reg.stats.ActiveRooms = len(reg.rooms)
}

func (reg *registryImpl) MembersOf(roomID string) []Participant {
	reg.mu.RLock()
	room, exists := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !exists {
		return []Participant{}
	}

	room.mu.RLock()
	defer room.mu.RUnlock()
	members := make([]Participant, 0, len(room.members))
	for _, p := range room.members {
		members = append(members, p)
	}
	return members
}

func (reg *registryImpl) Session(connID string) (Participant, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	p, exists := reg.sessions[connID]
	return p, exists
}

func (reg *registryImpl) ActiveRooms() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rooms := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

func (reg *registryImpl) RoomMemberCount(roomID string) int {
	reg.mu.RLock()
	room, exists := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !exists {
		return 0
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.members)
}

func (reg *registryImpl) Publish(roomID string, event Event, excludeUserID string) error {
	reg.mu.RLock()
	room, exists := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !exists {
		return fmt.Errorf("room not found: %s", roomID)
	}

	if !room.push(envelope{event: event, excludeUser: excludeUserID}) {
		return fmt.Errorf("room not accepting events: %s", roomID)
	}
	if event.Type == EventNewMessage {
		reg.mu.Lock()
		reg.stats.TotalMessages++
		reg.mu.Unlock()
	}
	return nil
}

func (reg *registryImpl) SendToUser(roomID, userID string, event Event) error {
	reg.mu.RLock()
	room, exists := reg.rooms[roomID]
	reg.mu.RUnlock()
	if !exists {
		return fmt.Errorf("room not found: %s", roomID)
	}

	room.mu.RLock()
	targets := make([]string, 0, 2)
	for connID, p := range room.members {
		if p.UserID == userID {
			targets = append(targets, connID)
		}
	}
	room.mu.RUnlock()

	for _, connID := range targets {
		reg.send(connID, event)
	}
	return nil
}

func (reg *registryImpl) SendToConn(connID string, event Event) error {
	reg.mu.RLock()
	_, exists := reg.outbound[connID]
	reg.mu.RUnlock()
	if !exists {
		return fmt.Errorf("connection not registered: %s", connID)
	}
	reg.send(connID, event)
	return nil
}

func (reg *registryImpl) Register(connID string, outbound chan<- Event) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.outbound[connID] = outbound
}

func (reg *registryImpl) Unregister(connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.outbound, connID)
}

func (reg *registryImpl) Cleanup() error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, room := range reg.rooms {
		room.reap()
	}
	reg.rooms = make(map[string]*roomImpl)
	reg.sessions = make(map[string]Participant)
	reg.outbound = make(map[string]chan<- Event)
	reg.stats = Stats{}
	return nil
}

func (reg *registryImpl) GetStats() Stats {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	stats := reg.stats
	stats.Uptime = time.Since(reg.startTime).String()
	return stats
}
