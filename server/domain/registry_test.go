package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventWait = 2 * time.Second

// attach registers an outbound channel and joins the connection to a room.
func attach(t *testing.T, reg Registry, roomID, connID, userID string) chan Event {
	t.Helper()
	outbound := make(chan Event, 16)
	reg.Register(connID, outbound)
	require.NoError(t, reg.Join(roomID, connID, userID))
	return outbound
}

func waitEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch chan Event) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("unexpected event: %s", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_JoinMembership(t *testing.T) {
	tests := []struct {
		name        string
		join        [][3]string // roomID, connID, userID
		room        string
		wantMembers int
	}{
		{
			name:        "single member",
			join:        [][3]string{{"r1", "c1", "alice"}},
			room:        "r1",
			wantMembers: 1,
		},
		{
			name:        "two members same room",
			join:        [][3]string{{"r1", "c1", "alice"}, {"r1", "c2", "bob"}},
			room:        "r1",
			wantMembers: 2,
		},
		{
			name:        "rooms are independent",
			join:        [][3]string{{"r1", "c1", "alice"}, {"r2", "c2", "bob"}},
			room:        "r1",
			wantMembers: 1,
		},
		{
			name:        "same identity on two connections",
			join:        [][3]string{{"r1", "c1", "alice"}, {"r1", "c2", "alice"}},
			room:        "r1",
			wantMembers: 2,
		},
		{
			name:        "empty room id tolerated",
			join:        [][3]string{{"", "c1", "alice"}},
			room:        "",
			wantMembers: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			defer reg.Cleanup()
			for _, j := range tt.join {
				require.NoError(t, reg.Join(j[0], j[1], j[2]))
			}
			assert.Equal(t, tt.wantMembers, reg.RoomMemberCount(tt.room))
		})
	}
}

func TestRegistry_JoinIdempotent(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	alice := attach(t, reg, "r1", "c1", "alice")
	bob := attach(t, reg, "r1", "c2", "bob")
	assert.Equal(t, EventUserJoin, waitEvent(t, alice).Type)

	// Re-joining the same room must not announce again.
	require.NoError(t, reg.Join("r1", "c2", "bob"))
	assert.Equal(t, 2, reg.RoomMemberCount("r1"))
	assertNoEvent(t, alice)
	assertNoEvent(t, bob)
}

func TestRegistry_JoinSwitchesRoom(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	alice := attach(t, reg, "r1", "c1", "alice")
	attach(t, reg, "r1", "c2", "bob")
	waitEvent(t, alice) // bob's USER_JOIN

	// A connection lives in one room at a time: joining r2 leaves r1.
	require.NoError(t, reg.Join("r2", "c2", "bob"))
	assert.Equal(t, 1, reg.RoomMemberCount("r1"))
	assert.Equal(t, 1, reg.RoomMemberCount("r2"))

	event := waitEvent(t, alice)
	assert.Equal(t, EventUserLeave, event.Type)
	assert.Equal(t, "bob", event.UserID)
}

func TestRegistry_JoinLeaveBroadcasts(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	alice := attach(t, reg, "r1", "c1", "alice")
	bob := attach(t, reg, "r1", "c2", "bob")

	// The existing member hears the join; the joiner hears nothing.
	event := waitEvent(t, alice)
	assert.Equal(t, EventUserJoin, event.Type)
	assert.Equal(t, "bob", event.UserID)
	assert.Equal(t, "r1", event.RoomID)
	assertNoEvent(t, bob)

	require.NoError(t, reg.Leave("c2"))
	event = waitEvent(t, alice)
	assert.Equal(t, EventUserLeave, event.Type)
	assert.Equal(t, "bob", event.UserID)
}

func TestRegistry_LeaveUnknownConn(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	attach(t, reg, "r1", "c1", "alice")
	require.NoError(t, reg.Leave("nope"))
	assert.Equal(t, 1, reg.RoomMemberCount("r1"))
}

func TestRegistry_RoomReapedWhenEmpty(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	attach(t, reg, "r1", "c1", "alice")
	require.Len(t, reg.ActiveRooms(), 1)

	require.NoError(t, reg.Leave("c1"))
	assert.Empty(t, reg.ActiveRooms())

	// Publishing into the reaped room fails rather than resurrecting it.
	err := reg.Publish("r1", NewMessageEvent(NewMessage("r1", "alice", "hi")), "")
	assert.Error(t, err)
}

func TestRegistry_PublishOrdering(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	attach(t, reg, "r1", "c1", "alice")
	bob := attach(t, reg, "r1", "c2", "bob")

	m1 := NewMessage("r1", "alice", "first")
	m2 := NewMessage("r1", "alice", "second")
	require.NoError(t, reg.Publish("r1", NewMessageEvent(m1), "alice"))
	require.NoError(t, reg.Publish("r1", NewMessageEvent(m2), "alice"))

	// A single fanout loop per room keeps the broadcast order.
	assert.Equal(t, "first", waitEvent(t, bob).Message.Body)
	assert.Equal(t, "second", waitEvent(t, bob).Message.Body)
}

func TestRegistry_PublishExcludesSenderIdentity(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	aliceLaptop := attach(t, reg, "r1", "c1", "alice")
	alicePhone := attach(t, reg, "r1", "c2", "alice")
	bob := attach(t, reg, "r1", "c3", "bob")
	waitEvent(t, aliceLaptop) // joins
	waitEvent(t, aliceLaptop)
	waitEvent(t, alicePhone)

	msg := NewMessage("r1", "alice", "hello")
	require.NoError(t, reg.Publish("r1", NewMessageEvent(msg), "alice"))

	event := waitEvent(t, bob)
	require.Equal(t, EventNewMessage, event.Type)
	assert.Equal(t, "hello", event.Message.Body)

	// Every connection of the excluded identity is skipped.
	assertNoEvent(t, aliceLaptop)
	assertNoEvent(t, alicePhone)
}

func TestRegistry_NoCrossRoomBroadcast(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	attach(t, reg, "r1", "c1", "alice")
	bob := attach(t, reg, "r2", "c2", "bob")

	require.NoError(t, reg.Publish("r1", NewMessageEvent(NewMessage("r1", "alice", "hi")), ""))
	assertNoEvent(t, bob)
}

func TestRegistry_SendToUser(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	alice := attach(t, reg, "r1", "c1", "alice")
	bob := attach(t, reg, "r1", "c2", "bob")
	waitEvent(t, alice) // bob's join

	ack := Ack{MessageID: "m1", RecipientID: "bob", Status: FeedbackSeen}
	require.NoError(t, reg.SendToUser("r1", "alice", NewCheckEvent("r1", ack)))

	event := waitEvent(t, alice)
	require.Equal(t, EventCheckMessage, event.Type)
	require.NotNil(t, event.Ack)
	assert.Equal(t, "bob", event.Ack.RecipientID)
	assertNoEvent(t, bob)
}

func TestRegistry_PublishDuringMembershipChurn(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	// Typing expiry timers publish into a room with no knowledge of its
	// lifecycle, so publishes must stay safe while the last member leaving
	// reaps the room over and over.
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					reg.Publish("r1", NewTypingEvent(false, "r1", "ghost"), "")
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		require.NoError(t, reg.Join("r1", "c1", "alice"))
		require.NoError(t, reg.Leave("c1"))
	}
	close(done)
	wg.Wait()
}

func TestRegistry_CleanupDuringPublish(t *testing.T) {
	reg := NewRegistry()

	attach(t, reg, "r1", "c1", "alice")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				reg.Publish("r1", NewTypingEvent(true, "r1", "alice"), "")
			}
		}
	}()

	require.NoError(t, reg.Cleanup())
	close(done)
	wg.Wait()

	// The reaped room refuses further events instead of panicking.
	err := reg.Publish("r1", NewTypingEvent(true, "r1", "alice"), "")
	assert.Error(t, err)
}

func TestRegistry_Session(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	attach(t, reg, "r1", "c1", "alice")

	p, exists := reg.Session("c1")
	require.True(t, exists)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, "r1", p.RoomID)

	_, exists = reg.Session("c2")
	assert.False(t, exists)
}

func TestRegistry_Stats(t *testing.T) {
	reg := NewRegistry()
	defer reg.Cleanup()

	attach(t, reg, "r1", "c1", "alice")
	attach(t, reg, "r1", "c2", "bob")
	attach(t, reg, "r2", "c3", "carol")
	require.NoError(t, reg.Publish("r1", NewMessageEvent(NewMessage("r1", "alice", "hi")), ""))

	stats := reg.GetStats()
	assert.Equal(t, 2, stats.ActiveRooms)
	assert.Equal(t, 3, stats.ActiveSessions)
	assert.Equal(t, int64(1), stats.TotalMessages)
	assert.NotEmpty(t, stats.Uptime)
}
