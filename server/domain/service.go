package domain

// RoomRegistry owns the in-memory room membership table. Membership is
// mutated only through Join/Leave; the broadcaster reads it via MembersOf.
type RoomRegistry interface {
	Join(roomID, connID, userID string) error
	Leave(connID string) error

	MembersOf(roomID string) []Participant
	Session(connID string) (Participant, bool)

	ActiveRooms() []string
	RoomMemberCount(roomID string) int
}

// Broadcaster fans events out to room members. Exclusion by user identity is
// an explicit parameter of Publish so that a sender with several devices is
// skipped on all of them.
type Broadcaster interface {
	Publish(roomID string, event Event, excludeUserID string) error

	SendToUser(roomID, userID string, event Event) error
	SendToConn(connID string, event Event) error

	Register(connID string, outbound chan<- Event)
	Unregister(connID string)
}

type Registry interface {
	RoomRegistry
	Broadcaster

	Cleanup() error
	GetStats() Stats
}

type Stats struct {
	ActiveRooms    int
	ActiveSessions int
	TotalMessages  int64
	Uptime         string
}
