package domain

import "time"

// Participant is a live connection bound to a user identity. ConnID is unique
// per network connection and meaningless after disconnect; UserID is the
// stable external identity and may hold several ConnIDs at once.
type Participant struct {
	ConnID   string
	UserID   string
	RoomID   string
	JoinedAt time.Time
}

func NewParticipant(connID, userID, roomID string) Participant {
	return Participant{
		ConnID:   connID,
		UserID:   userID,
		RoomID:   roomID,
		JoinedAt: time.Now(),
	}
}

func (p Participant) IsValid() bool {
	return p.ConnID != "" && p.RoomID != ""
}

func (p Participant) String() string {
	return p.UserID + "@" + p.RoomID + "(" + p.ConnID + ")"
}
