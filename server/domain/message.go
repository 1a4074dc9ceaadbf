package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Feedback is the tri-state delivery vector of a message as observed by one
// recipient. Each flag only ever advances: sent, then delivered, then seen.
type Feedback struct {
	IsSent      bool `json:"is_sent"`
	IsDelivered bool `json:"is_delivered"`
	IsSeen      bool `json:"is_seen"`
}

// Message is a single chat message. Body, sender and time are immutable once
// persisted; Feedback carries the state for one recipient (the recipient a
// NEW_MESSAGE event is addressed to, or the user a history query is for).
type Message struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	SenderID string    `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
	Feedback Feedback  `json:"feedback"`
}

func NewMessage(roomID, senderID, body string) Message {
	return Message{
		ID:       ulid.Make().String(),
		RoomID:   roomID,
		SenderID: senderID,
		Body:     body,
		SentAt:   time.Now(),
		Feedback: Feedback{IsSent: true},
	}
}

// Room is a named conversation channel. The live participant set is held by
// the registry; this record is the persisted shell.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRoom(name string) Room {
	return Room{
		ID:        ulid.Make().String(),
		Name:      name,
		CreatedAt: time.Now(),
	}
}
