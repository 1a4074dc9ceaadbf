package domain

import (
	"fmt"
	"time"
)

// EventType discriminates the wire events exchanged over a chat socket.
type EventType string

const (
	EventUserJoin     EventType = "USER_JOIN"
	EventUserLeave    EventType = "USER_LEAVE"
	EventNewMessage   EventType = "NEW_MESSAGE"
	EventCheckMessage EventType = "CHECK_MESSAGE"
	EventStartTyping  EventType = "START_TYPING"
	EventStopTyping   EventType = "STOP_TYPING"
	EventError        EventType = "ERROR"
)

// Ack reports one recipient's delivery state for one message.
type Ack struct {
	MessageID   string        `json:"message_id"`
	RecipientID string        `json:"recipient_id"`
	Status      FeedbackState `json:"status"`
}

// Event is the single envelope all socket traffic travels in. Only the
// fields relevant to the Type are populated; the rest stay at their zero
// values and are omitted from the JSON.
type Event struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"room_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Ack       *Ack      `json:"ack,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewUserJoinEvent(roomID, userID string) Event {
	return Event{Type: EventUserJoin, RoomID: roomID, UserID: userID, Timestamp: time.Now()}
}

func NewUserLeaveEvent(roomID, userID string) Event {
	return Event{Type: EventUserLeave, RoomID: roomID, UserID: userID, Timestamp: time.Now()}
}

func NewMessageEvent(msg Message) Event {
	return Event{
		Type:      EventNewMessage,
		RoomID:    msg.RoomID,
		UserID:    msg.SenderID,
		Message:   &msg,
		Timestamp: time.Now(),
	}
}

func NewCheckEvent(roomID string, ack Ack) Event {
	return Event{Type: EventCheckMessage, RoomID: roomID, UserID: ack.RecipientID, Ack: &ack, Timestamp: time.Now()}
}

func NewTypingEvent(typing bool, roomID, userID string) Event {
	t := EventStopTyping
	if typing {
		t = EventStartTyping
	}
	return Event{Type: t, RoomID: roomID, UserID: userID, Timestamp: time.Now()}
}

func NewErrorEvent(roomID, message string) Event {
	return Event{Type: EventError, RoomID: roomID, Error: message, Timestamp: time.Now()}
}

// IsValid reports whether the event carries the payload its type requires.
func (e Event) IsValid() bool {
	switch e.Type {
	case EventUserJoin, EventUserLeave, EventStartTyping, EventStopTyping:
		return e.RoomID != "" && e.UserID != ""
	case EventNewMessage:
		return e.Message != nil
	case EventCheckMessage:
		return e.Ack != nil && e.Ack.MessageID != ""
	case EventError:
		return e.Error != ""
	}
	return false
}

func (e Event) String() string {
	return fmt.Sprintf("%s room=%s user=%s", e.Type, e.RoomID, e.UserID)
}
