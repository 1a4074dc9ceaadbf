package client

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/marketdesk/chatcore/server/domain"
)

const eventBuffer = 64

// Session maintains the client side of the chat connection. Switching rooms
// tears the previous connection down completely before the next one is
// dialed, so at most one connection is ever live and no event is delivered
// twice.
type Session struct {
	serverAddr string
	userID     string

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	roomID  string
	reader  sync.WaitGroup

	events chan domain.Event
}

func NewSession(serverAddr, userID string) *Session {
	return &Session{
		serverAddr: serverAddr,
		userID:     userID,
		events:     make(chan domain.Event, eventBuffer),
	}
}

// Switch connects the session to a room. Any previous connection is closed
// and fully drained first; the caller should rehydrate history afterwards.
func (s *Session) Switch(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()

	u := url.URL{
		Scheme:   "ws",
		Host:     s.serverAddr,
		Path:     "/ws",
		RawQuery: url.Values{"room": {roomID}, "user": {s.userID}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", u.Host, err)
	}

	s.conn = conn
	s.roomID = roomID
	s.reader.Add(1)
	go s.readPump(conn)
	return nil
}

// teardownLocked closes the live connection and waits for its reader to
// exit. Caller holds s.mu.
func (s *Session) teardownLocked() {
	if s.conn == nil {
		return
	}
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.conn.Close()
	s.reader.Wait()
	s.conn = nil
	s.roomID = ""
}

func (s *Session) readPump(conn *websocket.Conn) {
	defer s.reader.Done()
	for {
		var event domain.Event
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		select {
		case s.events <- event:
		default:
			// Slow consumer: drop rather than stall the socket.
		}
	}
}

// Events is the stream of incoming room events. The channel stays valid
// across reconnects.
func (s *Session) Events() <-chan domain.Event {
	return s.events
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) send(event domain.Event) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(event)
}

func (s *Session) SendMessage(body string) error {
	msg := domain.Message{RoomID: s.Room(), SenderID: s.userID, Body: body}
	return s.send(domain.Event{Type: domain.EventNewMessage, RoomID: msg.RoomID, Message: &msg})
}

func (s *Session) Acknowledge(messageID string, status domain.FeedbackState) error {
	return s.send(domain.Event{
		Type:   domain.EventCheckMessage,
		RoomID: s.Room(),
		Ack:    &domain.Ack{MessageID: messageID, RecipientID: s.userID, Status: status},
	})
}

func (s *Session) StartTyping() error {
	return s.send(domain.NewTypingEvent(true, s.Room(), s.userID))
}

func (s *Session) StopTyping() error {
	return s.send(domain.NewTypingEvent(false, s.Room(), s.userID))
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	return nil
}
