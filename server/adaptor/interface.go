package adaptor

import "github.com/marketdesk/chatcore/server/domain"

type Usecase interface {
	Join(roomID, connID, userID string) error
	Leave(connID string) error
	Publish(connID, body string, excludeSender bool) (domain.Message, error)
	Acknowledge(connID string, ack domain.Ack) error
	StartTyping(connID string) error
	StopTyping(connID string) error
	History(roomID, userID string, limit int) ([]domain.Message, error)
	Search(roomID, userID, pattern string) ([]domain.Message, error)
	CreateRoom(name string) (domain.Room, error)
	ListRooms() ([]domain.Room, error)
	Stats() domain.Stats
}
