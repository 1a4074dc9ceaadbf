package usecase

import "github.com/marketdesk/chatcore/server/domain"

type Repository interface {
	// Room
	CreateRoom(room domain.Room) error
	EnsureRoom(roomID string) error
	GetRoom(roomID string) (domain.Room, error)
	ListRooms() ([]domain.Room, error)

	// Roster
	UpsertParticipant(roomID, userID string) error
	ListParticipants(roomID string) ([]string, error)

	// Message
	CreateMessage(msg domain.Message) error
	GetMessage(messageID string) (domain.Message, error)
	ListMessages(roomID, recipientID string, limit int) ([]domain.Message, error)
	SearchMessages(roomID, recipientID, pattern string) ([]domain.Message, error)

	// Feedback
	GetFeedback(messageID, recipientID string) (domain.FeedbackState, error)
	UpsertFeedback(messageID, recipientID string, state domain.FeedbackState) error
}
