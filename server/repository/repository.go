package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marketdesk/chatcore/server/domain"
	"github.com/marketdesk/chatcore/server/usecase"
)

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) usecase.Repository {
	return &Repository{db: db}
}

// Migrate creates the schema if it does not exist yet.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS room_participants (
			room_id   TEXT NOT NULL,
			user_id   TEXT NOT NULL,
			joined_at TIMESTAMP NOT NULL,
			PRIMARY KEY (room_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id        TEXT PRIMARY KEY,
			room_id   TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			body      TEXT NOT NULL,
			sent_at   TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room_id, id)`,
		`CREATE TABLE IF NOT EXISTS message_feedback (
			message_id   TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			delivered    INTEGER NOT NULL DEFAULT 0,
			seen         INTEGER NOT NULL DEFAULT 0,
			updated_at   TIMESTAMP NOT NULL,
			PRIMARY KEY (message_id, recipient_id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

func (r *Repository) CreateRoom(room domain.Room) error {
	query := "INSERT INTO rooms (id, name, created_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, room.ID, room.Name, room.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert room '%s': %w", room.Name, err)
	}
	return nil
}

// EnsureRoom records a room shell on first join when no back-office record
// exists yet. The room id doubles as the display name until renamed.
func (r *Repository) EnsureRoom(roomID string) error {
	query := "INSERT INTO rooms (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING"
	if _, err := r.db.Exec(query, roomID, roomID, time.Now()); err != nil {
		return fmt.Errorf("failed to ensure room %s: %w", roomID, err)
	}
	return nil
}

func (r *Repository) GetRoom(roomID string) (domain.Room, error) {
	query := "SELECT id, name, created_at FROM rooms WHERE id = ?"
	var room domain.Room
	if err := r.db.QueryRow(query, roomID).Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, ErrNotFound
		}
		return domain.Room{}, fmt.Errorf("error querying room %s: %w", roomID, err)
	}
	return room, nil
}

func (r *Repository) ListRooms() ([]domain.Room, error) {
	query := "SELECT id, name, created_at FROM rooms ORDER BY created_at"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []domain.Room{}
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rooms: %w", err)
	}
	return rooms, nil
}

func (r *Repository) UpsertParticipant(roomID, userID string) error {
	query := `INSERT INTO room_participants (room_id, user_id, joined_at) VALUES (?, ?, ?)
		ON CONFLICT(room_id, user_id) DO UPDATE SET joined_at = excluded.joined_at`
	if _, err := r.db.Exec(query, roomID, userID, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert roster entry %s/%s: %w", roomID, userID, err)
	}
	return nil
}

func (r *Repository) ListParticipants(roomID string) ([]string, error) {
	query := "SELECT user_id FROM room_participants WHERE room_id = ? ORDER BY joined_at"
	rows, err := r.db.Query(query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster for %s: %w", roomID, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over roster for %s: %w", roomID, err)
	}
	return users, nil
}

func (r *Repository) CreateMessage(msg domain.Message) error {
	query := "INSERT INTO messages (id, room_id, sender_id, body, sent_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := r.db.Exec(query, msg.ID, msg.RoomID, msg.SenderID, msg.Body, msg.SentAt); err != nil {
		return fmt.Errorf("failed to insert message for room %s: %w", msg.RoomID, err)
	}
	return nil
}

func (r *Repository) GetMessage(messageID string) (domain.Message, error) {
	query := "SELECT id, room_id, sender_id, body, sent_at FROM messages WHERE id = ?"
	var msg domain.Message
	if err := r.db.QueryRow(query, messageID).Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Body, &msg.SentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("error querying message %s: %w", messageID, err)
	}
	msg.Feedback = domain.Feedback{IsSent: true}
	return msg, nil
}

// ListMessages returns the last limit messages of a room in chronological
// order. The feedback vector is resolved for recipientID; messages without
// a feedback row are sent-only. Message ids are ULIDs, so ordering by id is
// ordering by time.
func (r *Repository) ListMessages(roomID, recipientID string, limit int) ([]domain.Message, error) {
	query := `SELECT m.id, m.room_id, m.sender_id, m.body, m.sent_at,
			COALESCE(f.delivered, 0), COALESCE(f.seen, 0)
		FROM messages m
		LEFT JOIN message_feedback f ON f.message_id = m.id AND f.recipient_id = ?
		WHERE m.room_id = ?
		ORDER BY m.id DESC LIMIT ?`
	rows, err := r.db.Query(query, recipientID, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for room %s: %w", roomID, err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("error reading messages for room %s: %w", roomID, err)
	}
	reverse(messages)
	return messages, nil
}

func (r *Repository) SearchMessages(roomID, recipientID, pattern string) ([]domain.Message, error) {
	query := `SELECT m.id, m.room_id, m.sender_id, m.body, m.sent_at,
			COALESCE(f.delivered, 0), COALESCE(f.seen, 0)
		FROM messages m
		LEFT JOIN message_feedback f ON f.message_id = m.id AND f.recipient_id = ?
		WHERE m.room_id = ? AND m.body REGEXP ?
		ORDER BY m.id`
	rows, err := r.db.Query(query, recipientID, roomID, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search in room %s for pattern '%s': %w", roomID, pattern, err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("error reading search results for room %s: %w", roomID, err)
	}
	return messages, nil
}

// GetFeedback reads the persisted state for one recipient. A missing row
// means the message never advanced past Sent for them.
func (r *Repository) GetFeedback(messageID, recipientID string) (domain.FeedbackState, error) {
	query := "SELECT delivered, seen FROM message_feedback WHERE message_id = ? AND recipient_id = ?"
	var delivered, seen int
	err := r.db.QueryRow(query, messageID, recipientID).Scan(&delivered, &seen)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FeedbackSent, nil
	}
	if err != nil {
		return "", fmt.Errorf("error querying feedback for message %s: %w", messageID, err)
	}
	switch {
	case seen != 0:
		return domain.FeedbackSeen, nil
	case delivered != 0:
		return domain.FeedbackDelivered, nil
	}
	return domain.FeedbackSent, nil
}

// UpsertFeedback advances the persisted feedback row. MAX keeps the row
// monotonic regardless of acknowledgment arrival order.
func (r *Repository) UpsertFeedback(messageID, recipientID string, state domain.FeedbackState) error {
	vector := state.Vector()
	query := `INSERT INTO message_feedback (message_id, recipient_id, delivered, seen, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(message_id, recipient_id) DO UPDATE SET
			delivered = MAX(delivered, excluded.delivered),
			seen = MAX(seen, excluded.seen),
			updated_at = excluded.updated_at`
	if _, err := r.db.Exec(query, messageID, recipientID,
		boolToInt(vector.IsDelivered), boolToInt(vector.IsSeen), time.Now()); err != nil {
		return fmt.Errorf("failed to upsert feedback for message %s: %w", messageID, err)
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var delivered, seen int
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Body, &msg.SentAt, &delivered, &seen); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Feedback = domain.Feedback{
			IsSent:      true,
			IsDelivered: delivered != 0,
			IsSeen:      seen != 0,
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func reverse(messages []domain.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
