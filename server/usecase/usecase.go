package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marketdesk/chatcore/server/adaptor"
	"github.com/marketdesk/chatcore/server/domain"
)

var historyLimit = 50

type Usecase struct {
	repo     Repository
	registry domain.Registry
	ledger   *domain.Ledger
	typing   *domain.TypingTracker
}

func NewUsecase(repo Repository, registry domain.Registry, typing *domain.TypingTracker) adaptor.Usecase {
	return &Usecase{
		repo:     repo,
		registry: registry,
		ledger:   domain.NewLedger(),
		typing:   typing,
	}
}

// Join admits a connection into a room. The in-memory registry is
// authoritative for live membership; the persisted roster is best-effort and
// only used to survive restarts.
func (u *Usecase) Join(roomID, connID, userID string) error {
	if err := u.registry.Join(roomID, connID, userID); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	if roomID == "" || connID == "" {
		return nil
	}
	if err := u.repo.EnsureRoom(roomID); err != nil {
		slog.Warn("failed to ensure room record", "room", roomID, "error", err)
	}
	if err := u.repo.UpsertParticipant(roomID, userID); err != nil {
		slog.Warn("failed to persist roster entry", "room", roomID, "user", userID, "error", err)
	}
	return nil
}

// Leave evicts a connection. Any typing indicator the user left behind is
// cleared before the membership is dropped so the room still receives the
// STOP_TYPING broadcast.
func (u *Usecase) Leave(connID string) error {
	if p, exists := u.registry.Session(connID); exists {
		u.typing.Clear(p.RoomID, p.UserID)
	}
	return u.registry.Leave(connID)
}

// Publish records a message and fans it out to the sender's room. The write
// happens before fan-out; on a persistence failure nothing is broadcast and
// the caller surfaces the error to the sender alone.
func (u *Usecase) Publish(connID, body string, excludeSender bool) (domain.Message, error) {
	p, exists := u.registry.Session(connID)
	if !exists {
		return domain.Message{}, fmt.Errorf("session not found: %s", connID)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, nil
	}

	msg := domain.NewMessage(p.RoomID, p.UserID, body)
	if err := u.repo.CreateMessage(msg); err != nil {
		return domain.Message{}, fmt.Errorf("failed to persist message: %w", err)
	}

	u.ledger.Track(msg.ID, p.UserID, u.recipientsOf(p.RoomID, p.UserID))

	exclude := ""
	if excludeSender {
		exclude = p.UserID
	}
	if err := u.registry.Publish(p.RoomID, domain.NewMessageEvent(msg), exclude); err != nil {
		return domain.Message{}, fmt.Errorf("failed to broadcast message: %w", err)
	}
	return msg, nil
}

// Acknowledge advances the delivery state of one message for the
// acknowledging user and informs the sender. Out-of-order acknowledgments
// coerce the missing transitions instead of failing; regressions are
// silently dropped. Messages no longer tracked in memory (recipient was
// offline at broadcast, or a restart happened) are acknowledged straight
// against the store.
func (u *Usecase) Acknowledge(connID string, ack domain.Ack) error {
	p, exists := u.registry.Session(connID)
	if !exists {
		return fmt.Errorf("session not found: %s", connID)
	}
	if !ack.Status.IsValid() {
		return fmt.Errorf("invalid feedback state: %s", ack.Status)
	}
	ack.RecipientID = p.UserID

	state, changed, err := u.ledger.Advance(ack.MessageID, p.UserID, ack.Status)
	if err != nil {
		// Untracked (recipient offline at broadcast, restart, or the entry
		// already retired on all-seen): judge the ack against the persisted
		// row, so a late or duplicate ack cannot regress what the sender
		// already observed.
		stored, ferr := u.repo.GetFeedback(ack.MessageID, p.UserID)
		if ferr != nil {
			return fmt.Errorf("failed to read persisted feedback: %w", ferr)
		}
		if !ack.Status.Advances(stored) {
			return nil
		}
		state, changed = ack.Status, true
	}
	if !changed {
		return nil
	}
	ack.Status = state

	// Feedback counters are persisted asynchronously; a crash here may
	// under-report on reload, which the design accepts.
	go func() {
		if err := u.repo.UpsertFeedback(ack.MessageID, ack.RecipientID, state); err != nil {
			slog.Warn("failed to persist feedback", "message", ack.MessageID, "error", err)
		}
	}()

	senderID, ok := u.ledger.Sender(ack.MessageID)
	if !ok {
		msg, err := u.repo.GetMessage(ack.MessageID)
		if err != nil {
			return fmt.Errorf("failed to resolve message sender: %w", err)
		}
		senderID = msg.SenderID
	}
	if err := u.registry.SendToUser(p.RoomID, senderID, domain.NewCheckEvent(p.RoomID, ack)); err != nil {
		slog.Debug("sender not reachable for ack", "message", ack.MessageID, "sender", senderID)
	}
	return nil
}

func (u *Usecase) StartTyping(connID string) error {
	p, exists := u.registry.Session(connID)
	if !exists {
		return fmt.Errorf("session not found: %s", connID)
	}
	u.typing.Start(p.RoomID, p.UserID)
	return nil
}

func (u *Usecase) StopTyping(connID string) error {
	p, exists := u.registry.Session(connID)
	if !exists {
		return fmt.Errorf("session not found: %s", connID)
	}
	u.typing.Stop(p.RoomID, p.UserID)
	return nil
}

// History returns the most recent messages of a room in chronological order,
// with the feedback vector resolved for the requesting user.
func (u *Usecase) History(roomID, userID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	messages, err := u.repo.ListMessages(roomID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return messages, nil
}

func (u *Usecase) Search(roomID, userID, pattern string) ([]domain.Message, error) {
	if pattern == "" {
		return nil, errors.New("empty search pattern")
	}
	messages, err := u.repo.SearchMessages(roomID, userID, pattern)
	if err != nil {
		return nil, fmt.Errorf("error searching messages: %w", err)
	}
	return messages, nil
}

func (u *Usecase) CreateRoom(name string) (domain.Room, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Room{}, errors.New("room name is required")
	}
	room := domain.NewRoom(strings.TrimSpace(name))
	if err := u.repo.CreateRoom(room); err != nil {
		return domain.Room{}, fmt.Errorf("error creating room: %w", err)
	}
	return room, nil
}

func (u *Usecase) ListRooms() ([]domain.Room, error) {
	rooms, err := u.repo.ListRooms()
	if err != nil {
		return nil, fmt.Errorf("error listing rooms: %w", err)
	}
	return rooms, nil
}

func (u *Usecase) Stats() domain.Stats {
	return u.registry.GetStats()
}

// recipientsOf is the distinct set of live user identities in a room minus
// the sender. Intended recipients are fixed at broadcast time.
func (u *Usecase) recipientsOf(roomID, senderID string) []string {
	members := u.registry.MembersOf(roomID)
	seen := make(map[string]bool, len(members))
	recipients := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID == senderID || seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		recipients = append(recipients, m.UserID)
	}
	return recipients
}
