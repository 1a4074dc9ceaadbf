package domain

import (
	"fmt"
	"sync"
)

type FeedbackState string

const (
	FeedbackSent      FeedbackState = "sent"
	FeedbackDelivered FeedbackState = "delivered"
	FeedbackSeen      FeedbackState = "seen"
)

func (s FeedbackState) rank() int {
	switch s {
	case FeedbackSent:
		return 0
	case FeedbackDelivered:
		return 1
	case FeedbackSeen:
		return 2
	default:
		return -1
	}
}

func (s FeedbackState) IsValid() bool {
	return s.rank() >= 0
}

// Advances reports whether moving to s from current is a forward transition.
func (s FeedbackState) Advances(current FeedbackState) bool {
	return s.rank() > current.rank()
}

// Vector renders the state as the tri-state flags carried on the wire.
func (s FeedbackState) Vector() Feedback {
	return Feedback{
		IsSent:      s.rank() >= 0,
		IsDelivered: s.rank() >= 1,
		IsSeen:      s.rank() >= 2,
	}
}

type ledgerEntry struct {
	senderID   string
	recipients map[string]FeedbackState
}

// Ledger tracks per-(message, recipient) delivery state. States advance
// monotonically sent -> delivered -> seen and never regress. A "seen" that
// arrives before "delivered" was recorded coerces both transitions in one
// step instead of being rejected.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*ledgerEntry)}
}

// Track records the intended recipient set of a freshly broadcast message.
// Every recipient starts in the Sent state.
func (l *Ledger) Track(messageID, senderID string, recipientIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &ledgerEntry{
		senderID:   senderID,
		recipients: make(map[string]FeedbackState, len(recipientIDs)),
	}
	for _, id := range recipientIDs {
		entry.recipients[id] = FeedbackSent
	}
	l.entries[messageID] = entry
}

// Advance moves one recipient's state toward target. It reports whether the
// state changed; acknowledgments that would regress are ignored. Once every
// tracked recipient reached Seen the entry is dropped (Seen is terminal).
func (l *Ledger) Advance(messageID, recipientID string, target FeedbackState) (FeedbackState, bool, error) {
	if !target.IsValid() {
		return "", false, fmt.Errorf("invalid feedback state: %s", target)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[messageID]
	if !exists {
		return "", false, fmt.Errorf("message not tracked: %s", messageID)
	}
	current, exists := entry.recipients[recipientID]
	if !exists {
		return "", false, fmt.Errorf("recipient %s not tracked for message %s", recipientID, messageID)
	}

	if target.rank() <= current.rank() {
		return current, false, nil
	}
	entry.recipients[recipientID] = target

	if l.allSeen(entry) {
		delete(l.entries, messageID)
	}
	return target, true, nil
}

// Sender returns the sender recorded for a tracked message.
func (l *Ledger) Sender(messageID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[messageID]
	if !exists {
		return "", false
	}
	return entry.senderID, true
}

// State returns the current state for one recipient of a tracked message.
func (l *Ledger) State(messageID, recipientID string) (FeedbackState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[messageID]
	if !exists {
		return "", false
	}
	state, exists := entry.recipients[recipientID]
	return state, exists
}

func (l *Ledger) allSeen(entry *ledgerEntry) bool {
	for _, state := range entry.recipients {
		if state != FeedbackSeen {
			return false
		}
	}
	return true
}
