package adaptor

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/marketdesk/chatcore/server/domain"
)

const (
	outboundBuffer    = 64
	messagesPerSecond = 10
	burstSize         = 20
)

type Adaptor struct {
	uc       Usecase
	registry domain.Registry
}

func NewAdaptor(uc Usecase, registry domain.Registry) *Adaptor {
	return &Adaptor{uc: uc, registry: registry}
}

// HandleSocket runs one chat connection. The room and user identity arrive
// as connect-time query parameters; the connection id is minted per accept
// and never outlives the socket.
func (a *Adaptor) HandleSocket(c *websocket.Conn) {
	roomID := c.Query("room")
	userID := c.Query("user")
	connID := uuid.New().String()

	if userID == "" {
		// Protocol error: refuse quietly, nobody else is affected.
		_ = c.WriteJSON(domain.NewErrorEvent(roomID, "user is required"))
		c.Close()
		return
	}

	outbound := make(chan domain.Event, outboundBuffer)
	done := make(chan struct{})
	a.registry.Register(connID, outbound)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.writePump(c, outbound, done)
	}()

	defer func() {
		if err := a.uc.Leave(connID); err != nil {
			slog.Warn("leave failed", "conn", connID, "error", err)
		}
		a.registry.Unregister(connID)
		close(done)
		wg.Wait()
		c.Close()
		slog.Info("socket closed", "conn", connID, "user", userID)
	}()

	if err := a.uc.Join(roomID, connID, userID); err != nil {
		slog.Warn("join failed", "room", roomID, "user", userID, "error", err)
		a.deliver(outbound, domain.NewErrorEvent(roomID, "failed to join room"))
		return
	}
	slog.Info("socket connected", "conn", connID, "room", roomID, "user", userID)

	limiter := newRateLimiter(burstSize, messagesPerSecond)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "conn", connID, "error", err)
			}
			return
		}

		var event domain.Event
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Warn("invalid event json", "conn", connID, "error", err)
			continue
		}
		if !event.IsValid() {
			slog.Warn("malformed event", "conn", connID, "type", event.Type)
			continue
		}

		if !limiter.allow() {
			a.deliver(outbound, domain.NewErrorEvent(roomID, "rate limit exceeded"))
			continue
		}

		a.dispatch(connID, roomID, outbound, event)
	}
}

func (a *Adaptor) dispatch(connID, roomID string, outbound chan domain.Event, event domain.Event) {
	switch event.Type {
	case domain.EventNewMessage:
		if event.Message == nil {
			return
		}
		if _, err := a.uc.Publish(connID, event.Message.Body, true); err != nil {
			// Only the sender learns about a failed publish.
			slog.Error("publish failed", "conn", connID, "error", err)
			a.deliver(outbound, domain.NewErrorEvent(roomID, "message not delivered"))
		}
	case domain.EventCheckMessage:
		if event.Ack == nil {
			return
		}
		if err := a.uc.Acknowledge(connID, *event.Ack); err != nil {
			slog.Warn("acknowledge failed", "conn", connID, "error", err)
		}
	case domain.EventStartTyping:
		if err := a.uc.StartTyping(connID); err != nil {
			slog.Debug("start typing ignored", "conn", connID, "error", err)
		}
	case domain.EventStopTyping:
		if err := a.uc.StopTyping(connID); err != nil {
			slog.Debug("stop typing ignored", "conn", connID, "error", err)
		}
	default:
		slog.Warn("unknown event type", "conn", connID, "type", event.Type)
	}
}

func (a *Adaptor) writePump(c *websocket.Conn, outbound <-chan domain.Event, done <-chan struct{}) {
	for {
		select {
		case event := <-outbound:
			if err := c.WriteJSON(event); err != nil {
				slog.Debug("write failed", "error", err)
				return
			}
		case <-done:
			return
		}
	}
}

// deliver queues an event for this connection without ever blocking the read
// loop; a full buffer drops the event.
func (a *Adaptor) deliver(outbound chan domain.Event, event domain.Event) {
	select {
	case outbound <- event:
	default:
	}
}

// rateLimiter is a per-connection token bucket.
type rateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate int
	lastRefill time.Time
}

func newRateLimiter(maxTokens, refillRate int) *rateLimiter {
	return &rateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	refill := int(now.Sub(r.lastRefill).Seconds()) * r.refillRate
	if refill > 0 {
		r.tokens = min(r.tokens+refill, r.maxTokens)
		r.lastRefill = now
	}
	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}
