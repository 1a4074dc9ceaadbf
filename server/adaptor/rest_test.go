package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketdesk/chatcore/server/domain"
)

type stubUsecase struct {
	rooms    []domain.Room
	messages []domain.Message
	stats    domain.Stats
	err      error

	createdRoom string
}

func (s *stubUsecase) Join(roomID, connID, userID string) error { return s.err }
func (s *stubUsecase) Leave(connID string) error                { return s.err }

func (s *stubUsecase) Publish(connID, body string, excludeSender bool) (domain.Message, error) {
	return domain.Message{}, s.err
}

func (s *stubUsecase) Acknowledge(connID string, ack domain.Ack) error { return s.err }
func (s *stubUsecase) StartTyping(connID string) error                 { return s.err }
func (s *stubUsecase) StopTyping(connID string) error                  { return s.err }

func (s *stubUsecase) History(roomID, userID string, limit int) ([]domain.Message, error) {
	return s.messages, s.err
}

func (s *stubUsecase) Search(roomID, userID, pattern string) ([]domain.Message, error) {
	return s.messages, s.err
}

func (s *stubUsecase) CreateRoom(name string) (domain.Room, error) {
	if s.err != nil {
		return domain.Room{}, s.err
	}
	s.createdRoom = name
	return domain.NewRoom(name), nil
}

func (s *stubUsecase) ListRooms() ([]domain.Room, error) { return s.rooms, s.err }
func (s *stubUsecase) Stats() domain.Stats               { return s.stats }

func newTestApp(uc *stubUsecase) *fiber.App {
	registry := domain.NewRegistry()
	app := fiber.New()
	NewAdaptor(uc, registry).RegisterRoutes(app)
	return app
}

func decodeBody(t *testing.T, body io.Reader, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(out))
}

func TestRest_Health(t *testing.T) {
	app := newTestApp(&stubUsecase{})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRest_ListRooms(t *testing.T) {
	uc := &stubUsecase{rooms: []domain.Room{domain.NewRoom("general"), domain.NewRoom("ops")}}
	app := newTestApp(uc)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/rooms", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Rooms []domain.Room `json:"rooms"`
	}
	decodeBody(t, resp.Body, &body)
	assert.Len(t, body.Rooms, 2)
}

func TestRest_CreateRoom(t *testing.T) {
	uc := &stubUsecase{}
	app := newTestApp(uc)

	req := httptest.NewRequest("POST", "/api/rooms", strings.NewReader(`{"name":"general"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "general", uc.createdRoom)

	var room domain.Room
	decodeBody(t, resp.Body, &room)
	assert.Equal(t, "general", room.Name)
	assert.NotEmpty(t, room.ID)
}

func TestRest_CreateRoomRejectsBadInput(t *testing.T) {
	app := newTestApp(&stubUsecase{err: errors.New("room name is required")})

	req := httptest.NewRequest("POST", "/api/rooms", strings.NewReader(`{"name":""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRest_History(t *testing.T) {
	uc := &stubUsecase{messages: []domain.Message{domain.NewMessage("r1", "alice", "hello")}}
	app := newTestApp(uc)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/rooms/r1/history?user=bob&limit=10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	decodeBody(t, resp.Body, &body)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hello", body.Messages[0].Body)
}

func TestRest_SearchRequiresPattern(t *testing.T) {
	app := newTestApp(&stubUsecase{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/rooms/r1/search", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRest_WebsocketRequiresUpgrade(t *testing.T) {
	app := newTestApp(&stubUsecase{})

	resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter(3, 1)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.allow(), "burst token %d", i)
	}
	assert.False(t, limiter.allow(), "bucket must be empty after the burst")
}
