package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marketdesk/chatcore/server/domain"
)

// API is a thin client for the server's REST surface, used for history
// rehydration and room management.
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(serverAddr string) *API {
	return &API{
		baseURL: "http://" + serverAddr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *API) History(roomID, userID string, limit int) ([]domain.Message, error) {
	q := url.Values{"user": {userID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := a.get("/api/rooms/"+url.PathEscape(roomID)+"/history?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (a *API) Search(roomID, userID, pattern string) ([]domain.Message, error) {
	q := url.Values{"user": {userID}, "q": {pattern}}
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := a.get("/api/rooms/"+url.PathEscape(roomID)+"/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (a *API) Rooms() ([]domain.Room, error) {
	var out struct {
		Rooms []domain.Room `json:"rooms"`
	}
	if err := a.get("/api/rooms", &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

func (a *API) CreateRoom(name string) (domain.Room, error) {
	body, _ := json.Marshal(map[string]string{"name": name})
	resp, err := a.http.Post(a.baseURL+"/api/rooms", "application/json", bytes.NewReader(body))
	if err != nil {
		return domain.Room{}, fmt.Errorf("failed to create room: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return domain.Room{}, fmt.Errorf("create room: unexpected status %s", resp.Status)
	}
	var room domain.Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return domain.Room{}, fmt.Errorf("failed to decode room: %w", err)
	}
	return room, nil
}

func (a *API) get(path string, out any) error {
	resp, err := a.http.Get(a.baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s for %s", resp.Status, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
