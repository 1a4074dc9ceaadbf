package adaptor

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the REST surface and the websocket endpoint.
func (a *Adaptor) RegisterRoutes(app *fiber.App) {
	app.Get("/health", a.handleHealth)

	api := app.Group("/api")
	api.Get("/rooms", a.handleListRooms)
	api.Post("/rooms", a.handleCreateRoom)
	api.Get("/rooms/:id/history", a.handleHistory)
	api.Get("/rooms/:id/search", a.handleSearch)
	api.Get("/stats", a.handleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(a.HandleSocket))
}

func (a *Adaptor) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (a *Adaptor) handleListRooms(c *fiber.Ctx) error {
	rooms, err := a.uc.ListRooms()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func (a *Adaptor) handleCreateRoom(c *fiber.Ctx) error {
	var req createRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	room, err := a.uc.CreateRoom(req.Name)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

// handleHistory rehydrates message history for one user, most recent last.
// The feedback vector in each message reflects the requesting user.
func (a *Adaptor) handleHistory(c *fiber.Ctx) error {
	roomID := c.Params("id")
	userID := c.Query("user")
	limit := c.QueryInt("limit")

	messages, err := a.uc.History(roomID, userID, limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (a *Adaptor) handleSearch(c *fiber.Ctx) error {
	roomID := c.Params("id")
	userID := c.Query("user")
	pattern := c.Query("q")
	if pattern == "" {
		return fiber.NewError(fiber.StatusBadRequest, "q is required")
	}

	messages, err := a.uc.Search(roomID, userID, pattern)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (a *Adaptor) handleStats(c *fiber.Ctx) error {
	return c.JSON(a.uc.Stats())
}
