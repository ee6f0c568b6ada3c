package handlers

import (
	"log/slog"
	"strconv"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-inbox-backend/internal/websocket"
)

// WebSocketHandler upgrades agent connections onto the event hub
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *websocket.Hub, upgrader gorillaws.Upgrader, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, upgrader: upgrader, logger: logger}
}

// Serve handles GET /ws. An optional team_id query parameter subscribes
// the connection right away; more teams can be added with subscribe frames.
func (h *WebSocketHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		return nil
	}

	client := websocket.NewClient(h.hub, conn, h.logger)
	h.hub.Register(client)

	if raw := c.QueryParam("team_id"); raw != "" {
		if teamID, err := strconv.ParseUint(raw, 10, 32); err == nil && teamID > 0 {
			// a fresh connection is always under the cap
			_ = client.Subscribe(uint(teamID))
		}
	}

	go client.WritePump()
	go client.ReadPump()
	return nil
}
