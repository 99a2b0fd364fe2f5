package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/arenahq/bot-arena/internal/broadcast"
)

// wsUpgrader grounds on the teacher's internal/api/controllers/websocket_controller.go
// Upgrader — origins are open because the arena feed is a read-only, public
// spectator stream (§4.9), not a channel carrying credentials.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSHandler upgrades GET /ws to a WebSocket and hands the connection to the
// Broadcast Channel (C9), which sends the current ArenaState on connect and
// every subsequent tick (§4.9). No client→server messages are expected.
type WSHandler struct {
	hub *broadcast.Hub
}

func NewWSHandler(hub *broadcast.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.Connect)
}

func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS][WARN] upgrade failed: %v", err)
		return
	}
	h.hub.Register(conn)
}
