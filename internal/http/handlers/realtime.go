package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/nearby-backend/internal/realtime"
)

// RealtimeHandler upgrades to a WebSocket. Authentication happens on the
// socket's first frame, not in HTTP middleware.
type RealtimeHandler struct {
	ws *realtime.WSServer
}

func NewRealtimeHandler(ws *realtime.WSServer) *RealtimeHandler {
	return &RealtimeHandler{ws: ws}
}

// GET /api/ws
func (h *RealtimeHandler) Socket(c *gin.Context) {
	h.ws.ServeHTTP(c.Writer, c.Request)
}
