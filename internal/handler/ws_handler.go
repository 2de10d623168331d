package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skillswap/internal/realtime"
)

type WSHandler struct {
	hub      *realtime.Hub
	rooms    realtime.Membership
	upgrader websocket.Upgrader
	// ctx ends every connection on shutdown.
	ctx    context.Context
	logger *zap.Logger
}

// NewWSHandler accepts browser connections from allowedOrigins; an empty
// list accepts any origin.
func NewWSHandler(ctx context.Context, hub *realtime.Hub, rooms realtime.Membership, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSHandler{
		hub:   hub,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		ctx:    ctx,
		logger: logger,
	}
}

// Connect handles GET /ws. The auth middleware has already verified the token.
func (h *WSHandler) Connect(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	realtime.Serve(h.ctx, ws, h.hub, h.rooms, uuid.NewString(), currentUser(c), h.logger)
}
