package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

// inbound is a client command. Only joinRoom is supported; chat messages
// go through the HTTP API.
type inbound struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type roomInfo struct {
	RoomID string `json:"roomId"`
}

type errorInfo struct {
	Message string `json:"message"`
}

// Membership is the room check a connection needs.
type Membership interface {
	IsMember(ctx context.Context, room string, userID int64) (bool, error)
}

// Serve runs one websocket connection until the peer goes away or ctx ends.
func Serve(ctx context.Context, ws *websocket.Conn, hub *Hub, rooms Membership, clientID string, userID int64, logger *zap.Logger) {
	logger = logger.With(zap.String("client_id", clientID), zap.Int64("user_id", userID))
	c := hub.Register(clientID, userID)
	logger.Info("Websocket client connected", zap.Int("total", hub.ClientCount()))

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(ctx, ws, c, logger)
		// unblock readPump; a peer that never answers the close frame would
		// otherwise hold it until the pong deadline
		_ = ws.NetConn().SetReadDeadline(time.Now())
	}()

	readPump(ctx, ws, hub, rooms, c, logger)
	cancel()
	hub.Unregister(c)
	<-done
	ws.Close()
	logger.Info("Websocket client disconnected")
}

func readPump(ctx context.Context, ws *websocket.Conn, hub *Hub, rooms Membership, c *Client, logger *zap.Logger) {
	ws.SetReadLimit(maxInboundSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Websocket read failed", zap.Error(err))
			}
			return
		}

		var cmd inbound
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type != "joinRoom" || cmd.RoomID == "" {
			hub.Send(c, envelope(cmd.RoomID, EventError, errorInfo{Message: "unsupported command"}))
			continue
		}

		ok, err := rooms.IsMember(ctx, cmd.RoomID, c.UserID)
		if err != nil {
			logger.Error("Room membership check failed", zap.String("room", cmd.RoomID), zap.Error(err))
			hub.Send(c, envelope(cmd.RoomID, EventError, errorInfo{Message: "try again later"}))
			continue
		}
		if !ok {
			hub.Send(c, envelope(cmd.RoomID, EventError, errorInfo{Message: "Wrong room id!"}))
			continue
		}
		hub.Join(c, cmd.RoomID)
		hub.Send(c, envelope(cmd.RoomID, EventJoined, roomInfo{RoomID: cmd.RoomID}))
	}
}

func writePump(ctx context.Context, ws *websocket.Conn, c *Client, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case env, ok := <-c.Events():
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(env); err != nil {
				logger.Warn("Websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func envelope(room, event string, payload any) Envelope {
	data, _ := json.Marshal(payload)
	return Envelope{Room: room, Event: event, Data: data}
}
