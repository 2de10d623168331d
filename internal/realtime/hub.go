package realtime

import (
	"sync"

	"go.uber.org/zap"
)

const clientBuffer = 64

// Client is one connected socket as seen by the Hub.
type Client struct {
	ID     string
	UserID int64
	send   chan Envelope
}

// Events returns the channel the connection writer drains.
func (c *Client) Events() <-chan Envelope {
	return c.send
}

// Hub tracks which local clients sit in which rooms.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client and joins it to its personal room.
func (h *Hub) Register(clientID string, userID int64) *Client {
	c := &Client{ID: clientID, UserID: userID, send: make(chan Envelope, clientBuffer)}

	h.mu.Lock()
	h.clients[clientID] = c
	h.mu.Unlock()

	h.Join(c, UserRoom(userID))
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	for room, members := range h.rooms {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.ID] = c
}

// Deliver hands env to every local client in its room. Slow clients drop
// events rather than block the bus.
func (h *Hub) Deliver(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.rooms[env.Room] {
		select {
		case c.send <- env:
		default:
			h.logger.Warn("Dropping event for slow client",
				zap.String("client_id", c.ID),
				zap.String("room", env.Room),
			)
		}
	}
}

// Send delivers env to one client only.
func (h *Hub) Send(c *Client, env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- env:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
