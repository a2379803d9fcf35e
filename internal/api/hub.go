package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vampirenirmal/chapterforge/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans session events out to websocket subscribers. It implements session.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	logger  *slog.Logger
}

type subscriber struct {
	conn    *websocket.Conn
	storyID string
	send    chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*subscriber]struct{}),
		logger:  logger.With("component", "hub"),
	}
}

// Publish queues e for every subscriber of its story. Slow subscribers lose events instead of
// blocking the session.
func (h *Hub) Publish(e session.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("encoding event failed", "type", e.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.storyID != "" && c.storyID != e.StoryID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("subscriber queue full, event dropped", "story_id", e.StoryID, "type", e.Type)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams events until the peer goes away. An empty storyID
// subscribes to every story.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, storyID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &subscriber{conn: conn, storyID: storyID, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.logger.Debug("subscriber connected", "story_id", storyID)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for c := range clients {
		close(c.send)
	}
}

func (h *Hub) register(c *subscriber) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes c and closes its queue, which stops the write pump.
func (h *Hub) unregister(c *subscriber) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.logger.Debug("subscriber disconnected", "story_id", c.storyID)
	}
}

// readPump drains the connection so pongs and close frames are processed. Clients do not send
// commands over the socket.
func (h *Hub) readPump(c *subscriber) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
