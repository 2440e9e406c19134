package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"EYE_MONITOR/go-backend/internal/models"
	"EYE_MONITOR/go-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	MessageWelcome     = "WELCOME"
	MessageFrameResult = "FRAME_RESULT"
	MessagePing        = "PING"
	MessagePong        = "PONG"

	clientBuffer = 256
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type wsClient struct {
	conn     *websocket.Conn
	clientID string
	send     chan WebSocketMessage
}

// Hub fans frame results out to websocket clients and in-process
// subscribers. A receiver that cannot keep up misses results; Publish never
// waits.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
	subs    map[uint64]chan models.FrameResult
	nextSub uint64
	closed  bool

	dropped  uint64
	metrics  *services.Metrics
	upgrader websocket.Upgrader
}

func NewHub(metrics *services.Metrics) *Hub {
	if metrics == nil {
		metrics = services.GetMetrics()
	}
	return &Hub{
		clients: make(map[string]*wsClient),
		subs:    make(map[uint64]chan models.FrameResult),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Publish hands r to every receiver without blocking.
func (h *Hub) Publish(r models.FrameResult) {
	msg := WebSocketMessage{
		Type:      MessageFrameResult,
		Payload:   r,
		Timestamp: r.Timestamp,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
	for _, ch := range h.subs {
		select {
		case ch <- r:
		default:
			h.dropped++
		}
	}
}

// Subscribe returns a channel of results and a function that ends the
// subscription and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan models.FrameResult, func()) {
	ch := make(chan models.FrameResult, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// ServeWS upgrades the request and streams results to the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		h.metrics.IncrementWebSocketErrors()
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = "client-" + uuid.NewString()
	}

	client := &wsClient{
		conn:     conn,
		clientID: clientID,
		send:     make(chan WebSocketMessage, clientBuffer),
	}
	client.send <- WebSocketMessage{
		Type:      MessageWelcome,
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload: map[string]interface{}{
			"message": "Connected to drowsiness monitor",
			"version": Version,
		},
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	if old, ok := h.clients[clientID]; ok {
		close(old.send)
		h.metrics.DecrementWebSocketConnections()
	}
	h.clients[clientID] = client
	h.mu.Unlock()

	h.metrics.IncrementWebSocketConnections()
	slog.Info("websocket client connected", "client_id", clientID)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if cur, ok := h.clients[c.clientID]; ok && cur == c {
		delete(h.clients, c.clientID)
		close(c.send)
		h.metrics.DecrementWebSocketConnections()
		slog.Info("websocket client disconnected", "client_id", c.clientID)
	}
	h.mu.Unlock()
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "client_id", c.clientID, "error", err)
				h.metrics.IncrementWebSocketErrors()
			}
			return
		}

		switch msg.Type {
		case MessagePing:
			h.reply(c, WebSocketMessage{
				Type:      MessagePong,
				ClientID:  c.clientID,
				Timestamp: time.Now().Unix(),
			})
		default:
			slog.Debug("unknown websocket message", "client_id", c.clientID, "type", msg.Type)
		}
	}
}

// reply queues msg unless the client is gone or its buffer is full.
func (h *Hub) reply(c *wsClient, msg WebSocketMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if cur, ok := h.clients[c.clientID]; !ok || cur != c {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				h.metrics.IncrementWebSocketErrors()
				return
			}
			h.metrics.IncrementWebSocketMessages()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
		h.metrics.DecrementWebSocketConnections()
	}
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	slog.Info("websocket hub closed")
}
