package dashboard

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"PairScanner/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 8
)

// Hub fans snapshot updates out to websocket clients. A client whose send
// buffer is full is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// NewHub creates an empty Hub. m may be nil.
func NewHub(log logrus.FieldLogger, m *metrics.Metrics) *Hub {
	return &Hub{clients: make(map[*client]bool), log: log, metrics: m}
}

// Register starts the pumps for conn and queues initial as its first message.
func (h *Hub) Register(conn *websocket.Conn, initial []byte) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), hub: h}
	if initial != nil {
		c.send <- initial
	}
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.gauge(count)
	h.log.WithField("clients", count).Info("ws client connected")

	go c.writePump()
	go c.readPump()
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("ws client too slow, dropping")
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.gaugeLocked()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.gaugeLocked()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.gaugeLocked()
	h.mu.Unlock()
	h.log.Info("ws client disconnected")
}

func (h *Hub) gaugeLocked() { h.gauge(len(h.clients)) }

func (h *Hub) gauge(n int) {
	if h.metrics != nil {
		h.metrics.DashboardClients.Set(float64(n))
	}
}

func (c *client) writePump() {
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
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the peer going away; clients send nothing.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
