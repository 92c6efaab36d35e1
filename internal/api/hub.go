package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

const hubWriteTimeout = 200 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type hubClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *hubClient) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub fans analyzer results out to websocket clients as JSON text
// messages. A newly connected client first receives the latest result.
type Hub struct {
	ppg.NopListener

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	last    []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*hubClient]struct{})}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) snapshot() []*hubClient {
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// OnResult implements ppg.ResultListener.
func (h *Hub) OnResult(r ppg.Result) {
	b, err := json.Marshal(r)
	if err != nil {
		log.Printf("[ws] marshal result: %v", err)
		return
	}
	h.Broadcast(b)
}

// Broadcast sends b to every client. Clients whose write fails are
// dropped.
func (h *Hub) Broadcast(b []byte) {
	h.mu.Lock()
	h.last = b
	clients := h.snapshot()
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(b); err != nil {
			_ = c.conn.Close()
			h.remove(c)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.snapshot()
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &hubClient{conn: conn}

	// Register and send the latest result under the client lock so a
	// concurrent broadcast cannot interleave with it.
	c.mu.Lock()
	h.mu.Lock()
	h.clients[c] = struct{}{}
	last := h.last
	h.mu.Unlock()
	if last != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		_ = conn.WriteMessage(websocket.TextMessage, last)
	}
	c.mu.Unlock()

	defer func() {
		h.remove(c)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
