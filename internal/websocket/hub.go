package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"bastportal/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxInbound = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by the CORS layer in front of the API.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// message is an encoded push. vendorID is empty for pushes that only
// internal users may see.
type message struct {
	data     []byte
	vendorID string
}

// Client is one subscriber. Vendor accounts carry their vendor id and only
// receive pushes about that vendor's documents.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	email    string
	vendorID string
}

func (c *Client) wants(m message) bool {
	return c.vendorID == "" || c.vendorID == m.vendorID
}

// Hub fans published pushes out to the connected clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Publish queues a push for the subscribed clients. It never blocks: when
// the queue is full the push is dropped and logged.
func (h *Hub) Publish(topic string, payload interface{}) {
	msg, err := encode(topic, payload)
	if err != nil {
		log.Printf("[WS] encode %s: %v", topic, err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("[WS] broadcast queue full, dropped %s", topic)
	}
}

// encode flattens payload next to a "type" field. Payloads that are not JSON
// objects go under "data". A top-level "vendor_id" scopes the push.
func encode(topic string, payload interface{}) (message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return message{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		fields = map[string]json.RawMessage{"data": raw}
	}

	var vendorID string
	if v, ok := fields["vendor_id"]; ok {
		_ = json.Unmarshal(v, &vendorID)
	}

	typ, err := json.Marshal(topic)
	if err != nil {
		return message{}, err
	}
	fields["type"] = typ
	data, err := json.Marshal(fields)
	if err != nil {
		return message{}, err
	}
	return message{data: data, vendorID: vendorID}, nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run dispatches registrations and pushes until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WS] %s connected", client.email)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[WS] %s disconnected", client.email)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow reader: drop the client rather than stall the hub.
					close(client.send)
					delete(h.clients, client)
					log.Printf("[WS] %s dropped, send buffer full", client.email)
				}
			}
			h.mu.Unlock()
		}
	}
}

// writePump writes queued pushes, one frame each, and pings the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// readPump drains the connection until the peer goes away or stops
// answering pings. Inbound messages are ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInbound)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read %s: %v", c.email, err)
			}
			return
		}
	}
}

// ServeWs authenticates the token query parameter and upgrades the request.
// Any portal role may subscribe.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	tokenString := c.Query("token")
	if tokenString == "" {
		log.Println("[WS] connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	actor, err := middleware.ParseToken(tokenString, secret)
	if err != nil {
		log.Println("[WS] connection rejected: invalid token:", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("[WS] upgrade failed:", err)
		return
	}
	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, clientBuffer),
		email:    actor.Email,
		vendorID: actor.VendorID,
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
