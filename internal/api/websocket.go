package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/markusressel/nctfan/internal/ui"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	defaultSendBuffer      = 16
	defaultBroadcastBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type HubConfig struct {
	// SendBuf is the per client outbound queue size
	SendBuf int
	// BroadcastBuf is the inbound broadcast queue size
	BroadcastBuf int
}

// Hub tracks connected WebSocket clients and fans out status messages to them.
// Clients that cannot keep up are disconnected.
type Hub struct {
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	// closed once Run has returned
	done     chan struct{}
	doneOnce sync.Once

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

func NewHub(config HubConfig) *Hub {
	sendBuf := config.SendBuf
	if sendBuf <= 0 {
		sendBuf = defaultSendBuffer
	}
	broadcastBuf := config.BroadcastBuf
	if broadcastBuf <= 0 {
		broadcastBuf = defaultBroadcastBuffer
	}
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuf),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		done:       make(chan struct{}),
		clients:    map[*Client]struct{}{},
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is done, then disconnects all clients
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			ui.Debug("WebSocket client %s connected, %d total", c.remoteAddr, n)

		case c := <-h.unregister:
			h.removeClient(c, "disconnected")

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "too slow")
			}
		}
	}
}

// add hands a new client to Run, after shutdown the client is closed right away
func (h *Hub) add(c *Client) {
	if h.stopped() {
		c.close()
		return
	}
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

// remove hands a gone client to Run, after shutdown there is nothing left to do
func (h *Hub) remove(c *Client) {
	if h.stopped() {
		return
	}
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		ui.Debug("WebSocket client %s removed (%s), %d total", c.remoteAddr, reason, n)
	}
}

// Broadcast enqueues a message for all clients, it is dropped when the queue is full
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		ui.Debug("WebSocket broadcast queue full, dropping message")
	}
}

type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	closeOnce  sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

// writePump writes queued messages and keepalive pings until send is closed or a write fails
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					ui.Debug("WebSocket write to %s failed: %v", c.remoteAddr, err)
				}
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

// readPump discards incoming messages and unregisters the client once the connection is gone
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.hub.remove(c)
			return
		}
	}
}

func (s *Server) handleWebsocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		ui.Warning("WebSocket upgrade failed: %v", err)
		return nil
	}

	client := newClient(s.hub, conn, c.Request().RemoteAddr)

	// initial snapshot so new clients do not wait for the next broadcast
	if msg, err := json.Marshal(s.Snapshot()); err == nil {
		client.send <- msg
	}
	s.hub.add(client)

	// the connection outlives the request
	go client.writePump()
	go client.readPump()
	return nil
}

// RunBroadcaster pushes a status snapshot to all clients periodically while any are connected
func (s *Server) RunBroadcaster(ctx context.Context) {
	rate := s.config.BroadcastRate
	if rate <= 0 {
		rate = time.Second
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() <= 0 {
				continue
			}
			msg, err := json.Marshal(s.Snapshot())
			if err != nil {
				ui.Error("Broadcast error: %v", err)
				continue
			}
			s.hub.Broadcast(msg)
		}
	}
}
