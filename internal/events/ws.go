package events

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 32
)

// Filter restricts which status changes a websocket client receives.
// Empty fields match everything.
type Filter struct {
	Entity   Entity
	Room     string
	EntityID string
}

func (f Filter) match(ev StatusChange) bool {
	if f.Entity != "" && f.Entity != ev.Entity {
		return false
	}
	if f.Room != "" && f.Room != ev.Room {
		return false
	}
	if f.EntityID != "" && f.EntityID != ev.EntityID {
		return false
	}
	return true
}

type wsClient struct {
	conn   *websocket.Conn
	filter Filter
	send   chan StatusChange
}

// Hub pushes status changes to connected UI clients. Delivery is
// fire-and-forget: a client whose buffer is full is disconnected.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHub builds a hub accepting browser connections from allowedOrigins.
// With no origins configured only same-host requests are accepted; "*"
// accepts any origin.
func NewHub(log *slog.Logger, allowedOrigins []string) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// originChecker returns nil for an empty list so the upgrader falls back to
// its same-origin check.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// Handle is a dispatcher Handler; register it with Dispatcher.Subscribe.
func (h *Hub) Handle(_ context.Context, ev StatusChange) error {
	h.mu.RLock()
	var slow []*wsClient
	for c := range h.clients {
		if !c.filter.match(ev) {
			continue
		}
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("ws client too slow, disconnecting")
		h.remove(c)
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams matching status changes until the
// client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, f Filter) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &wsClient{conn: conn, filter: f, send: make(chan StatusChange, wsSendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("ws connected", "entity", f.Entity, "room", f.Room)

	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

func (h *Hub) readLoop(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
