package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send pongs
	sendBufferSize = 256              // messages in each client send channel
)

// SnapshotFunc produces the welcome payload pushed to a client right after it
// registers. Round events are discrete, so a client connecting mid-round
// would otherwise see nothing until the next countdown tick.
type SnapshotFunc func() (payload []byte, ok bool)

// Client is one connected WebSocket endpoint. userID is uuid.Nil for
// anonymous viewers.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
}

// Hub fans round lifecycle events out to every connected client. The protocol
// is push-only: clients never send application frames, only pongs. Run() must
// be started in its own goroutine before ServeWs is wired into a route.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// jwtSecret authenticates the optional ?token= query parameter. Empty
	// secret means every connection is anonymous.
	jwtSecret []byte

	snapMu   sync.RWMutex
	snapshot SnapshotFunc

	upgrader websocket.Upgrader
}

// NewHub creates a Hub ready to be started with Run().
func NewHub(jwtSecret []byte, allowedOrigins []string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 512),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		jwtSecret:  jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true } // dev mode
	}
	set := make(map[string]bool, len(allowed))
	wildcard := false
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		return wildcard || set[r.Header.Get("Origin")]
	}
}

// SetSnapshot installs the current-round snapshot provider. Safe to call
// before or after Run.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.snapMu.Lock()
	h.snapshot = fn
	h.snapMu.Unlock()
}

// Run processes registration, unregistration, and broadcast events
// sequentially. Call it once as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.sendWelcome(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full: skip this client. A stalled connection is
					// torn down by its own write deadline.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// sendWelcome pushes the current-round snapshot to a freshly registered
// client, when a provider is installed.
func (h *Hub) sendWelcome(client *Client) {
	h.snapMu.RLock()
	fn := h.snapshot
	h.snapMu.RUnlock()
	if fn == nil {
		return
	}
	payload, ok := fn()
	if !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// ConnectedCount returns the number of connected clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs upgrades an HTTP request to a WebSocket connection. A valid JWT in
// the ?token= query parameter attaches the user id; anything else falls back
// to an anonymous viewer rather than rejecting the connection, since every
// broadcast is public round state.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "error", err)
		return
	}

	var userID uuid.UUID
	if token := r.URL.Query().Get("token"); token != "" && len(h.jwtSecret) > 0 {
		userID = h.parseJWT(token)
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// parseJWT extracts the subject UUID from a signed token, uuid.Nil on any
// failure.
func (h *Hub) parseJWT(tokenString string) uuid.UUID {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return uuid.Nil
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil
	}
	sub, _ := claims.GetSubject()
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// writePump drains the send channel onto the connection and keeps the link
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames so pong handling works; every application
// frame is discarded. The connection's death unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("ws: unexpected close", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast helpers — implement scheduler.WsHub and service.RoundNotifier
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastNewRound announces a newly created round.
func (h *Hub) BroadcastNewRound(msg NewRoundMessage) {
	h.broadcastJSON(msg)
}

// BroadcastCountdown pushes a countdown tick for the active round.
func (h *Hub) BroadcastCountdown(msg CountdownMessage) {
	h.broadcastJSON(msg)
}

// BroadcastRoundClosed announces that a round stopped accepting bets.
func (h *Hub) BroadcastRoundClosed(msg RoundClosedMessage) {
	h.broadcastJSON(msg)
}

// NotifyRoundSettled satisfies the service.RoundNotifier interface.
func (h *Hub) NotifyRoundSettled(roundID string, winningCard int, multiplier decimal.Decimal) {
	h.broadcastJSON(RoundSettledMessage{
		Type:        MsgTypeRoundSettled,
		RoundID:     roundID,
		WinningCard: winningCard,
		Multiplier:  multiplier,
		Timestamp:   time.Now().UTC(),
	})
}

// broadcastJSON is the common marshalling path.
func (h *Hub) broadcastJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("ws: marshal failed", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Warn("ws: broadcast channel full, message dropped")
	}
}
