// Package broadcast is the Broadcast Channel (C9): WebSocket fan-out of the
// current ArenaState to spectator clients. Grounded on the teacher's
// internal/websocket/hub.go Hub (register/unregister/broadcast channel
// select loop), generalized from a package-level global singleton into an
// owned, injectable Hub, and from opaque "type+data" messages into the
// single sanitized ArenaState blob §4.9 specifies.
package broadcast

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/arenahq/bot-arena/internal/database"
	"github.com/arenahq/bot-arena/internal/tradingengine"
)

const arenaStateChannel = "bot-arena:arena-state"

// Client wraps one connected spectator's outbound queue. A saturated queue
// gets the client dropped rather than blocking the scheduler (§4.9).
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the set of connected clients and the current ArenaState blob. The
// per-bot projection (bots, market) lives here rather than behind a
// package-level singleton, so a test or a second deployment can run its own
// isolated Hub.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex

	arenaState *database.ArenaStateRepository
	redis      *redis.Client

	bots   map[uint]botView
	market tradingengine.MarketSnapshot
}

func NewHub(arenaState *database.ArenaStateRepository) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		arenaState: arenaState,
		bots:       make(map[uint]botView),
	}
}

// WithRedis attaches an optional Redis pub/sub relay (§ config RedisAddr):
// every Publish also PUBLISHes to arenaStateChannel, and a background
// subscriber re-broadcasts what other processes publish to this hub's own
// local clients. Without it, fan-out is in-process only — fine for a single
// replica, insufficient once the API runs behind a load balancer with more
// than one instance.
func (h *Hub) WithRedis(client *redis.Client) *Hub {
	h.redis = client
	return h
}

// RunRedisSubscriber relays messages published by other processes into this
// hub's local broadcast channel. It never republishes what it receives, so
// N processes sharing one Redis instance don't echo forever.
func (h *Hub) RunRedisSubscriber(ctx context.Context) {
	if h.redis == nil {
		return
	}
	sub := h.redis.Subscribe(ctx, arenaStateChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case h.broadcast <- []byte(msg.Payload):
			default:
			}
		}
	}
}

// Run is the hub's single goroutine; call it once at startup.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			if blob, err := h.arenaState.Read(); err == nil && blob != "" {
				select {
				case c.send <- []byte(blob):
				default:
				}
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case blob := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- blob:
				default:
					// slow client: drop rather than block the scheduler.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish writes blob into the single ArenaState row and fans it out to
// every connected client (§4.9 steps a and b).
func (h *Hub) Publish(blob string) {
	if err := h.arenaState.Replace(blob); err != nil {
		log.Printf("[BROADCAST][WARN] failed to persist arena state: %v", err)
	}
	select {
	case h.broadcast <- []byte(blob):
	default:
		log.Printf("[BROADCAST][WARN] broadcast channel saturated, dropping tick")
	}
	if h.redis != nil {
		if err := h.redis.Publish(context.Background(), arenaStateChannel, blob).Err(); err != nil {
			log.Printf("[BROADCAST][WARN] redis publish failed: %v", err)
		}
	}
}

// Register adds a freshly-upgraded connection and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn) {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, 16)}
	h.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains and discards client messages — the contract requires no
// client→server messages (§6), but the read loop must still run so a
// closed connection is detected and unregistered promptly.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
