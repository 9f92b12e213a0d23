package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"weaponwatch-server-go/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// FeedMessage is the envelope pushed to dashboard clients whenever the site
// record they watch changes.
type FeedMessage struct {
	Type      string      `json:"type"`
	SiteID    string      `json:"site_id"`
	Data      models.Site `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is one dashboard connection, subscribed to a single site.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	siteID string
}

// Hub fans site record changes out to connected dashboard clients. It is one
// of the sinks behind the store's changefeed, so every conditional write that
// lands in the database also lands on every open dashboard within a push.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan FeedMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	logger     zerolog.Logger

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan FeedMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log.With().Str("service", "feed").Logger(),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop until Shutdown.
func (h *Hub) Start() {
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info().Str("site_id", client.siteID).Int("clients", total).Msg("Feed client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info().Str("site_id", client.siteID).Int("clients", total).Msg("Feed client disconnected")

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error().Err(err).Msg("Failed to serialize feed message")
				continue
			}
			h.mutex.Lock()
			for client := range h.clients {
				if client.siteID != message.SiteID {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Slow consumer; drop the connection rather than
					// stall every other dashboard.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Shutdown closes every client connection and stops the hub loop.
func (h *Hub) Shutdown(ctx context.Context) error {
	close(h.done)
	return nil
}

// SiteChanged implements the store changefeed sink: push the new snapshot to
// every dashboard watching that site.
func (h *Hub) SiteChanged(change models.SiteChange) {
	msg := FeedMessage{
		Type:      "site",
		SiteID:    change.Current.ID,
		Data:      change.Current,
		Timestamp: change.At,
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn().Str("site_id", change.Current.ID).Msg("Feed broadcast queue full, dropping update")
	}
}

// ClientCount returns the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RegisterClient attaches an upgraded connection to the hub, watching one
// site, and starts its pumps.
func (h *Hub) RegisterClient(conn *websocket.Conn, siteID string) {
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 64),
		siteID: siteID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so control frames are processed; incoming
// application data from dashboards is ignored.
func (c *Client) readPump() {
	defer func() {
		// The hub loop stops reading unregister once shutdown begins; a
		// client disconnecting at that point must not hang here.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str("site_id", c.siteID).Msg("Feed read error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
