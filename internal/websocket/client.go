package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Subscription frames are tiny
	maxMessageSize = 512

	// An agent dashboard watches a handful of team inboxes
	maxTeamsPerClient = 50
)

// ErrTooManyTeams is returned when a connection exceeds its subscription cap
var ErrTooManyTeams = errors.New("too many team subscriptions")

// Client is one agent connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	mu    sync.Mutex
	teams map[uint]struct{}
}

// NewClient creates a new Client instance
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
		teams:  make(map[uint]struct{}),
	}
}

// Subscribe adds a team's events to this connection's feed
func (c *Client) Subscribe(teamID uint) error {
	c.mu.Lock()
	if _, ok := c.teams[teamID]; !ok && len(c.teams) >= maxTeamsPerClient {
		c.mu.Unlock()
		return fmt.Errorf("%w (max %d)", ErrTooManyTeams, maxTeamsPerClient)
	}
	c.teams[teamID] = struct{}{}
	c.mu.Unlock()

	c.hub.Subscribe(c, teamID)
	return nil
}

// Unsubscribe stops a team's events on this connection
func (c *Client) Unsubscribe(teamID uint) {
	c.mu.Lock()
	delete(c.teams, teamID)
	c.mu.Unlock()

	c.hub.Unsubscribe(c, teamID)
}

// Teams returns how many teams this connection follows
func (c *Client) Teams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.teams)
}

// ReadPump reads subscription frames until the connection closes
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				if c.logger != nil {
					c.logger.Error("websocket read error", slog.Any("error", err))
				}
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes queued events and keeps the connection alive with pings
func (c *Client) WritePump() {
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
				// unregistered by the hub
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

func (c *Client) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		if msg.TeamID == 0 {
			c.sendError("team_id is required")
			return
		}
		if err := c.Subscribe(msg.TeamID); err != nil {
			c.sendError(err.Error())
			return
		}
		c.queue(WSMessage{Type: MessageTypeSubscribed, TeamID: msg.TeamID})

	case MessageTypeUnsubscribe:
		if msg.TeamID == 0 {
			c.sendError("team_id is required")
			return
		}
		c.Unsubscribe(msg.TeamID)
		c.queue(WSMessage{Type: MessageTypeUnsubscribed, TeamID: msg.TeamID})

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) sendError(errMsg string) {
	c.queue(WSMessage{Type: MessageTypeError, Error: errMsg})
}

// queue drops the frame when the client is not keeping up
func (c *Client) queue(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
	}
}
