// Package websocket pushes inbox events to connected agents, grouped by team.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType is the type of a WebSocket frame
type MessageType string

const (
	MessageTypeSubscribe        MessageType = "subscribe"
	MessageTypeUnsubscribe      MessageType = "unsubscribe"
	MessageTypeSubscribed       MessageType = "subscribed"
	MessageTypeUnsubscribed     MessageType = "unsubscribed"
	MessageTypeNewMessage       MessageType = "new_message"
	MessageTypeThreadClassified MessageType = "thread_classified"
	MessageTypeError            MessageType = "error"
)

// WSMessage is the envelope of every frame
type WSMessage struct {
	Type    MessageType `json:"type"`
	TeamID  uint        `json:"team_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewMessagePayload announces an ingested message
type NewMessagePayload struct {
	ThreadID    uint   `json:"thread_id"`
	MessageID   uint   `json:"message_id"`
	IsNewThread bool   `json:"is_new_thread"`
	SenderEmail string `json:"sender_email"`
	SenderName  string `json:"sender_name,omitempty"`
	Subject     string `json:"subject,omitempty"`
	ReceivedAt  string `json:"received_at"`
}

// ThreadClassifiedPayload announces a classification stored on a thread
type ThreadClassifiedPayload struct {
	ThreadID   uint    `json:"thread_id"`
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// Hub tracks connected clients and their team subscriptions
type Hub struct {
	clients map[*Client]bool

	// teamID -> subscribed clients
	subscriptions map[uint]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest
	broadcast   chan *broadcastMessage

	mu     sync.RWMutex
	logger *slog.Logger
}

type subscriptionRequest struct {
	client *Client
	teamID uint
}

type broadcastMessage struct {
	teamID  uint
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[uint]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest),
		unsubscribe:   make(chan *subscriptionRequest),
		broadcast:     make(chan *broadcastMessage, 256),
		logger:        logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for teamID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, teamID)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.teamID] == nil {
				h.subscriptions[req.teamID] = make(map[*Client]bool)
			}
			h.subscriptions[req.teamID][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to team", slog.Uint64("team_id", uint64(req.teamID)))
			}

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.teamID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.teamID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.subscriptions[msg.teamID] {
				select {
				case client.send <- msg.message:
				default:
					// slow client, drop the frame
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe subscribes a client to a team's events
func (h *Hub) Subscribe(client *Client, teamID uint) {
	h.subscribe <- &subscriptionRequest{client: client, teamID: teamID}
}

// Unsubscribe removes a client from a team's events
func (h *Hub) Unsubscribe(client *Client, teamID uint) {
	h.unsubscribe <- &subscriptionRequest{client: client, teamID: teamID}
}

// SubscriberCount returns the number of clients subscribed to a team
func (h *Hub) SubscriberCount(teamID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[teamID])
}

// BroadcastNewMessage notifies team subscribers of an ingested message
func (h *Hub) BroadcastNewMessage(teamID uint, payload *NewMessagePayload) {
	h.publish(teamID, MessageTypeNewMessage, payload)
}

// BroadcastThreadClassified notifies team subscribers of a classification
func (h *Hub) BroadcastThreadClassified(teamID uint, payload *ThreadClassifiedPayload) {
	h.publish(teamID, MessageTypeThreadClassified, payload)
}

// publish never blocks the caller; frames are dropped when the hub is backed up
func (h *Hub) publish(teamID uint, typ MessageType, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: typ, TeamID: teamID, Payload: payload})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{teamID: teamID, message: data}:
	default:
		if h.logger != nil {
			h.logger.Warn("broadcast queue full, event dropped",
				slog.String("type", string(typ)),
				slog.Uint64("team_id", uint64(teamID)))
		}
	}
}
