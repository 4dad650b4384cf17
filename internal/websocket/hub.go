package websocket

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Message types for real-time updates
const (
	MessageTypeMedicationUpdate = "medication_update"
	MessageTypeScheduleUpdate   = "schedule_update"
	MessageTypeDoseTimeUpdate   = "time_update"
	MessageTypeIntakeLogged     = "intake_logged"
	MessageTypeReminderFired    = "reminder_fired"
)

// Actions carried by entity update messages
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Message is the envelope pushed to clients. UserID only routes the
// message inside the hub; everything is delivered to the owner's own
// connections and never crosses users.
type Message struct {
	Type   string      `json:"type"`
	Action string      `json:"action,omitempty"`
	Data   interface{} `json:"data"`
	Time   int64       `json:"time"`
	UserID string      `json:"-"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	UserID string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan Message
}

// Hub maintains the set of active clients and routes messages to them
type Hub struct {
	// Registered clients by user ID
	Clients map[string]map[*Client]bool

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Broadcast channel for outgoing messages
	Broadcast chan Message

	mutex sync.RWMutex
	log   zerolog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Message),
		log:        log.With().Str("component", "websocket").Logger(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.Broadcast:
			h.broadcastToUser(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.Clients[client.UserID] == nil {
		h.Clients[client.UserID] = make(map[*Client]bool)
	}
	h.Clients[client.UserID][client] = true

	h.log.Debug().Str("client_id", client.ID).Str("user_id", client.UserID).
		Int("connections", len(h.Clients[client.UserID])).Msg("client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if clients, ok := h.Clients[client.UserID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.Send)

			if len(clients) == 0 {
				delete(h.Clients, client.UserID)
			}

			h.log.Debug().Str("client_id", client.ID).Str("user_id", client.UserID).
				Int("connections", len(clients)).Msg("client unregistered")
		}
	}
}

// broadcastToUser delivers a message to every connection of the target
// user, dropping connections that cannot keep up. Takes the write lock
// because eviction mutates the client map.
func (h *Hub) broadcastToUser(message Message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if clients, ok := h.Clients[message.UserID]; ok {
		for client := range clients {
			select {
			case client.Send <- message:
			default:
				// Too slow to keep up. Closing the connection unwinds
				// both pumps; the send channel stays open so nothing
				// can write to a closed channel.
				client.Conn.Close()
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.Clients, message.UserID)
				}
			}
		}
	}
}

// SendEntityUpdate pushes a created/updated/deleted event for one of the
// user's entities.
func (h *Hub) SendEntityUpdate(userID, messageType, action string, data interface{}) {
	h.Broadcast <- Message{
		Type:   messageType,
		Action: action,
		Data:   data,
		Time:   time.Now().Unix(),
		UserID: userID,
	}
}

// SendReminderFired pushes a fired reminder to the user's connections.
func (h *Hub) SendReminderFired(userID string, data interface{}) {
	h.Broadcast <- Message{
		Type:   MessageTypeReminderFired,
		Data:   data,
		Time:   time.Now().Unix(),
		UserID: userID,
	}
}

// ConnectionCount reports how many connections a user currently has.
func (h *Hub) ConnectionCount(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.Clients[userID])
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(c *gin.Context, userID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		ID:     generateClientID(),
		UserID: userID,
		Hub:    h,
		Conn:   conn,
		Send:   make(chan Message, 256),
	}

	h.Register <- client

	go client.writePump()
	go client.readPump()
}

// generateClientID creates a unique client ID
func generateClientID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "client_" + hex.EncodeToString(bytes)
}
