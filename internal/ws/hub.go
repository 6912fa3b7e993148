package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"messenger/internal/chat"
	"messenger/internal/models"
	"messenger/internal/observability"
)

const writeWait = 10 * time.Second

// Client is one websocket connection and the realtime subscription it owns.
type Client struct {
	conn *websocket.Conn
	info ConnInfo
	sub  *chat.Subscriber

	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, info ConnInfo, sub *chat.Subscriber) *Client {
	return &Client{conn: conn, info: info, sub: sub}
}

// send writes ev to the connection. Writes are serialised because the
// subscription callback and the read loop both reply on the same socket.
func (c *Client) send(ev models.ChatEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

// Hub tracks open connections by the chat they are watching.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]struct{}
	chats map[*Client]uuid.UUID
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[*Client]struct{}),
		chats: make(map[*Client]uuid.UUID),
	}
}

// Join moves client into the room of chatID, leaving any previous room.
func (h *Hub) Join(client *Client, chatID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client)
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*Client]struct{})
	}
	h.rooms[chatID][client] = struct{}{}
	h.chats[client] = chatID
	observability.SetWSWatchedChats(len(h.rooms))
}

// Leave removes client from its room but keeps it registered.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client)
	h.chats[client] = uuid.Nil
	observability.SetWSWatchedChats(len(h.rooms))
}

// Add registers a connection that is not watching any chat yet.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chats[client]; !ok {
		h.chats[client] = uuid.Nil
	}
}

// Remove forgets client entirely.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client)
	delete(h.chats, client)
	observability.SetWSWatchedChats(len(h.rooms))
}

func (h *Hub) leaveLocked(client *Client) {
	chatID, ok := h.chats[client]
	if !ok || chatID == uuid.Nil {
		return
	}
	if conns, ok := h.rooms[chatID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chats)
}

// Rooms returns how many chats have at least one watcher.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Watchers returns how many connections are watching chatID.
func (h *Hub) Watchers(chatID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// CloseAll sends a going-away close frame to every connection. Their read
// loops then clean up.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.chats))
	for client := range h.chats {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		client.writeMu.Lock()
		_ = client.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		client.writeMu.Unlock()
		_ = client.conn.Close()
	}
}
