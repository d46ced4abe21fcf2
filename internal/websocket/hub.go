package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/innohub-chat/internal/metrics"
)

// MessageType is the discriminator of the websocket envelope.
type MessageType string

const (
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"

	// client -> server
	TypeJoinRoom    MessageType = "join_room"
	TypeLeaveRoom   MessageType = "leave_room"
	TypeSendMessage MessageType = "send_message"
	TypeMarkRead    MessageType = "mark_read"

	// server -> client
	TypeJoined MessageType = "joined"
	TypeLeft   MessageType = "left"
	TypeError  MessageType = "error"
)

type Message struct {
	Type      MessageType     `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

const defaultSendBuffer = 256

// Hub is the connection registry and the room channel fan-out. All state is
// guarded by mu; a client's room set is only changed with mu held.
type Hub struct {
	clients map[uuid.UUID]*Client

	// one user may hold several connections
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	rooms map[uuid.UUID]map[uuid.UUID]*Client

	sendBuffer int
	logger     *slog.Logger
	mu         sync.RWMutex
}

func NewHub(logger *slog.Logger, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:       make(map[uuid.UUID]map[uuid.UUID]*Client),
		sendBuffer:  sendBuffer,
		logger:      logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client

	metrics.ConnectionsActive.Inc()
	h.logger.Debug("client registered", "client_id", client.ID, "user_id", client.UserID)
}

// Unregister drops the client from every room it joined and closes its send
// queue. Calling it more than once is harmless.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, roomID := range client.roomIDs() {
		h.removeFromRoomUnsafe(client, roomID)
	}

	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)

	metrics.ConnectionsActive.Dec()
	h.logger.Debug("client unregistered", "client_id", client.ID, "user_id", client.UserID)
}

// JoinRoom subscribes client to the room channel. It reports false when the
// client is no longer registered.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}

	if client.isInRoom(roomID) {
		return true
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}

	h.rooms[roomID][client.ID] = client
	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()

	metrics.RoomSubscriptions.Inc()
	return true
}

func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomUnsafe(client, roomID)
}

func (h *Hub) removeFromRoomUnsafe(client *Client, roomID uuid.UUID) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := room[client.ID]; !ok {
		return
	}

	delete(room, client.ID)
	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()

	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	metrics.RoomSubscriptions.Dec()
}

// Publish wraps payload in an envelope of type event and pushes it to every
// connection subscribed to roomID. It never fails the caller: encoding
// errors and full queues are logged and dropped.
func (h *Hub) Publish(roomID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode broadcast payload", "room_id", roomID, "event", event, "error", err)
		return
	}

	msg := Message{
		Type:      MessageType(event),
		RoomID:    &roomID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode broadcast envelope", "room_id", roomID, "event", event, "error", err)
		return
	}

	h.SendToRoom(roomID, encoded)
}

// SendToRoom pushes raw bytes to the room's subscribers and returns how many
// queues accepted them.
func (h *Hub) SendToRoom(roomID uuid.UUID, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.rooms[roomID] {
		select {
		case client.Send <- message:
			delivered++
		default:
			metrics.BroadcastsDropped.Inc()
			h.logger.Warn("client send queue full, dropping push", "client_id", client.ID, "room_id", roomID)
		}
	}
	return delivered
}

// deliver queues message for a single client if it is still registered.
func (h *Hub) deliver(client *Client, message []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.ID]; !ok {
		return ErrClientClosed
	}
	select {
	case client.Send <- message:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (h *Hub) RoomSubscribers(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop unregisters every client. Their write pumps see the closed queue,
// send a close frame and shut the socket.
func (h *Hub) Stop() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}
