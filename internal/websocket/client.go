package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

// ClientMessageHandler processes client -> server events other than
// ping/pong. A returned error is reported back to the client.
type ClientMessageHandler interface {
	HandleMessage(client *Client, msg *Message) error
}

// Client is one live connection bound to the user authenticated at connect
// time.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Rooms  map[uuid.UUID]bool
	Hub    *Hub
	mu     sync.RWMutex
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, hub.sendBuffer),
		Rooms:  make(map[uuid.UUID]bool),
		Hub:    hub,
	}
}

// ReadPump reads events until the connection fails, then releases every
// subscription of the client.
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Info("websocket closed unexpectedly", "client_id", c.ID, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
			c.SendError(ErrInvalidMessage.Error())
			continue
		}

		msg.UserID = c.UserID

		switch msg.Type {
		case TypePong:
			continue
		case TypePing:
			c.SendMessage(TypePong, nil, nil)
			continue
		}

		if handler == nil {
			continue
		}
		if err := handler.HandleMessage(c, &msg); err != nil {
			c.Hub.logger.Debug("websocket event failed", "client_id", c.ID, "type", msg.Type, "error", err)
			c.SendError(err.Error())
		}
	}
}

// WritePump drains the send queue onto the socket and keeps it alive with
// pings. It exits when the hub closes the queue or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues an event for this connection only.
func (c *Client) SendMessage(msgType MessageType, roomID *uuid.UUID, data interface{}) error {
	msg := Message{
		Type:      msgType,
		RoomID:    roomID,
		UserID:    c.UserID,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = jsonData
	}

	msgData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return c.Hub.deliver(c, msgData)
}

func (c *Client) SendError(errorMsg string) {
	c.SendMessage(TypeError, nil, map[string]string{
		"error": errorMsg,
	})
}

func (c *Client) isInRoom(roomID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Rooms[roomID]
}

// roomIDs snapshots the rooms the client is subscribed to.
func (c *Client) roomIDs() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]uuid.UUID, 0, len(c.Rooms))
	for roomID := range c.Rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}
