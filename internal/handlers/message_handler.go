package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/thereayou/innohub-chat/internal/apperrors"
	"github.com/thereayou/innohub-chat/internal/dto"
	"github.com/thereayou/innohub-chat/internal/services"
	"github.com/thereayou/innohub-chat/internal/websocket"
)

// MessageHandler dispatches client -> server websocket events. Every event
// that changes state goes through ChatService, which persists first and then
// publishes to the room channel.
type MessageHandler struct {
	chat    *services.ChatService
	hub     *websocket.Hub
	timeout time.Duration
	logger  *slog.Logger
}

func NewMessageHandler(chat *services.ChatService, hub *websocket.Hub, timeout time.Duration, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{chat: chat, hub: hub, timeout: timeout, logger: logger}
}

func (h *MessageHandler) HandleMessage(client *websocket.Client, msg *websocket.Message) error {
	if msg.RoomID == nil {
		return fmt.Errorf("%w: room_id is required", apperrors.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	switch msg.Type {
	case websocket.TypeJoinRoom:
		return h.handleJoinRoom(ctx, client, msg)
	case websocket.TypeLeaveRoom:
		h.hub.LeaveRoom(client, *msg.RoomID)
		return client.SendMessage(websocket.TypeLeft, msg.RoomID, nil)
	case websocket.TypeSendMessage:
		return h.handleSendMessage(ctx, client, msg)
	case websocket.TypeMarkRead:
		_, err := h.chat.MarkRead(ctx, *msg.RoomID, client.UserID)
		return err
	default:
		return fmt.Errorf("%w: %s", websocket.ErrUnknownMessageType, msg.Type)
	}
}

// handleJoinRoom subscribes the connection only if its user belongs to the
// room.
func (h *MessageHandler) handleJoinRoom(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	room, err := h.chat.ParticipantRoom(ctx, *msg.RoomID, client.UserID)
	if err != nil {
		return err
	}

	if !h.hub.JoinRoom(client, room.ID) {
		return websocket.ErrClientClosed
	}
	return client.SendMessage(websocket.TypeJoined, &room.ID, nil)
}

// handleSendMessage stores the message; the sender sees it through the room
// broadcast like everyone else.
func (h *MessageHandler) handleSendMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload dto.MessagePayload
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return websocket.ErrInvalidMessage
		}
	}

	_, err := h.chat.SendMessage(ctx, *msg.RoomID, client.UserID, payload.Content, payload.Attachments)
	return err
}
