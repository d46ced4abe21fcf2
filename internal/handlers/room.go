package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/thereayou/innohub-chat/internal/dto"
	"github.com/thereayou/innohub-chat/internal/middleware"
	"github.com/thereayou/innohub-chat/internal/services"
)

type RoomHandler struct {
	chat   *services.ChatService
	logger *slog.Logger
}

func NewRoomHandler(chat *services.ChatService, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{chat: chat, logger: logger}
}

// CreateRoom returns the caller's room with otherUserId, opening it on first
// contact.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	otherID, err := uuid.Parse(req.OtherUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	room, err := h.chat.FindOrCreateRoom(c.Request.Context(), userID, otherID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRoomResponse(room, userID))
}

// ListRooms returns the caller's rooms, most recently active first.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	summaries, err := h.chat.ListRooms(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	rooms := lo.Map(summaries, func(s services.RoomSummary, _ int) dto.RoomResponse {
		resp := dto.NewRoomResponse(&s.Room, userID)
		resp.UnreadCount = s.UnreadCount
		if s.LastMessage != nil {
			last := dto.NewMessageResponse(s.LastMessage)
			resp.LastMessage = &last
		}
		return resp
	})

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}
