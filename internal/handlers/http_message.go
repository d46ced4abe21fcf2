package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/innohub-chat/internal/dto"
	"github.com/thereayou/innohub-chat/internal/middleware"
	"github.com/thereayou/innohub-chat/internal/services"
)

const maxPageSize = 100

type HTTPMessageHandler struct {
	chat   *services.ChatService
	logger *slog.Logger
}

func NewHTTPMessageHandler(chat *services.ChatService, logger *slog.Logger) *HTTPMessageHandler {
	return &HTTPMessageHandler{chat: chat, logger: logger}
}

// GetRoomMessages returns room history oldest first. Without limit the whole
// history is returned; with it, the newest page older than before.
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxPageSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}

	var beforeID *uuid.UUID
	if before := c.Query("before"); before != "" {
		id, err := uuid.Parse(before)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before id"})
			return
		}
		beforeID = &id
	}

	// one extra row tells whether an older page exists
	fetch := limit
	if limit > 0 {
		fetch = limit + 1
	}

	messages, err := h.chat.GetHistory(c.Request.Context(), roomID, userID, fetch, beforeID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	hasMore := limit > 0 && len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": dto.NewMessageResponses(messages),
		"hasMore":  hasMore,
	})
}

// SendMessage is the REST twin of the websocket send_message event.
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	message, err := h.chat.SendMessage(c.Request.Context(), roomID, userID, req.Content, req.Attachments)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewMessageResponse(message))
}

func (h *HTTPMessageHandler) MarkRead(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	marked, err := h.chat.MarkRead(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "messages marked as read", "marked": marked})
}

func (h *HTTPMessageHandler) DeleteMessage(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.chat.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}
