package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/innohub-chat/internal/dto"
	"github.com/thereayou/innohub-chat/internal/middleware"
	"github.com/thereayou/innohub-chat/internal/services"
)

type UserHandler struct {
	users  services.UserDirectory
	logger *slog.Logger
}

func NewUserHandler(users services.UserDirectory, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserInfo(user))
}

// GetUser returns another user's public profile (no email).
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	info := dto.NewUserInfo(user)
	if id != middleware.CurrentUserID(c) {
		info.Email = ""
	}
	c.JSON(http.StatusOK, info)
}
