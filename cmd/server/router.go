package main

import (
	"github.com/gin-gonic/gin"
	"github.com/thereayou/innohub-chat/internal/handlers"
	"github.com/thereayou/innohub-chat/internal/metrics"
	"github.com/thereayou/innohub-chat/internal/middleware"
)

type endpoints struct {
	auth      *handlers.AuthHandler
	users     *handlers.UserHandler
	rooms     *handlers.RoomHandler
	messages  *handlers.HTTPMessageHandler
	websocket *handlers.WebSocketHandler
	health    gin.HandlerFunc
}

func APIEndpoints(r *gin.Engine, authenticator middleware.Authenticator, h endpoints) {
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	requireAuth := middleware.AuthMiddleware(authenticator)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", h.auth.Register)
		auth.POST("/login", h.auth.Login)
		auth.POST("/logout", requireAuth, h.auth.Logout)
	}

	users := r.Group("/api/users", requireAuth)
	{
		users.GET("/me", h.users.GetMe)
		users.GET("/:id", h.users.GetUser)
	}

	chat := r.Group("/api/chat", requireAuth)
	{
		chat.POST("/room", h.rooms.CreateRoom)
		chat.GET("/rooms", h.rooms.ListRooms)
		chat.GET("/messages/:roomId", h.messages.GetRoomMessages)
		chat.POST("/message", h.messages.SendMessage)
		chat.PUT("/read/:roomId", h.messages.MarkRead)
		chat.DELETE("/message/:messageId", h.messages.DeleteMessage)
	}

	r.GET("/ws", middleware.WSAuthMiddleware(authenticator), h.websocket.HandleWebSocket)
}
