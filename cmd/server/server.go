package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/innohub-chat/internal/config"
	"github.com/thereayou/innohub-chat/internal/database"
	"github.com/thereayou/innohub-chat/internal/handlers"
	"github.com/thereayou/innohub-chat/internal/middleware"
	"github.com/thereayou/innohub-chat/internal/ratelimit"
	"github.com/thereayou/innohub-chat/internal/services"
	"github.com/thereayou/innohub-chat/internal/websocket"
	"github.com/thereayou/innohub-chat/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Hub        *websocket.Hub
	JWTManager *auth.JWTManager
	Auth       *services.AuthService
	Chat       *services.ChatService

	cfg    *config.Config
	logger *slog.Logger
}

// NewServer connects to Postgres (or SQLite) and Redis and wires every
// component.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connect failed: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}

	var limiter services.RateLimiter
	if cfg.MessageRateLimit > 0 {
		limiter = ratelimit.NewMessageLimiter(rdb, cfg.MessageRateLimit, cfg.MessageRateWindow, logger)
	}

	s := newServer(cfg, logger, db, auth.NewRedisBlacklist(rdb), limiter)
	s.Redis = rdb
	return s, nil
}

func newServer(cfg *config.Config, logger *slog.Logger, db *database.Database, blacklist services.TokenBlacklist, limiter services.RateLimiter) *Server {
	hub := websocket.NewHub(logger, cfg.WSSendBuffer)
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration)

	opts := []services.ChatOption{services.WithMaxContentLength(cfg.MaxContentLength)}
	if limiter != nil {
		opts = append(opts, services.WithRateLimiter(limiter))
	}

	authSvc := services.NewAuthService(db, jwtMgr, blacklist, logger)
	chatSvc := services.NewChatService(db, db, hub, logger, opts...)

	s := &Server{
		DB:         db,
		Hub:        hub,
		JWTManager: jwtMgr,
		Auth:       authSvc,
		Chat:       chatSvc,
		cfg:        cfg,
		logger:     logger,
	}

	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	messageHandler := handlers.NewMessageHandler(chatSvc, hub, cfg.RequestTimeout, logger)
	APIEndpoints(router, authSvc, endpoints{
		auth:      handlers.NewAuthHandler(authSvc, logger),
		users:     handlers.NewUserHandler(db, logger),
		rooms:     handlers.NewRoomHandler(chatSvc, logger),
		messages:  handlers.NewHTTPMessageHandler(chatSvc, logger),
		websocket: handlers.NewWebSocketHandler(hub, messageHandler, logger),
		health:    s.health,
	})
	s.Router = router

	return s
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "connections": s.Hub.ConnectionCount()}
	code := http.StatusOK

	if err := s.DB.Ping(ctx); err != nil {
		status["status"], status["database"] = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			status["status"], status["redis"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, status)
}

// Run serves until ctx is cancelled, then drains HTTP requests and closes
// every live connection.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.Hub.Stop()
	return err
}

func (s *Server) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if err := s.DB.Close(); err != nil {
		s.logger.Warn("database close failed", "error", err)
	}
}
