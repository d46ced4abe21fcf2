package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/thereayou/innohub-chat/internal/apperrors"
	"github.com/thereayou/innohub-chat/internal/dto"
	"github.com/thereayou/innohub-chat/internal/metrics"
	"github.com/thereayou/innohub-chat/internal/models"
)

const (
	DefaultMaxContentLength = 2000
	MaxAttachments          = 10
)

var validate = validator.New()

// ChatService is the room resolver and the message read/write paths.
// Writes are persisted first and only then handed to the broadcaster.
type ChatService struct {
	store       ChatStore
	users       UserDirectory
	broadcaster Broadcaster
	limiter     RateLimiter
	maxContent  int
	logger      *slog.Logger
}

type ChatOption func(*ChatService)

func WithRateLimiter(l RateLimiter) ChatOption {
	return func(s *ChatService) { s.limiter = l }
}

func WithMaxContentLength(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.maxContent = n
		}
	}
}

func NewChatService(store ChatStore, users UserDirectory, broadcaster Broadcaster, logger *slog.Logger, opts ...ChatOption) *ChatService {
	s := &ChatService{
		store:       store,
		users:       users,
		broadcaster: broadcaster,
		maxContent:  DefaultMaxContentLength,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RoomSummary is a room with what a room list needs to render it.
type RoomSummary struct {
	Room        models.Room
	LastMessage *models.Message
	UnreadCount int64
}

// FindOrCreateRoom returns the unique room for the pair, creating it on first
// contact. Concurrent callers for the same pair all get the same room: the
// loser of the insert race reads the winner's row back.
func (s *ChatService) FindOrCreateRoom(ctx context.Context, userA, userB uuid.UUID) (*models.Room, error) {
	if userA == uuid.Nil || userB == uuid.Nil {
		return nil, fmt.Errorf("%w: participant id is required", apperrors.ErrInvalidArgument)
	}
	if userA == userB {
		return nil, fmt.Errorf("%w: cannot open a room with yourself", apperrors.ErrInvalidArgument)
	}

	for _, id := range []uuid.UUID{userA, userB} {
		if _, err := s.users.GetUser(ctx, id); err != nil {
			return nil, err
		}
	}

	room, err := s.store.FindRoomByPair(ctx, userA, userB)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	candidate := models.NewRoom(userA, userB)
	err = s.store.InsertRoom(ctx, candidate)
	switch {
	case err == nil:
		s.logger.Info("room created", "room_id", candidate.ID, "initiator", userA, "recipient", userB)
		return s.store.GetRoom(ctx, candidate.ID)
	case errors.Is(err, apperrors.ErrConflict):
		s.logger.Debug("room creation raced, reusing existing room", "initiator", userA, "recipient", userB)
		return s.store.FindRoomByPair(ctx, userA, userB)
	default:
		return nil, err
	}
}

// ParticipantRoom loads a room and checks that userID belongs to it.
func (s *ChatService) ParticipantRoom(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: user %s is not a participant of room %s", apperrors.ErrForbidden, userID, roomID)
	}
	return room, nil
}

// ListRooms returns userID's rooms, most recently active first.
func (s *ChatService) ListRooms(ctx context.Context, userID uuid.UUID) ([]RoomSummary, error) {
	rooms, err := s.store.GetUserRooms(ctx, userID)
	if err != nil {
		return nil, err
	}

	roomIDs := lo.Map(rooms, func(r models.Room, _ int) uuid.UUID { return r.ID })
	lastIDs := lo.FilterMap(rooms, func(r models.Room, _ int) (uuid.UUID, bool) {
		if r.LastMessageID == nil {
			return uuid.Nil, false
		}
		return *r.LastMessageID, true
	})

	lastMessages, err := s.store.GetMessagesByIDs(ctx, lastIDs)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnread(ctx, userID, roomIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, len(rooms))
	for i, room := range rooms {
		summaries[i] = RoomSummary{Room: room, UnreadCount: unread[room.ID]}
		if room.LastMessageID != nil {
			if m, ok := lastMessages[*room.LastMessageID]; ok {
				summaries[i].LastMessage = &m
			}
		}
	}
	return summaries, nil
}

// SendMessage is the write path: validate, persist (message, sender read
// mark and room pointer together), then broadcast the stored message.
func (s *ChatService) SendMessage(ctx context.Context, roomID, senderID uuid.UUID, content string, attachments []dto.AttachmentInput) (*models.Message, error) {
	room, err := s.ParticipantRoom(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if err := s.validateMessage(content, attachments); err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.AllowMessage(ctx, senderID)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", "user_id", senderID, "error", err)
		}
		if !allowed {
			metrics.MessagesTotal.WithLabelValues("rate_limited").Inc()
			return nil, fmt.Errorf("%w: too many messages", apperrors.ErrRateLimited)
		}
	}

	message := &models.Message{
		RoomID:   room.ID,
		SenderID: senderID,
		Content:  content,
		Attachments: lo.Map(attachments, func(a dto.AttachmentInput, _ int) models.Attachment {
			return models.Attachment{Kind: a.Kind, URL: a.URL, Filename: a.Filename, Size: a.Size}
		}),
	}

	start := time.Now()
	if err := s.store.AppendMessage(ctx, message); err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.MessagePersistLatency.Observe(time.Since(start).Seconds())
	metrics.MessagesTotal.WithLabelValues("sent").Inc()

	saved, err := s.store.GetMessage(ctx, message.ID)
	if err != nil {
		s.logger.Warn("reload of stored message failed", "message_id", message.ID, "error", err)
		saved = message
	}

	s.broadcaster.Publish(room.ID, EventNewMessage, dto.NewMessageResponse(saved))

	return saved, nil
}

func (s *ChatService) validateMessage(content string, attachments []dto.AttachmentInput) error {
	if content == "" && len(attachments) == 0 {
		return fmt.Errorf("%w: message content is empty", apperrors.ErrInvalidArgument)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: message contains invalid UTF-8", apperrors.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > s.maxContent {
		return fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrInvalidArgument, s.maxContent)
	}
	if len(attachments) > MaxAttachments {
		return fmt.Errorf("%w: at most %d attachments", apperrors.ErrInvalidArgument, MaxAttachments)
	}
	for i, a := range attachments {
		if err := validate.Struct(a); err != nil {
			return fmt.Errorf("%w: attachment %d: %v", apperrors.ErrInvalidArgument, i, err)
		}
	}
	return nil
}

// GetHistory returns the room's messages oldest first. limit <= 0 means all.
func (s *ChatService) GetHistory(ctx context.Context, roomID, requesterID uuid.UUID, limit int, beforeID *uuid.UUID) ([]models.Message, error) {
	if _, err := s.ParticipantRoom(ctx, roomID, requesterID); err != nil {
		return nil, err
	}
	return s.store.GetRoomMessages(ctx, roomID, limit, beforeID)
}

// MarkRead adds requesterID to readBy of every message in the room. Calling
// it again with nothing new to mark is a no-op.
func (s *ChatService) MarkRead(ctx context.Context, roomID, requesterID uuid.UUID) (int64, error) {
	if _, err := s.ParticipantRoom(ctx, roomID, requesterID); err != nil {
		return 0, err
	}

	marked, err := s.store.MarkRoomRead(ctx, roomID, requesterID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	if marked > 0 {
		s.broadcaster.Publish(roomID, EventMessagesRead, dto.MessagesReadEvent{
			RoomID: roomID,
			UserID: requesterID,
			Marked: marked,
		})
	}
	return marked, nil
}

// DeleteMessage removes a message; only its sender may do so.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, requesterID uuid.UUID) error {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != requesterID {
		return fmt.Errorf("%w: only the sender can delete message %s", apperrors.ErrForbidden, messageID)
	}

	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return err
	}

	s.broadcaster.Publish(message.RoomID, EventMessageDeleted, dto.MessageDeletedEvent{
		MessageID: messageID,
		RoomID:    message.RoomID,
	})
	return nil
}
