package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/innohub-chat/internal/models"
)

// UserDirectory is the identity collaborator: it resolves user ids to
// accounts and display names.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type UserStore interface {
	UserDirectory
	SaveUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
}

// ChatStore is the Room Directory and Message Store.
type ChatStore interface {
	InsertRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	FindRoomByPair(ctx context.Context, a, b uuid.UUID) (*models.Room, error)
	GetUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
	CountUnread(ctx context.Context, userID uuid.UUID, roomIDs []uuid.UUID) (map[uuid.UUID]int64, error)

	AppendMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	GetMessagesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error)
	GetRoomMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeID *uuid.UUID) ([]models.Message, error)
	MarkRoomRead(ctx context.Context, roomID, userID uuid.UUID) (int64, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
}

// RateLimiter throttles message sends per user.
type RateLimiter interface {
	AllowMessage(ctx context.Context, userID uuid.UUID) (bool, error)
}
