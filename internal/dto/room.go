package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/innohub-chat/internal/models"
)

type CreateRoomRequest struct {
	OtherUserID string `json:"otherUserId" binding:"required,uuid"`
}

type RoomResponse struct {
	ID               uuid.UUID        `json:"id"`
	Participants     []UserInfo       `json:"participants"`
	OtherParticipant *UserInfo        `json:"otherParticipant,omitempty"`
	LastMessage      *MessageResponse `json:"lastMessage,omitempty"`
	UnreadCount      int64            `json:"unreadCount"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// NewRoomResponse renders room as seen by viewer.
func NewRoomResponse(room *models.Room, viewer uuid.UUID) RoomResponse {
	initiator := participantInfo(room.InitiatorID, &room.Initiator)
	recipient := participantInfo(room.RecipientID, &room.Recipient)

	resp := RoomResponse{
		ID:           room.ID,
		Participants: []UserInfo{initiator, recipient},
		CreatedAt:    room.CreatedAt,
		UpdatedAt:    room.UpdatedAt,
	}

	switch viewer {
	case room.InitiatorID:
		resp.OtherParticipant = &recipient
	case room.RecipientID:
		resp.OtherParticipant = &initiator
	}

	return resp
}

func participantInfo(id uuid.UUID, u *models.User) UserInfo {
	if u.ID == uuid.Nil {
		return UserInfo{ID: id}
	}
	return NewUserInfo(u)
}
