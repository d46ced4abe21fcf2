package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/thereayou/innohub-chat/internal/models"
)

// AttachmentInput describes an already uploaded image or file.
type AttachmentInput struct {
	Kind     string `json:"kind" validate:"required,oneof=image file"`
	URL      string `json:"url" validate:"required,url"`
	Filename string `json:"filename" validate:"max=255"`
	Size     int64  `json:"size" validate:"gte=0"`
}

type SendMessageRequest struct {
	RoomID      string            `json:"roomId" binding:"required,uuid"`
	Content     string            `json:"content"`
	Attachments []AttachmentInput `json:"attachments"`
}

// MessagePayload is the data of a websocket send_message event; the room
// comes from the envelope.
type MessagePayload struct {
	Content     string            `json:"content"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

type UserInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	AccountType string    `json:"accountType,omitempty"`
}

type AttachmentResponse struct {
	Kind     string `json:"kind"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size"`
}

type MessageResponse struct {
	ID          uuid.UUID            `json:"id"`
	RoomID      uuid.UUID            `json:"roomId"`
	SenderID    uuid.UUID            `json:"senderId"`
	Sender      UserInfo             `json:"sender"`
	Content     string               `json:"content"`
	Attachments []AttachmentResponse `json:"attachments"`
	ReadBy      []uuid.UUID          `json:"readBy"`
	CreatedAt   time.Time            `json:"createdAt"`
}

type MessageDeletedEvent struct {
	MessageID uuid.UUID `json:"messageId"`
	RoomID    uuid.UUID `json:"roomId"`
}

type MessagesReadEvent struct {
	RoomID uuid.UUID `json:"roomId"`
	UserID uuid.UUID `json:"userId"`
	Marked int64     `json:"marked"`
}

func NewUserInfo(u *models.User) UserInfo {
	return UserInfo{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		AccountType: u.AccountType,
	}
}

func NewMessageResponse(m *models.Message) MessageResponse {
	sender := UserInfo{ID: m.SenderID}
	if m.Sender.ID != uuid.Nil {
		sender = NewUserInfo(&m.Sender)
	}

	return MessageResponse{
		ID:       m.ID,
		RoomID:   m.RoomID,
		SenderID: m.SenderID,
		Sender:   sender,
		Content:  m.Content,
		Attachments: lo.Map(m.Attachments, func(a models.Attachment, _ int) AttachmentResponse {
			return AttachmentResponse{Kind: a.Kind, URL: a.URL, Filename: a.Filename, Size: a.Size}
		}),
		ReadBy:    m.ReadBy(),
		CreatedAt: m.CreatedAt,
	}
}

func NewMessageResponses(messages []models.Message) []MessageResponse {
	return lo.Map(messages, func(m models.Message, _ int) MessageResponse {
		return NewMessageResponse(&m)
	})
}
