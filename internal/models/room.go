package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room is a two-participant conversation.
//
// ParticipantLow/ParticipantHigh hold the pair in byte order and carry the
// unique index that makes room creation idempotent per unordered pair.
// InitiatorID/RecipientID keep the order in which the room was requested.
type Room struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ParticipantLow  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_rooms_pair,priority:1"`
	ParticipantHigh uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_rooms_pair,priority:2;index"`
	InitiatorID     uuid.UUID  `gorm:"type:uuid;not null"`
	RecipientID     uuid.UUID  `gorm:"type:uuid;not null"`
	LastMessageID   *uuid.UUID `gorm:"type:uuid"`
	LastMessageAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time `gorm:"index"`

	Initiator User `gorm:"foreignKey:InitiatorID"`
	Recipient User `gorm:"foreignKey:RecipientID"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NewRoom builds an unsaved room for the pair, initiator first.
func NewRoom(initiator, recipient uuid.UUID) *Room {
	low, high := NormalizePair(initiator, recipient)
	now := time.Now().UTC()
	return &Room{
		ParticipantLow:  low,
		ParticipantHigh: high,
		InitiatorID:     initiator,
		RecipientID:     recipient,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NormalizePair orders two ids so that {a, b} and {b, a} map to the same key.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

func (r *Room) HasParticipant(userID uuid.UUID) bool {
	return r.ParticipantLow == userID || r.ParticipantHigh == userID
}

func (r *Room) Participants() []uuid.UUID {
	return []uuid.UUID{r.InitiatorID, r.RecipientID}
}

// OtherParticipant returns the participant that is not userID.
func (r *Room) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if r.InitiatorID == userID {
		return r.RecipientID
	}
	return r.InitiatorID
}
