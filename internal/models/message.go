package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
)

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_room_created,priority:1"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_room_created,priority:2"`

	Sender      User          `gorm:"foreignKey:SenderID"`
	Attachments []Attachment  `gorm:"foreignKey:MessageID"`
	Reads       []MessageRead `gorm:"foreignKey:MessageID"`
}

// BeforeCreate assigns a time-ordered id so that messages created within the
// same instant still sort in insertion order.
func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id
	}
	return nil
}

func (m *Message) ReadBy() []uuid.UUID {
	ids := make([]uuid.UUID, len(m.Reads))
	for i, r := range m.Reads {
		ids[i] = r.UserID
	}
	return ids
}

type Attachment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position  int       `gorm:"not null"`
	Kind      string    `gorm:"not null;check:kind IN ('image','file')"`
	URL       string    `gorm:"not null"`
	Filename  string
	Size      int64
}

func (a *Attachment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// MessageRead records that UserID has acknowledged MessageID. The composite
// primary key makes the read set an idempotent set-add.
type MessageRead struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	ReadAt    time.Time
}
