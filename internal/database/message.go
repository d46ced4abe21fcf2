package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/innohub-chat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func withMessageRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Sender").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Reads", func(db *gorm.DB) *gorm.DB {
			return db.Order("read_at ASC").Order("user_id ASC")
		})
}

// AppendMessage persists message together with the sender's read mark and
// moves the room's last-message pointer, all in one transaction. The room
// row is locked so createdAt never goes backwards inside a room.
func (d *Database) AppendMessage(ctx context.Context, message *models.Message) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", message.RoomID).Error
		if err != nil {
			return translate(err, "room "+message.RoomID.String())
		}

		createdAt := time.Now().UTC().Truncate(time.Microsecond)
		if room.LastMessageAt != nil && createdAt.Before(*room.LastMessageAt) {
			createdAt = room.LastMessageAt.UTC()
		}
		message.CreatedAt = createdAt

		for i := range message.Attachments {
			message.Attachments[i].Position = i
		}
		message.Reads = []models.MessageRead{{UserID: message.SenderID, ReadAt: createdAt}}

		if err := tx.Omit("Sender").Create(message).Error; err != nil {
			return err
		}

		return tx.Model(&models.Room{}).
			Where("id = ?", room.ID).
			UpdateColumns(map[string]interface{}{
				"last_message_id": message.ID,
				"last_message_at": createdAt,
				"updated_at":      createdAt,
			}).Error
	})
}

func (d *Database) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := withMessageRelations(d.db.WithContext(ctx)).First(&message, "id = ?", id).Error; err != nil {
		return nil, translate(err, "message "+id.String())
	}
	return &message, nil
}

// GetMessagesByIDs loads messages with their relations, keyed by id.
func (d *Database) GetMessagesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error) {
	result := make(map[uuid.UUID]models.Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var messages []models.Message
	if err := withMessageRelations(d.db.WithContext(ctx)).Where("id IN ?", ids).Find(&messages).Error; err != nil {
		return nil, err
	}
	for _, m := range messages {
		result[m.ID] = m
	}
	return result, nil
}

// GetRoomMessages returns room history oldest first. With limit > 0 only the
// newest limit messages (older than beforeID, if given) are returned.
func (d *Database) GetRoomMessages(ctx context.Context, roomID uuid.UUID, limit int, beforeID *uuid.UUID) ([]models.Message, error) {
	var messages []models.Message

	query := withMessageRelations(d.db.WithContext(ctx)).Where("room_id = ?", roomID)

	if beforeID != nil {
		var anchor models.Message
		err := d.db.WithContext(ctx).First(&anchor, "id = ? AND room_id = ?", *beforeID, roomID).Error
		if err != nil {
			return nil, translate(err, "message "+beforeID.String())
		}
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
	}

	if limit <= 0 {
		err := query.Order("created_at ASC").Order("id ASC").Find(&messages).Error
		return messages, err
	}

	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// newest-first page back to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRoomRead adds userID to the read set of every message in the room it
// has not read yet and reports how many messages changed. A single
// INSERT ... SELECT keeps it atomic and idempotent.
func (d *Database) MarkRoomRead(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	res := d.db.WithContext(ctx).Exec(`
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT m.id, ?, ? FROM messages m
		WHERE m.room_id = ?
		  AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?)
		ON CONFLICT DO NOTHING`,
		userID, time.Now().UTC(), roomID, userID,
	)
	return res.RowsAffected, res.Error
}

// DeleteMessage hard-deletes a message with its attachments and read marks.
// When it was the room's last message the pointer is moved to the newest
// remaining message, or cleared.
func (d *Database) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.Message
		if err := tx.First(&message, "id = ?", id).Error; err != nil {
			return translate(err, "message "+id.String())
		}

		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", message.RoomID).Error
		if err != nil {
			return translate(err, "room "+message.RoomID.String())
		}

		if err := tx.Where("message_id = ?", id).Delete(&models.MessageRead{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Message{}, "id = ?", id).Error; err != nil {
			return err
		}

		if room.LastMessageID == nil || *room.LastMessageID != id {
			return nil
		}

		updates := map[string]interface{}{"last_message_id": nil, "last_message_at": nil}
		var latest models.Message
		err = tx.Where("room_id = ?", room.ID).Order("created_at DESC").Order("id DESC").First(&latest).Error
		switch {
		case err == nil:
			updates["last_message_id"] = latest.ID
			updates["last_message_at"] = latest.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return tx.Model(&models.Room{}).Where("id = ?", room.ID).UpdateColumns(updates).Error
	})
}
