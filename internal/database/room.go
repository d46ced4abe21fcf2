package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/thereayou/innohub-chat/internal/apperrors"
	"github.com/thereayou/innohub-chat/internal/models"
	"gorm.io/gorm/clause"
)

// InsertRoom stores a new room. If a room for the same participant pair
// already exists nothing is written and ErrConflict is returned.
func (d *Database) InsertRoom(ctx context.Context, room *models.Room) error {
	res := d.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(room)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("room %s/%s: %w", room.ParticipantLow, room.ParticipantHigh, apperrors.ErrConflict)
	}
	return nil
}

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Preload("Initiator").
		Preload("Recipient").
		First(&room, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "room "+id.String())
	}
	return &room, nil
}

// FindRoomByPair looks a room up by its unordered participant pair.
func (d *Database) FindRoomByPair(ctx context.Context, a, b uuid.UUID) (*models.Room, error) {
	low, high := models.NormalizePair(a, b)

	var room models.Room
	err := d.db.WithContext(ctx).
		Preload("Initiator").
		Preload("Recipient").
		Where("participant_low = ? AND participant_high = ?", low, high).
		First(&room).Error
	if err != nil {
		return nil, translate(err, "room for pair")
	}
	return &room, nil
}

// GetUserRooms returns every room userID takes part in, most recently active first.
func (d *Database) GetUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Preload("Initiator").
		Preload("Recipient").
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("updated_at DESC").
		Order("id").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// CountUnread returns, per room, how many messages userID has not read yet.
// Rooms without unread messages are absent from the map.
func (d *Database) CountUnread(ctx context.Context, userID uuid.UUID, roomIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RoomID uuid.UUID
		Unread int64
	}
	err := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("messages.room_id AS room_id, COUNT(*) AS unread").
		Where("messages.room_id IN ?", roomIDs).
		Where("NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = messages.id AND r.user_id = ?)", userID).
		Group("messages.room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.RoomID] = row.Unread
	}
	return counts, nil
}
