package services

//go:generate mockgen -source=broadcaster.go -destination=../mocks/mock_broadcaster.go -package=mocks

import "github.com/google/uuid"

// Events pushed to a room channel after the corresponding write is durable.
const (
	EventNewMessage     = "new_message"
	EventMessageDeleted = "message_deleted"
	EventMessagesRead   = "messages_read"
)

// Broadcaster fans an event out to every live connection subscribed to a
// room. Delivery is best effort and never fails the caller.
type Broadcaster interface {
	Publish(roomID uuid.UUID, event string, payload interface{})
}
