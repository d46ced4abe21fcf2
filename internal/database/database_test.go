package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/innohub-chat/internal/apperrors"
	"github.com/thereayou/innohub-chat/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(sqlitePrefix + filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newUser(t *testing.T, db *Database, name, accountType string) *models.User {
	t.Helper()
	u := &models.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		AccountType:  accountType,
	}
	require.NoError(t, db.SaveUser(context.Background(), u))
	return u
}

func newRoom(t *testing.T, db *Database, a, b uuid.UUID) *models.Room {
	t.Helper()
	room := models.NewRoom(a, b)
	require.NoError(t, db.InsertRoom(context.Background(), room))
	return room
}

func appendText(t *testing.T, db *Database, roomID, senderID uuid.UUID, content string) *models.Message {
	t.Helper()
	m := &models.Message{RoomID: roomID, SenderID: senderID, Content: content}
	require.NoError(t, db.AppendMessage(context.Background(), m))
	return m
}

func TestUsers_SaveAndFind(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)

	alice := newUser(t, db, "alice", models.AccountInnovator)

	found, err := db.FindUserByEmail(ctx, "  ALICE@example.com ")
	req.NoError(err)
	req.Equal(alice.ID, found.ID)

	dup := &models.User{Name: "alice2", Email: "alice@example.com", PasswordHash: "x", AccountType: models.AccountBuyer}
	req.ErrorIs(db.SaveUser(ctx, dup), apperrors.ErrConflict)

	_, err = db.GetUser(ctx, uuid.New())
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func TestInsertRoom_PairIsUniqueInEitherOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	alice := newUser(t, db, "alice", models.AccountInnovator)
	bob := newUser(t, db, "bob", models.AccountBuyer)

	first := newRoom(t, db, alice.ID, bob.ID)

	err := db.InsertRoom(ctx, models.NewRoom(bob.ID, alice.ID))
	req.ErrorIs(err, apperrors.ErrConflict)

	found, err := db.FindRoomByPair(ctx, bob.ID, alice.ID)
	req.NoError(err)
	req.Equal(first.ID, found.ID)
	req.Equal(alice.ID, found.InitiatorID)
	req.Equal("alice", found.Initiator.Name)
	req.Equal("bob", found.Recipient.Name)
}

func TestInsertRoom_ConcurrentInsertsKeepOneRow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	alice := newUser(t, db, "alice", models.AccountInnovator)
	bob := newUser(t, db, "bob", models.AccountBuyer)

	errs := make([]error, 10)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice.ID, bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			errs[i] = db.InsertRoom(ctx, models.NewRoom(a, b))
		}(i)
	}
	wg.Wait()

	inserted := 0
	for _, err := range errs {
		if err == nil {
			inserted++
			continue
		}
		req.ErrorIs(err, apperrors.ErrConflict)
	}
	req.Equal(1, inserted)
	rooms, err := db.GetUserRooms(ctx, alice.ID)
	req.NoError(err)
	req.Len(rooms, 1)
}

func TestAppendMessage_MovesPointerAndMarksSenderRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	alice := newUser(t, db, "alice", models.AccountInnovator)
	bob := newUser(t, db, "bob", models.AccountBuyer)
	room := newRoom(t, db, alice.ID, bob.ID)

	m := &models.Message{
		RoomID:   room.ID,
		SenderID: alice.ID,
		Content:  "hello",
		Attachments: []models.Attachment{
			{Kind: models.AttachmentImage, URL: "https://cdn.example.com/a.png"},
			{Kind: models.AttachmentFile, URL: "https://cdn.example.com/b.pdf", Filename: "b.pdf", Size: 42},
		},
	}
	req.NoError(db.AppendMessage(ctx, m))

	stored, err := db.GetMessage(ctx, m.ID)
	req.NoError(err)
	req.Equal("hello", stored.Content)
	req.Equal([]uuid.UUID{alice.ID}, stored.ReadBy())
	req.Equal("alice", stored.Sender.Name)
	req.Len(stored.Attachments, 2)
	req.Equal("https://cdn.example.com/a.png", stored.Attachments[0].URL)
	req.Equal("b.pdf", stored.Attachments[1].Filename)

	reloaded, err := db.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.NotNil(reloaded.LastMessageID)
	req.Equal(m.ID, *reloaded.LastMessageID)
	req.NotNil(reloaded.LastMessageAt)
	req.True(reloaded.LastMessageAt.Equal(stored.CreatedAt))
}

func TestAppendMessage_UnknownRoom(t *testing.T) {
	db := newTestDB(t)
	alice := newUser(t, db, "alice", models.AccountInnovator)

	err := db.AppendMessage(context.Background(), &models.Message{RoomID: uuid.New(), SenderID: alice.ID, Content: "x"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetRoomMessages_OrderedAndPaged(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	alice := newUser(t, db, "alice", models.AccountInnovator)
	bob := newUser(t, db, "bob", models.AccountBuyer)
	room := newRoom(t, db, alice.ID, bob.ID)

	var sent []uuid.UUID
	for i, content := range []string{"one", "two", "three", "four", "five"} {
		sender := alice.ID
		if i%2 == 1 {
			sender = bob.ID
		}
		sent = append(sent, appendText(t, db, room.ID, sender, content).ID)
	}

	all, err := db.GetRoomMessages(ctx, room.ID, 0, nil)
	req.NoError(err)
	req.Len(all, 5)
	for i := range all {
		req.Equal(sent[i], all[i].ID)
		if i > 0 {
			req.False(all[i].CreatedAt.Before(all[i-1].CreatedAt))
		}
	}

	again, err := db.GetRoomMessages(ctx, room.ID, 0, nil)
	req.NoError(err)
	req.Equal(ids(all), ids(again))

	page, err := db.GetRoomMessages(ctx, room.ID, 2, nil)
	req.NoError(err)
	req.Equal(sent[3:], ids(page))

	older, err := db.GetRoomMessages(ctx, room.ID, 2, &page[0].ID)
	req.NoError(err)
	req.Equal(sent[1:3], ids(older))

	_, err = db.GetRoomMessages(ctx, room.ID, 2, lo.ToPtr(uuid.New()))
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func TestMarkRoomRead_IsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	alice := newUser(t, db, "alice", models.AccountInnovator)
	bob := newUser(t, db, "bob", models.AccountBuyer)
	room := newRoom(t, db, alice.ID, bob.ID)

	appendText(t, db, room.ID, alice.ID, "one")
	appendText(t, db, room.ID, alice.ID, "two")
	appendText(t, db, room.ID, bob.ID, "three")

	unread, err := db.CountUnread(ctx, bob.ID, []uuid.UUID{room.ID})
	req.NoError(err)
	req.Equal(int64(2), unread[room.ID])

	marked, err := db.MarkRoomRead(ctx, room.ID, bob.ID)
	req.NoError(err)
	req.Equal(int64(2), marked)

	marked, err = db.MarkRoomRead(ctx, room.ID, bob.ID)
	req.NoError(err)
	req.Equal(int64(0), marked)

	messages, err := db.GetRoomMessages(ctx, room.ID, 0, nil)
	req.NoError(err)
	req.Len(messages, 3)
	req.ElementsMatch([]uuid.UUID{alice.ID, bob.ID}, messages[0].ReadBy())
	req.ElementsMatch([]uuid.UUID{alice.ID, bob.ID}, messages[1].ReadBy())
	req.Equal([]uuid.UUID{bob.ID}, messages[2].ReadBy())

	unread, err = db.CountUnread(ctx, bob.ID, []uuid.UUID{room.ID})
	req.NoError(err)
	req.Zero(unread[room.ID])

	unread, err = db.CountUnread(ctx, alice.ID, []uuid.UUID{room.ID})
	req.NoError(err)
	req.Equal(int64(1), unread[room.ID])

	marked, err = db.MarkRoomRead(ctx, room.ID, alice.ID)
	req.NoError(err)
	req.Equal(int64(1), marked)

	messages, err = db.GetRoomMessages(ctx, room.ID, 0, nil)
	req.NoError(err)
	for _, m := range messages {
		req.ElementsMatch([]uuid.UUID{alice.ID, bob.ID}, m.ReadBy())
	}
}

func TestDeleteMessage_RecomputesLastMessagePointer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	alice := newUser(t, db, "alice", models.AccountInnovator)
	bob := newUser(t, db, "bob", models.AccountBuyer)
	room := newRoom(t, db, alice.ID, bob.ID)

	first := appendText(t, db, room.ID, alice.ID, "first")
	second := appendText(t, db, room.ID, bob.ID, "second")

	req.NoError(db.DeleteMessage(ctx, second.ID))

	_, err := db.GetMessage(ctx, second.ID)
	req.ErrorIs(err, apperrors.ErrNotFound)

	reloaded, err := db.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.NotNil(reloaded.LastMessageID)
	req.Equal(first.ID, *reloaded.LastMessageID)

	req.NoError(db.DeleteMessage(ctx, first.ID))
	reloaded, err = db.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.Nil(reloaded.LastMessageID)
	req.Nil(reloaded.LastMessageAt)

	req.ErrorIs(db.DeleteMessage(ctx, first.ID), apperrors.ErrNotFound)
}

func TestGetUserRooms_MostRecentlyActiveFirst(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	alice := newUser(t, db, "alice", models.AccountInnovator)
	bob := newUser(t, db, "bob", models.AccountBuyer)
	carol := newUser(t, db, "carol", models.AccountBuyer)

	withBob := newRoom(t, db, alice.ID, bob.ID)
	withCarol := newRoom(t, db, carol.ID, alice.ID)

	appendText(t, db, withBob.ID, bob.ID, "ping")

	rooms, err := db.GetUserRooms(ctx, alice.ID)
	req.NoError(err)
	req.Equal([]uuid.UUID{withBob.ID, withCarol.ID}, []uuid.UUID{rooms[0].ID, rooms[1].ID})

	rooms, err = db.GetUserRooms(ctx, bob.ID)
	req.NoError(err)
	req.Len(rooms, 1)
}

func ids(messages []models.Message) []uuid.UUID {
	out := make([]uuid.UUID, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}
