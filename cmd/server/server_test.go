package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/innohub-chat/internal/config"
	"github.com/thereayou/innohub-chat/internal/database"
	"github.com/thereayou/innohub-chat/internal/dto"
	ws "github.com/thereayou/innohub-chat/internal/websocket"
)

type memoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (b *memoryBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = time.Now().Add(ttl)
	return nil
}

func (b *memoryBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.revoked[token]
	return ok && time.Now().Before(exp), nil
}

type testEnv struct {
	t   *testing.T
	srv *httptest.Server
	app *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open("sqlite://" + filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:        "e2e-secret",
		TokenDuration:    time.Hour,
		LogLevel:         "ERROR",
		RequestTimeout:   5 * time.Second,
		WSSendBuffer:     64,
		MaxContentLength: 2000,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := newServer(cfg, logger, db, &memoryBlacklist{revoked: map[string]time.Time{}}, nil)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		app.Hub.Stop()
		srv.Close()
		app.Close()
	})
	return &testEnv{t: t, srv: srv, app: app}
}

func (e *testEnv) do(method, path, token string, body any, out any) int {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(e.t, err)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(r)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type account struct {
	id    uuid.UUID
	token string
}

func (e *testEnv) register(name, accountType string) account {
	e.t.Helper()
	var tok dto.TokenResponse
	status := e.do(http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Name:        name,
		Email:       name + "@example.com",
		Password:    "password123",
		AccountType: accountType,
	}, &tok)
	require.Equal(e.t, http.StatusCreated, status)
	return account{id: uuid.MustParse(tok.Uid), token: tok.Token}
}

func (e *testEnv) dial(token string) *websocket.Conn {
	e.t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType ws.MessageType, roomID uuid.UUID, data any) {
	t.Helper()
	msg := ws.Message{Type: msgType, RoomID: &roomID}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		msg.Data = raw
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// expect reads events until one of msgType arrives.
func expect(t *testing.T, conn *websocket.Conn, msgType ws.MessageType) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg.Type == msgType {
			return msg
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, roomID uuid.UUID) {
	t.Helper()
	send(t, conn, ws.TypeJoinRoom, roomID, nil)
	ack := expect(t, conn, ws.TypeJoined)
	require.Equal(t, roomID, *ack.RoomID)
}

func TestChatFlow(t *testing.T) {
	req := require.New(t)
	e := newTestEnv(t)

	innovator := e.register("innovator", "innovator")
	buyer := e.register("buyer", "buyer")
	stranger := e.register("stranger", "buyer")

	// room resolution is idempotent from both sides
	var room, same dto.RoomResponse
	req.Equal(http.StatusOK, e.do(http.MethodPost, "/api/chat/room", innovator.token, dto.CreateRoomRequest{OtherUserID: buyer.id.String()}, &room))
	req.Equal(http.StatusOK, e.do(http.MethodPost, "/api/chat/room", buyer.token, dto.CreateRoomRequest{OtherUserID: innovator.id.String()}, &same))
	req.Equal(room.ID, same.ID)
	req.Equal(innovator.id, same.OtherParticipant.ID)

	req.Equal(http.StatusBadRequest, e.do(http.MethodPost, "/api/chat/room", buyer.token, dto.CreateRoomRequest{OtherUserID: buyer.id.String()}, nil))
	req.Equal(http.StatusNotFound, e.do(http.MethodPost, "/api/chat/room", buyer.token, dto.CreateRoomRequest{OtherUserID: uuid.NewString()}, nil))

	innovatorConn := e.dial(innovator.token)
	buyerConn := e.dial(buyer.token)
	strangerConn := e.dial(stranger.token)
	join(t, innovatorConn, room.ID)
	join(t, buyerConn, room.ID)

	// a non participant cannot subscribe
	send(t, strangerConn, ws.TypeJoinRoom, room.ID, nil)
	errEvent := expect(t, strangerConn, ws.TypeError)
	req.Contains(string(errEvent.Data), "forbidden")

	// websocket send: persisted, then pushed to both participants
	send(t, innovatorConn, ws.TypeSendMessage, room.ID, dto.MessagePayload{Content: "Hello, interested in my project?"})
	var pushedToBuyer, pushedToInnovator dto.MessageResponse
	req.NoError(json.Unmarshal(expect(t, buyerConn, "new_message").Data, &pushedToBuyer))
	req.NoError(json.Unmarshal(expect(t, innovatorConn, "new_message").Data, &pushedToInnovator))
	req.Equal(pushedToBuyer.ID, pushedToInnovator.ID)
	req.Equal("Hello, interested in my project?", pushedToBuyer.Content)
	req.Equal([]uuid.UUID{innovator.id}, pushedToBuyer.ReadBy)

	// REST send takes the same path
	var reply dto.MessageResponse
	req.Equal(http.StatusCreated, e.do(http.MethodPost, "/api/chat/message", buyer.token, dto.SendMessageRequest{RoomID: room.ID.String(), Content: "Yes, tell me more"}, &reply))
	var pushedReply dto.MessageResponse
	req.NoError(json.Unmarshal(expect(t, innovatorConn, "new_message").Data, &pushedReply))
	req.Equal(reply.ID, pushedReply.ID)

	req.Equal(http.StatusBadRequest, e.do(http.MethodPost, "/api/chat/message", buyer.token, dto.SendMessageRequest{RoomID: room.ID.String(), Content: "   "}, nil))
	req.Equal(http.StatusForbidden, e.do(http.MethodPost, "/api/chat/message", stranger.token, dto.SendMessageRequest{RoomID: room.ID.String(), Content: "hi"}, nil))

	// history is ordered and identical for both participants
	var history struct {
		Messages []dto.MessageResponse `json:"messages"`
		HasMore  bool                  `json:"hasMore"`
	}
	req.Equal(http.StatusOK, e.do(http.MethodGet, "/api/chat/messages/"+room.ID.String(), buyer.token, nil, &history))
	req.Len(history.Messages, 2)
	req.Equal(pushedToBuyer.ID, history.Messages[0].ID)
	req.Equal(reply.ID, history.Messages[1].ID)
	req.False(history.HasMore)

	req.Equal(http.StatusOK, e.do(http.MethodGet, "/api/chat/messages/"+room.ID.String()+"?limit=1", innovator.token, nil, &history))
	req.Len(history.Messages, 1)
	req.Equal(reply.ID, history.Messages[0].ID)
	req.True(history.HasMore)

	req.Equal(http.StatusForbidden, e.do(http.MethodGet, "/api/chat/messages/"+room.ID.String(), stranger.token, nil, nil))
	req.Equal(http.StatusNotFound, e.do(http.MethodGet, "/api/chat/messages/"+uuid.NewString(), buyer.token, nil, nil))
	req.Equal(http.StatusBadRequest, e.do(http.MethodGet, "/api/chat/messages/"+room.ID.String()+"?limit=500", buyer.token, nil, nil))

	// room list carries the last message and the unread count
	var rooms struct {
		Rooms []dto.RoomResponse `json:"rooms"`
	}
	req.Equal(http.StatusOK, e.do(http.MethodGet, "/api/chat/rooms", innovator.token, nil, &rooms))
	req.Len(rooms.Rooms, 1)
	req.Equal(reply.ID, rooms.Rooms[0].LastMessage.ID)
	req.Equal(int64(1), rooms.Rooms[0].UnreadCount)

	// mark read is idempotent and announced once
	var marked struct {
		Marked int64 `json:"marked"`
	}
	req.Equal(http.StatusOK, e.do(http.MethodPut, "/api/chat/read/"+room.ID.String(), innovator.token, nil, &marked))
	req.Equal(int64(1), marked.Marked)
	var readEvent dto.MessagesReadEvent
	req.NoError(json.Unmarshal(expect(t, buyerConn, "messages_read").Data, &readEvent))
	req.Equal(innovator.id, readEvent.UserID)

	req.Equal(http.StatusOK, e.do(http.MethodPut, "/api/chat/read/"+room.ID.String(), innovator.token, nil, &marked))
	req.Zero(marked.Marked)
	req.Equal(http.StatusForbidden, e.do(http.MethodPut, "/api/chat/read/"+room.ID.String(), stranger.token, nil, nil))

	// only the sender deletes
	req.Equal(http.StatusForbidden, e.do(http.MethodDelete, "/api/chat/message/"+reply.ID.String(), innovator.token, nil, nil))
	req.Equal(http.StatusOK, e.do(http.MethodDelete, "/api/chat/message/"+reply.ID.String(), buyer.token, nil, nil))
	var deleted dto.MessageDeletedEvent
	req.NoError(json.Unmarshal(expect(t, innovatorConn, "message_deleted").Data, &deleted))
	req.Equal(reply.ID, deleted.MessageID)
	req.Equal(http.StatusNotFound, e.do(http.MethodDelete, "/api/chat/message/"+reply.ID.String(), buyer.token, nil, nil))

	// leaving the channel stops pushes to that connection
	send(t, buyerConn, ws.TypeLeaveRoom, room.ID, nil)
	expect(t, buyerConn, ws.TypeLeft)
	req.Equal(1, e.app.Hub.RoomSubscribers(room.ID))
}

func TestAuthFlow(t *testing.T) {
	req := require.New(t)
	e := newTestEnv(t)

	acct := e.register("founder", "innovator")

	var me dto.UserInfo
	req.Equal(http.StatusOK, e.do(http.MethodGet, "/api/users/me", acct.token, nil, &me))
	req.Equal(acct.id, me.ID)
	req.Equal("innovator", me.AccountType)

	var tok dto.TokenResponse
	req.Equal(http.StatusOK, e.do(http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "founder@example.com", Password: "password123"}, &tok))
	req.Equal(acct.id.String(), tok.Uid)

	req.Equal(http.StatusUnauthorized, e.do(http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "founder@example.com", Password: "nope-nope"}, nil))
	req.Equal(http.StatusConflict, e.do(http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Name: "founder", Email: "founder@example.com", Password: "password123", AccountType: "innovator",
	}, nil))

	req.Equal(http.StatusOK, e.do(http.MethodPost, "/api/auth/logout", tok.Token, nil, nil))
	req.Equal(http.StatusUnauthorized, e.do(http.MethodGet, "/api/users/me", tok.Token, nil, nil))

	req.Equal(http.StatusUnauthorized, e.do(http.MethodGet, "/api/chat/rooms", "", nil, nil))
	req.Equal(http.StatusOK, e.do(http.MethodGet, "/healthz", "", nil, nil))
}

func TestWebSocketTeardownReleasesSubscriptions(t *testing.T) {
	req := require.New(t)
	e := newTestEnv(t)

	a := e.register("alpha", "innovator")
	b := e.register("beta", "buyer")

	var room dto.RoomResponse
	req.Equal(http.StatusOK, e.do(http.MethodPost, "/api/chat/room", a.token, dto.CreateRoomRequest{OtherUserID: b.id.String()}, &room))

	conn := e.dial(a.token)
	join(t, conn, room.ID)
	req.Equal(1, e.app.Hub.RoomSubscribers(room.ID))

	req.NoError(conn.Close())
	req.Eventually(func() bool {
		return e.app.Hub.RoomSubscribers(room.ID) == 0 && e.app.Hub.ConnectionCount() == 0
	}, 5*time.Second, 20*time.Millisecond)

	// publishing to a room without subscribers is harmless
	req.Equal(http.StatusCreated, e.do(http.MethodPost, "/api/chat/message", b.token, dto.SendMessageRequest{RoomID: room.ID.String(), Content: "anyone?"}, nil))
}
