package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/events"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
)

type recordingHub struct {
	messages []models.Message
	reads    []int64
}

func (h *recordingHub) BroadcastMessage(msg models.Message) { h.messages = append(h.messages, msg) }

func (h *recordingHub) BroadcastRead(_ string, _ string, updated int64) {
	h.reads = append(h.reads, updated)
}

type testDeps struct {
	convRepo *mocks.ConversationRepositoryMock
	msgRepo  *mocks.MessageRepositoryMock
	dir      *mocks.ProfileDirectoryMock
	pub      *mocks.PublisherMock
	hub      *recordingHub
}

func setupRouter(t *testing.T, userID string) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := &testDeps{
		convRepo: new(mocks.ConversationRepositoryMock),
		msgRepo:  new(mocks.MessageRepositoryMock),
		dir:      new(mocks.ProfileDirectoryMock),
		pub:      new(mocks.PublisherMock),
		hub:      &recordingHub{},
	}
	emitter := events.NewEmitter(deps.pub, "messaging-service", "test", zap.NewNop())
	convHandler := NewConversationHandler(services.NewConversationService(deps.convRepo, deps.dir, zap.NewNop()), emitter)
	msgHandler := NewMessageHandler(services.NewMessageService(deps.convRepo, deps.msgRepo, zap.NewNop()), deps.hub, emitter)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	r.GET("/conversations", convHandler.ListConversations)
	r.POST("/conversations", convHandler.CreateConversation)
	r.GET("/messages/:conversationId", msgHandler.ListMessages)
	r.POST("/messages", msgHandler.SendMessage)
	r.POST("/messages/:conversationId/read", msgHandler.MarkRead)
	return r, deps
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

var participants = models.Conversation{ID: "c1", ParticipantA: "u1", ParticipantB: "u2"}

func TestCreateConversationNewEmitsEvent(t *testing.T) {
	router, deps := setupRouter(t, "u1")

	deps.convRepo.On("CreateOrGetConversation", mock.Anything, mock.AnythingOfType("string"), "u1", "u2", mock.AnythingOfType("time.Time")).
		Return(participants, true, nil).Once()
	deps.pub.On("Publish", mock.Anything, events.RoutingConversationCreated, mock.Anything).Return(nil).Once()

	rec := doRequest(router, http.MethodPost, "/conversations", `{"recipientId":"u2"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "c1", resp["conversationId"])
	deps.convRepo.AssertExpectations(t)
	deps.pub.AssertExpectations(t)
}

func TestCreateConversationExistingSkipsEvent(t *testing.T) {
	router, deps := setupRouter(t, "u2")

	deps.convRepo.On("CreateOrGetConversation", mock.Anything, mock.Anything, "u2", "u1", mock.Anything).
		Return(participants, false, nil).Once()

	rec := doRequest(router, http.MethodPost, "/conversations", `{"recipientId":"u1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateConversationValidation(t *testing.T) {
	router, _ := setupRouter(t, "u1")

	for _, body := range []string{`{}`, `{"recipientId":"u1"}`, `not json`} {
		rec := doRequest(router, http.MethodPost, "/conversations", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "INVALID_ARGUMENT", decodeError(t, rec)["code"])
	}
}

func TestCreateConversationUnauthenticated(t *testing.T) {
	router, _ := setupRouter(t, "")

	rec := doRequest(router, http.MethodPost, "/conversations", `{"recipientId":"u2"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, rec)["code"])
}

func TestListConversationsSuccess(t *testing.T) {
	router, deps := setupRouter(t, "u1")

	content := "hey"
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	deps.convRepo.On("ListConversations", mock.Anything, "u1").Return([]models.ConversationRow{{
		Conversation:  participants,
		UnreadCount:   1,
		LastMessageID: strPtr("m1"),
		LastSenderID:  strPtr("u2"),
		LastContent:   &content,
		LastMessageAt: &at,
	}}, nil).Once()
	deps.dir.On("Lookup", mock.Anything, []string{"u2"}).Return(map[string]models.ProfileSummary{
		"u2": {UserID: "u2", Username: "bob", DisplayName: "bob"},
	}, nil).Once()

	rec := doRequest(router, http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "c1", resp[0]["id"])
	assert.Equal(t, "bob", resp[0]["participantProfile"].(map[string]any)["displayName"])
	assert.Equal(t, "hey", resp[0]["lastMessage"].(map[string]any)["content"])
	assert.EqualValues(t, 1, resp[0]["unreadCount"])
}

func TestListConversationsEmptyArray(t *testing.T) {
	router, deps := setupRouter(t, "u7")
	deps.convRepo.On("ListConversations", mock.Anything, "u7").Return([]models.ConversationRow{}, nil).Once()

	rec := doRequest(router, http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListConversationsStoreError(t *testing.T) {
	router, deps := setupRouter(t, "u1")
	deps.convRepo.On("ListConversations", mock.Anything, "u1").Return(nil, assert.AnError).Once()

	rec := doRequest(router, http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", decodeError(t, rec)["code"])
}

func TestSendMessageSuccess(t *testing.T) {
	router, deps := setupRouter(t, "u1")

	deps.convRepo.On("GetConversation", mock.Anything, "c1").Return(participants, nil).Once()
	deps.msgRepo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.SenderID == "u1" && m.ReceiverID == "u2" && m.Content != nil && *m.Content == "hello"
	})).Return(models.Message{ID: "m1", ConversationID: "c1", SenderID: "u1", ReceiverID: "u2", Content: strPtr("hello")}, nil).Once()
	deps.pub.On("Publish", mock.Anything, events.RoutingMessageSent, mock.Anything).Return(nil).Once()

	rec := doRequest(router, http.MethodPost, "/messages", `{"conversationId":"c1","content":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "u2", msg.ReceiverID)
	assert.False(t, msg.IsRead)
	require.Len(t, deps.hub.messages, 1)
	deps.msgRepo.AssertExpectations(t)
	deps.pub.AssertExpectations(t)
}

func TestSendMessagePublishFailureStillSucceeds(t *testing.T) {
	router, deps := setupRouter(t, "u1")

	deps.convRepo.On("GetConversation", mock.Anything, "c1").Return(participants, nil).Once()
	deps.msgRepo.On("CreateMessage", mock.Anything, mock.Anything).Return(models.Message{ID: "m1", ConversationID: "c1"}, nil).Once()
	deps.pub.On("Publish", mock.Anything, events.RoutingMessageSent, mock.Anything).Return(errors.New("broker down")).Once()

	rec := doRequest(router, http.MethodPost, "/messages", `{"conversationId":"c1","videoUrl":"https://cdn/v.mp4"}`)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSendMessageErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(d *testDeps)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty payload",
			body:       `{"conversationId":"c1","content":"  "}`,
			setup:      func(*testDeps) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
		},
		{
			name:       "missing conversation id",
			body:       `{"content":"hi"}`,
			setup:      func(*testDeps) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
		},
		{
			name: "unknown conversation",
			body: `{"conversationId":"nope","content":"hi"}`,
			setup: func(d *testDeps) {
				d.convRepo.On("GetConversation", mock.Anything, "nope").Return(nil, repositories.ErrConversationNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name: "outsider",
			body: `{"conversationId":"c9","content":"hi"}`,
			setup: func(d *testDeps) {
				d.convRepo.On("GetConversation", mock.Anything, "c9").Return(models.Conversation{ID: "c9", ParticipantA: "u2", ParticipantB: "u3"}, nil).Once()
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "PERMISSION_DENIED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, deps := setupRouter(t, "u1")
			tt.setup(deps)

			rec := doRequest(router, http.MethodPost, "/messages", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec)["code"])
			deps.msgRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
			assert.Empty(t, deps.hub.messages)
		})
	}
}

func TestListMessagesSuccess(t *testing.T) {
	router, deps := setupRouter(t, "u2")

	deps.convRepo.On("GetConversation", mock.Anything, "c1").Return(participants, nil).Once()
	deps.msgRepo.On("ListMessages", mock.Anything, "c1").Return([]models.Message{
		{ID: "m1", ConversationID: "c1", SenderID: "u1", ReceiverID: "u2", Content: strPtr("a")},
		{ID: "m2", ConversationID: "c1", SenderID: "u2", ReceiverID: "u1", Content: strPtr("b")},
	}, nil).Once()

	rec := doRequest(router, http.MethodGet, "/messages/c1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestListMessagesForbidden(t *testing.T) {
	router, deps := setupRouter(t, "u3")
	deps.convRepo.On("GetConversation", mock.Anything, "c1").Return(participants, nil).Once()

	rec := doRequest(router, http.MethodGet, "/messages/c1", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.msgRepo.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
}

func TestMarkReadSuccess(t *testing.T) {
	router, deps := setupRouter(t, "u2")

	deps.convRepo.On("GetConversation", mock.Anything, "c1").Return(participants, nil).Once()
	deps.msgRepo.On("MarkRead", mock.Anything, "c1", "u2").Return(int64(2), nil).Once()
	deps.pub.On("Publish", mock.Anything, events.RoutingMessagesRead, mock.Anything).Return(nil).Once()

	rec := doRequest(router, http.MethodPost, "/messages/c1/read", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Messages marked as read", resp["message"])
	assert.EqualValues(t, 2, resp["updated"])
	assert.Equal(t, []int64{2}, deps.hub.reads)
	deps.pub.AssertExpectations(t)
}

func TestMarkReadNothingToUpdate(t *testing.T) {
	router, deps := setupRouter(t, "u2")

	deps.convRepo.On("GetConversation", mock.Anything, "c1").Return(participants, nil).Once()
	deps.msgRepo.On("MarkRead", mock.Anything, "c1", "u2").Return(int64(0), nil).Once()

	rec := doRequest(router, http.MethodPost, "/messages/c1/read", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, deps.hub.reads)
	deps.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadUnknownConversation(t *testing.T) {
	router, deps := setupRouter(t, "u2")
	deps.convRepo.On("GetConversation", mock.Anything, "zz").Return(nil, repositories.ErrConversationNotFound).Once()

	rec := doRequest(router, http.MethodPost, "/messages/zz/read", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r, map[string]Pinger{
		"db":    PingerFunc(func(context.Context) error { return nil }),
		"cache": PingerFunc(func(context.Context) error { return errors.New("down") }),
	})

	rec := doRequest(r, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["db"])
	assert.Equal(t, "down", resp.Checks["cache"])
}

func strPtr(s string) *string { return &s }
