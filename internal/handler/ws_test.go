package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-session-engine/internal/middleware"
	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

type fakeEnsurer struct {
	err error
}

func (f *fakeEnsurer) Ensure(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Conversation{ID: conversationID, UserID: userID}, nil
}

// fakeReplier echoes each message back after an optional delay, failing the
// first failFirst calls.
type fakeReplier struct {
	delay     time.Duration
	failFirst int

	mu    sync.Mutex
	calls int
}

func (f *fakeReplier) Reply(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest) (*model.Message, *model.Message, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if n <= f.failFirst {
		return nil, nil, errors.New("model unavailable")
	}

	user := model.NewUserMessage(conversationID, req.Content)
	assistant := model.NewAssistantMessage(conversationID, "echo: "+req.Content)
	return &user, &assistant, nil
}

// chatServer mounts the handler behind a stub auth layer that stamps a
// fixed user id on every request.
func chatServer(t *testing.T, h *WSHandler) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Route("/ws/chat", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-1")
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		r.Get("/{id}", h.Chat)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialChat(t *testing.T, srv *httptest.Server, conversationID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + conversationID
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func newTestWSHandler(conversations conversationEnsurer, messages chatReplier) *WSHandler {
	return &WSHandler{
		conversations: conversations,
		messages:      messages,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:     logger.NewNop(),
		writeWait:  time.Second,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

func TestChatEchoesAssistantReply(t *testing.T) {
	h := newTestWSHandler(&fakeEnsurer{}, &fakeReplier{})
	srv := chatServer(t, h)
	ws := dialChat(t, srv, model.NewID())

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", string(data))
}

// A reply that takes longer than the pong window must not cost the
// connection: pongs received during the model call are only processed by
// the next read, so the read deadline has to be refreshed after replying.
func TestChatSurvivesReplyLongerThanPongWindow(t *testing.T) {
	h := newTestWSHandler(&fakeEnsurer{}, &fakeReplier{delay: 400 * time.Millisecond})
	h.pongWait = 150 * time.Millisecond
	h.pingPeriod = 100 * time.Millisecond

	srv := chatServer(t, h)
	ws := dialChat(t, srv, model.NewID())

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("first")))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: first", string(data))

	// The connection must still be usable for a second exchange.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("second")))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: second", string(data))
}

func TestChatStaysOpenAfterReplyError(t *testing.T) {
	h := newTestWSHandler(&fakeEnsurer{}, &fakeReplier{failFirst: 1})
	srv := chatServer(t, h)
	ws := dialChat(t, srv, model.NewID())

	// First message fails inside the reply pipeline; no frame comes back.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("broken")))

	// Second message succeeds on the same connection.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("retry")))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: retry", string(data))
}

func TestChatRejectsMalformedConversationID(t *testing.T) {
	h := newTestWSHandler(&fakeEnsurer{}, &fakeReplier{})
	srv := chatServer(t, h)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/not-a-uuid"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Nil(t, ws)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatRejectsForeignConversation(t *testing.T) {
	h := newTestWSHandler(&fakeEnsurer{err: errors.New("not found")}, &fakeReplier{})
	srv := chatServer(t, h)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + model.NewID()
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Nil(t, ws)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
