package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/capitalize-ai/chat-session-engine/internal/middleware"
	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/service"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
	"github.com/capitalize-ai/chat-session-engine/pkg/metrics"
)

const (
	// writeWait is the deadline for a single outbound frame.
	writeWait = 10 * time.Second

	// pongWait bounds how long we tolerate a silent peer.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 50 * time.Second
)

// conversationEnsurer and chatReplier are the slices of the service layer
// the socket needs.
type conversationEnsurer interface {
	Ensure(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
}

type chatReplier interface {
	Reply(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest) (*model.Message, *model.Message, error)
}

// WSHandler handles the chat WebSocket endpoint. Each inbound text
// frame is treated as one complete user message; each outbound text
// frame carries one complete assistant reply.
type WSHandler struct {
	conversations conversationEnsurer
	messages      chatReplier
	upgrader      websocket.Upgrader
	logger        *logger.Logger

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(conversations *service.ConversationService, messages *service.MessageService, log *logger.Logger) *WSHandler {
	return &WSHandler{
		conversations: conversations,
		messages:      messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Auth happens via the JWT middleware before the
			// upgrade, so cross-origin handshakes are allowed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:     log,
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// Chat handles GET /ws/chat/{id}
func (h *WSHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The client generates the conversation ID, so create it on first
	// contact and verify ownership on every reconnect.
	if _, err := h.conversations.Ensure(ctx, userID, conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed",
			"user_id", userID,
			"conversation_id", conversationID,
			"error", err,
		)
		return
	}

	metrics.IncrementWSConnections()
	defer metrics.DecrementWSConnections()
	defer ws.Close()

	h.logger.Info("websocket connected",
		"user_id", userID,
		"conversation_id", conversationID,
	)

	ws.SetReadDeadline(time.Now().Add(h.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	// Frames are written from both the reply path and the keepalive
	// ticker, so serialize them through a single channel.
	outbound := make(chan string, 8)
	done := make(chan struct{})
	defer close(done)

	go h.writePump(ws, outbound, done)

	for {
		kind, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed",
					"user_id", userID,
					"conversation_id", conversationID,
					"error", err,
				)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		content := string(payload)
		if err := middleware.ValidateMessageContent(content); err != nil {
			h.logger.Warn("rejected websocket message",
				"user_id", userID,
				"conversation_id", conversationID,
				"error", err,
			)
			continue
		}

		_, assistant, replyErr := h.messages.Reply(ctx, userID, conversationID, &model.SendMessageRequest{
			Content: content,
		})

		// Reply can outlast pongWait. Pongs arriving meanwhile are only
		// processed by a read, so the deadline must be refreshed before
		// the loop blocks in ReadMessage again.
		ws.SetReadDeadline(time.Now().Add(h.pongWait))

		if replyErr != nil {
			h.logger.Error("reply failed",
				"user_id", userID,
				"conversation_id", conversationID,
				"error", replyErr,
			)
			continue
		}

		select {
		case outbound <- assistant.Content:
		case <-done:
			return
		}
	}
}

// writePump owns all writes to the connection: assistant replies and
// keepalive pings.
func (h *WSHandler) writePump(ws *websocket.Conn, outbound <-chan string, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case text := <-outbound:
			ws.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
