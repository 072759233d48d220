// Package service provides the server-side business logic for the chat
// backend.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
	"github.com/capitalize-ai/chat-session-engine/pkg/metrics"
)

// ErrNotFound is returned when a conversation does not exist or belongs to
// a different user.
var ErrNotFound = errors.New("conversation not found")

// ConversationService is the registry of conversation metadata. Message
// bodies live in the JetStream log; this holds titles, timestamps, and
// ownership, in creation order.
type ConversationService struct {
	logger *logger.Logger

	mu            sync.RWMutex
	order         []string
	conversations map[string]*model.Conversation
}

// NewConversationService creates a new conversation service.
func NewConversationService(log *logger.Logger) *ConversationService {
	return &ConversationService{
		logger:        log,
		conversations: make(map[string]*model.Conversation),
	}
}

// Create creates a new conversation owned by userID.
func (s *ConversationService) Create(ctx context.Context, userID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	conv := model.NewConversation(userID, req.Title)

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.order = append(s.order, conv.ID)
	s.mu.Unlock()

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created", "conversation_id", conv.ID, "user_id", userID)

	return snapshot(conv), nil
}

// Ensure returns the named conversation, creating it when it does not
// exist yet. Lets a client connect with a locally allocated conversation
// id before any server round trip.
func (s *ConversationService) Ensure(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	if conv, ok := s.conversations[conversationID]; ok {
		owned := conv.UserID == userID && !conv.Deleted
		s.mu.Unlock()
		if !owned {
			return nil, ErrNotFound
		}
		return snapshot(conv), nil
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        conversationID,
		UserID:    userID,
		Title:     "New Chat",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	s.order = append(s.order, conv.ID)
	s.mu.Unlock()

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created", "conversation_id", conv.ID, "user_id", userID)

	return snapshot(conv), nil
}

// Get retrieves a conversation owned by userID.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.UserID != userID || conv.Deleted {
		return nil, ErrNotFound
	}
	return snapshot(conv), nil
}

// List retrieves userID's conversations in creation order.
func (s *ConversationService) List(ctx context.Context, userID string, limit, offset int) (*model.ListConversationsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, id := range s.order {
		conv := s.conversations[id]
		if conv.UserID == userID && !conv.Deleted {
			convs = append(convs, *snapshot(conv))
		}
	}

	total := len(convs)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &model.ListConversationsResponse{
		Conversations: convs[start:end],
		Total:         total,
		HasMore:       end < total,
	}, nil
}

// Update renames a conversation.
func (s *ConversationService) Update(ctx context.Context, userID, conversationID string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.UserID != userID || conv.Deleted {
		return nil, ErrNotFound
	}

	if req.Title != "" {
		conv.Title = req.Title
	}
	conv.UpdatedAt = time.Now()

	return snapshot(conv), nil
}

// Delete soft deletes a conversation.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.UserID != userID || conv.Deleted {
		return ErrNotFound
	}

	conv.Deleted = true
	conv.UpdatedAt = time.Now()
	return nil
}

// RecordMessage notes a new message on the conversation's metadata.
func (s *ConversationService) RecordMessage(ctx context.Context, userID, conversationID string, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.UserID != userID || conv.Deleted {
		return ErrNotFound
	}

	m := *msg
	conv.LastMessage = &m
	conv.MessageCount++
	conv.UpdatedAt = time.Now()
	return nil
}

func snapshot(conv *model.Conversation) *model.Conversation {
	out := *conv
	if conv.LastMessage != nil {
		lm := *conv.LastMessage
		out.LastMessage = &lm
	}
	return &out
}
