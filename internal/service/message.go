package service

import (
	"context"
	"fmt"

	"github.com/capitalize-ai/chat-session-engine/internal/llm"
	"github.com/capitalize-ai/chat-session-engine/internal/model"
	natsclient "github.com/capitalize-ai/chat-session-engine/internal/nats"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
	"github.com/capitalize-ai/chat-session-engine/pkg/metrics"
)

const historyWindow = 50

// MessageService handles the message flow: persist the user's message,
// build context from the log, invoke the model, persist the reply.
type MessageService struct {
	streamManager       *natsclient.StreamManager
	conversationService *ConversationService
	llmClient           llm.Client
	defaultModel        string
	logger              *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(
	streamManager *natsclient.StreamManager,
	conversationService *ConversationService,
	llmClient llm.Client,
	defaultModel string,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		streamManager:       streamManager,
		conversationService: conversationService,
		llmClient:           llmClient,
		defaultModel:        defaultModel,
		logger:              log,
	}
}

// Record persists a user message to the log without producing a reply.
func (s *MessageService) Record(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest) (*model.Message, error) {
	userMsg := model.NewUserMessage(conversationID, req.Content)
	userMsg.UserID = userID

	seq, err := s.streamManager.PublishMessage(ctx, &userMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to publish user message: %w", err)
	}
	userMsg.Sequence = seq

	if err := s.conversationService.RecordMessage(ctx, userID, conversationID, &userMsg); err != nil {
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
	return &userMsg, nil
}

// Reply persists the user message, generates the assistant response with
// the conversation history as context, and persists that too.
func (s *MessageService) Reply(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest) (*model.Message, *model.Message, error) {
	userMsg, err := s.Record(ctx, userID, conversationID, req)
	if err != nil {
		return nil, nil, err
	}

	if s.llmClient == nil {
		return userMsg, nil, fmt.Errorf("no model provider configured")
	}

	history, _, _, err := s.streamManager.GetMessages(ctx, userID, conversationID, 0, historyWindow)
	if err != nil {
		return userMsg, nil, fmt.Errorf("failed to get message history: %w", err)
	}

	chatMessages := make([]llm.ChatMessage, len(history))
	for i, msg := range history {
		chatMessages[i] = llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}

	resp, err := s.llmClient.CompleteStream(ctx, &llm.CompletionRequest{
		Model:     modelName,
		Messages:  chatMessages,
		MaxTokens: 4096,
	}, func(token string, index int) error {
		// Tokens are assembled into a single reply; streamed counting
		// keeps the token metrics live during long generations.
		metrics.LLMTokensTotal.WithLabelValues(modelName, "out").Inc()
		return nil
	})
	if err != nil {
		if _, pubErr := s.streamManager.PublishEvent(ctx, model.NewConversationEvent(
			userID, conversationID, model.EventTypeError, err.Error(),
		)); pubErr != nil {
			s.logger.Error("failed to publish error event", "error", pubErr)
		}
		metrics.LLMRequestDuration.WithLabelValues(modelName, "error").Observe(0)
		return userMsg, nil, fmt.Errorf("model request failed: %w", err)
	}

	assistantMsg := model.NewAssistantMessage(conversationID, resp.Content)
	assistantMsg.UserID = userID
	assistantMsg.Model = &resp.Model
	assistantMsg.TokensIn = &resp.TokensIn
	assistantMsg.TokensOut = &resp.TokensOut
	assistantMsg.LatencyMs = &resp.LatencyMs
	assistantMsg.StopReason = &resp.StopReason

	seq, err := s.streamManager.PublishMessage(ctx, &assistantMsg)
	if err != nil {
		return userMsg, nil, fmt.Errorf("failed to publish assistant message: %w", err)
	}
	assistantMsg.Sequence = seq

	if err := s.conversationService.RecordMessage(ctx, userID, conversationID, &assistantMsg); err != nil {
		return userMsg, nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	metrics.RecordLLMRequest(resp.Model, "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, 0)

	return userMsg, &assistantMsg, nil
}

// GetMessages retrieves messages for a conversation from the log.
func (s *MessageService) GetMessages(ctx context.Context, userID, conversationID string, afterSequence uint64, limit int) (*model.ListMessagesResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	messages, lastSeq, hasMore, err := s.streamManager.GetMessages(ctx, userID, conversationID, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	return &model.ListMessagesResponse{
		Messages:     messages,
		HasMore:      hasMore,
		LastSequence: lastSeq,
	}, nil
}
