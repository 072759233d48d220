package model

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one immutable turn in a conversation.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`

	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Model metadata, set on assistant messages produced by the server.
	Model      *string `json:"model,omitempty"`
	TokensIn   *int    `json:"tokens_in,omitempty"`
	TokensOut  *int    `json:"tokens_out,omitempty"`
	LatencyMs  *int64  `json:"latency_ms,omitempty"`
	StopReason *string `json:"stop_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Stream sequence, populated when the message is read back from the log.
	Sequence uint64 `json:"sequence,omitempty"`
}

// NewUserMessage creates a user-authored message for a conversation.
func NewUserMessage(conversationID, content string) Message {
	return Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

// NewAssistantMessage creates an assistant-authored message for a conversation.
func NewAssistantMessage(conversationID, content string) Message {
	return Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// SendMessageResponse is the response after sending a message: the persisted
// user message and, when the model replied synchronously, the assistant one.
type SendMessageResponse struct {
	Message   *Message `json:"message,omitempty"`
	Assistant *Message `json:"assistant,omitempty"`
	Sequence  uint64   `json:"sequence,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages     []Message `json:"messages"`
	HasMore      bool      `json:"has_more"`
	LastSequence uint64    `json:"last_sequence"`
}
