package model

import (
	"time"
)

// EventType classifies conversation events recorded alongside messages.
type EventType string

const (
	EventTypeError   EventType = "error"
	EventTypeCancel  EventType = "cancel"
	EventTypeTimeout EventType = "timeout"
)

// ConversationEvent records a non-message occurrence in a conversation,
// such as a failed model call.
type ConversationEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id,omitempty"`
	Type           EventType `json:"type"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
	Sequence       uint64    `json:"sequence,omitempty"`
}

// NewConversationEvent creates an event for a conversation.
func NewConversationEvent(userID, conversationID string, t EventType, reason string) *ConversationEvent {
	return &ConversationEvent{
		ID:             NewID(),
		ConversationID: conversationID,
		UserID:         userID,
		Type:           t,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}
}
