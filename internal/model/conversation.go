// Package model defines the data types shared by the chat engine and the
// backend server.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is one chat thread: an ordered, append-only sequence of
// messages with a mutable title. The engine's store keeps Messages inline;
// the server keeps them in the message log and leaves Messages empty.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages     []Message `json:"messages,omitempty"`
	MessageCount int       `json:"message_count,omitempty"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	Deleted      bool      `json:"deleted,omitempty"`
}

// NewConversation creates an empty conversation with a fresh id.
func NewConversation(userID, title string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        NewID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID allocates a time-ordered unique identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateConversationRequest is the request to rename a conversation.
type UpdateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
