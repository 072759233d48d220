// Package store holds the conversation history for one chat session.
//
// The store is the single owner of all conversation and message data on the
// client side. Message sequences are append-only: once a message is in a
// conversation it is never reordered, mutated, or removed.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
)

// ErrNotFound is returned when an operation references a conversation id
// that is not in the store.
var ErrNotFound = errors.New("conversation not found")

// Store is an ordered collection of conversations. All mutations are
// serialized; reads hand out snapshots so callers can never corrupt the
// message ordering.
type Store struct {
	mu       sync.Mutex
	order    []string
	byID     map[string]*model.Conversation
	activeID string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byID: make(map[string]*model.Conversation),
	}
}

// CreateConversation allocates a new empty conversation appended to the end
// of the collection and returns its id.
func (s *Store) CreateConversation(title string) string {
	conv := model.NewConversation("", title)

	s.mu.Lock()
	s.byID[conv.ID] = conv
	s.order = append(s.order, conv.ID)
	s.mu.Unlock()

	return conv.ID
}

// SelectConversation makes the named conversation the active one.
func (s *Store) SelectConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	s.activeID = id
	return nil
}

// AppendMessage appends msg to the named conversation's message sequence
// and bumps its updated timestamp. This is the only mutation of message
// history the store supports.
func (s *Store) AppendMessage(conversationID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[conversationID]
	if !ok {
		return ErrNotFound
	}

	conv.Messages = append(conv.Messages, msg)
	conv.MessageCount = len(conv.Messages)
	conv.UpdatedAt = time.Now()
	return nil
}

// ActiveConversationID returns the id of the active conversation, or "".
func (s *Store) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// ActiveConversation returns a snapshot of the active conversation. The
// second return is false when no conversation is active.
func (s *Store) ActiveConversation() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[s.activeID]
	if !ok {
		return model.Conversation{}, false
	}
	return snapshot(conv), true
}

// Conversation returns a snapshot of the named conversation.
func (s *Store) Conversation(id string) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return model.Conversation{}, ErrNotFound
	}
	return snapshot(conv), nil
}

// Conversations returns snapshots of all conversations in creation order.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, snapshot(s.byID[id]))
	}
	return out
}

// Len returns the number of conversations in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func snapshot(conv *model.Conversation) model.Conversation {
	out := *conv
	out.Messages = make([]model.Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return out
}
