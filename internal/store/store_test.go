package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
)

func TestCreateConversationPreservesListingOrder(t *testing.T) {
	s := New()

	first := s.CreateConversation("first")
	second := s.CreateConversation("second")
	third := s.CreateConversation("third")

	convs := s.Conversations()
	require.Len(t, convs, 3)
	assert.Equal(t, []string{first, second, third}, []string{convs[0].ID, convs[1].ID, convs[2].ID})
	assert.Equal(t, 3, s.Len())
}

func TestSelectConversation(t *testing.T) {
	s := New()
	id := s.CreateConversation("chat")

	require.NoError(t, s.SelectConversation(id))
	assert.Equal(t, id, s.ActiveConversationID())

	err := s.SelectConversation("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, id, s.ActiveConversationID(), "failed select must not change the active conversation")
}

func TestAppendMessageOrderEqualsCallOrder(t *testing.T) {
	s := New()
	id := s.CreateConversation("ordering")

	const n = 50
	for i := 0; i < n; i++ {
		msg := model.NewUserMessage(id, fmt.Sprintf("message-%d", i))
		require.NoError(t, s.AppendMessage(id, msg))
	}

	conv, err := s.Conversation(id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, n)
	for i, msg := range conv.Messages {
		assert.Equal(t, fmt.Sprintf("message-%d", i), msg.Content)
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := New()
	err := s.AppendMessage("missing", model.NewUserMessage("missing", "hi"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessageBumpsUpdatedAt(t *testing.T) {
	s := New()
	id := s.CreateConversation("timestamps")

	before, err := s.Conversation(id)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.AppendMessage(id, model.NewUserMessage(id, "hello")))

	after, err := s.Conversation(id)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.False(t, after.UpdatedAt.Before(after.CreatedAt))
}

func TestActiveConversation(t *testing.T) {
	s := New()

	_, ok := s.ActiveConversation()
	assert.False(t, ok, "empty store has no active conversation")

	id := s.CreateConversation("active")
	require.NoError(t, s.SelectConversation(id))

	conv, ok := s.ActiveConversation()
	require.True(t, ok)
	assert.Equal(t, id, conv.ID)
	assert.Empty(t, conv.Messages)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := New()
	id := s.CreateConversation("snapshot")
	require.NoError(t, s.SelectConversation(id))
	require.NoError(t, s.AppendMessage(id, model.NewUserMessage(id, "original")))

	conv, ok := s.ActiveConversation()
	require.True(t, ok)
	conv.Messages[0].Content = "mutated"
	conv.Title = "mutated"

	fresh, err := s.Conversation(id)
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.Messages[0].Content)
	assert.Equal(t, "snapshot", fresh.Title)
}
