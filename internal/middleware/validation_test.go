package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
)

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.NoError(t, ValidateMessageContent("héllo, wörld"))

	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", maxContentBytes+1)))
	assert.Error(t, ValidateMessageContent("bad\xff\xfe"))
}

func TestValidateConversationID(t *testing.T) {
	assert.NoError(t, ValidateConversationID(model.NewID()))
	assert.Error(t, ValidateConversationID("not-a-uuid"))
	assert.Error(t, ValidateConversationID(""))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle(""))
	assert.NoError(t, ValidateTitle("New Chat"))
	assert.Error(t, ValidateTitle(strings.Repeat("t", maxTitleBytes+1)))
	assert.Error(t, ValidateTitle("bad\xff"))
}
