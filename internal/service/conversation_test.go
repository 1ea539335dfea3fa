package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/openai"
)

func msg(sender domain.Sender, content string) *domain.ChatMessage {
	return domain.NewChatMessage("m", "s", sender, content, time.Now().UTC())
}

func TestPairHistory(t *testing.T) {
	pairs := PairHistory([]*domain.ChatMessage{
		msg(domain.SenderUser, "q1"),
		msg(domain.SenderAssistant, "a1"),
		msg(domain.SenderUser, "q2"),
		msg(domain.SenderAssistant, "a2"),
	})

	assert.Equal(t, []HistoryPair{
		{User: "q1", Assistant: "a1"},
		{User: "q2", Assistant: "a2"},
	}, pairs)
}

func TestPairHistory_DropsDanglingUserMessage(t *testing.T) {
	pairs := PairHistory([]*domain.ChatMessage{
		msg(domain.SenderUser, "q1"),
		msg(domain.SenderAssistant, "a1"),
		msg(domain.SenderUser, "unanswered"),
	})

	assert.Len(t, pairs, 1)
	assert.Equal(t, "q1", pairs[0].User)
}

func TestPairHistory_ConsecutiveUserMessagesFlush(t *testing.T) {
	pairs := PairHistory([]*domain.ChatMessage{
		msg(domain.SenderUser, "q1"),
		msg(domain.SenderUser, "q2"),
		msg(domain.SenderAssistant, "a2"),
	})

	assert.Equal(t, []HistoryPair{
		{User: "q1", Assistant: ""},
		{User: "q2", Assistant: "a2"},
	}, pairs)
}

func TestPairHistory_OrphanAssistantIgnored(t *testing.T) {
	pairs := PairHistory([]*domain.ChatMessage{
		msg(domain.SenderAssistant, "stray"),
		msg(domain.SenderUser, "q1"),
		msg(domain.SenderAssistant, "a1"),
	})

	assert.Equal(t, []HistoryPair{{User: "q1", Assistant: "a1"}}, pairs)
}

func TestHistoryMessages_Alternates(t *testing.T) {
	out := HistoryMessages([]HistoryPair{{User: "q", Assistant: "a"}})

	assert.Equal(t, []openai.ChatMessage{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	}, out)
}

func TestGenerateTitle_NormalizesModelOutput(t *testing.T) {
	completer := new(MockChatLLM)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.MaxTokens == titleMaxTokens && len(req.Messages) == 1
	})).Return("\"Intro to Recursion and Base Cases\"\n", nil)

	title := GenerateTitle(context.Background(), completer, "test-model", "What is recursion?")

	assert.Equal(t, "Intro to Recursion and Base Cases", title)
}

func TestGenerateTitle_TruncatesToWordLimit(t *testing.T) {
	completer := new(MockChatLLM)
	completer.On("Complete", mock.Anything, mock.Anything).
		Return("one two three four five six seven eight nine ten", nil)

	title := GenerateTitle(context.Background(), completer, "test-model", "hi")

	assert.Equal(t, "one two three four five six seven eight", title)
}

func TestGenerateTitle_FallsBackToFirstMessage(t *testing.T) {
	completer := new(MockChatLLM)
	completer.On("Complete", mock.Anything, mock.Anything).
		Return("", domain.ErrUpstreamUnavailable)

	title := GenerateTitle(context.Background(), completer, "test-model", "Explain tail recursion to me please")

	assert.Equal(t, "Explain tail recursion to me please", title)
}
