package service

import (
	"context"
	"fmt"

	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/openai"
)

// ChatCompleter is the non-streaming completion surface, used for
// title generation.
type ChatCompleter interface {
	Complete(ctx context.Context, req openai.ChatRequest) (string, error)
}

const (
	titleTemperature = 0.7
	titleMaxTokens   = 20
)

// HistoryPair is one completed user/assistant exchange.
type HistoryPair struct {
	User      string
	Assistant string
}

// PairHistory folds an ordered message list into completed exchanges.
// A user message is buffered until the assistant reply that answers it
// arrives. Two user messages in a row, which imported transcripts can
// contain, flush the first as a pair with an empty assistant side; a
// dangling trailing user message is dropped.
func PairHistory(messages []*domain.ChatMessage) []HistoryPair {
	var pairs []HistoryPair
	var pendingUser *string

	for _, m := range messages {
		switch m.Sender {
		case domain.SenderUser:
			if pendingUser != nil {
				pairs = append(pairs, HistoryPair{User: *pendingUser})
			}
			content := m.Content
			pendingUser = &content
		case domain.SenderAssistant:
			if pendingUser != nil {
				pairs = append(pairs, HistoryPair{User: *pendingUser, Assistant: m.Content})
				pendingUser = nil
			}
		}
	}
	return pairs
}

// HistoryMessages converts pairs into alternating provider messages.
func HistoryMessages(pairs []HistoryPair) []openai.ChatMessage {
	out := make([]openai.ChatMessage, 0, len(pairs)*2)
	for _, p := range pairs {
		out = append(out,
			openai.ChatMessage{Role: "user", Content: p.User},
			openai.ChatMessage{Role: "assistant", Content: p.Assistant},
		)
	}
	return out
}

// GenerateTitle asks the model for a short descriptive session title
// based on the opening message. The result is normalized to at most
// eight words with surrounding quotes stripped. On provider failure
// the opening message itself is normalized and used, so a session
// always gets a title on its first exchange.
func GenerateTitle(ctx context.Context, completer ChatCompleter, model, firstMessage string) string {
	prompt := fmt.Sprintf(
		"Provide one short, descriptive chat title (at most %d words) for a conversation that starts with the following message. "+
			"Return only the title, without numbering or additional commentary: %s",
		domain.MaxTitleWords, firstMessage,
	)

	raw, err := completer.Complete(ctx, openai.ChatRequest{
		Model:       model,
		Messages:    []openai.ChatMessage{{Role: "user", Content: prompt}},
		Temperature: titleTemperature,
		MaxTokens:   titleMaxTokens,
	})
	if err != nil {
		return domain.NormalizeTitle(firstMessage)
	}

	title := domain.NormalizeTitle(raw)
	if title == "" {
		return domain.NormalizeTitle(firstMessage)
	}
	return title
}
