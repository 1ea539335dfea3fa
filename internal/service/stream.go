package service

// StreamEventType discriminates streamed chat events.
type StreamEventType string

const (
	EventStart StreamEventType = "start"
	EventToken StreamEventType = "token"
	EventDone  StreamEventType = "done"
	EventError StreamEventType = "error"
)

// StreamEvent is one event on the chat response stream. The zero
// fields of unrelated event types are omitted on the wire.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Data      string          `json:"data,omitempty"`
	ChatID    string          `json:"chat_id,omitempty"`
	ChatTitle string          `json:"chat_title,omitempty"`
	Final     string          `json:"final,omitempty"`
	Cost      *float64        `json:"cost,omitempty"`
	Balance   *float64        `json:"balance,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// streamBufferSize bounds the event channel so a slow consumer applies
// backpressure to the generation worker instead of growing memory.
const streamBufferSize = 32

func startEvent(chatID string) StreamEvent {
	return StreamEvent{Type: EventStart, ChatID: chatID}
}

func tokenEvent(token string) StreamEvent {
	return StreamEvent{Type: EventToken, Data: token}
}

func doneEvent(chatID, title, final string, cost, balance float64) StreamEvent {
	return StreamEvent{
		Type:      EventDone,
		ChatID:    chatID,
		ChatTitle: title,
		Final:     final,
		Cost:      &cost,
		Balance:   &balance,
	}
}

func errorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Message: message}
}
