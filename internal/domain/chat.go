package domain

import (
	"fmt"
	"strings"
	"time"
)

// Sender identifies who authored a chat message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// MaxTitleWords caps the generated session title length
const MaxTitleWords = 8

// ChatSession represents a conversation bound to either a module
// assignment or an agent, never both
type ChatSession struct {
	ID           string
	AssignmentID string // Set for module-scoped chats
	AgentID      string // Set for agent-scoped chats
	Title        string
	CreatedAt    time.Time
}

// ChatMessage represents one turn in a session
type ChatMessage struct {
	ID        string
	SessionID string
	Sender    Sender
	Content   string
	CreatedAt time.Time
}

// NewChatSession creates a new ChatSession instance
func NewChatSession(id, assignmentID, agentID string, createdAt time.Time) *ChatSession {
	return &ChatSession{
		ID:           id,
		AssignmentID: assignmentID,
		AgentID:      agentID,
		Title:        "",
		CreatedAt:    createdAt,
	}
}

// NewChatMessage creates a new ChatMessage instance
func NewChatMessage(id, sessionID string, sender Sender, content string, createdAt time.Time) *ChatMessage {
	return &ChatMessage{
		ID:        id,
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		CreatedAt: createdAt,
	}
}

// IsModuleScoped reports whether the session bills against an assignment
func (s *ChatSession) IsModuleScoped() bool {
	return s.AssignmentID != ""
}

// HasTitle reports whether the one-time title has been set
func (s *ChatSession) HasTitle() bool {
	return s.Title != ""
}

// ValidateChatSession validates a ChatSession instance
func ValidateChatSession(s *ChatSession) error {
	if s == nil {
		return fmt.Errorf("chat session cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("chat session ID is required")
	}

	if (s.AssignmentID == "") == (s.AgentID == "") {
		return ErrInvalidChatScope
	}

	return nil
}

// ValidateChatMessage validates a ChatMessage instance
func ValidateChatMessage(m *ChatMessage) error {
	if m == nil {
		return fmt.Errorf("chat message cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("chat message ID is required")
	}

	if m.SessionID == "" {
		return fmt.Errorf("chat message SessionID is required")
	}

	if !isValidSender(m.Sender) {
		return fmt.Errorf("chat message Sender is invalid: %s", m.Sender)
	}

	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyMessage
	}

	return nil
}

// NormalizeTitle strips surrounding quotes and whitespace from a
// generated title and truncates it to MaxTitleWords words
func NormalizeTitle(raw string) string {
	title := strings.Trim(raw, "\"'\n\r\t .")
	words := strings.Fields(title)
	if len(words) > MaxTitleWords {
		words = words[:MaxTitleWords]
	}
	return strings.Join(words, " ")
}

// isValidSender checks if a Sender is valid
func isValidSender(s Sender) bool {
	switch s {
	case SenderUser, SenderAssistant:
		return true
	}
	return false
}
