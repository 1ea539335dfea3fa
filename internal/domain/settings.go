package domain

import "fmt"

// Default generation parameters applied when a module has no explicit
// chatbot settings row
const (
	DefaultModel       = "openai/gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

// ChatbotSettings holds the per-module generation configuration
type ChatbotSettings struct {
	ID           string
	ModuleID     string
	Model        string
	Temperature  float64
	SystemPrompt string
	MaxTokens    int
}

// NewChatbotSettings creates a new ChatbotSettings instance
func NewChatbotSettings(id, moduleID, model string, temperature float64, systemPrompt string, maxTokens int) *ChatbotSettings {
	return &ChatbotSettings{
		ID:           id,
		ModuleID:     moduleID,
		Model:        model,
		Temperature:  temperature,
		SystemPrompt: systemPrompt,
		MaxTokens:    maxTokens,
	}
}

// DefaultChatbotSettings returns settings pre-filled with the platform
// defaults for the given module
func DefaultChatbotSettings(moduleID string) *ChatbotSettings {
	return &ChatbotSettings{
		ModuleID:    moduleID,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// ValidateChatbotSettings validates a ChatbotSettings instance
func ValidateChatbotSettings(s *ChatbotSettings) error {
	if s == nil {
		return fmt.Errorf("chatbot settings cannot be nil")
	}

	if s.ModuleID == "" {
		return fmt.Errorf("chatbot settings ModuleID is required")
	}

	if s.Model == "" {
		return fmt.Errorf("chatbot settings Model is required")
	}

	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("chatbot settings Temperature must be between 0 and 2: %v", s.Temperature)
	}

	if s.MaxTokens <= 0 {
		return fmt.Errorf("chatbot settings MaxTokens must be greater than 0")
	}

	return nil
}
