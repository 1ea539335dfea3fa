package domain

import (
	"fmt"
	"time"
)

// Agent represents a standalone assistant persona with its own
// generation parameters. Agent chats are never billed
type Agent struct {
	ID           string
	Name         string
	Description  string
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
	CreatedAt    time.Time
}

// NewAgent creates a new Agent instance
func NewAgent(id, name, description, systemPrompt, model string, temperature float64, maxTokens int, createdAt time.Time) *Agent {
	return &Agent{
		ID:           id,
		Name:         name,
		Description:  description,
		SystemPrompt: systemPrompt,
		Model:        model,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		CreatedAt:    createdAt,
	}
}

// Settings projects the agent's generation parameters into the shape
// the generation engine consumes
func (a *Agent) Settings() *ChatbotSettings {
	return &ChatbotSettings{
		Model:        a.Model,
		Temperature:  a.Temperature,
		SystemPrompt: a.SystemPrompt,
		MaxTokens:    a.MaxTokens,
	}
}

// ValidateAgent validates an Agent instance
func ValidateAgent(a *Agent) error {
	if a == nil {
		return fmt.Errorf("agent cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("agent ID is required")
	}

	if a.Name == "" {
		return fmt.Errorf("agent Name is required")
	}

	if a.Model == "" {
		return fmt.Errorf("agent Model is required")
	}

	return nil
}
