package domain

import (
	"fmt"
	"time"
)

// ModuleAssignment links a user to a module and carries the credit
// balance that module-scoped chats debit
type ModuleAssignment struct {
	ID       string
	UserID   string
	ModuleID string
	Credits  float64
}

// NewModuleAssignment creates a new ModuleAssignment instance
func NewModuleAssignment(id, userID, moduleID string, credits float64) *ModuleAssignment {
	return &ModuleAssignment{
		ID:       id,
		UserID:   userID,
		ModuleID: moduleID,
		Credits:  credits,
	}
}

// HasCredit reports whether the assignment may start a billable exchange.
// A zero balance is still allowed; only a negative one blocks
func (a *ModuleAssignment) HasCredit() bool {
	return a.Credits >= 0
}

// ValidateModuleAssignment validates a ModuleAssignment instance
func ValidateModuleAssignment(a *ModuleAssignment) error {
	if a == nil {
		return fmt.Errorf("module assignment cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("module assignment ID is required")
	}

	if a.UserID == "" {
		return fmt.Errorf("module assignment UserID is required")
	}

	if a.ModuleID == "" {
		return fmt.Errorf("module assignment ModuleID is required")
	}

	return nil
}

// TokenUsage reports the token counts of one completed generation
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns the combined token count
func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// ModelPrice holds per-token prices for a model
type ModelPrice struct {
	Model           string
	PromptPrice     float64
	CompletionPrice float64
	FetchedAt       time.Time
}

// Cost computes the credit cost of a generation
func (p ModelPrice) Cost(u TokenUsage) float64 {
	return float64(u.PromptTokens)*p.PromptPrice + float64(u.CompletionTokens)*p.CompletionPrice
}
