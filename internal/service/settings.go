package service

import (
	"context"
	"errors"

	"github.com/studiumlab/studium/internal/domain"
)

// SettingsStore is the full settings repository surface.
type SettingsStore interface {
	GetByModule(ctx context.Context, moduleID string) (*domain.ChatbotSettings, error)
	Upsert(ctx context.Context, s *domain.ChatbotSettings) error
}

// SettingsService serves module chatbot settings together with the
// indexed document listing shown on the settings page.
type SettingsService struct {
	store   SettingsStore
	ingest  *IngestService
	uuidGen UUIDGenerator
}

func NewSettingsService(store SettingsStore, ingest *IngestService) *SettingsService {
	return &SettingsService{
		store:   store,
		ingest:  ingest,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// GetModuleSettings returns the module's settings, falling back to
// platform defaults when none are stored, plus the best-effort
// document listing.
func (s *SettingsService) GetModuleSettings(ctx context.Context, moduleID string) (*domain.ChatbotSettings, []domain.DocumentRef, error) {
	if moduleID == "" {
		return nil, nil, domain.ErrMissingRequiredField
	}

	settings, err := s.store.GetByModule(ctx, moduleID)
	if err != nil {
		if errors.Is(err, domain.ErrSettingsNotFound) {
			settings = domain.DefaultChatbotSettings(moduleID)
		} else {
			return nil, nil, err
		}
	}

	return settings, s.ingest.ListDocuments(ctx, moduleID), nil
}

// SaveInput carries a settings upsert.
type SaveInput struct {
	ModuleID     string
	Model        string
	Temperature  float64
	SystemPrompt string
	MaxTokens    int
}

// SaveModuleSettings validates and upserts the module settings.
func (s *SettingsService) SaveModuleSettings(ctx context.Context, input SaveInput) (*domain.ChatbotSettings, error) {
	settings := domain.NewChatbotSettings(
		s.uuidGen.NewString(),
		input.ModuleID,
		input.Model,
		input.Temperature,
		input.SystemPrompt,
		input.MaxTokens,
	)
	if err := domain.ValidateChatbotSettings(settings); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid chatbot settings", err)
	}

	if err := s.store.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
