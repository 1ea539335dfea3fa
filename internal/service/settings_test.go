package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studiumlab/studium/internal/domain"
)

func newSettingsFixture() (*SettingsService, *MockSettingsRepository, *MockVectorIndex) {
	store := new(MockSettingsRepository)
	embedder := new(MockEmbedder)
	index := new(MockVectorIndex)
	ingest := NewIngestService(embedder, index)
	svc := NewSettingsService(store, ingest)
	svc.uuidGen = &fixedUUIDGenerator{ids: []string{"st-1"}}
	return svc, store, index
}

func TestGetModuleSettings_ReturnsStored(t *testing.T) {
	svc, store, index := newSettingsFixture()

	stored := domain.NewChatbotSettings("st-1", "mod-1", "openai/gpt-4o", 0.2, "Be brief.", 256)
	store.On("GetByModule", mock.Anything, "mod-1").Return(stored, nil)
	index.On("ListDocuments", mock.Anything, "mod-1").Return([]domain.DocumentRef{
		{Filename: "notes.pdf", ChunkCount: 12},
	}, nil)

	settings, docs, err := svc.GetModuleSettings(context.Background(), "mod-1")

	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", settings.Model)
	assert.Equal(t, 0.2, settings.Temperature)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.pdf", docs[0].Filename)
}

func TestGetModuleSettings_FallsBackToDefaults(t *testing.T) {
	svc, store, index := newSettingsFixture()

	store.On("GetByModule", mock.Anything, "mod-1").Return(nil, domain.ErrSettingsNotFound)
	index.On("ListDocuments", mock.Anything, "mod-1").Return([]domain.DocumentRef{}, nil)

	settings, _, err := svc.GetModuleSettings(context.Background(), "mod-1")

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultModel, settings.Model)
	assert.Equal(t, domain.DefaultTemperature, settings.Temperature)
	assert.Equal(t, domain.DefaultMaxTokens, settings.MaxTokens)
}

func TestGetModuleSettings_MissingModuleID(t *testing.T) {
	svc, _, _ := newSettingsFixture()

	_, _, err := svc.GetModuleSettings(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestSaveModuleSettings_Upserts(t *testing.T) {
	svc, store, _ := newSettingsFixture()

	store.On("Upsert", mock.Anything, mock.MatchedBy(func(s *domain.ChatbotSettings) bool {
		return s.ModuleID == "mod-1" && s.Model == "openai/gpt-4o" && s.MaxTokens == 512
	})).Return(nil)

	saved, err := svc.SaveModuleSettings(context.Background(), SaveInput{
		ModuleID:     "mod-1",
		Model:        "openai/gpt-4o",
		Temperature:  0.4,
		SystemPrompt: "Stay on topic.",
		MaxTokens:    512,
	})

	require.NoError(t, err)
	assert.Equal(t, "Stay on topic.", saved.SystemPrompt)
	store.AssertExpectations(t)
}

func TestSaveModuleSettings_RejectsBadTemperature(t *testing.T) {
	svc, store, _ := newSettingsFixture()

	_, err := svc.SaveModuleSettings(context.Background(), SaveInput{
		ModuleID:    "mod-1",
		Model:       domain.DefaultModel,
		Temperature: 3.5,
		MaxTokens:   512,
	})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}
