package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studiumlab/studium/internal/api"
	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/service"
)

type SettingsService interface {
	GetModuleSettings(ctx context.Context, moduleID string) (*domain.ChatbotSettings, []domain.DocumentRef, error)
	SaveModuleSettings(ctx context.Context, input service.SaveInput) (*domain.ChatbotSettings, error)
}

type SettingsHandler struct {
	svc SettingsService
}

func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

type SettingsResponse struct {
	ModuleID     string             `json:"module_id"`
	Model        string             `json:"model"`
	SystemPrompt string             `json:"systemPrompt"`
	Temperature  float64            `json:"temperature"`
	MaxTokens    int                `json:"maxTokens"`
	Documents    []DocumentResponse `json:"documents,omitempty"`
}

type DocumentResponse struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

type SaveSettingsRequest struct {
	ModuleID     string   `json:"module_id"`
	Model        *string  `json:"model"`
	SystemPrompt string   `json:"systemPrompt"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    *int     `json:"maxTokens"`
}

func settingsResponse(s *domain.ChatbotSettings, docs []domain.DocumentRef) SettingsResponse {
	resp := SettingsResponse{
		ModuleID:     s.ModuleID,
		Model:        s.Model,
		SystemPrompt: s.SystemPrompt,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
	}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, DocumentResponse{
			Filename:   d.Filename,
			ChunkCount: d.ChunkCount,
		})
	}
	return resp
}

// Get returns the chatbot settings for a module, falling back to
// defaults when none have been saved yet.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "moduleID")
	if moduleID == "" {
		api.Error(w, http.StatusBadRequest, "moduleID is required")
		return
	}

	settings, docs, err := h.svc.GetModuleSettings(r.Context(), moduleID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, settingsResponse(settings, docs))
}

// Save upserts chatbot settings for a module. Omitted generation
// parameters fall back to the platform defaults.
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ModuleID == "" {
		api.Error(w, http.StatusBadRequest, "module_id is required")
		return
	}

	input := service.SaveInput{
		ModuleID:     req.ModuleID,
		Model:        domain.DefaultModel,
		Temperature:  domain.DefaultTemperature,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    domain.DefaultMaxTokens,
	}
	if req.Model != nil {
		input.Model = *req.Model
	}
	if req.Temperature != nil {
		input.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		input.MaxTokens = *req.MaxTokens
	}

	saved, err := h.svc.SaveModuleSettings(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, settingsResponse(saved, nil))
}
