package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/studiumlab/studium/internal/api"
	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/service"
)

type ChatService interface {
	Send(ctx context.Context, input service.SendInput) (<-chan service.StreamEvent, error)
	ListSessions(ctx context.Context, input service.ListSessionsInput) (*service.ListSessionsOutput, error)
	ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type SendChatRequest struct {
	SessionID      string `json:"chat_id"`
	UserID         string `json:"user_id"`
	ModuleID       string `json:"module_id"`
	AgentID        string `json:"agent_id"`
	Message        string `json:"message"`
	Model          string `json:"model"`
	InternetSearch bool   `json:"internet_search"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Cursor   string            `json:"cursor,omitempty"`
	HasMore  bool              `json:"has_more"`
}

type MessageResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type MessageListResponse struct {
	SessionID string            `json:"chat_id"`
	Messages  []MessageResponse `json:"messages"`
}

// Send runs one chat exchange and streams the reply as server-sent
// events. Errors in the synchronous phase (bad input, missing
// assignment, exhausted credits) are reported as plain JSON before any
// event is written; once streaming has begun failures arrive as a
// terminal error event instead.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" {
		api.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	events, err := h.svc.Send(r.Context(), service.SendInput{
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		ModuleID:       req.ModuleID,
		AgentID:        req.AgentID,
		Message:        req.Message,
		ModelOverride:  req.Model,
		InternetSearch: req.InternetSearch,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// ListSessions returns a page of a user's chat sessions for a module,
// newest first.
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	moduleID := chi.URLParam(r, "moduleID")
	if userID == "" || moduleID == "" {
		api.Error(w, http.StatusBadRequest, "userID and moduleID are required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	out, err := h.svc.ListSessions(r.Context(), service.ListSessionsInput{
		UserID:   userID,
		ModuleID: moduleID,
		Cursor:   r.URL.Query().Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SessionListResponse{
		Sessions: make([]SessionResponse, 0, len(out.Items)),
		Cursor:   out.Cursor,
		HasMore:  out.HasMore,
	}
	for _, s := range out.Items {
		resp.Sessions = append(resp.Sessions, SessionResponse{
			ID:        s.ID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	api.Success(w, http.StatusOK, resp)
}

// ListMessages returns a session's full transcript in order.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "chatID")
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "chatID is required")
		return
	}

	messages, err := h.svc.ListMessages(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := MessageListResponse{
		SessionID: sessionID,
		Messages:  make([]MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:        m.ID,
			Sender:    string(m.Sender),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	api.Success(w, http.StatusOK, resp)
}
