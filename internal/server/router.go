package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studiumlab/studium/internal/api"
	"github.com/studiumlab/studium/internal/api/handlers"
	"github.com/studiumlab/studium/internal/api/middleware"
)

type RouterConfig struct {
	ChatHandler     *handlers.ChatHandler
	DocumentHandler *handlers.DocumentHandler
	SettingsHandler *handlers.SettingsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024
	const maxUploadBodyBytes int64 = 40 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(maxUploadBodyBytes))

		r.Post("/documents/tag", cfg.DocumentHandler.Tag)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(maxBodyBytes))

		r.Post("/documents/untag", cfg.DocumentHandler.Untag)

		r.Get("/model-settings/{moduleID}", cfg.SettingsHandler.Get)
		r.Put("/model-settings", cfg.SettingsHandler.Save)

		r.Post("/chat/send", cfg.ChatHandler.Send)
		r.Get("/chats/{userID}/{moduleID}", cfg.ChatHandler.ListSessions)
		r.Get("/chats/{chatID}/messages", cfg.ChatHandler.ListMessages)
	})

	return r
}
