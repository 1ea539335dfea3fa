package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiumlab/studium/internal/domain"
)

type SettingsRepository struct {
	db dbtx
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: pool}
}

func NewSettingsRepositoryWithTx(tx pgx.Tx) *SettingsRepository {
	return &SettingsRepository{db: tx}
}

func (r *SettingsRepository) GetByModule(ctx context.Context, moduleID string) (*domain.ChatbotSettings, error) {
	var s domain.ChatbotSettings
	err := r.db.QueryRow(ctx,
		`SELECT id, module_id, model, temperature, system_prompt, max_tokens
		 FROM chatbot_settings WHERE module_id = $1`,
		moduleID,
	).Scan(&s.ID, &s.ModuleID, &s.Model, &s.Temperature, &s.SystemPrompt, &s.MaxTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s *domain.ChatbotSettings) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chatbot_settings (id, module_id, model, temperature, system_prompt, max_tokens, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (module_id) DO UPDATE SET
		   model = EXCLUDED.model,
		   temperature = EXCLUDED.temperature,
		   system_prompt = EXCLUDED.system_prompt,
		   max_tokens = EXCLUDED.max_tokens,
		   updated_at = EXCLUDED.updated_at`,
		s.ID, s.ModuleID, s.Model, s.Temperature, s.SystemPrompt, s.MaxTokens, time.Now().UTC(),
	)
	return err
}
