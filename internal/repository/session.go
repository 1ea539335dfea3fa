package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/pagination"
	"github.com/studiumlab/studium/internal/service"
)

type SessionRepository struct {
	db dbtx
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: pool}
}

func NewSessionRepositoryWithTx(tx pgx.Tx) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.ChatSession) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_sessions (id, assignment_id, agent_id, title, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, nullableString(s.AssignmentID), nullableString(s.AgentID), s.Title, s.CreatedAt,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	var assignmentID, agentID *string
	err := r.db.QueryRow(ctx,
		`SELECT id, assignment_id, agent_id, title, created_at
		 FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &assignmentID, &agentID, &s.Title, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	if assignmentID != nil {
		s.AssignmentID = *assignmentID
	}
	if agentID != nil {
		s.AgentID = *agentID
	}
	return &s, nil
}

// SetTitleOnce records the generated title only if none is set yet.
// Returns the title that ended up on the session.
func (r *SessionRepository) SetTitleOnce(ctx context.Context, id, title string) (string, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chat_sessions SET title = $1 WHERE id = $2 AND title = ''`,
		title, id,
	)
	if err != nil {
		return "", err
	}
	if cmdTag.RowsAffected() > 0 {
		return title, nil
	}

	var existing string
	err = r.db.QueryRow(ctx, `SELECT title FROM chat_sessions WHERE id = $1`, id).Scan(&existing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrSessionNotFound
		}
		return "", err
	}
	return existing, nil
}

func (r *SessionRepository) ListByAssignmentWithCursor(ctx context.Context, assignmentID string, cursor *pagination.Cursor, limit int) (*service.SessionPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, assignment_id, agent_id, title, created_at
			 FROM chat_sessions
			 WHERE assignment_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			assignmentID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, assignment_id, agent_id, title, created_at
			 FROM chat_sessions
			 WHERE assignment_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			assignmentID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanSessionRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.SessionPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func scanSessionRows(rows pgx.Rows) ([]*domain.ChatSession, error) {
	var results []*domain.ChatSession
	for rows.Next() {
		var s domain.ChatSession
		var assignmentID, agentID *string
		if err := rows.Scan(&s.ID, &assignmentID, &agentID, &s.Title, &s.CreatedAt); err != nil {
			return nil, err
		}
		if assignmentID != nil {
			s.AssignmentID = *assignmentID
		}
		if agentID != nil {
			s.AgentID = *agentID
		}
		results = append(results, &s)
	}
	return results, rows.Err()
}
