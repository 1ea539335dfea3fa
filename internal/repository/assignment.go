package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studiumlab/studium/internal/domain"
)

type AssignmentRepository struct {
	db dbtx
}

func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{db: pool}
}

func NewAssignmentRepositoryWithTx(tx pgx.Tx) *AssignmentRepository {
	return &AssignmentRepository{db: tx}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *domain.ModuleAssignment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO module_assignments (id, user_id, module_id, credits)
		 VALUES ($1, $2, $3, $4)`,
		a.ID, a.UserID, a.ModuleID, a.Credits,
	)
	return err
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*domain.ModuleAssignment, error) {
	return r.get(ctx,
		`SELECT id, user_id, module_id, credits FROM module_assignments WHERE id = $1`,
		id)
}

func (r *AssignmentRepository) GetByUserAndModule(ctx context.Context, userID, moduleID string) (*domain.ModuleAssignment, error) {
	return r.get(ctx,
		`SELECT id, user_id, module_id, credits FROM module_assignments WHERE user_id = $1 AND module_id = $2`,
		userID, moduleID)
}

// Debit subtracts cost from the assignment balance. The balance may go
// negative; the credit gate blocks the next exchange instead.
func (r *AssignmentRepository) Debit(ctx context.Context, id string, cost float64) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE module_assignments SET credits = credits - $1 WHERE id = $2`,
		cost, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

func (r *AssignmentRepository) get(ctx context.Context, sql string, args ...any) (*domain.ModuleAssignment, error) {
	var a domain.ModuleAssignment
	err := r.db.QueryRow(ctx, sql, args...).Scan(&a.ID, &a.UserID, &a.ModuleID, &a.Credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}
