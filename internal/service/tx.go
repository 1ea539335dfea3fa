package service

import (
	"context"

	"github.com/studiumlab/studium/internal/domain"
)

// SessionWriter is the transactional slice of the session repository.
type SessionWriter interface {
	Create(ctx context.Context, s *domain.ChatSession) error
	SetTitleOnce(ctx context.Context, id, title string) (string, error)
}

// MessageWriter is the transactional slice of the message repository.
type MessageWriter interface {
	Create(ctx context.Context, m *domain.ChatMessage) error
}

// AssignmentWriter is the transactional slice of the assignment repository.
type AssignmentWriter interface {
	Debit(ctx context.Context, id string, cost float64) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Sessions() SessionWriter
	Messages() MessageWriter
	Assignments() AssignmentWriter
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
