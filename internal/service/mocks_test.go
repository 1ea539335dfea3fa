package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/openai"
	"github.com/studiumlab/studium/internal/pagination"
	"github.com/studiumlab/studium/internal/websearch"
)

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, s *domain.ChatSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) SetTitleOnce(ctx context.Context, id, title string) (string, error) {
	args := m.Called(ctx, id, title)
	return args.String(0), args.Error(1)
}

func (m *MockSessionRepository) ListByAssignmentWithCursor(ctx context.Context, assignmentID string, cursor *pagination.Cursor, limit int) (*SessionPageResult, error) {
	args := m.Called(ctx, assignmentID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SessionPageResult), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}

type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) GetByID(ctx context.Context, id string) (*domain.ModuleAssignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModuleAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) GetByUserAndModule(ctx context.Context, userID, moduleID string) (*domain.ModuleAssignment, error) {
	args := m.Called(ctx, userID, moduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModuleAssignment), args.Error(1)
}

func (m *MockAssignmentRepository) Debit(ctx context.Context, id string, cost float64) error {
	args := m.Called(ctx, id, cost)
	return args.Error(0)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetByModule(ctx context.Context, moduleID string) (*domain.ChatbotSettings, error) {
	args := m.Called(ctx, moduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatbotSettings), args.Error(1)
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, s *domain.ChatbotSettings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

type MockChatLLM struct {
	mock.Mock
}

func (m *MockChatLLM) StreamChat(ctx context.Context, req openai.ChatRequest, onToken func(token string) error) (domain.TokenUsage, error) {
	args := m.Called(ctx, req, onToken)
	return args.Get(0).(domain.TokenUsage), args.Error(1)
}

func (m *MockChatLLM) Complete(ctx context.Context, req openai.ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) PriceFor(ctx context.Context, model string) (domain.ModelPrice, error) {
	args := m.Called(ctx, model)
	return args.Get(0).(domain.ModelPrice), args.Error(1)
}

type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, moduleID string, chunks []domain.DocumentChunk) error {
	args := m.Called(ctx, moduleID, chunks)
	return args.Error(0)
}

func (m *MockVectorIndex) Search(ctx context.Context, moduleID string, embedding []float32, limit int) ([]domain.SearchHit, error) {
	args := m.Called(ctx, moduleID, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchHit), args.Error(1)
}

func (m *MockVectorIndex) DeleteByFilename(ctx context.Context, moduleID, filename string) (int, error) {
	args := m.Called(ctx, moduleID, filename)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorIndex) CollectionExists(ctx context.Context, moduleID string) (bool, error) {
	args := m.Called(ctx, moduleID)
	return args.Bool(0), args.Error(1)
}

func (m *MockVectorIndex) ListDocuments(ctx context.Context, moduleID string) ([]domain.DocumentRef, error) {
	args := m.Called(ctx, moduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentRef), args.Error(1)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]websearch.Result, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]websearch.Result), args.Error(1)
}

// testTxRepos exposes the same mocks used outside the transaction so
// tests can assert on transactional writes directly.
type testTxRepos struct {
	sessions    *MockSessionRepository
	messages    *MockMessageRepository
	assignments *MockAssignmentRepository
}

func (t *testTxRepos) Sessions() SessionWriter       { return t.sessions }
func (t *testTxRepos) Messages() MessageWriter       { return t.messages }
func (t *testTxRepos) Assignments() AssignmentWriter { return t.assignments }

type testTxRunner struct {
	repos  TxRepositories
	called bool
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}

// fixedUUIDGenerator hands out a deterministic ID sequence.
type fixedUUIDGenerator struct {
	ids  []string
	next int
}

func (g *fixedUUIDGenerator) NewString() string {
	if g.next >= len(g.ids) {
		return "uuid-overflow"
	}
	id := g.ids[g.next]
	g.next++
	return id
}
