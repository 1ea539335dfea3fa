package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/studiumlab/studium/internal/domain"
	"github.com/studiumlab/studium/internal/openai"
	"github.com/studiumlab/studium/internal/pagination"
	"github.com/studiumlab/studium/internal/telemetry"
)

// SessionRepositoryInterface defines the repository interface for chat sessions
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *domain.ChatSession) error
	GetByID(ctx context.Context, id string) (*domain.ChatSession, error)
	SetTitleOnce(ctx context.Context, id, title string) (string, error)
	ListByAssignmentWithCursor(ctx context.Context, assignmentID string, cursor *pagination.Cursor, limit int) (*SessionPageResult, error)
}

// MessageRepositoryInterface defines the repository interface for chat messages
type MessageRepositoryInterface interface {
	ListBySession(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error)
}

// AssignmentRepositoryInterface defines the read surface for assignments
type AssignmentRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.ModuleAssignment, error)
	GetByUserAndModule(ctx context.Context, userID, moduleID string) (*domain.ModuleAssignment, error)
}

// SettingsRepositoryInterface defines the read surface for module settings
type SettingsRepositoryInterface interface {
	GetByModule(ctx context.Context, moduleID string) (*domain.ChatbotSettings, error)
}

// AgentRepositoryInterface defines the read surface for agents
type AgentRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
}

// ChatLLM is the generation surface the chat service depends on
type ChatLLM interface {
	StreamChat(ctx context.Context, req openai.ChatRequest, onToken func(token string) error) (domain.TokenUsage, error)
	Complete(ctx context.Context, req openai.ChatRequest) (string, error)
}

// PriceSource resolves per-token model prices
type PriceSource interface {
	PriceFor(ctx context.Context, model string) (domain.ModelPrice, error)
}

type SessionPageResult struct {
	Items      []*domain.ChatSession
	NextCursor string
	HasMore    bool
}

// SendInput is one chat request. Exactly one of ModuleID and AgentID
// must be set.
type SendInput struct {
	SessionID      string
	UserID         string
	ModuleID       string
	AgentID        string
	Message        string
	ModelOverride  string
	InternetSearch bool
}

// ChatService orchestrates one chat exchange: credit gate, pricing,
// session bookkeeping, retrieval policy, streamed generation, and the
// atomic message-append-plus-debit transaction.
type ChatService struct {
	sessions    SessionRepositoryInterface
	messages    MessageRepositoryInterface
	assignments AssignmentRepositoryInterface
	settings    SettingsRepositoryInterface
	agents      AgentRepositoryInterface
	llm         ChatLLM
	pricer      PriceSource
	retrieval   *RetrievalService
	txRunner    TxRunner
	uuidGen     UUIDGenerator

	mu           sync.Mutex
	sessionLocks map[string]*sessionLock
}

func NewChatService(
	sessions SessionRepositoryInterface,
	messages MessageRepositoryInterface,
	assignments AssignmentRepositoryInterface,
	settings SettingsRepositoryInterface,
	agents AgentRepositoryInterface,
	llm ChatLLM,
	pricer PriceSource,
	retrieval *RetrievalService,
	txRunner TxRunner,
) *ChatService {
	return &ChatService{
		sessions:     sessions,
		messages:     messages,
		assignments:  assignments,
		settings:     settings,
		agents:       agents,
		llm:          llm,
		pricer:       pricer,
		retrieval:    retrieval,
		txRunner:     txRunner,
		uuidGen:      &DefaultUUIDGenerator{},
		sessionLocks: make(map[string]*sessionLock),
	}
}

// WithUUIDGen overrides ID generation, used in tests.
func (s *ChatService) WithUUIDGen(gen UUIDGenerator) *ChatService {
	s.uuidGen = gen
	return s
}

// exchange carries everything resolved before the worker starts.
type exchange struct {
	input      SendInput
	session    *domain.ChatSession
	settings   *domain.ChatbotSettings
	assignment *domain.ModuleAssignment
	price      domain.ModelPrice
	history    []*domain.ChatMessage
}

// Send validates the request, applies the credit gate, resolves
// pricing and the session, then starts the generation worker. The
// returned channel carries the event stream and is closed when the
// exchange finishes or fails. Errors returned directly map to HTTP
// statuses before any streaming begins.
func (s *ChatService) Send(ctx context.Context, input SendInput) (<-chan StreamEvent, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Send", telemetry.SpanAttributes{
		ModuleID:  input.ModuleID,
		SessionID: input.SessionID,
		Operation: "send",
	})
	defer span.End()

	if strings.TrimSpace(input.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}
	if (input.ModuleID == "") == (input.AgentID == "") {
		return nil, domain.ErrInvalidChatScope
	}

	ex := &exchange{input: input}

	if input.ModuleID != "" {
		if input.UserID == "" {
			return nil, domain.ErrMissingRequiredField
		}

		assignment, err := s.assignments.GetByUserAndModule(ctx, input.UserID, input.ModuleID)
		if err != nil {
			return nil, err
		}
		if !assignment.HasCredit() {
			return nil, domain.NewDomainError(domain.ErrCodeInsufficientCredit,
				fmt.Sprintf("assignment balance is negative: %.6f", assignment.Credits))
		}
		ex.assignment = assignment

		settings, err := s.settings.GetByModule(ctx, input.ModuleID)
		if err != nil {
			return nil, err
		}
		ex.settings = settings
	} else {
		agent, err := s.agents.GetByID(ctx, input.AgentID)
		if err != nil {
			return nil, err
		}
		ex.settings = agent.Settings()
	}

	if input.ModelOverride != "" {
		ex.settings.Model = input.ModelOverride
	}

	// Never generate without a resolved price for billable chats.
	if ex.assignment != nil {
		price, err := s.pricer.PriceFor(ctx, ex.settings.Model)
		if err != nil {
			return nil, err
		}
		ex.price = price
	}

	session, err := s.resolveSession(ctx, ex)
	if err != nil {
		return nil, err
	}
	ex.session = session

	if ex.input.SessionID != "" {
		history, err := s.messages.ListBySession(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		ex.history = history
	}

	events := make(chan StreamEvent, streamBufferSize)
	go s.generate(ctx, ex, events)
	return events, nil
}

// resolveSession loads the referenced session or creates and commits a
// new one before generation starts, so the session survives a failed
// exchange.
func (s *ChatService) resolveSession(ctx context.Context, ex *exchange) (*domain.ChatSession, error) {
	if ex.input.SessionID != "" {
		session, err := s.sessions.GetByID(ctx, ex.input.SessionID)
		if err != nil {
			return nil, err
		}
		if ex.assignment != nil && session.AssignmentID != ex.assignment.ID {
			return nil, domain.ErrSessionNotFound
		}
		if ex.input.AgentID != "" && session.AgentID != ex.input.AgentID {
			return nil, domain.ErrSessionNotFound
		}
		return session, nil
	}

	assignmentID := ""
	if ex.assignment != nil {
		assignmentID = ex.assignment.ID
	}
	session := domain.NewChatSession(s.uuidGen.NewString(), assignmentID, ex.input.AgentID, time.Now().UTC())
	if err := domain.ValidateChatSession(session); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// generate is the per-request worker goroutine. It owns the event
// channel and always closes it. Sends respect context cancellation so
// a gone client never wedges the worker.
func (s *ChatService) generate(ctx context.Context, ex *exchange, events chan<- StreamEvent) {
	defer close(events)

	lock := s.lockSession(ex.session.ID)
	defer s.unlockSession(ex.session.ID, lock)

	emit := func(ev StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(startEvent(ex.session.ID)) {
		return
	}

	title := ex.session.Title
	if !ex.session.HasTitle() {
		generated := GenerateTitle(ctx, s.llm, ex.settings.Model, ex.input.Message)
		stored, err := s.sessions.SetTitleOnce(ctx, ex.session.ID, generated)
		if err != nil {
			emit(errorEvent("failed to record chat title"))
			telemetry.CaptureError(ctx, err)
			return
		}
		title = stored
	}

	var final string
	var usage domain.TokenUsage

	if ex.input.ModuleID != "" {
		decision, err := s.retrieval.Retrieve(ctx, ex.input.ModuleID, ex.input.Message, ex.input.InternetSearch)
		if err != nil {
			emit(errorEvent(err.Error()))
			telemetry.CaptureError(ctx, err)
			return
		}

		if decision.Refused {
			if !emit(tokenEvent(ScopeLimitMessage)) {
				return
			}
			final = ScopeLimitMessage
		} else {
			streamed, streamUsage, err := s.streamAnswer(ctx, ex, decision, emit)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				emit(errorEvent(err.Error()))
				telemetry.CaptureError(ctx, err)
				return
			}
			final = streamed
			usage = streamUsage
		}
	} else {
		streamed, streamUsage, err := s.streamAnswer(ctx, ex, nil, emit)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emit(errorEvent(err.Error()))
			telemetry.CaptureError(ctx, err)
			return
		}
		final = streamed
		usage = streamUsage
	}

	if ctx.Err() != nil {
		// Client went away mid-stream: nothing is persisted or billed.
		return
	}

	cost := 0.0
	if ex.assignment != nil && usage.Total() > 0 {
		cost = ex.price.Cost(usage)
	}

	if err := s.persistExchange(ctx, ex, final, cost); err != nil {
		emit(errorEvent("failed to persist chat exchange"))
		telemetry.CaptureError(ctx, err)
		return
	}

	balance := 0.0
	if ex.assignment != nil {
		balance = ex.assignment.Credits - cost
	}
	emit(doneEvent(ex.session.ID, title, final, cost, balance))
}

// streamAnswer runs the model stream, forwarding every token as an
// event, and returns the accumulated answer text and token usage.
func (s *ChatService) streamAnswer(ctx context.Context, ex *exchange, decision *RetrievalResult, emit func(StreamEvent) bool) (string, domain.TokenUsage, error) {
	messages := make([]openai.ChatMessage, 0, len(ex.history)+2)

	systemContent := ex.settings.SystemPrompt
	userContent := ex.input.Message
	if decision != nil {
		systemContent = decision.SystemInstruction(ex.settings.SystemPrompt)
		if block := decision.ContextBlock(); block != "" {
			userContent = ex.input.Message + "\n\n" + block
		}
	}
	if systemContent != "" {
		messages = append(messages, openai.ChatMessage{Role: "system", Content: systemContent})
	}
	messages = append(messages, HistoryMessages(PairHistory(ex.history))...)
	messages = append(messages, openai.ChatMessage{Role: "user", Content: userContent})

	var sb strings.Builder
	usage, err := s.llm.StreamChat(ctx, openai.ChatRequest{
		Model:       ex.settings.Model,
		Messages:    messages,
		Temperature: ex.settings.Temperature,
		MaxTokens:   ex.settings.MaxTokens,
	}, func(token string) error {
		if !emit(tokenEvent(token)) {
			return ctx.Err()
		}
		sb.WriteString(token)
		return nil
	})
	if err != nil {
		return "", usage, err
	}
	return sb.String(), usage, nil
}

// persistExchange appends the user and assistant messages and applies
// the debit in one transaction. Refusals and agent chats carry zero
// cost and skip the debit.
func (s *ChatService) persistExchange(ctx context.Context, ex *exchange, final string, cost float64) error {
	now := time.Now().UTC()
	userMsg := domain.NewChatMessage(s.uuidGen.NewString(), ex.session.ID, domain.SenderUser, ex.input.Message, now)
	botMsg := domain.NewChatMessage(s.uuidGen.NewString(), ex.session.ID, domain.SenderAssistant, final, now.Add(time.Microsecond))

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Messages().Create(ctx, userMsg); err != nil {
			return err
		}
		if err := repos.Messages().Create(ctx, botMsg); err != nil {
			return err
		}
		if ex.assignment != nil && cost > 0 {
			if err := repos.Assignments().Debit(ctx, ex.assignment.ID, cost); err != nil {
				return err
			}
		}
		return nil
	})
}

// sessionLock serializes exchanges on one session. refs counts the
// workers holding or waiting on it so the entry can be evicted when
// the last one releases.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (s *ChatService) lockSession(sessionID string) *sessionLock {
	s.mu.Lock()
	lock, ok := s.sessionLocks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.sessionLocks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *ChatService) unlockSession(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.sessionLocks, sessionID)
	}
	s.mu.Unlock()
}

// ListSessionsInput selects an assignment's sessions page.
type ListSessionsInput struct {
	UserID   string
	ModuleID string
	Cursor   string
	Limit    int
}

type ListSessionsOutput struct {
	Items   []*domain.ChatSession
	Cursor  string
	HasMore bool
}

// ListSessions returns the chat sessions of a user's module
// assignment, newest first.
func (s *ChatService) ListSessions(ctx context.Context, input ListSessionsInput) (*ListSessionsOutput, error) {
	assignment, err := s.assignments.GetByUserAndModule(ctx, input.UserID, input.ModuleID)
	if err != nil {
		return nil, err
	}

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	result, err := s.sessions.ListByAssignmentWithCursor(ctx, assignment.ID, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListSessionsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// ListMessages returns a session's messages in order.
func (s *ChatService) ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(ctx, sessionID)
}
