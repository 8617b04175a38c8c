package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"studyai/internal/ai"
	"studyai/internal/model"
	"studyai/internal/repository"
)

// NoDocumentsAnswer is the fixed reply for a session without uploaded
// material. The model is never invoked on this path, so it cannot
// answer from its own knowledge.
const NoDocumentsAnswer = "There are no documents in this session. Upload study material before asking questions."

const emptyModelAnswer = "The model returned an empty response."

// Generator abstracts the model runtime so the pipeline stays
// model-agnostic and tests can stream canned fragments.
type Generator interface {
	Generate(ctx context.Context, cfg ai.GenerateConfig, prompt string) (ai.Stream, error)
}

// HistoryCache is the read-side cache for chat replay. All methods are
// best effort; a cache failure never fails a turn.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type ChatService struct {
	sessionRepo  *repository.SessionRepository
	documentRepo *repository.DocumentRepository
	messageRepo  *repository.MessageRepository
	historyCache HistoryCache
	generator    Generator
	genCfg       ai.GenerateConfig
	locks        *SessionLocks

	maxContextChars    int
	maxHistoryMessages int
	retryUnavailable   bool
}

type ChatServiceOptions struct {
	GenerateConfig     ai.GenerateConfig
	MaxContextChars    int
	MaxHistoryMessages int
	// RetryUnavailable allows one reconnect attempt when the model
	// service is unreachable at call start. Interrupted streams are
	// never retried.
	RetryUnavailable bool
}

func NewChatService(
	sessionRepo *repository.SessionRepository,
	documentRepo *repository.DocumentRepository,
	messageRepo *repository.MessageRepository,
	historyCache HistoryCache,
	generator Generator,
	locks *SessionLocks,
	opts ChatServiceOptions,
) *ChatService {
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 12000
	}
	if opts.MaxHistoryMessages <= 0 {
		opts.MaxHistoryMessages = 10
	}
	return &ChatService{
		sessionRepo:        sessionRepo,
		documentRepo:       documentRepo,
		messageRepo:        messageRepo,
		historyCache:       historyCache,
		generator:          generator,
		genCfg:             opts.GenerateConfig,
		locks:              locks,
		maxContextChars:    opts.MaxContextChars,
		maxHistoryMessages: opts.MaxHistoryMessages,
		retryUnavailable:   opts.RetryUnavailable,
	}
}

type AskInput struct {
	SessionID uint
	Question  string
}

// StreamAsk runs one chat turn: record the question, assemble grounded
// context, stream the model's answer through onFragment, and persist
// the final ASSISTANT message. On any failure after the question was
// recorded, no ASSISTANT message is written; the caller surfaces
// whatever partial text it already streamed together with the error.
// Turns within one session are strictly sequential.
func (s *ChatService) StreamAsk(ctx context.Context, input AskInput, onFragment func(string) error) (*model.ChatMessage, error) {
	if input.SessionID == 0 {
		return nil, ErrInvalidInput
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrInvalidInput
	}

	unlock := s.locks.Lock(input.SessionID)
	defer unlock()

	session, err := s.sessionRepo.GetByID(input.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	// Window of prior turns, captured before the new question lands.
	history, err := s.messageRepo.ListRecent(input.SessionID, s.maxHistoryMessages)
	if err != nil {
		return nil, err
	}

	s.invalidateHistory(ctx, input.SessionID)
	userMessage := &model.ChatMessage{
		SessionID: input.SessionID,
		Role:      model.RoleUser,
		Content:   question,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Append(userMessage); err != nil {
		return nil, err
	}

	docs, err := s.documentRepo.ListBySessionID(input.SessionID)
	if err != nil {
		return nil, err
	}
	contextText := assembleContext(docs, s.maxContextChars)
	if contextText == "" {
		return s.persistAnswer(ctx, input.SessionID, NoDocumentsAnswer, onFragment)
	}

	prompt := buildPrompt(contextText, history, question)

	stream, err := s.generator.Generate(ctx, s.genCfg, prompt)
	if err != nil && s.retryUnavailable && errors.Is(err, ai.ErrModelUnavailable) {
		stream, err = s.generator.Generate(ctx, s.genCfg, prompt)
	}
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		fragment, recvErr := stream.Recv()
		if recvErr == io.EOF {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		full.WriteString(fragment)
		if err := onFragment(fragment); err != nil {
			return nil, err
		}
	}

	answer := strings.TrimSpace(full.String())
	if answer == "" {
		answer = emptyModelAnswer
	}

	assistantMessage := &model.ChatMessage{
		SessionID: input.SessionID,
		Role:      model.RoleAssistant,
		Content:   answer,
		CreatedAt: time.Now(),
	}
	s.invalidateHistory(ctx, input.SessionID)
	if err := s.messageRepo.Append(assistantMessage); err != nil {
		return nil, err
	}
	return assistantMessage, nil
}

// persistAnswer handles the synthesized no-context reply: delivered as
// a single fragment, then persisted like a normal answer.
func (s *ChatService) persistAnswer(ctx context.Context, sessionID uint, answer string, onFragment func(string) error) (*model.ChatMessage, error) {
	if err := onFragment(answer); err != nil {
		return nil, err
	}
	msg := &model.ChatMessage{
		SessionID: sessionID,
		Role:      model.RoleAssistant,
		Content:   answer,
		CreatedAt: time.Now(),
	}
	s.invalidateHistory(ctx, sessionID)
	if err := s.messageRepo.Append(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetHistory returns the session's messages in chronological order,
// served from the cache when it is fresh.
func (s *ChatService) GetHistory(ctx context.Context, sessionID uint, limit int) ([]model.ChatMessage, error) {
	if sessionID == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		if dirty, err := s.historyCache.IsDirty(ctx, sessionID); err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, err := s.historyCache.IsDirty(ctx, sessionID); err == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

// ClearHistory deletes every chat message in the session and reports
// how many were removed.
func (s *ChatService) ClearHistory(ctx context.Context, sessionID uint) (int64, error) {
	if sessionID == 0 {
		return 0, ErrInvalidInput
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, ErrSessionNotFound
	}
	s.invalidateHistory(ctx, sessionID)
	return s.messageRepo.DeleteBySessionID(sessionID)
}

func (s *ChatService) invalidateHistory(ctx context.Context, sessionID uint) {
	if s.historyCache == nil {
		return
	}
	_ = s.historyCache.MarkDirty(ctx, sessionID)
	_ = s.historyCache.DeleteHistory(ctx, sessionID)
}

func trimMessages(messages []model.ChatMessage, limit int) []model.ChatMessage {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
