package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"studyai/internal/model"
	"studyai/internal/repository"
	"studyai/internal/storage"
)

type SessionService struct {
	sessionRepo  *repository.SessionRepository
	documentRepo *repository.DocumentRepository
	messageRepo  *repository.MessageRepository
	fileStore    *storage.FileStore
	historyCache HistoryCache
}

func NewSessionService(
	sessionRepo *repository.SessionRepository,
	documentRepo *repository.DocumentRepository,
	messageRepo *repository.MessageRepository,
	fileStore *storage.FileStore,
	historyCache HistoryCache,
) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		documentRepo: documentRepo,
		messageRepo:  messageRepo,
		fileStore:    fileStore,
		historyCache: historyCache,
	}
}

func (s *SessionService) CreateSession(name string) (*model.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	session := &model.Session{
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) ListSessions() ([]model.SessionSummary, error) {
	return s.sessionRepo.ListSummaries()
}

// DeleteSession removes the session and everything it owns: documents,
// chat messages, retained raw files, and the cached history.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID uint) error {
	if sessionID == 0 {
		return ErrInvalidInput
	}
	_, err := s.sessionRepo.DeleteCascade(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if err := s.fileStore.DeleteSession(sessionID); err != nil {
		log.Printf("delete retained files for session %d failed: %v", sessionID, err)
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

type Stats struct {
	Sessions      int64 `json:"sessions"`
	Documents     int64 `json:"documents"`
	DocumentBytes int64 `json:"document_bytes"`
	Messages      int64 `json:"messages"`
}

func (s *SessionService) Stats() (*Stats, error) {
	sessions, err := s.sessionRepo.Count()
	if err != nil {
		return nil, err
	}
	docs, bytes, err := s.documentRepo.CountAndBytes()
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.Count()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Sessions:      sessions,
		Documents:     docs,
		DocumentBytes: bytes,
		Messages:      messages,
	}, nil
}
