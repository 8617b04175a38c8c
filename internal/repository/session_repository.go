package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studyai/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(sessionID uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

// ListSummaries returns every session, newest first, with document and
// message counts for the listing view.
func (r *SessionRepository) ListSummaries() ([]model.SessionSummary, error) {
	var sessions []model.Session
	if err := r.db.Order("created_at DESC, id DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}

	summaries := make([]model.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		var docCount, msgCount int64
		if err := r.db.Model(&model.Document{}).Where("session_id = ?", session.ID).Count(&docCount).Error; err != nil {
			return nil, fmt.Errorf("count documents failed: %w", err)
		}
		if err := r.db.Model(&model.ChatMessage{}).Where("session_id = ?", session.ID).Count(&msgCount).Error; err != nil {
			return nil, fmt.Errorf("count messages failed: %w", err)
		}
		summaries = append(summaries, model.SessionSummary{
			Session:       session,
			DocumentCount: docCount,
			MessageCount:  msgCount,
		})
	}
	return summaries, nil
}

// DeleteCascade removes a session together with its documents and chat
// messages in one transaction, and returns the ids of the deleted
// documents so retained raw files can be cleaned up afterwards.
// Returns gorm.ErrRecordNotFound (wrapped) when the session is missing,
// leaving no state changed.
func (r *SessionRepository) DeleteCascade(sessionID uint) ([]uint, error) {
	var docIDs []uint
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var session model.Session
		if err := tx.First(&session, sessionID).Error; err != nil {
			return fmt.Errorf("find session %d: %w", sessionID, err)
		}
		if err := tx.Model(&model.Document{}).Where("session_id = ?", sessionID).Pluck("id", &docIDs).Error; err != nil {
			return fmt.Errorf("list session documents: %w", err)
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("delete session messages: %w", err)
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete session documents: %w", err)
		}
		if err := tx.Delete(&model.Session{}, sessionID).Error; err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docIDs, nil
}

func (r *SessionRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.Session{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count sessions failed: %w", err)
	}
	return n, nil
}
