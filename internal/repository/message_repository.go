package repository

import (
	"fmt"

	"gorm.io/gorm"

	"studyai/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts one chat message after verifying the session exists,
// in one transaction. Messages are append-only; there is no update path.
func (r *MessageRepository) Append(msg *model.ChatMessage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var session model.Session
		if err := tx.First(&session, msg.SessionID).Error; err != nil {
			return fmt.Errorf("find session %d: %w", msg.SessionID, err)
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		return nil
	})
}

func (r *MessageRepository) ListBySessionID(sessionID uint, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var messages []model.ChatMessage
	if err := r.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecent returns the newest n messages in chronological order, the
// window the prompt builder folds into the conversation section.
func (r *MessageRepository) ListRecent(sessionID uint, n int) ([]model.ChatMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	var messages []model.ChatMessage
	if err := r.db.Where("session_id = ?", sessionID).Order("created_at DESC, id DESC").Limit(n).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	// Reverse into oldest-first order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) DeleteBySessionID(sessionID uint) (int64, error) {
	res := r.db.Where("session_id = ?", sessionID).Delete(&model.ChatMessage{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete session messages failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *MessageRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.ChatMessage{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return n, nil
}
