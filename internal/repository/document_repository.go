package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studyai/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts the document after verifying its session still exists,
// in one transaction so no orphan row can become visible. A missing
// session surfaces as a wrapped gorm.ErrRecordNotFound.
func (r *DocumentRepository) Create(doc *model.Document) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var session model.Session
		if err := tx.First(&session, doc.SessionID).Error; err != nil {
			return fmt.Errorf("find session %d: %w", doc.SessionID, err)
		}
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return nil
	})
}

func (r *DocumentRepository) GetByID(documentID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// ListBySessionID returns the session's documents in creation order.
// That order is what the context assembler feeds to the model, so the
// id tie breaker matters.
func (r *DocumentRepository) ListBySessionID(sessionID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// Delete removes one document. Missing rows surface as a wrapped
// gorm.ErrRecordNotFound with no state change.
func (r *DocumentRepository) Delete(documentID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		if err := tx.First(&doc, documentID).Error; err != nil {
			return fmt.Errorf("find document %d: %w", documentID, err)
		}
		if err := tx.Delete(&model.Document{}, documentID).Error; err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
}

// CountAndBytes returns the total number of documents and the summed
// byte size of their uploads.
func (r *DocumentRepository) CountAndBytes() (int64, int64, error) {
	var n int64
	if err := r.db.Model(&model.Document{}).Count(&n).Error; err != nil {
		return 0, 0, fmt.Errorf("count documents failed: %w", err)
	}
	var total struct{ Total int64 }
	if err := r.db.Model(&model.Document{}).Select("COALESCE(SUM(byte_size), 0) AS total").Scan(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("sum document bytes failed: %w", err)
	}
	return n, total.Total, nil
}
