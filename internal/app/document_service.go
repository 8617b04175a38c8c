package app

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"studyai/internal/extract"
	"studyai/internal/model"
	"studyai/internal/repository"
	"studyai/internal/storage"
)

type DocumentService struct {
	sessionRepo  *repository.SessionRepository
	documentRepo *repository.DocumentRepository
	fileStore    *storage.FileStore
	locks        *SessionLocks
}

func NewDocumentService(
	sessionRepo *repository.SessionRepository,
	documentRepo *repository.DocumentRepository,
	fileStore *storage.FileStore,
	locks *SessionLocks,
) *DocumentService {
	return &DocumentService{
		sessionRepo:  sessionRepo,
		documentRepo: documentRepo,
		fileStore:    fileStore,
		locks:        locks,
	}
}

type UploadInput struct {
	SessionID uint
	Filename  string
	Data      []byte
}

// Upload runs one upload turn: extract, persist the document row, then
// retain the raw bytes on disk. An unsupported format or encoding
// aborts before anything is written. Any other extraction failure still
// produces a Document row, with empty text and a failed status, so the
// upload is visible rather than silently dropped. The upload buffer is
// not retained past this call.
func (s *DocumentService) Upload(input UploadInput) (*model.Document, error) {
	if input.SessionID == 0 {
		return nil, ErrInvalidInput
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, ErrInvalidInput
	}

	format, err := extract.FormatFromFilename(filename)
	if err != nil {
		return nil, err
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

	text, err := extract.Extract(input.Data, format)
	status := model.ExtractOK
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat), errors.Is(err, extract.ErrUnsupportedEncoding):
		return nil, err
	case err != nil:
		log.Printf("extract %q failed: %v", filename, err)
		text = ""
		status = model.ExtractFailed
	case text == "":
		status = model.ExtractEmpty
	}

	doc := &model.Document{
		SessionID:     input.SessionID,
		Filename:      filename,
		Format:        format,
		ExtractedText: text,
		ExtractStatus: status,
		ByteSize:      int64(len(input.Data)),
		CreatedAt:     time.Now(),
	}
	if err := s.documentRepo.Create(doc); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if _, err := s.fileStore.Save(input.SessionID, doc.ID, filename, input.Data); err != nil {
		// Keep the row and the retained file consistent.
		_ = s.documentRepo.Delete(doc.ID)
		return nil, fmt.Errorf("retain upload: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) ListDocuments(sessionID uint) ([]model.Document, error) {
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
	return s.documentRepo.ListBySessionID(sessionID)
}

// GetDocument returns the document including its extracted text.
func (s *DocumentService) GetDocument(documentID uint) (*model.Document, error) {
	if documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.documentRepo.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) DeleteDocument(documentID uint) error {
	if documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.documentRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	unlock := s.locks.Lock(doc.SessionID)
	defer unlock()

	if err := s.documentRepo.Delete(documentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	if err := s.fileStore.DeleteDocument(doc.SessionID, doc.ID); err != nil {
		log.Printf("delete retained file for document %d failed: %v", doc.ID, err)
	}
	return nil
}
