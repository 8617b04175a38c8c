package model

import "time"

// Document formats accepted at the upload boundary.
const (
	FormatPDF  = "pdf"
	FormatTXT  = "txt"
	FormatDOCX = "docx"
)

// Extraction outcomes. A failed extraction still produces a Document row
// with empty text, never a missing one.
const (
	ExtractOK     = "ok"
	ExtractEmpty  = "empty"
	ExtractFailed = "failed"
)

type Document struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionID     uint      `gorm:"not null;index" json:"session_id"`
	Filename      string    `gorm:"size:256;not null" json:"filename"`
	Format        string    `gorm:"size:8;not null" json:"format"`
	ExtractedText string    `gorm:"type:text" json:"-"`
	ExtractStatus string    `gorm:"size:16;not null" json:"extract_status"`
	ByteSize      int64     `json:"byte_size"`
	CreatedAt     time.Time `json:"created_at"`
}
