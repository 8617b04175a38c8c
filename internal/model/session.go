package model

import "time"

type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSummary is a Session plus the counts shown in listings.
type SessionSummary struct {
	Session
	DocumentCount int64 `json:"document_count"`
	MessageCount  int64 `json:"message_count"`
}
