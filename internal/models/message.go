package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one completed query/response turn. It is written exactly once,
// after the reply reached the user, and never mutated except for soft delete.
type Message struct {
	ID           string    `gorm:"type:varchar(512);primaryKey" json:"id"`
	Query        string    `gorm:"type:text" json:"query"`
	Response     string    `gorm:"type:text" json:"response"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	Model        string    `gorm:"type:varchar(64);index" json:"model"`
	Provider     string    `gorm:"type:varchar(64)" json:"provider"`
	IsDeleted    bool      `gorm:"default:false" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// References users.chat_id, not users.id: turns are keyed by the
	// external chat identifier.
	ChatID string `gorm:"type:varchar(512);index" json:"chat_id"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
