package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "USER"
	MessageRoleAssistant MessageRole = "ASSISTANT"
)

// Message is one turn of a client's AI chat conversation.
type Message struct {
	ID             string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt      time.Time   `gorm:"index" json:"createdAt"`
	UserID         string      `gorm:"type:varchar(36);index;not null" json:"userId"`
	ConversationID string      `gorm:"type:varchar(36);index;not null" json:"conversationId"`
	Role           MessageRole `gorm:"type:varchar(16);not null" json:"role"`
	Content        string      `gorm:"type:text;not null" json:"content"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
