package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Conversation struct {
	Id                  uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId              uuid.UUID      `gorm:"type:uuid;not null;index"` // User ownership for data isolation
	Title               string         `gorm:"type:text;not null"`
	ConversationSummary *string        `gorm:"type:text"`
	CreatedAt           time.Time      `gorm:"autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime"`
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}

type Message struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId  uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1"`
	Role            string    `gorm:"type:varchar(20);not null"`
	Content         string    `gorm:"type:text;not null"`
	TokensUsed      *int
	CreditCostCents *int64
	CreatedAt       time.Time `gorm:"autoCreateTime;index:idx_messages_conversation_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}
