package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultConversationTitle = "New Chat"

type Conversation struct {
	Id                  uuid.UUID
	UserId              uuid.UUID
	Title               string
	ConversationSummary *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
	IsDeleted           bool
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           MessageRole
	Content        string
	TokensUsed     *int
	CreditCost     *decimal.Decimal
	CreatedAt      time.Time
}
