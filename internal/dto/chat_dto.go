package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateConversationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type RenameConversationRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=32000"`
}

type ConversationResponse struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageResponse struct {
	Id         uuid.UUID        `json:"id"`
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	TokensUsed *int             `json:"tokens_used,omitempty"`
	CreditCost *decimal.Decimal `json:"credit_cost,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

type ConversationDetailResponse struct {
	ConversationResponse
	Messages []*MessageResponse `json:"messages"`
}

// SummarizeConversationMessage is the job payload for background
// summarization.
type SummarizeConversationMessage struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	UserId         uuid.UUID `json:"user_id"`
}
