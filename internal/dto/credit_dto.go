package dto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreditBalanceResponse struct {
	Current        decimal.Decimal `json:"current"`
	LifetimeEarned decimal.Decimal `json:"lifetime_earned"`
	LifetimeSpent  decimal.Decimal `json:"lifetime_spent"`
}

type CreditTransactionResponse struct {
	Id          uuid.UUID              `json:"id"`
	Type        string                 `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

type CreditSummaryResponse struct {
	Balance            CreditBalanceResponse        `json:"balance"`
	RecentTransactions []*CreditTransactionResponse `json:"recent_transactions"`
}

// InsufficientCreditError is returned when a spend would take the balance
// below the allowed floor.
type InsufficientCreditError struct {
	Balance decimal.Decimal `json:"balance"`
	Amount  decimal.Decimal `json:"amount"`
	Floor   decimal.Decimal `json:"floor"`
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %s, requested %s, floor %s",
		e.Balance.StringFixed(2), e.Amount.StringFixed(2), e.Floor.StringFixed(2))
}

// CreditsPurchasedEvent is the billing payload that funds an account.
type CreditsPurchasedEvent struct {
	UserId      uuid.UUID       `json:"user_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
}
