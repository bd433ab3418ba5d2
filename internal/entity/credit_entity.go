package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreditTransactionType string

const (
	CreditTransactionBonus    CreditTransactionType = "bonus"
	CreditTransactionPurchase CreditTransactionType = "purchase"
	CreditTransactionRefund   CreditTransactionType = "refund"
	CreditTransactionUsage    CreditTransactionType = "usage"
)

func (t CreditTransactionType) Valid() bool {
	switch t {
	case CreditTransactionBonus, CreditTransactionPurchase, CreditTransactionRefund, CreditTransactionUsage:
		return true
	}
	return false
}

type CreditBalance struct {
	UserId         uuid.UUID
	Current        decimal.Decimal
	LifetimeEarned decimal.Decimal
	LifetimeSpent  decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreditTransaction struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	Type        CreditTransactionType
	Amount      decimal.Decimal
	Description string
	// Reference is an external id, unique when set.
	Reference string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}
