package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CreditBalance amounts are integer hundredths of a credit.
type CreditBalance struct {
	UserId              uuid.UUID `gorm:"type:uuid;primaryKey"`
	CurrentCents        int64     `gorm:"not null;default:0"`
	LifetimeEarnedCents int64     `gorm:"not null;default:0"`
	LifetimeSpentCents  int64     `gorm:"not null;default:0"`
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (CreditBalance) TableName() string {
	return "credit_balances"
}

type CreditTransaction struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId      uuid.UUID `gorm:"type:uuid;not null;index:idx_credit_transactions_user_created,priority:1"`
	Type        string    `gorm:"type:varchar(20);not null"`
	AmountCents int64     `gorm:"not null"`
	Description string    `gorm:"type:text;not null"`
	Reference   *string   `gorm:"type:varchar(255);uniqueIndex:idx_credit_transactions_reference"`
	Metadata    datatypes.JSON
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_credit_transactions_user_created,priority:2"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
