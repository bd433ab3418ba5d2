package contract

import (
	"context"

	"turion-be/internal/entity"
	"turion-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreditBalanceRepository interface {
	FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.CreditBalance, error)
	// CreateIfAbsent inserts the balance unless the user already has one and
	// reports whether a row was written.
	CreateIfAbsent(ctx context.Context, balance *entity.CreditBalance) (bool, error)
	Credit(ctx context.Context, userId uuid.UUID, amount decimal.Decimal) error
	// Debit subtracts amount only while the result stays at or above floor.
	Debit(ctx context.Context, userId uuid.UUID, amount, floor decimal.Decimal) (bool, error)
}

type CreditTransactionRepository interface {
	Create(ctx context.Context, tx *entity.CreditTransaction) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CreditTransaction, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
