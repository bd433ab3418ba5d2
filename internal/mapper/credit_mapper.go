package mapper

import (
	"encoding/json"

	"turion-be/internal/entity"
	"turion-be/internal/model"
	"turion-be/pkg/pricing"

	"gorm.io/datatypes"
)

type CreditMapper struct{}

func NewCreditMapper() *CreditMapper {
	return &CreditMapper{}
}

func (m *CreditMapper) BalanceToEntity(b *model.CreditBalance) *entity.CreditBalance {
	if b == nil {
		return nil
	}
	return &entity.CreditBalance{
		UserId:         b.UserId,
		Current:        pricing.FromCents(b.CurrentCents),
		LifetimeEarned: pricing.FromCents(b.LifetimeEarnedCents),
		LifetimeSpent:  pricing.FromCents(b.LifetimeSpentCents),
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func (m *CreditMapper) BalanceToModel(b *entity.CreditBalance) *model.CreditBalance {
	if b == nil {
		return nil
	}
	return &model.CreditBalance{
		UserId:              b.UserId,
		CurrentCents:        pricing.ToCents(b.Current),
		LifetimeEarnedCents: pricing.ToCents(b.LifetimeEarned),
		LifetimeSpentCents:  pricing.ToCents(b.LifetimeSpent),
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

func (m *CreditMapper) TransactionToEntity(t *model.CreditTransaction) *entity.CreditTransaction {
	if t == nil {
		return nil
	}

	var meta map[string]interface{}
	if len(t.Metadata) > 0 {
		_ = json.Unmarshal(t.Metadata, &meta)
	}

	var reference string
	if t.Reference != nil {
		reference = *t.Reference
	}

	return &entity.CreditTransaction{
		Id:          t.Id,
		UserId:      t.UserId,
		Type:        entity.CreditTransactionType(t.Type),
		Amount:      pricing.FromCents(t.AmountCents),
		Description: t.Description,
		Reference:   reference,
		Metadata:    meta,
		CreatedAt:   t.CreatedAt,
	}
}

func (m *CreditMapper) TransactionToModel(t *entity.CreditTransaction) *model.CreditTransaction {
	if t == nil {
		return nil
	}

	var meta datatypes.JSON
	if len(t.Metadata) > 0 {
		if raw, err := json.Marshal(t.Metadata); err == nil {
			meta = datatypes.JSON(raw)
		}
	}

	// empty references stay NULL so they never collide
	var reference *string
	if t.Reference != "" {
		ref := t.Reference
		reference = &ref
	}

	return &model.CreditTransaction{
		Id:          t.Id,
		UserId:      t.UserId,
		Type:        string(t.Type),
		AmountCents: pricing.ToCents(t.Amount),
		Description: t.Description,
		Reference:   reference,
		Metadata:    meta,
		CreatedAt:   t.CreatedAt,
	}
}

func (m *CreditMapper) TransactionsToEntities(models []*model.CreditTransaction) []*entity.CreditTransaction {
	entities := make([]*entity.CreditTransaction, len(models))
	for i, t := range models {
		entities[i] = m.TransactionToEntity(t)
	}
	return entities
}
