package implementation

import (
	"context"
	"errors"

	"turion-be/internal/entity"
	"turion-be/internal/mapper"
	"turion-be/internal/model"
	"turion-be/internal/repository/contract"
	"turion-be/internal/repository/specification"
	"turion-be/pkg/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditBalanceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CreditMapper
}

func NewCreditBalanceRepository(db *gorm.DB) contract.CreditBalanceRepository {
	return &CreditBalanceRepositoryImpl{
		db:     db,
		mapper: mapper.NewCreditMapper(),
	}
}

func (r *CreditBalanceRepositoryImpl) FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.CreditBalance, error) {
	var m model.CreditBalance
	if err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.BalanceToEntity(&m), nil
}

func (r *CreditBalanceRepositoryImpl) CreateIfAbsent(ctx context.Context, balance *entity.CreditBalance) (bool, error) {
	m := r.mapper.BalanceToModel(balance)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CreditBalanceRepositoryImpl) Credit(ctx context.Context, userId uuid.UUID, amount decimal.Decimal) error {
	cents := pricing.ToCents(amount)
	res := r.db.WithContext(ctx).Model(&model.CreditBalance{}).
		Where("user_id = ?", userId).
		Updates(map[string]interface{}{
			"current_cents":         gorm.Expr("current_cents + ?", cents),
			"lifetime_earned_cents": gorm.Expr("lifetime_earned_cents + ?", cents),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *CreditBalanceRepositoryImpl) Debit(ctx context.Context, userId uuid.UUID, amount, floor decimal.Decimal) (bool, error) {
	cents := pricing.ToCents(amount)
	// current - cents >= floor, rearranged so the bound is a single parameter
	limit := pricing.ToCents(floor) + cents
	res := r.db.WithContext(ctx).Model(&model.CreditBalance{}).
		Where("user_id = ? AND current_cents >= ?", userId, limit).
		Updates(map[string]interface{}{
			"current_cents":        gorm.Expr("current_cents - ?", cents),
			"lifetime_spent_cents": gorm.Expr("lifetime_spent_cents + ?", cents),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type CreditTransactionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CreditMapper
}

func NewCreditTransactionRepository(db *gorm.DB) contract.CreditTransactionRepository {
	return &CreditTransactionRepositoryImpl{
		db:     db,
		mapper: mapper.NewCreditMapper(),
	}
}

func (r *CreditTransactionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CreditTransactionRepositoryImpl) Create(ctx context.Context, tx *entity.CreditTransaction) error {
	if tx.Id == uuid.Nil {
		tx.Id = uuid.New()
	}
	m := r.mapper.TransactionToModel(tx)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*tx = *r.mapper.TransactionToEntity(m)
	return nil
}

func (r *CreditTransactionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.CreditTransaction, error) {
	var models []*model.CreditTransaction
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.TransactionsToEntities(models), nil
}

func (r *CreditTransactionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.CreditTransaction{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
