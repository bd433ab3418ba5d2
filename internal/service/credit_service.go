package service

import (
	"context"
	"fmt"

	"turion-be/internal/dto"
	"turion-be/internal/entity"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/repository/specification"
	"turion-be/internal/repository/unitofwork"
	"turion-be/pkg/database"
	"turion-be/pkg/events"
	"turion-be/pkg/llm"
	"turion-be/pkg/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
	SummaryRecentLimit  = 10
)

var (
	signupBonus          = decimal.NewFromInt(pricing.SignupBonus)
	maxNegativeBalance   = decimal.NewFromInt(pricing.MaxNegativeBalance)
	minBalanceForNewWork = decimal.NewFromInt(pricing.MinBalanceForNewWork)
)

type ICreditService interface {
	GetOrCreateBalance(ctx context.Context, userId uuid.UUID) (*entity.CreditBalance, error)
	Earn(ctx context.Context, userId uuid.UUID, amount decimal.Decimal, txType entity.CreditTransactionType, description string, metadata map[string]interface{}) (*entity.CreditTransaction, error)
	// Purchase credits a purchase once per reference. A repeated reference
	// returns ErrDuplicateReference and leaves the balance untouched.
	Purchase(ctx context.Context, userId uuid.UUID, amount decimal.Decimal, description, reference string, metadata map[string]interface{}) (*entity.CreditTransaction, error)
	Spend(ctx context.Context, userId uuid.UUID, amount decimal.Decimal, description string, metadata map[string]interface{}) (*entity.CreditTransaction, error)
	CanAfford(ctx context.Context, userId uuid.UUID, amount decimal.Decimal) (bool, error)
	CanStartNewWork(ctx context.Context, userId uuid.UUID) (bool, error)
	History(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.CreditTransaction, error)
	// ChargeUsage prices usage and spends it. Zero cost records nothing and
	// returns a nil transaction.
	ChargeUsage(ctx context.Context, userId uuid.UUID, usage llm.Usage, description string, metadata map[string]interface{}) (*entity.CreditTransaction, error)
	Summary(ctx context.Context, userId uuid.UUID) (*dto.CreditSummaryResponse, error)
}

type creditService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  events.Publisher
	logger     logger.ILogger
	retry      database.RetryConfig
}

func NewCreditService(uowFactory unitofwork.RepositoryFactory, publisher events.Publisher, log logger.ILogger) ICreditService {
	return &creditService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     log,
		retry:      database.DefaultRetry,
	}
}

func (s *creditService) GetOrCreateBalance(ctx context.Context, userId uuid.UUID) (*entity.CreditBalance, error) {
	balance, err := s.uowFactory.NewUnitOfWork(ctx).CreditBalanceRepository().FindByUserId(ctx, userId)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		return balance, nil
	}

	err = database.WithRetry(ctx, s.retry, func() error {
		return s.createBalance(ctx, userId)
	})
	if err != nil {
		return nil, fmt.Errorf("create balance: %w", err)
	}

	return s.uowFactory.NewUnitOfWork(ctx).CreditBalanceRepository().FindByUserId(ctx, userId)
}

// createBalance seeds the balance and its bonus transaction. Only the caller
// whose insert wins records the bonus.
func (s *creditService) createBalance(ctx context.Context, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	inserted, err := uow.CreditBalanceRepository().CreateIfAbsent(ctx, &entity.CreditBalance{
		UserId:         userId,
		Current:        signupBonus,
		LifetimeEarned: signupBonus,
	})
	if err != nil {
		return err
	}

	if inserted {
		err = uow.CreditTransactionRepository().Create(ctx, &entity.CreditTransaction{
			UserId:      userId,
			Type:        entity.CreditTransactionBonus,
			Amount:      signupBonus,
			Description: "Signup bonus",
		})
		if err != nil {
			return err
		}
		s.logger.Info("CREDITS", "Balance created with signup bonus", map[string]interface{}{"user_id": userId.String()})
	}

	return uow.Commit()
}

func (s *creditService) Earn(ctx context.Context, userId uuid.UUID, amount decimal.Decimal, txType entity.CreditTransactionType, description string, metadata map[string]interface{}) (*entity.CreditTransaction, error) {
	return s.earn(ctx, userId, amount, txType, description, "", metadata)
}

func (s *creditService) Purchase(ctx context.Context, userId uuid.UUID, amount decimal.Decimal, description, reference string, metadata map[string]interface{}) (*entity.CreditTransaction, error) {
	return s.earn(ctx, userId, amount, entity.CreditTransactionPurchase, description, reference, metadata)
}

// earn credits the balance and records the transaction in one unit of work.
// A non-empty reference is applied at most once.
func (s *creditService) earn(ctx context.Context, userId uuid.UUID, amount decimal.Decimal, txType entity.CreditTransactionType, description, reference string, metadata map[string]interface{}) (*entity.CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !txType.Valid() || txType == entity.CreditTransactionUsage {
		return nil, ErrInvalidTransactionType
	}
	if _, err := s.GetOrCreateBalance(ctx, userId); err != nil {
		return nil, err
	}

	var tx *entity.CreditTransaction
	duplicate := false
	err := database.WithRetry(ctx, s.retry, func() error {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		if err := uow.Begin(ctx); err != nil {
			return err
		}
		defer uow.Rollback()

		if reference != "" {
			seen, err := uow.CreditTransactionRepository().Count(ctx, specification.ByReference{Reference: reference})
			if err != nil {
				return err
			}
			if seen > 0 {
				duplicate = true
				return nil
			}
		}

		if err := uow.CreditBalanceRepository().Credit(ctx, userId, amount); err != nil {
			return err
		}

		tx = &entity.CreditTransaction{
			UserId:      userId,
			Type:        txType,
			Amount:      amount,
			Description: description,
			Reference:   reference,
			Metadata:    metadata,
		}
		if err := uow.CreditTransactionRepository().Create(ctx, tx); err != nil {
			// a concurrent delivery recorded the reference first
			if reference != "" && database.IsUniqueViolation(err) {
				duplicate = true
				return nil
			}
			return err
		}

		return uow.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("earn credits: %w", err)
	}
	if duplicate {
		return nil, ErrDuplicateReference
	}
	return tx, nil
}

func (s *creditService) Spend(ctx context.Context, userId uuid.UUID, amount decimal.Decimal, description string, metadata map[string]interface{}) (*entity.CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.GetOrCreateBalance(ctx, userId); err != nil {
		return nil, err
	}

	var tx *entity.CreditTransaction
	insufficient := false
	err := database.WithRetry(ctx, s.retry, func() error {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		if err := uow.Begin(ctx); err != nil {
			return err
		}
		defer uow.Rollback()

		ok, err := uow.CreditBalanceRepository().Debit(ctx, userId, amount, maxNegativeBalance)
		if err != nil {
			return err
		}
		if !ok {
			insufficient = true
			return nil
		}

		tx = &entity.CreditTransaction{
			UserId:      userId,
			Type:        entity.CreditTransactionUsage,
			Amount:      amount.Neg(),
			Description: description,
			Metadata:    metadata,
		}
		if err := uow.CreditTransactionRepository().Create(ctx, tx); err != nil {
			return err
		}

		return uow.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("spend credits: %w", err)
	}

	if insufficient {
		balance, err := s.GetOrCreateBalance(ctx, userId)
		if err != nil {
			return nil, err
		}
		return nil, &dto.InsufficientCreditError{
			Balance: balance.Current,
			Amount:  amount,
			Floor:   maxNegativeBalance,
		}
	}

	s.publisher.PublishCreditsSpent(ctx, userId, tx.Id, amount, description)
	return tx, nil
}

func (s *creditService) CanAfford(ctx context.Context, userId uuid.UUID, amount decimal.Decimal) (bool, error) {
	balance, err := s.GetOrCreateBalance(ctx, userId)
	if err != nil {
		return false, err
	}
	return balance.Current.Sub(amount).GreaterThanOrEqual(maxNegativeBalance), nil
}

func (s *creditService) CanStartNewWork(ctx context.Context, userId uuid.UUID) (bool, error) {
	balance, err := s.GetOrCreateBalance(ctx, userId)
	if err != nil {
		return false, err
	}
	return balance.Current.GreaterThanOrEqual(minBalanceForNewWork), nil
}

// requireNewWork returns an InsufficientCreditError when the user is too far
// in debt to start a turn or a project.
func requireNewWork(ctx context.Context, credits ICreditService, userId uuid.UUID) error {
	balance, err := credits.GetOrCreateBalance(ctx, userId)
	if err != nil {
		return err
	}
	if balance.Current.LessThan(minBalanceForNewWork) {
		return &dto.InsufficientCreditError{
			Balance: balance.Current,
			Amount:  decimal.Zero,
			Floor:   minBalanceForNewWork,
		}
	}
	return nil
}

func (s *creditService) History(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.CreditTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	return s.uowFactory.NewUnitOfWork(ctx).CreditTransactionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
}

func (s *creditService) ChargeUsage(ctx context.Context, userId uuid.UUID, usage llm.Usage, description string, metadata map[string]interface{}) (*entity.CreditTransaction, error) {
	cost := pricing.Cost(usage.InputTokens, usage.OutputTokens)
	if cost.IsZero() {
		return nil, nil
	}

	meta := map[string]interface{}{
		"input_tokens":  usage.InputTokens,
		"output_tokens": usage.OutputTokens,
	}
	for k, v := range metadata {
		meta[k] = v
	}
	return s.Spend(ctx, userId, cost, description, meta)
}

func (s *creditService) Summary(ctx context.Context, userId uuid.UUID) (*dto.CreditSummaryResponse, error) {
	balance, err := s.GetOrCreateBalance(ctx, userId)
	if err != nil {
		return nil, err
	}
	recent, err := s.History(ctx, userId, SummaryRecentLimit)
	if err != nil {
		return nil, err
	}

	return &dto.CreditSummaryResponse{
		Balance: dto.CreditBalanceResponse{
			Current:        balance.Current,
			LifetimeEarned: balance.LifetimeEarned,
			LifetimeSpent:  balance.LifetimeSpent,
		},
		RecentTransactions: ToTransactionResponses(recent),
	}, nil
}

func ToTransactionResponses(txs []*entity.CreditTransaction) []*dto.CreditTransactionResponse {
	res := make([]*dto.CreditTransactionResponse, 0, len(txs))
	for _, t := range txs {
		res = append(res, &dto.CreditTransactionResponse{
			Id:          t.Id,
			Type:        string(t.Type),
			Amount:      t.Amount,
			Description: t.Description,
			Metadata:    t.Metadata,
			CreatedAt:   t.CreatedAt,
		})
	}
	return res
}
