package unitofwork

import (
	"context"

	"turion-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	CreditBalanceRepository() contract.CreditBalanceRepository
	CreditTransactionRepository() contract.CreditTransactionRepository

	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
	MemoryRepository() contract.MemoryRepository

	ProjectRepository() contract.ProjectRepository
	BuildStepRepository() contract.BuildStepRepository
}
