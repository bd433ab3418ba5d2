package service

import (
	"context"
	"sync"
	"testing"

	"turion-be/internal/pkg/logger"
	"turion-be/internal/pkg/testdb"
	"turion-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type statusEvent struct {
	ProjectId uuid.UUID
	Status    string
}

type recordingPublisher struct {
	mu       sync.Mutex
	spent    []decimal.Decimal
	statuses []statusEvent
}

func (p *recordingPublisher) PublishCreditsSpent(ctx context.Context, userId, transactionId uuid.UUID, amount decimal.Decimal, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spent = append(p.spent, amount)
}

func (p *recordingPublisher) PublishProjectStatusChanged(ctx context.Context, userId, projectId uuid.UUID, status string, previewUrl, errorLog *string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, statusEvent{ProjectId: projectId, Status: status})
}

func (p *recordingPublisher) Spent() []decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]decimal.Decimal(nil), p.spent...)
}

func (p *recordingPublisher) Statuses(projectId uuid.UUID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, s := range p.statuses {
		if s.ProjectId == projectId {
			out = append(out, s.Status)
		}
	}
	return out
}

type testEnv struct {
	db        *gorm.DB
	factory   unitofwork.RepositoryFactory
	publisher *recordingPublisher
	logger    logger.ILogger
}

func newTestEnv(t *testing.T) *testEnv {
	db := testdb.New(t)
	return &testEnv{
		db:        db,
		factory:   unitofwork.NewRepositoryFactory(db),
		publisher: &recordingPublisher{},
		logger:    logger.NewNopLogger(),
	}
}

func (e *testEnv) credits() ICreditService {
	return NewCreditService(e.factory, e.publisher, e.logger)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
