package service

import (
	"context"
	"fmt"

	"turion-be/internal/entity"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/repository/unitofwork"
	"turion-be/pkg/memory"

	"github.com/google/uuid"
)

const DefaultMemoryTopK = 10

type IMemoryService interface {
	Save(ctx context.Context, userId uuid.UUID, candidate memory.Candidate) error
	TopK(ctx context.Context, userId uuid.UUID, k int) ([]*entity.Memory, error)
	// ExtractAndSave persists every accepted candidate of the utterance and
	// returns how many were stored.
	ExtractAndSave(ctx context.Context, userId uuid.UUID, utterance string) (int, error)
}

type memoryService struct {
	uowFactory unitofwork.RepositoryFactory
	extractor  *memory.Extractor
	logger     logger.ILogger
}

func NewMemoryService(uowFactory unitofwork.RepositoryFactory, extractor *memory.Extractor, log logger.ILogger) IMemoryService {
	if extractor == nil {
		extractor = memory.NewExtractor(nil)
	}
	return &memoryService{
		uowFactory: uowFactory,
		extractor:  extractor,
		logger:     log,
	}
}

func (s *memoryService) Save(ctx context.Context, userId uuid.UUID, candidate memory.Candidate) error {
	content := memory.Normalize(candidate.Content)
	if content == "" {
		return nil
	}

	var source *string
	if candidate.Source != "" {
		src := candidate.Source
		source = &src
	}
	kind := candidate.Kind
	if kind == "" {
		kind = memory.KindNote
	}

	return s.uowFactory.NewUnitOfWork(ctx).MemoryRepository().Upsert(ctx, &entity.Memory{
		UserId:  userId,
		Content: content,
		Kind:    string(kind),
		Source:  source,
	})
}

func (s *memoryService) TopK(ctx context.Context, userId uuid.UUID, k int) ([]*entity.Memory, error) {
	if k <= 0 {
		k = DefaultMemoryTopK
	}
	return s.uowFactory.NewUnitOfWork(ctx).MemoryRepository().FindRecent(ctx, userId, k)
}

func (s *memoryService) ExtractAndSave(ctx context.Context, userId uuid.UUID, utterance string) (int, error) {
	saved := 0
	for _, c := range s.extractor.Extract(utterance) {
		if err := s.Save(ctx, userId, c); err != nil {
			return saved, fmt.Errorf("save memory: %w", err)
		}
		saved++
	}
	if saved > 0 {
		s.logger.Debug("MEMORY", "Memories stored", map[string]interface{}{"user_id": userId.String(), "count": saved})
	}
	return saved, nil
}
