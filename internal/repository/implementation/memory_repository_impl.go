package implementation

import (
	"context"
	"time"

	"turion-be/internal/entity"
	"turion-be/internal/mapper"
	"turion-be/internal/model"
	"turion-be/internal/repository/contract"
	"turion-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MemoryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MemoryMapper
}

func NewMemoryRepository(db *gorm.DB) contract.MemoryRepository {
	return &MemoryRepositoryImpl{
		db:     db,
		mapper: mapper.NewMemoryMapper(),
	}
}

func (r *MemoryRepositoryImpl) Upsert(ctx context.Context, memory *entity.Memory) error {
	if memory.Id == uuid.Nil {
		memory.Id = uuid.New()
	}
	now := time.Now()
	memory.UpdatedAt = now
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = now
	}

	m := r.mapper.ToModel(memory)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "content"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "source", "updated_at"}),
	}).Create(m).Error
}

func (r *MemoryRepositoryImpl) FindRecent(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.Memory, error) {
	var models []*model.Memory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *MemoryRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.Memory{})
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
