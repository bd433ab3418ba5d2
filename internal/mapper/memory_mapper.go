package mapper

import (
	"turion-be/internal/entity"
	"turion-be/internal/model"
)

type MemoryMapper struct{}

func NewMemoryMapper() *MemoryMapper {
	return &MemoryMapper{}
}

func (m *MemoryMapper) ToEntity(mem *model.Memory) *entity.Memory {
	if mem == nil {
		return nil
	}
	return &entity.Memory{
		Id:        mem.Id,
		UserId:    mem.UserId,
		Content:   mem.Content,
		Kind:      mem.Kind,
		Source:    mem.Source,
		CreatedAt: mem.CreatedAt,
		UpdatedAt: mem.UpdatedAt,
	}
}

func (m *MemoryMapper) ToModel(mem *entity.Memory) *model.Memory {
	if mem == nil {
		return nil
	}
	return &model.Memory{
		Id:        mem.Id,
		UserId:    mem.UserId,
		Content:   mem.Content,
		Kind:      mem.Kind,
		Source:    mem.Source,
		CreatedAt: mem.CreatedAt,
		UpdatedAt: mem.UpdatedAt,
	}
}

func (m *MemoryMapper) ToEntities(models []*model.Memory) []*entity.Memory {
	entities := make([]*entity.Memory, len(models))
	for i, mem := range models {
		entities[i] = m.ToEntity(mem)
	}
	return entities
}
