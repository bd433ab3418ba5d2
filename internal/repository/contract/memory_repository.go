package contract

import (
	"context"

	"turion-be/internal/entity"
	"turion-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MemoryRepository interface {
	// Upsert stores the fact once per user and content; a repeat refreshes
	// updated_at, kind and source.
	Upsert(ctx context.Context, memory *entity.Memory) error
	FindRecent(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.Memory, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
