package contract

import (
	"context"

	"turion-be/internal/entity"
	"turion-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error)
	FindOneWithSteps(ctx context.Context, specs ...specification.Specification) (*entity.Project, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Project, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	// TransitionStatus moves the project to status `to` only if it currently
	// holds one of `from`, applying fields in the same statement.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []entity.ProjectStatus, to entity.ProjectStatus, fields map[string]interface{}) (bool, error)
	// FindReservedPorts lists the non-null ports of the matching projects.
	FindReservedPorts(ctx context.Context, specs ...specification.Specification) ([]int, error)
}

type BuildStepRepository interface {
	Create(ctx context.Context, step *entity.BuildStep) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.BuildStep, error)
	// Finish sets a terminal status on a step that is not yet terminal.
	Finish(ctx context.Context, projectId uuid.UUID, step int, status entity.BuildStepStatus, output *string) (bool, error)
	NextStepNumber(ctx context.Context, projectId uuid.UUID) (int, error)
}
