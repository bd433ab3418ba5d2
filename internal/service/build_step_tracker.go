package service

import (
	"context"

	"turion-be/internal/entity"
	"turion-be/internal/repository/specification"
	"turion-be/internal/repository/unitofwork"
	"turion-be/pkg/lifecycle"

	"github.com/google/uuid"
)

// IBuildStepTracker records the discrete steps of a project build. A step is
// finished at most once.
type IBuildStepTracker interface {
	CreateStep(ctx context.Context, projectId uuid.UUID, title string) (*entity.BuildStep, error)
	CompleteStep(ctx context.Context, projectId uuid.UUID, step int, output string) error
	FailStep(ctx context.Context, projectId uuid.UUID, step int, output string) error
	Steps(ctx context.Context, projectId uuid.UUID) ([]*entity.BuildStep, error)
}

type buildStepTracker struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewBuildStepTracker(uowFactory unitofwork.RepositoryFactory) IBuildStepTracker {
	return &buildStepTracker{uowFactory: uowFactory}
}

func (t *buildStepTracker) CreateStep(ctx context.Context, projectId uuid.UUID, title string) (*entity.BuildStep, error) {
	uow := t.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	next, err := uow.BuildStepRepository().NextStepNumber(ctx, projectId)
	if err != nil {
		return nil, err
	}

	step := &entity.BuildStep{
		ProjectId: projectId,
		Step:      next,
		Title:     title,
		Status:    entity.BuildStepInProgress,
	}
	if err := uow.BuildStepRepository().Create(ctx, step); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return step, nil
}

func (t *buildStepTracker) CompleteStep(ctx context.Context, projectId uuid.UUID, step int, output string) error {
	return t.finish(ctx, projectId, step, entity.BuildStepCompleted, output)
}

func (t *buildStepTracker) FailStep(ctx context.Context, projectId uuid.UUID, step int, output string) error {
	return t.finish(ctx, projectId, step, entity.BuildStepFailed, output)
}

func (t *buildStepTracker) Steps(ctx context.Context, projectId uuid.UUID) ([]*entity.BuildStep, error) {
	return t.uowFactory.NewUnitOfWork(ctx).BuildStepRepository().FindAll(ctx,
		specification.ByProjectID{ProjectID: projectId},
		specification.OrderBy{Field: "step"},
	)
}

func (t *buildStepTracker) finish(ctx context.Context, projectId uuid.UUID, step int, status entity.BuildStepStatus, output string) error {
	var out *string
	if output != "" {
		bounded := lifecycle.Bound(output)
		out = &bounded
	}

	ok, err := t.uowFactory.NewUnitOfWork(ctx).BuildStepRepository().Finish(ctx, projectId, step, status, out)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStepAlreadyTerminal
	}
	return nil
}
