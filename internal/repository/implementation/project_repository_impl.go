package implementation

import (
	"context"
	"errors"
	"time"

	"turion-be/internal/entity"
	"turion-be/internal/mapper"
	"turion-be/internal/model"
	"turion-be/internal/repository/contract"
	"turion-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProjectMapper
}

func NewProjectRepository(db *gorm.DB) contract.ProjectRepository {
	return &ProjectRepositoryImpl{
		db:     db,
		mapper: mapper.NewProjectMapper(),
	}
}

func (r *ProjectRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ProjectRepositoryImpl) Create(ctx context.Context, project *entity.Project) error {
	if project.Id == uuid.Nil {
		project.Id = uuid.New()
	}
	m := r.mapper.ProjectToModel(project)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*project = *r.mapper.ProjectToEntity(m)
	return nil
}

func (r *ProjectRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("project_id = ?", id).Delete(&model.BuildStep{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Project{}).Error
}

func (r *ProjectRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error) {
	return r.findOne(r.db.WithContext(ctx), specs...)
}

func (r *ProjectRepositoryImpl) FindOneWithSteps(ctx context.Context, specs ...specification.Specification) (*entity.Project, error) {
	db := r.db.WithContext(ctx).Preload("BuildSteps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step ASC")
	})
	return r.findOne(db, specs...)
}

func (r *ProjectRepositoryImpl) findOne(db *gorm.DB, specs ...specification.Specification) (*entity.Project, error) {
	var m model.Project
	if err := r.applySpecifications(db, specs...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ProjectToEntity(&m), nil
}

func (r *ProjectRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Project, error) {
	var models []*model.Project
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Project, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ProjectToEntity(m)
	}
	return entities, nil
}

func (r *ProjectRepositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ProjectRepositoryImpl) TransitionStatus(ctx context.Context, id uuid.UUID, from []entity.ProjectStatus, to entity.ProjectStatus, fields map[string]interface{}) (bool, error) {
	froms := make([]string, len(from))
	for i, s := range from {
		froms[i] = string(s)
	}

	updates := map[string]interface{}{"status": string(to)}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ? AND status IN ?", id, froms).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ProjectRepositoryImpl) FindReservedPorts(ctx context.Context, specs ...specification.Specification) ([]int, error) {
	var ports []int
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Project{}).Where("port IS NOT NULL"), specs...)
	if err := query.Pluck("port", &ports).Error; err != nil {
		return nil, err
	}
	return ports, nil
}

type BuildStepRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProjectMapper
}

func NewBuildStepRepository(db *gorm.DB) contract.BuildStepRepository {
	return &BuildStepRepositoryImpl{
		db:     db,
		mapper: mapper.NewProjectMapper(),
	}
}

func (r *BuildStepRepositoryImpl) Create(ctx context.Context, step *entity.BuildStep) error {
	if step.Id == uuid.Nil {
		step.Id = uuid.New()
	}
	m := r.mapper.BuildStepToModel(step)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*step = *r.mapper.BuildStepToEntity(m)
	return nil
}

func (r *BuildStepRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.BuildStep, error) {
	var models []*model.BuildStep
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	steps := make([]*entity.BuildStep, len(models))
	for i, m := range models {
		steps[i] = r.mapper.BuildStepToEntity(m)
	}
	return steps, nil
}

func (r *BuildStepRepositoryImpl) Finish(ctx context.Context, projectId uuid.UUID, step int, status entity.BuildStepStatus, output *string) (bool, error) {
	open := []string{string(entity.BuildStepPending), string(entity.BuildStepInProgress)}
	res := r.db.WithContext(ctx).Model(&model.BuildStep{}).
		Where("project_id = ? AND step = ? AND status IN ?", projectId, step, open).
		Updates(map[string]interface{}{
			"status":       string(status),
			"output":       output,
			"completed_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BuildStepRepositoryImpl) NextStepNumber(ctx context.Context, projectId uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&model.BuildStep{}).
		Where("project_id = ?", projectId).
		Select("COALESCE(MAX(step), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
