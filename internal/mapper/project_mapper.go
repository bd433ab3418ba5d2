package mapper

import (
	"turion-be/internal/entity"
	"turion-be/internal/model"
	"turion-be/pkg/lifecycle"
)

type ProjectMapper struct{}

func NewProjectMapper() *ProjectMapper {
	return &ProjectMapper{}
}

func (m *ProjectMapper) ProjectToEntity(p *model.Project) *entity.Project {
	if p == nil {
		return nil
	}

	e := &entity.Project{
		Id:             p.Id,
		UserId:         p.UserId,
		Name:           p.Name,
		Description:    p.Description,
		ProjectType:    lifecycle.ProjectType(p.ProjectType),
		Status:         entity.ProjectStatus(p.Status),
		Port:           p.Port,
		Subdomain:      p.Subdomain,
		PreviewUrl:     p.PreviewUrl,
		ProjectPath:    p.ProjectPath,
		ErrorLog:       p.ErrorLog,
		LastAccessedAt: p.LastAccessedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for i := range p.BuildSteps {
		e.BuildSteps = append(e.BuildSteps, m.BuildStepToEntity(&p.BuildSteps[i]))
	}
	return e
}

// ProjectToModel leaves BuildSteps out; steps are written through their own
// repository.
func (m *ProjectMapper) ProjectToModel(p *entity.Project) *model.Project {
	if p == nil {
		return nil
	}
	return &model.Project{
		Id:             p.Id,
		UserId:         p.UserId,
		Name:           p.Name,
		Description:    p.Description,
		ProjectType:    string(p.ProjectType),
		Status:         string(p.Status),
		Port:           p.Port,
		Subdomain:      p.Subdomain,
		PreviewUrl:     p.PreviewUrl,
		ProjectPath:    p.ProjectPath,
		ErrorLog:       p.ErrorLog,
		LastAccessedAt: p.LastAccessedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (m *ProjectMapper) BuildStepToEntity(s *model.BuildStep) *entity.BuildStep {
	if s == nil {
		return nil
	}
	return &entity.BuildStep{
		Id:          s.Id,
		ProjectId:   s.ProjectId,
		Step:        s.Step,
		Title:       s.Title,
		Status:      entity.BuildStepStatus(s.Status),
		Output:      s.Output,
		CompletedAt: s.CompletedAt,
		CreatedAt:   s.CreatedAt,
	}
}

func (m *ProjectMapper) BuildStepToModel(s *entity.BuildStep) *model.BuildStep {
	if s == nil {
		return nil
	}
	return &model.BuildStep{
		Id:          s.Id,
		ProjectId:   s.ProjectId,
		Step:        s.Step,
		Title:       s.Title,
		Status:      string(s.Status),
		Output:      s.Output,
		CompletedAt: s.CompletedAt,
		CreatedAt:   s.CreatedAt,
	}
}
