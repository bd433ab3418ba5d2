package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"turion-be/internal/dto"
	"turion-be/internal/entity"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/repository/memory"
	"turion-be/internal/repository/specification"
	"turion-be/internal/repository/unitofwork"
	"turion-be/pkg/events"
	"turion-be/pkg/lifecycle"
	"turion-be/pkg/process"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const interruptedByRestart = "interrupted by restart"

type ProjectSettings struct {
	Dir             string
	PreviewDomain   string
	ScaffoldTimeout time.Duration
	StopTimeout     time.Duration
}

type IProjectService interface {
	Create(ctx context.Context, userId uuid.UUID, request *dto.CreateProjectRequest) (*dto.ProjectResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.ProjectResponse, error)
	Get(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error)
	Delete(ctx context.Context, userId, projectId uuid.UUID) error
	// Scaffold reserves a port and returns at once; the scaffold command runs
	// in the background.
	Scaffold(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error)
	Start(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error)
	Stop(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error)
	// Reconcile fails projects whose scaffold was cut short by a restart and
	// returns how many it touched.
	Reconcile(ctx context.Context) (int, error)
	// Wait blocks until background scaffolds have finished.
	Wait()
}

type projectService struct {
	uowFactory    unitofwork.RepositoryFactory
	allocator     *PortAllocator
	tracker       IBuildStepTracker
	runner        process.Runner
	registry      *memory.ProcessRegistry
	creditService ICreditService
	publisher     events.Publisher
	delivery      NotificationDelivery
	settings      ProjectSettings
	logger        logger.ILogger

	wg sync.WaitGroup
}

func NewProjectService(
	uowFactory unitofwork.RepositoryFactory,
	allocator *PortAllocator,
	tracker IBuildStepTracker,
	runner process.Runner,
	registry *memory.ProcessRegistry,
	creditService ICreditService,
	publisher events.Publisher,
	delivery NotificationDelivery,
	settings ProjectSettings,
	log logger.ILogger,
) IProjectService {
	if settings.ScaffoldTimeout <= 0 {
		settings.ScaffoldTimeout = 5 * time.Minute
	}
	if settings.StopTimeout <= 0 {
		settings.StopTimeout = 10 * time.Second
	}
	return &projectService{
		uowFactory:    uowFactory,
		allocator:     allocator,
		tracker:       tracker,
		runner:        runner,
		registry:      registry,
		creditService: creditService,
		publisher:     publisher,
		delivery:      delivery,
		settings:      settings,
		logger:        log,
	}
}

func (s *projectService) Create(ctx context.Context, userId uuid.UUID, request *dto.CreateProjectRequest) (*dto.ProjectResponse, error) {
	name := strings.TrimSpace(request.Name)
	if name == "" {
		return nil, ErrEmptyProjectName
	}
	projectType := lifecycle.ProjectType(request.ProjectType)
	if !projectType.Valid() {
		return nil, ErrInvalidProjectType
	}

	if err := requireNewWork(ctx, s.creditService, userId); err != nil {
		return nil, err
	}

	project := &entity.Project{
		UserId:      userId,
		Name:        name,
		Description: strings.TrimSpace(request.Description),
		ProjectType: projectType,
		Status:      entity.ProjectStatusPlanning,
	}
	if err := s.uowFactory.NewUnitOfWork(ctx).ProjectRepository().Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("PROJECT", "Project created", map[string]interface{}{"project_id": project.Id.String(), "type": string(projectType)})
	return toProjectResponse(project), nil
}

func (s *projectService) List(ctx context.Context, userId uuid.UUID) ([]*dto.ProjectResponse, error) {
	projects, err := s.uowFactory.NewUnitOfWork(ctx).ProjectRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		res = append(res, toProjectResponse(p))
	}
	return res, nil
}

func (s *projectService) Get(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	project, err := uow.ProjectRepository().FindOneWithSteps(ctx,
		specification.ByID{ID: projectId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	now := time.Now()
	if err := uow.ProjectRepository().UpdateFields(ctx, projectId, map[string]interface{}{"last_accessed_at": now}); err != nil {
		return nil, err
	}
	project.LastAccessedAt = &now

	return toProjectResponse(project), nil
}

func (s *projectService) Delete(ctx context.Context, userId, projectId uuid.UUID) error {
	project, err := s.findOwned(ctx, userId, projectId)
	if err != nil {
		return err
	}

	if project.Port != nil && (project.Status == entity.ProjectStatusRunning || project.Status == entity.ProjectStatusReady) {
		if _, err := s.Stop(ctx, userId, projectId); err != nil {
			return fmt.Errorf("stop before delete: %w", err)
		}
	}

	if err := s.uowFactory.NewUnitOfWork(ctx).ProjectRepository().Delete(ctx, projectId); err != nil {
		return err
	}

	if project.ProjectPath != nil && s.insideProjectsDir(*project.ProjectPath) {
		if err := os.RemoveAll(*project.ProjectPath); err != nil {
			s.logger.Warn("PROJECT", "Failed to remove project directory", map[string]interface{}{"project_id": projectId.String(), "error": err.Error()})
		}
	}

	s.logger.Info("PROJECT", "Project deleted", map[string]interface{}{"project_id": projectId.String()})
	return nil
}

func (s *projectService) Scaffold(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error) {
	project, err := s.findOwned(ctx, userId, projectId)
	if err != nil {
		return nil, err
	}

	switch project.Status {
	case entity.ProjectStatusPlanning, entity.ProjectStatusError:
	case entity.ProjectStatusGenerating:
		return nil, ErrScaffoldInProgress
	default:
		return nil, ErrInvalidProjectState
	}

	from := []entity.ProjectStatus{entity.ProjectStatusPlanning, entity.ProjectStatusError}
	subdomain := lifecycle.NewSubdomain()
	previewUrl := lifecycle.PreviewURL(subdomain, s.settings.PreviewDomain)
	projectPath := filepath.Join(s.settings.Dir, projectDirName(project))

	port, claimed, err := s.allocator.AllocatePort(ctx, projectId, project.Port, func(ctx context.Context, uow unitofwork.UnitOfWork, port int) (bool, error) {
		return uow.ProjectRepository().TransitionStatus(ctx, projectId, from, entity.ProjectStatusGenerating, map[string]interface{}{
			"port":         port,
			"subdomain":    subdomain,
			"preview_url":  previewUrl,
			"project_path": projectPath,
			"error_log":    nil,
		})
	})
	if errors.Is(err, ErrNoPortAvailable) {
		r := s.allocator.Range()
		diag := fmt.Sprintf("no free port in range %d-%d", r.Start, r.End)
		s.transition(ctx, project, from, entity.ProjectStatusError, map[string]interface{}{"error_log": diag})
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrScaffoldInProgress
	}

	project.Status = entity.ProjectStatusGenerating
	project.Port = &port
	project.Subdomain = &subdomain
	project.PreviewUrl = &previewUrl
	project.ProjectPath = &projectPath
	project.ErrorLog = nil
	s.notify(ctx, project)

	step, err := s.tracker.CreateStep(ctx, projectId, fmt.Sprintf("Scaffold %s project", project.ProjectType))
	if err != nil {
		diag := lifecycle.Bound("create build step: " + err.Error())
		s.transition(ctx, project, []entity.ProjectStatus{entity.ProjectStatusGenerating}, entity.ProjectStatusError, map[string]interface{}{"error_log": diag})
		return nil, err
	}

	s.logger.Info("PROJECT", "Scaffold started", map[string]interface{}{"project_id": projectId.String(), "port": port, "subdomain": subdomain})

	s.wg.Add(1)
	go s.runScaffold(context.WithoutCancel(ctx), project, step.Step)

	return toProjectResponse(project), nil
}

func (s *projectService) runScaffold(ctx context.Context, project *entity.Project, step int) {
	defer s.wg.Done()

	output, err := s.scaffold(ctx, project)
	generating := []entity.ProjectStatus{entity.ProjectStatusGenerating}

	if err != nil {
		diag := lifecycle.Bound(strings.TrimSpace(output + "\n" + err.Error()))
		if ferr := s.tracker.FailStep(ctx, project.Id, step, diag); ferr != nil {
			s.logger.Warn("PROJECT", "Failed to record failed step", map[string]interface{}{"project_id": project.Id.String(), "error": ferr.Error()})
		}
		s.logger.Error("PROJECT", "Scaffold failed", map[string]interface{}{"project_id": project.Id.String(), "error": err.Error()})
		s.transition(ctx, project, generating, entity.ProjectStatusError, map[string]interface{}{"error_log": diag})
		return
	}

	if cerr := s.tracker.CompleteStep(ctx, project.Id, step, output); cerr != nil {
		s.logger.Warn("PROJECT", "Failed to record completed step", map[string]interface{}{"project_id": project.Id.String(), "error": cerr.Error()})
	}
	s.logger.Info("PROJECT", "Scaffold finished", map[string]interface{}{"project_id": project.Id.String()})
	s.transition(ctx, project, generating, entity.ProjectStatusReady, map[string]interface{}{"error_log": nil})
}

func (s *projectService) scaffold(ctx context.Context, project *entity.Project) (string, error) {
	spec, err := lifecycle.ScaffoldSpec(project.ProjectType, s.settings.Dir, filepath.Base(*project.ProjectPath))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.settings.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create projects dir: %w", err)
	}

	res, err := s.runner.Run(ctx, spec, s.settings.ScaffoldTimeout)
	if res == nil {
		return "", err
	}
	return res.Output, err
}

func (s *projectService) Start(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error) {
	project, err := s.findOwned(ctx, userId, projectId)
	if err != nil {
		return nil, err
	}
	if project.Status != entity.ProjectStatusReady && project.Status != entity.ProjectStatusStopped {
		return nil, ErrInvalidProjectState
	}
	if project.ProjectPath == nil {
		return nil, ErrInvalidProjectState
	}
	scaffolded, err := s.scaffolded(ctx, projectId)
	if err != nil {
		return nil, err
	}
	if !scaffolded {
		return nil, ErrInvalidProjectState
	}

	from := []entity.ProjectStatus{entity.ProjectStatusReady, entity.ProjectStatusStopped}
	port, claimed, err := s.allocator.AllocatePort(ctx, projectId, project.Port, func(ctx context.Context, uow unitofwork.UnitOfWork, port int) (bool, error) {
		return uow.ProjectRepository().TransitionStatus(ctx, projectId, from, entity.ProjectStatusRunning, map[string]interface{}{
			"port":      port,
			"error_log": nil,
		})
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrInvalidProjectState
	}
	project.Port = &port
	project.ErrorLog = nil

	spec, err := lifecycle.DevServerSpec(project.ProjectType, *project.ProjectPath, port)
	if err == nil {
		var h process.Handle
		if h, err = s.runner.Start(spec); err == nil {
			s.registry.Save(projectId, h)
		}
	}
	if err != nil {
		s.transition(ctx, project, []entity.ProjectStatus{entity.ProjectStatusRunning}, entity.ProjectStatusError, map[string]interface{}{
			"error_log": lifecycle.Bound(err.Error()),
		})
		return nil, fmt.Errorf("start dev server: %w", err)
	}

	project.Status = entity.ProjectStatusRunning
	s.notify(ctx, project)
	s.logger.Info("PROJECT", "Dev server started", map[string]interface{}{"project_id": projectId.String(), "port": port})
	return toProjectResponse(project), nil
}

// scaffolded reports whether the latest build step completed.
func (s *projectService) scaffolded(ctx context.Context, projectId uuid.UUID) (bool, error) {
	steps, err := s.tracker.Steps(ctx, projectId)
	if err != nil {
		return false, err
	}
	if len(steps) == 0 {
		return false, nil
	}
	return steps[len(steps)-1].Status == entity.BuildStepCompleted, nil
}

func (s *projectService) Stop(ctx context.Context, userId, projectId uuid.UUID) (*dto.ProjectResponse, error) {
	project, err := s.findOwned(ctx, userId, projectId)
	if err != nil {
		return nil, err
	}
	if project.Port == nil {
		return nil, ErrNoPortReserved
	}

	switch project.Status {
	case entity.ProjectStatusStopped:
		return toProjectResponse(project), nil
	case entity.ProjectStatusGenerating:
		return nil, ErrInvalidProjectState
	}

	stopped := false
	if h, ok := s.registry.Take(projectId); ok {
		if err := h.Stop(s.settings.StopTimeout); err != nil {
			s.logger.Warn("PROJECT", "Failed to stop dev server handle", map[string]interface{}{"project_id": projectId.String(), "error": err.Error()})
		} else {
			stopped = true
		}
	}
	if !stopped {
		if err := s.runner.KillPort(ctx, *project.Port); err != nil {
			return nil, fmt.Errorf("stop project: %w", err)
		}
	}

	// an errored project stays errored; only a new scaffold clears it
	if project.Status == entity.ProjectStatusError {
		s.logger.Info("PROJECT", "Processes killed for errored project", map[string]interface{}{"project_id": projectId.String()})
		return toProjectResponse(project), nil
	}

	from := []entity.ProjectStatus{entity.ProjectStatusReady, entity.ProjectStatusRunning}
	s.transition(ctx, project, from, entity.ProjectStatusStopped, nil)
	project.Status = entity.ProjectStatusStopped
	s.logger.Info("PROJECT", "Project stopped", map[string]interface{}{"project_id": projectId.String()})
	return toProjectResponse(project), nil
}

func (s *projectService) Reconcile(ctx context.Context) (int, error) {
	projects, err := s.uowFactory.NewUnitOfWork(ctx).ProjectRepository().FindAll(ctx,
		specification.ByStatuses{Statuses: []string{string(entity.ProjectStatusGenerating)}},
	)
	if err != nil {
		return 0, err
	}

	for _, p := range projects {
		steps, err := s.tracker.Steps(ctx, p.Id)
		if err != nil {
			return 0, err
		}
		for _, st := range steps {
			if st.Status.Terminal() {
				continue
			}
			if err := s.tracker.FailStep(ctx, p.Id, st.Step, interruptedByRestart); err != nil && !errors.Is(err, ErrStepAlreadyTerminal) {
				return 0, err
			}
		}
		s.transition(ctx, p, []entity.ProjectStatus{entity.ProjectStatusGenerating}, entity.ProjectStatusError, map[string]interface{}{"error_log": interruptedByRestart})
	}

	if len(projects) > 0 {
		s.logger.Warn("PROJECT", "Reconciled interrupted scaffolds", map[string]interface{}{"count": len(projects)})
	}
	return len(projects), nil
}

func (s *projectService) Wait() {
	s.wg.Wait()
}

// transition applies a conditional status change and announces it when it
// took effect.
func (s *projectService) transition(ctx context.Context, project *entity.Project, from []entity.ProjectStatus, to entity.ProjectStatus, fields map[string]interface{}) {
	ok, err := s.uowFactory.NewUnitOfWork(ctx).ProjectRepository().TransitionStatus(ctx, project.Id, from, to, fields)
	if err != nil {
		s.logger.Error("PROJECT", "Status update failed", map[string]interface{}{"project_id": project.Id.String(), "to": string(to), "error": err.Error()})
		return
	}
	if !ok {
		return
	}

	project.Status = to
	if v, present := fields["error_log"]; present {
		if msg, isString := v.(string); isString {
			project.ErrorLog = &msg
		} else {
			project.ErrorLog = nil
		}
	}
	s.notify(ctx, project)
}

func (s *projectService) notify(ctx context.Context, project *entity.Project) {
	s.publisher.PublishProjectStatusChanged(ctx, project.UserId, project.Id, string(project.Status), project.PreviewUrl, project.ErrorLog)
	if s.delivery != nil {
		s.delivery.Send(project.UserId, events.TypeProjectStatusChanged, dto.ProjectStatusChanged{
			ProjectId:  project.Id,
			UserId:     project.UserId,
			Status:     string(project.Status),
			PreviewUrl: project.PreviewUrl,
			ErrorLog:   project.ErrorLog,
		})
	}
}

func (s *projectService) findOwned(ctx context.Context, userId, projectId uuid.UUID) (*entity.Project, error) {
	project, err := s.uowFactory.NewUnitOfWork(ctx).ProjectRepository().FindOne(ctx,
		specification.ByID{ID: projectId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

func (s *projectService) insideProjectsDir(path string) bool {
	rel, err := filepath.Rel(s.settings.Dir, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// projectDirName is unique per project and safe as a path segment.
func projectDirName(p *entity.Project) string {
	name := slug.Make(p.Name)
	if name == "" {
		name = "project"
	}
	return name + "-" + p.Id.String()[:8]
}

func toProjectResponse(p *entity.Project) *dto.ProjectResponse {
	res := &dto.ProjectResponse{
		Id:             p.Id,
		Name:           p.Name,
		Description:    p.Description,
		ProjectType:    string(p.ProjectType),
		Status:         string(p.Status),
		Port:           p.Port,
		Subdomain:      p.Subdomain,
		PreviewUrl:     p.PreviewUrl,
		ErrorLog:       p.ErrorLog,
		LastAccessedAt: p.LastAccessedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for _, st := range p.BuildSteps {
		res.BuildSteps = append(res.BuildSteps, &dto.BuildStepResponse{
			Step:        st.Step,
			Title:       st.Title,
			Status:      string(st.Status),
			Output:      st.Output,
			CompletedAt: st.CompletedAt,
		})
	}
	return res
}
