package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"turion-be/internal/dto"
	"turion-be/internal/entity"
	"turion-be/internal/model"
	"turion-be/internal/repository/memory"
	"turion-be/pkg/lifecycle"
	"turion-be/pkg/process"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{done: make(chan struct{})}
}

func (h *fakeHandle) Pid() int              { return 4242 }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) Output() string        { return "" }

func (h *fakeHandle) Stop(timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
	return nil
}

func (h *fakeHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

type fakeRunner struct {
	mu       sync.Mutex
	runs     []process.Spec
	started  []process.Spec
	handles  []*fakeHandle
	killed   []int
	output   string
	runErr   error
	startErr error
	killErr  error
	block    chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, spec process.Spec, timeout time.Duration) (*process.Result, error) {
	r.mu.Lock()
	r.runs = append(r.runs, spec)
	block, output, runErr := r.block, r.output, r.runErr
	r.mu.Unlock()

	if block != nil {
		<-block
	}
	return &process.Result{Output: output}, runErr
}

func (r *fakeRunner) Start(spec process.Spec) (process.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, spec)
	if r.startErr != nil {
		return nil, r.startErr
	}
	h := newFakeHandle()
	r.handles = append(r.handles, h)
	return h, nil
}

func (r *fakeRunner) KillPort(ctx context.Context, port int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.killed = append(r.killed, port)
	return r.killErr
}

func (r *fakeRunner) Runs() []process.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Spec(nil), r.runs...)
}

func (r *fakeRunner) Started() []process.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Spec(nil), r.started...)
}

func (r *fakeRunner) Killed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.killed...)
}

type pushed struct {
	UserID    uuid.UUID
	EventType string
	Data      interface{}
}

type recordingDelivery struct {
	mu   sync.Mutex
	sent []pushed
}

func (d *recordingDelivery) Send(userID uuid.UUID, eventType string, data interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, pushed{UserID: userID, EventType: eventType, Data: data})
}

func (d *recordingDelivery) Sent() []pushed {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pushed(nil), d.sent...)
}

type projectFixture struct {
	env      *testEnv
	runner   *fakeRunner
	delivery *recordingDelivery
	registry *memory.ProcessRegistry
	settings ProjectSettings
	ports    lifecycle.PortRange
	svc      IProjectService
	userId   uuid.UUID
}

func newProjectFixture(t *testing.T, runner *fakeRunner, ports lifecycle.PortRange) *projectFixture {
	env := newTestEnv(t)
	f := &projectFixture{
		env:      env,
		runner:   runner,
		delivery: &recordingDelivery{},
		registry: memory.NewProcessRegistry(),
		settings: ProjectSettings{
			Dir:             filepath.Join(t.TempDir(), "projects"),
			PreviewDomain:   "preview.test",
			ScaffoldTimeout: time.Minute,
			StopTimeout:     time.Second,
		},
		ports:  ports,
		userId: uuid.New(),
	}
	f.svc = f.newService()
	return f
}

// newService builds a service over the same storage, as after a restart.
func (f *projectFixture) newService() IProjectService {
	return NewProjectService(
		f.env.factory,
		NewPortAllocator(f.env.factory, f.ports),
		NewBuildStepTracker(f.env.factory),
		f.runner,
		f.registry,
		f.env.credits(),
		f.env.publisher,
		f.delivery,
		f.settings,
		f.env.logger,
	)
}

func (f *projectFixture) create(t *testing.T, name string) *dto.ProjectResponse {
	t.Helper()
	p, err := f.svc.Create(context.Background(), f.userId, &dto.CreateProjectRequest{Name: name, ProjectType: "nextjs"})
	require.NoError(t, err)
	return p
}

func (f *projectFixture) ready(t *testing.T, name string) *dto.ProjectResponse {
	t.Helper()
	p := f.create(t, name)
	_, err := f.svc.Scaffold(context.Background(), f.userId, p.Id)
	require.NoError(t, err)
	f.svc.Wait()
	got, err := f.svc.Get(context.Background(), f.userId, p.Id)
	require.NoError(t, err)
	require.Equal(t, "ready", got.Status)
	return got
}

var defaultPorts = lifecycle.PortRange{Start: 30000, End: 30010}

func TestProjectCreateValidatesAndGates(t *testing.T) {
	f := newProjectFixture(t, &fakeRunner{}, defaultPorts)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.userId, &dto.CreateProjectRequest{Name: "app", ProjectType: "vue"})
	assert.ErrorIs(t, err, ErrInvalidProjectType)

	_, err = f.svc.Create(ctx, f.userId, &dto.CreateProjectRequest{Name: "  ", ProjectType: "react"})
	assert.ErrorIs(t, err, ErrEmptyProjectName)

	p := f.create(t, "My App")
	assert.Equal(t, "planning", p.Status)
	assert.Nil(t, p.Port)

	indebted := uuid.New()
	_, err = f.env.credits().GetOrCreateBalance(ctx, indebted)
	require.NoError(t, err)
	setBalance(t, f.env, indebted, -600000)

	_, err = f.svc.Create(ctx, indebted, &dto.CreateProjectRequest{Name: "app", ProjectType: "react"})
	var insufficient *dto.InsufficientCreditError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Balance.Equal(dec("-6000")))
}

func TestScaffoldReachesReady(t *testing.T) {
	runner := &fakeRunner{output: "Success! Created my-app"}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.create(t, "My App")

	res, err := f.svc.Scaffold(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "generating", res.Status)
	require.NotNil(t, res.Port)
	assert.Equal(t, 30000, *res.Port)
	require.NotNil(t, res.Subdomain)
	require.NotNil(t, res.PreviewUrl)
	assert.Equal(t, "https://"+*res.Subdomain+".preview.test", *res.PreviewUrl)

	f.svc.Wait()

	got, err := f.svc.Get(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "ready", got.Status)
	assert.Nil(t, got.ErrorLog)
	require.NotNil(t, got.LastAccessedAt)
	require.Len(t, got.BuildSteps, 1)
	assert.Equal(t, 1, got.BuildSteps[0].Step)
	assert.Equal(t, "completed", got.BuildSteps[0].Status)
	require.NotNil(t, got.BuildSteps[0].Output)
	assert.Contains(t, *got.BuildSteps[0].Output, "Success!")

	runs := runner.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "create-next-app@latest", runs[0].Args[0])
	assert.Equal(t, f.settings.Dir, runs[0].Dir)
	assert.True(t, strings.HasPrefix(runs[0].Args[1], "my-app-"))

	assert.Equal(t, []string{"generating", "ready"}, f.env.publisher.Statuses(p.Id))
	sent := f.delivery.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, f.userId, sent[1].UserID)
	assert.Equal(t, "project.status_changed", sent[1].EventType)
}

func TestScaffoldFailureRecordsBoundedLog(t *testing.T) {
	runner := &fakeRunner{
		output: strings.Repeat("npm ERR! ", 1000),
		runErr: fmt.Errorf("npx create-next-app@latest: %w", process.ErrTimeout),
	}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.create(t, "broken")

	_, err := f.svc.Scaffold(ctx, f.userId, p.Id)
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.svc.Get(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "error", got.Status)
	require.NotNil(t, got.ErrorLog)
	assert.LessOrEqual(t, len(*got.ErrorLog), lifecycle.MaxErrorLogLength)
	assert.Contains(t, *got.ErrorLog, "timed out")
	require.Len(t, got.BuildSteps, 1)
	assert.Equal(t, "failed", got.BuildSteps[0].Status)

	// a project in error can be scaffolded again
	runner.mu.Lock()
	runner.runErr = nil
	runner.mu.Unlock()
	_, err = f.svc.Scaffold(ctx, f.userId, p.Id)
	require.NoError(t, err)
	f.svc.Wait()

	got, err = f.svc.Get(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "ready", got.Status)
	assert.Len(t, got.BuildSteps, 2)
}

func TestConcurrentScaffoldReservesOnce(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.create(t, "race")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Scaffold(ctx, f.userId, p.Id)
		}(i)
	}
	wg.Wait()
	close(runner.block)
	f.svc.Wait()

	var ok, inProgress int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrScaffoldInProgress):
			inProgress++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, inProgress)
	assert.Len(t, runner.Runs(), 1)

	var steps int64
	require.NoError(t, f.env.db.Model(&model.BuildStep{}).Where("project_id = ?", p.Id).Count(&steps).Error)
	assert.EqualValues(t, 1, steps)
}

func TestScaffoldAssignsDistinctPorts(t *testing.T) {
	f := newProjectFixture(t, &fakeRunner{}, defaultPorts)
	ctx := context.Background()

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = f.create(t, fmt.Sprintf("app %d", i)).Id
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Scaffold(ctx, f.userId, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()
	f.svc.Wait()

	seen := map[int]bool{}
	for _, id := range ids {
		got, err := f.svc.Get(ctx, f.userId, id)
		require.NoError(t, err)
		require.NotNil(t, got.Port)
		assert.False(t, seen[*got.Port], "port %d assigned twice", *got.Port)
		seen[*got.Port] = true
		assert.GreaterOrEqual(t, *got.Port, defaultPorts.Start)
		assert.LessOrEqual(t, *got.Port, defaultPorts.End)
	}
}

func TestScaffoldPortExhaustionMarksError(t *testing.T) {
	f := newProjectFixture(t, &fakeRunner{}, lifecycle.PortRange{Start: 30000, End: 30000})
	ctx := context.Background()

	f.ready(t, "first")
	second := f.create(t, "second")

	_, err := f.svc.Scaffold(ctx, f.userId, second.Id)
	require.ErrorIs(t, err, ErrNoPortAvailable)

	got, err := f.svc.Get(ctx, f.userId, second.Id)
	require.NoError(t, err)
	assert.Equal(t, "error", got.Status)
	require.NotNil(t, got.ErrorLog)
	assert.Contains(t, *got.ErrorLog, "no free port")
	assert.Nil(t, got.Port)
}

func TestStartAndStopRejectWithoutSideEffects(t *testing.T) {
	runner := &fakeRunner{}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.create(t, "idle")

	_, err := f.svc.Start(ctx, f.userId, p.Id)
	assert.ErrorIs(t, err, ErrInvalidProjectState)

	_, err = f.svc.Stop(ctx, f.userId, p.Id)
	assert.ErrorIs(t, err, ErrNoPortReserved)

	assert.Empty(t, runner.Started())
	assert.Empty(t, runner.Killed())
	assert.Empty(t, f.env.publisher.Statuses(p.Id))

	got, err := f.svc.Get(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "planning", got.Status)

	_, err = f.svc.Start(ctx, uuid.New(), p.Id)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestStartStopLifecycle(t *testing.T) {
	runner := &fakeRunner{}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.ready(t, "web")

	res, err := f.svc.Start(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "running", res.Status)
	started := runner.Started()
	require.Len(t, started, 1)
	assert.Contains(t, started[0].Env, fmt.Sprintf("PORT=%d", *p.Port))
	assert.Equal(t, 1, f.registry.Count())

	_, err = f.svc.Start(ctx, f.userId, p.Id)
	assert.ErrorIs(t, err, ErrInvalidProjectState)

	res, err = f.svc.Stop(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", res.Status)
	assert.True(t, runner.handles[0].Stopped())
	assert.Empty(t, runner.Killed())
	assert.Equal(t, 0, f.registry.Count())

	// stopping twice is fine
	res, err = f.svc.Stop(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", res.Status)
	assert.Empty(t, runner.Killed())

	// restart from stopped
	res, err = f.svc.Start(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "running", res.Status)
	assert.Len(t, runner.Started(), 2)

	assert.Equal(t, []string{"generating", "ready", "running", "stopped", "running"}, f.env.publisher.Statuses(p.Id))
}

func TestStartFailureMarksError(t *testing.T) {
	runner := &fakeRunner{}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.ready(t, "web")

	runner.mu.Lock()
	runner.startErr = errors.New("exec: npm: not found")
	runner.mu.Unlock()

	_, err := f.svc.Start(ctx, f.userId, p.Id)
	require.Error(t, err)

	got, err := f.svc.Get(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "error", got.Status)
	require.NotNil(t, got.ErrorLog)
	assert.Contains(t, *got.ErrorLog, "npm: not found")
}

func TestFailedScaffoldCannotBeStoppedIntoStartable(t *testing.T) {
	runner := &fakeRunner{runErr: errors.New("npx create-next-app@latest: exit status 1")}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.create(t, "broken")

	_, err := f.svc.Scaffold(ctx, f.userId, p.Id)
	require.NoError(t, err)
	f.svc.Wait()

	res, err := f.svc.Stop(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "error", res.Status)

	_, err = f.svc.Start(ctx, f.userId, p.Id)
	assert.ErrorIs(t, err, ErrInvalidProjectState)
	assert.Empty(t, runner.Started())
	assert.Equal(t, 0, f.registry.Count())

	got, err := f.svc.Get(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "error", got.Status)
	assert.Equal(t, []string{"generating", "error"}, f.env.publisher.Statuses(p.Id))
}

func TestStartRequiresCompletedScaffold(t *testing.T) {
	runner := &fakeRunner{runErr: errors.New("exit status 1")}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.create(t, "broken")

	_, err := f.svc.Scaffold(ctx, f.userId, p.Id)
	require.NoError(t, err)
	f.svc.Wait()

	// a stale stopped row whose last build step failed
	require.NoError(t, f.env.db.Model(&model.Project{}).Where("id = ?", p.Id).
		Update("status", string(entity.ProjectStatusStopped)).Error)

	_, err = f.svc.Start(ctx, f.userId, p.Id)
	assert.ErrorIs(t, err, ErrInvalidProjectState)
	assert.Empty(t, runner.Started())
}

func TestStopWithoutCachedHandleKillsPort(t *testing.T) {
	runner := &fakeRunner{}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.ready(t, "web")

	_, err := f.svc.Start(ctx, f.userId, p.Id)
	require.NoError(t, err)

	// handles do not survive a restart
	f.registry = memory.NewProcessRegistry()
	restarted := f.newService()

	res, err := restarted.Stop(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", res.Status)
	assert.Equal(t, []int{*p.Port}, runner.Killed())
}

func TestStopFailsWhenPortCannotBeCleared(t *testing.T) {
	runner := &fakeRunner{}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.ready(t, "web")

	_, err := f.svc.Start(ctx, f.userId, p.Id)
	require.NoError(t, err)

	f.registry = memory.NewProcessRegistry()
	restarted := f.newService()
	runner.mu.Lock()
	runner.killErr = process.ErrPortLookupUnavailable
	runner.mu.Unlock()

	_, err = restarted.Stop(ctx, f.userId, p.Id)
	assert.ErrorIs(t, err, process.ErrPortLookupUnavailable)

	got, err := restarted.Get(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "running", got.Status)
}

func TestDeleteStopsRunningProject(t *testing.T) {
	runner := &fakeRunner{}
	f := newProjectFixture(t, runner, defaultPorts)
	ctx := context.Background()
	p := f.ready(t, "web")

	_, err := f.svc.Start(ctx, f.userId, p.Id)
	require.NoError(t, err)

	var path string
	require.NoError(t, f.env.db.Model(&model.Project{}).Where("id = ?", p.Id).Pluck("project_path", &path).Error)
	require.NoError(t, os.MkdirAll(path, 0o755))

	require.NoError(t, f.svc.Delete(ctx, f.userId, p.Id))
	assert.True(t, runner.handles[0].Stopped())

	_, err = f.svc.Get(ctx, f.userId, p.Id)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	var steps int64
	require.NoError(t, f.env.db.Model(&model.BuildStep{}).Where("project_id = ?", p.Id).Count(&steps).Error)
	assert.Zero(t, steps)
}

func TestReconcileFailsInterruptedScaffolds(t *testing.T) {
	f := newProjectFixture(t, &fakeRunner{}, defaultPorts)
	ctx := context.Background()
	p := f.create(t, "stuck")
	other := f.create(t, "fine")

	require.NoError(t, f.env.db.Model(&model.Project{}).Where("id = ?", p.Id).Update("status", "generating").Error)
	_, err := NewBuildStepTracker(f.env.factory).CreateStep(ctx, p.Id, "Scaffold nextjs project")
	require.NoError(t, err)

	n, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, f.userId, p.Id)
	require.NoError(t, err)
	assert.Equal(t, "error", got.Status)
	require.NotNil(t, got.ErrorLog)
	assert.Equal(t, "interrupted by restart", *got.ErrorLog)
	require.Len(t, got.BuildSteps, 1)
	assert.Equal(t, "failed", got.BuildSteps[0].Status)

	untouched, err := f.svc.Get(ctx, f.userId, other.Id)
	require.NoError(t, err)
	assert.Equal(t, "planning", untouched.Status)
}

func TestListProjects(t *testing.T) {
	f := newProjectFixture(t, &fakeRunner{}, defaultPorts)
	f.create(t, "one")
	f.create(t, "two")

	list, err := f.svc.List(context.Background(), f.userId)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Name)

	list, err = f.svc.List(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuildStepTracker(t *testing.T) {
	env := newTestEnv(t)
	tracker := NewBuildStepTracker(env.factory)
	ctx := context.Background()
	projectId := uuid.New()

	for want := 1; want <= 3; want++ {
		step, err := tracker.CreateStep(ctx, projectId, fmt.Sprintf("step %d", want))
		require.NoError(t, err)
		assert.Equal(t, want, step.Step)
		assert.Equal(t, entity.BuildStepInProgress, step.Status)
	}

	require.NoError(t, tracker.CompleteStep(ctx, projectId, 1, "done"))
	assert.ErrorIs(t, tracker.CompleteStep(ctx, projectId, 1, "again"), ErrStepAlreadyTerminal)
	assert.ErrorIs(t, tracker.FailStep(ctx, projectId, 1, "late failure"), ErrStepAlreadyTerminal)
	require.NoError(t, tracker.FailStep(ctx, projectId, 2, "boom"))

	steps, err := tracker.Steps(ctx, projectId)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, entity.BuildStepCompleted, steps[0].Status)
	require.NotNil(t, steps[0].Output)
	assert.Equal(t, "done", *steps[0].Output)
	assert.NotNil(t, steps[0].CompletedAt)
	assert.Equal(t, entity.BuildStepFailed, steps[1].Status)
	assert.Equal(t, entity.BuildStepInProgress, steps[2].Status)
	assert.Nil(t, steps[2].CompletedAt)
}
