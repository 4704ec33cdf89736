package trigger

import (
	"context"
	"fmt"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
)

// fakePipelines is an in-memory PipelineFactory backed by a map, mirroring the teacher's own
// preference for hand-written fakes over a mocking library for service-level collaborators.
type fakePipelines struct {
	byID map[models.PipelineID]*models.Pipeline
	jobs map[models.PipelineID][]*models.Job
}

func newFakePipelines() *fakePipelines {
	return &fakePipelines{byID: make(map[models.PipelineID]*models.Pipeline), jobs: make(map[models.PipelineID][]*models.Job)}
}

func (f *fakePipelines) add(p *models.Pipeline, jobs ...*models.Job) {
	f.byID[p.ID] = p
	f.jobs[p.ID] = jobs
}

func (f *fakePipelines) Get(ctx context.Context, id models.PipelineID) (*models.Pipeline, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, gerror.NewErrNotFound("pipeline not found")
	}
	return p, nil
}

func (f *fakePipelines) GetAdmin(ctx context.Context, id models.PipelineID) (PipelineAdmin, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, gerror.NewErrNotFound("pipeline not found")
	}
	return fakePipelineAdmin{username: p.AdminUsername}, nil
}

func (f *fakePipelines) GetJobs(ctx context.Context, id models.PipelineID) ([]*models.Job, error) {
	return f.jobs[id], nil
}

type fakePipelineAdmin struct {
	username models.ResourceName
}

func (a fakePipelineAdmin) Username() models.ResourceName { return a.username }

func (a fakePipelineAdmin) UnsealToken(ctx context.Context) (string, error) {
	return "token-for-" + a.username.String(), nil
}

// fakeJobs is an in-memory JobFactory.
type fakeJobs struct {
	byID map[models.JobID]*models.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{byID: make(map[models.JobID]*models.Job)}
}

func (f *fakeJobs) add(j *models.Job) { f.byID[j.ID] = j }

func (f *fakeJobs) GetByID(ctx context.Context, id models.JobID) (*models.Job, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, gerror.NewErrNotFound("job not found")
	}
	return j, nil
}

func (f *fakeJobs) GetByName(ctx context.Context, pipelineID models.PipelineID, name models.ResourceName) (*models.Job, error) {
	for _, j := range f.byID {
		if j.PipelineID.Equal(pipelineID.ResourceID) && j.Name == name {
			return j, nil
		}
	}
	return nil, gerror.NewErrNotFound("job not found")
}

// fakeEvents is an in-memory EventFactory.
type fakeEvents struct {
	byID map[models.EventID]*models.Event
	// lastCreate records the payload of the most recent Create call, so tests can assert on
	// fields (like StartFrom) that the Event model itself doesn't persist.
	lastCreate EventCreate
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{byID: make(map[models.EventID]*models.Event)}
}

func (f *fakeEvents) add(e *models.Event) { f.byID[e.ID] = e }

func (f *fakeEvents) Get(ctx context.Context, id models.EventID) (*models.Event, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, gerror.NewErrNotFound("event not found")
	}
	return e, nil
}

func (f *fakeEvents) List(ctx context.Context, params EventListParams) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range f.byID {
		if params.PipelineID != nil && !e.PipelineID.Equal(params.PipelineID.ResourceID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEvents) Create(ctx context.Context, payload EventCreate) (*models.Event, error) {
	f.lastCreate = payload
	event := &models.Event{
		ID:            models.NewEventID(),
		PipelineID:    payload.PipelineID,
		Sha:           payload.Sha,
		ParentEventID: payload.ParentEventID,
		BaseBranch:    payload.BaseBranch,
		PR:            payload.PR,
		Type:          payload.Type,
		CauseMessage:  payload.CauseMessage,
		Username:      payload.Username,
	}
	if payload.GroupEventID != nil {
		event.GroupEventID = *payload.GroupEventID
	} else {
		event.GroupEventID = event.ID
	}
	f.byID[event.ID] = event
	return event, nil
}

func (f *fakeEvents) GetBuilds(ctx context.Context, id models.EventID) ([]*models.Build, error) {
	return nil, nil
}

// fakeBuilds is an in-memory BuildFactory.
type fakeBuilds struct {
	byID    map[models.BuildID]*models.Build
	started []models.BuildID
	removed []models.BuildID
}

func newFakeBuilds() *fakeBuilds {
	return &fakeBuilds{byID: make(map[models.BuildID]*models.Build)}
}

func (f *fakeBuilds) add(b *models.Build) { f.byID[b.ID] = b }

func (f *fakeBuilds) Get(ctx context.Context, id models.BuildID) (*models.Build, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, gerror.NewErrNotFound("build not found")
	}
	return b, nil
}

func (f *fakeBuilds) List(ctx context.Context, params BuildListParams) ([]*models.Build, error) {
	var out []*models.Build
	for _, b := range f.byID {
		if params.EventID != nil && !b.EventID.Equal(params.EventID.ResourceID) {
			continue
		}
		if params.JobID != nil && !b.JobID.Equal(params.JobID.ResourceID) {
			continue
		}
		if params.Status != nil && b.Status != *params.Status {
			continue
		}
		out = append(out, b)
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (f *fakeBuilds) GetLatestBuilds(ctx context.Context, groupEventID models.EventID) ([]*models.Build, error) {
	return nil, nil
}

func (f *fakeBuilds) Create(ctx context.Context, payload BuildCreate) (*models.Build, error) {
	build := &models.Build{
		ID:             models.NewBuildID(),
		JobID:          payload.JobID,
		EventID:        payload.EventID,
		Status:         models.BuildStatusCreated,
		Sha:            payload.Sha,
		ParentBuildIDs: payload.ParentBuildIDs,
		ParentBuilds:   payload.ParentBuilds,
		Username:       payload.Username,
		ScmContext:     payload.ScmContext,
		PR:             payload.PR,
		BaseBranch:     payload.BaseBranch,
	}
	f.byID[build.ID] = build
	if payload.Start {
		build.Status = models.BuildStatusQueued
		f.started = append(f.started, build.ID)
	}
	return build, nil
}

func (f *fakeBuilds) Update(ctx context.Context, build *models.Build) (*models.Build, error) {
	f.byID[build.ID] = build
	return build, nil
}

func (f *fakeBuilds) Start(ctx context.Context, id models.BuildID) (*models.Build, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, gerror.NewErrNotFound("build not found")
	}
	b.Status = models.BuildStatusRunning
	f.started = append(f.started, id)
	return b, nil
}

func (f *fakeBuilds) Remove(ctx context.Context, id models.BuildID) error {
	delete(f.byID, id)
	f.removed = append(f.removed, id)
	return nil
}

// fakeSCM resolves a deterministic sha per (scmContext, scmUri), avoiding a dependency on the
// real fake_scm package so these orchestrator tests stay self-contained.
type fakeSCM struct{}

func (fakeSCM) GetCommitSha(ctx context.Context, opts GetCommitShaOptions) (string, error) {
	return fmt.Sprintf("sha-%s-%s", opts.ScmContext, opts.ScmUri), nil
}

func newTestService(pipelines PipelineFactory, jobs JobFactory, events EventFactory, builds BuildFactory) *Service {
	return NewService(pipelines, jobs, events, builds, fakeSCM{}, NewGraphWorkflowParser(), DefaultMaxJoinFanIn, logger.NoOpLogFactory)
}
