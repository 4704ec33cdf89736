package build_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/services/build"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
	"github.com/buildbeaver/trigger-engine/server/store/builds"
	"github.com/buildbeaver/trigger-engine/server/store/events"
	"github.com/buildbeaver/trigger-engine/server/store/jobs"
	"github.com/buildbeaver/trigger-engine/server/store/pipelines"
	"github.com/buildbeaver/trigger-engine/server/store/store_test"
)

type fixtures struct {
	pipeline *models.Pipeline
	job      *models.Job
	event    *models.Event
}

func newTestService(t *testing.T) (*build.Service, func(), fixtures) {
	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	db, cleanup, err := store_test.Connect(logFactory)
	require.NoError(t, err)

	ctx := context.Background()
	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	eventStore := events.NewStore(db, logFactory)
	buildStore := builds.NewStore(db, logFactory)

	p := &models.Pipeline{
		ID:            models.NewPipelineID(),
		CreatedAt:     models.NewTime(time.Now()),
		UpdatedAt:     models.NewTime(time.Now()),
		ScmContext:    "github",
		ScmUri:        "org/repo",
		AdminUsername: "admin",
	}
	require.NoError(t, pipelineStore.Create(ctx, nil, p))

	j := &models.Job{
		ID:         models.NewJobID(),
		PipelineID: p.ID,
		CreatedAt:  models.NewTime(time.Now()),
		UpdatedAt:  models.NewTime(time.Now()),
		Name:       "build",
		State:      models.JobStateEnabled,
	}
	require.NoError(t, jobStore.Create(ctx, nil, j))

	e := &models.Event{
		ID:           models.NewEventID(),
		PipelineID:   p.ID,
		CreatedAt:    models.NewTime(time.Now()),
		Sha:          "abc123",
		BaseBranch:   "main",
		Type:         models.EventTypePipeline,
		CauseMessage: "manual trigger",
		Username:     "admin",
	}
	e.GroupEventID = e.ID
	require.NoError(t, eventStore.Create(ctx, nil, e))

	return build.NewService(buildStore, logFactory), cleanup, fixtures{pipeline: p, job: j, event: e}
}

func TestBuildService_CreateWithoutStartLeavesCreatedStatus(t *testing.T) {
	svc, cleanup, fx := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	b, err := svc.Create(ctx, trigger.BuildCreate{
		JobID:      fx.job.ID,
		EventID:    fx.event.ID,
		Sha:        "abc123",
		Username:   "admin",
		ScmContext: "github",
		BaseBranch: "main",
	})
	require.NoError(t, err)
	require.Equal(t, models.BuildStatusCreated, b.Status)
}

func TestBuildService_CreateWithStartQueuesTheBuild(t *testing.T) {
	svc, cleanup, fx := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	b, err := svc.Create(ctx, trigger.BuildCreate{
		JobID:      fx.job.ID,
		EventID:    fx.event.ID,
		Sha:        "abc123",
		Username:   "admin",
		ScmContext: "github",
		BaseBranch: "main",
		Start:      true,
	})
	require.NoError(t, err)
	require.Equal(t, models.BuildStatusQueued, b.Status)
	require.NotNil(t, b.Timings.QueuedAt)
}

func TestBuildService_RemoveDeletesTheBuild(t *testing.T) {
	svc, cleanup, fx := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	b, err := svc.Create(ctx, trigger.BuildCreate{
		JobID:      fx.job.ID,
		EventID:    fx.event.ID,
		Sha:        "abc123",
		Username:   "admin",
		ScmContext: "github",
		BaseBranch: "main",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, b.ID))
	_, err = svc.Get(ctx, b.ID)
	require.Error(t, err)
}

func TestBuildService_ListFiltersByJobID(t *testing.T) {
	svc, cleanup, fx := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	_, err := svc.Create(ctx, trigger.BuildCreate{
		JobID:      fx.job.ID,
		EventID:    fx.event.ID,
		Sha:        "abc123",
		Username:   "admin",
		ScmContext: "github",
		BaseBranch: "main",
	})
	require.NoError(t, err)

	listed, err := svc.List(ctx, trigger.BuildListParams{JobID: &fx.job.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
}
