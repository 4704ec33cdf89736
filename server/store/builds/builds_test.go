package builds_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/store"
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

func setUpFixtures(t *testing.T, ctx context.Context, pipelineStore *pipelines.PipelineStore, jobStore *jobs.JobStore, eventStore *events.EventStore) fixtures {
	pipeline := &models.Pipeline{
		ID:            models.NewPipelineID(),
		CreatedAt:     models.NewTime(time.Now()),
		UpdatedAt:     models.NewTime(time.Now()),
		ScmContext:    "github",
		ScmUri:        "org/repo",
		AdminUsername: "admin",
	}
	require.NoError(t, pipelineStore.Create(ctx, nil, pipeline))

	job := &models.Job{
		ID:         models.NewJobID(),
		PipelineID: pipeline.ID,
		CreatedAt:  models.NewTime(time.Now()),
		UpdatedAt:  models.NewTime(time.Now()),
		Name:       "build",
		State:      models.JobStateEnabled,
	}
	require.NoError(t, jobStore.Create(ctx, nil, job))

	event := &models.Event{
		ID:           models.NewEventID(),
		PipelineID:   pipeline.ID,
		CreatedAt:    models.NewTime(time.Now()),
		Sha:          "abc123",
		BaseBranch:   "main",
		Type:         models.EventTypePipeline,
		CauseMessage: "manual trigger",
		Username:     "admin",
	}
	event.GroupEventID = event.ID
	require.NoError(t, eventStore.Create(ctx, nil, event))

	return fixtures{pipeline: pipeline, job: job, event: event}
}

func TestBuildStore_CreateReadAndUpdate(t *testing.T) {
	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	db, cleanup, err := store_test.Connect(logFactory)
	require.NoError(t, err)
	defer cleanup()

	ctx := context.Background()
	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	eventStore := events.NewStore(db, logFactory)
	buildStore := builds.NewStore(db, logFactory)

	fx := setUpFixtures(t, ctx, pipelineStore, jobStore, eventStore)

	build := &models.Build{
		ID:         models.NewBuildID(),
		EventID:    fx.event.ID,
		JobID:      fx.job.ID,
		CreatedAt:  models.NewTime(time.Now()),
		UpdatedAt:  models.NewTime(time.Now()),
		Status:     models.BuildStatusCreated,
		Sha:        "abc123",
		Username:   "admin",
		ScmContext: "github",
		BaseBranch: "main",
	}
	require.NoError(t, buildStore.Create(ctx, nil, build))
	require.NotEmpty(t, build.ETag)

	read, err := buildStore.Read(ctx, nil, build.ID)
	require.NoError(t, err)
	require.Equal(t, models.BuildStatusCreated, read.Status)

	read.Status = models.BuildStatusQueued
	require.NoError(t, buildStore.Update(ctx, nil, read))

	updated, err := buildStore.Read(ctx, nil, build.ID)
	require.NoError(t, err)
	require.Equal(t, models.BuildStatusQueued, updated.Status)
}

func TestBuildStore_ListFiltersByStatus(t *testing.T) {
	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	db, cleanup, err := store_test.Connect(logFactory)
	require.NoError(t, err)
	defer cleanup()

	ctx := context.Background()
	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	eventStore := events.NewStore(db, logFactory)
	buildStore := builds.NewStore(db, logFactory)

	fx := setUpFixtures(t, ctx, pipelineStore, jobStore, eventStore)

	running := &models.Build{
		ID:         models.NewBuildID(),
		EventID:    fx.event.ID,
		JobID:      fx.job.ID,
		CreatedAt:  models.NewTime(time.Now()),
		UpdatedAt:  models.NewTime(time.Now()),
		Status:     models.BuildStatusRunning,
		Sha:        "abc123",
		Username:   "admin",
		ScmContext: "github",
		BaseBranch: "main",
	}
	require.NoError(t, buildStore.Create(ctx, nil, running))

	secondJob := &models.Job{
		ID:         models.NewJobID(),
		PipelineID: fx.pipeline.ID,
		CreatedAt:  models.NewTime(time.Now()),
		UpdatedAt:  models.NewTime(time.Now()),
		Name:       "test",
		State:      models.JobStateEnabled,
	}
	require.NoError(t, jobStore.Create(ctx, nil, secondJob))

	failed := &models.Build{
		ID:         models.NewBuildID(),
		EventID:    fx.event.ID,
		JobID:      secondJob.ID,
		CreatedAt:  models.NewTime(time.Now()),
		UpdatedAt:  models.NewTime(time.Now()),
		Status:     models.BuildStatusFailure,
		Sha:        "abc123",
		Username:   "admin",
		ScmContext: "github",
		BaseBranch: "main",
	}
	require.NoError(t, buildStore.Create(ctx, nil, failed))

	runningStatus := models.BuildStatusRunning
	listed, err := buildStore.List(ctx, nil, store.BuildListParams{EventID: &fx.event.ID, Status: &runningStatus})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, running.ID, listed[0].ID)
}

func TestBuildStore_DeleteRemovesJoinPoisonedBuild(t *testing.T) {
	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	db, cleanup, err := store_test.Connect(logFactory)
	require.NoError(t, err)
	defer cleanup()

	ctx := context.Background()
	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	eventStore := events.NewStore(db, logFactory)
	buildStore := builds.NewStore(db, logFactory)

	fx := setUpFixtures(t, ctx, pipelineStore, jobStore, eventStore)

	build := &models.Build{
		ID:         models.NewBuildID(),
		EventID:    fx.event.ID,
		JobID:      fx.job.ID,
		CreatedAt:  models.NewTime(time.Now()),
		UpdatedAt:  models.NewTime(time.Now()),
		Status:     models.BuildStatusCreated,
		Sha:        "abc123",
		Username:   "admin",
		ScmContext: "github",
		BaseBranch: "main",
	}
	require.NoError(t, buildStore.Create(ctx, nil, build))

	require.NoError(t, buildStore.Delete(ctx, nil, build.ID))

	_, err = buildStore.Read(ctx, nil, build.ID)
	require.Error(t, err)
}
