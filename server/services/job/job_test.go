package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/services/job"
	"github.com/buildbeaver/trigger-engine/server/store/jobs"
	"github.com/buildbeaver/trigger-engine/server/store/pipelines"
	"github.com/buildbeaver/trigger-engine/server/store/store_test"
)

func newTestService(t *testing.T) (*job.Service, func(), *pipelines.PipelineStore) {
	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	db, cleanup, err := store_test.Connect(logFactory)
	require.NoError(t, err)

	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	return job.NewService(jobStore, logFactory), cleanup, pipelineStore
}

func TestJobService_CreateGetByIDAndGetByName(t *testing.T) {
	svc, cleanup, pipelineStore := newTestService(t)
	defer cleanup()
	ctx := context.Background()

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
	require.NoError(t, svc.Create(ctx, j))

	byID, err := svc.GetByID(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, j.Name, byID.Name)

	byName, err := svc.GetByName(ctx, p.ID, "build")
	require.NoError(t, err)
	require.Equal(t, j.ID, byName.ID)
}

func TestJobService_GetByIDRejectsZeroValue(t *testing.T) {
	svc, cleanup, _ := newTestService(t)
	defer cleanup()

	_, err := svc.GetByID(context.Background(), models.JobID{})
	require.Error(t, err)
}

func TestJobService_GetByNameRejectsInvalidName(t *testing.T) {
	svc, cleanup, _ := newTestService(t)
	defer cleanup()

	_, err := svc.GetByName(context.Background(), models.NewPipelineID(), "")
	require.Error(t, err)
}
