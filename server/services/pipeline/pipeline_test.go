package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/services/pipeline"
	"github.com/buildbeaver/trigger-engine/server/store/jobs"
	"github.com/buildbeaver/trigger-engine/server/store/pipelines"
	"github.com/buildbeaver/trigger-engine/server/store/store_test"
)

func newTestService(t *testing.T) (*pipeline.Service, func(), *pipeline.StaticTokenSource) {
	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	db, cleanup, err := store_test.Connect(logFactory)
	require.NoError(t, err)

	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	tokens := pipeline.NewStaticTokenSource(map[models.ResourceName]string{"admin": "secret-token"})
	return pipeline.NewService(pipelineStore, jobStore, tokens, logFactory), cleanup, tokens
}

func TestPipelineService_CreateGetAndGetJobs(t *testing.T) {
	svc, cleanup, _ := newTestService(t)
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
	require.NoError(t, svc.Create(ctx, p))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ScmUri, got.ScmUri)

	jobs, err := svc.GetJobs(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestPipelineService_GetAdminUnsealsRegisteredToken(t *testing.T) {
	svc, cleanup, _ := newTestService(t)
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
	require.NoError(t, svc.Create(ctx, p))

	admin, err := svc.GetAdmin(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.ResourceName("admin"), admin.Username())

	token, err := admin.UnsealToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "secret-token", token)
}

func TestStaticTokenSource_UnregisteredUsernameReturnsNotFound(t *testing.T) {
	tokens := pipeline.NewStaticTokenSource(nil)
	_, err := tokens.Token(context.Background(), "nobody")
	require.Error(t, err)
}
