// Package build adapts the builds store into trigger.BuildFactory (§6).
package build

import (
	"context"
	"time"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
	"github.com/buildbeaver/trigger-engine/server/store"
	"github.com/buildbeaver/trigger-engine/server/store/builds"
)

type Service struct {
	builds *builds.BuildStore
	log    logger.Log
}

func NewService(buildStore *builds.BuildStore, logFactory logger.LogFactory) *Service {
	return &Service{builds: buildStore, log: logFactory("BuildService")}
}

func (s *Service) Get(ctx context.Context, id models.BuildID) (*models.Build, error) {
	if !id.Valid() {
		return nil, gerror.NewErrValidationFailed("build id must be set")
	}
	return s.builds.Read(ctx, nil, id)
}

func (s *Service) List(ctx context.Context, params trigger.BuildListParams) ([]*models.Build, error) {
	return s.builds.List(ctx, nil, store.BuildListParams{
		EventID:        params.EventID,
		JobID:          params.JobID,
		Status:         params.Status,
		SortDescending: params.SortDescending,
		Limit:          params.Limit,
	})
}

func (s *Service) GetLatestBuilds(ctx context.Context, groupEventID models.EventID) ([]*models.Build, error) {
	if !groupEventID.Valid() {
		return nil, gerror.NewErrValidationFailed("group event id must be set")
	}
	return s.builds.ListLatestPerJobForGroupEvent(ctx, nil, groupEventID)
}

// Create inserts a new Build in status CREATED, per §3 ("Builds are created by the trigger engine
// (status CREATED)"). Start, when requested, is applied as a second step via Start so that the
// CREATED→QUEUED/RUNNING transition always goes through the same code path regardless of caller.
func (s *Service) Create(ctx context.Context, payload trigger.BuildCreate) (*models.Build, error) {
	if !payload.JobID.Valid() || !payload.EventID.Valid() || payload.Sha == "" {
		return nil, gerror.NewErrValidationFailed("jobId, eventId and sha are required")
	}
	now := models.NewTime(time.Now())
	build := &models.Build{
		ID:                models.NewBuildID(),
		EventID:           payload.EventID,
		JobID:             payload.JobID,
		CreatedAt:         now,
		Status:            models.BuildStatusCreated,
		Sha:               payload.Sha,
		ParentBuildIDs:    models.BuildIDList(payload.ParentBuildIDs),
		ParentBuilds:      payload.ParentBuilds,
		Username:          payload.Username,
		ConfigPipelineSha: payload.ConfigPipelineSha,
		ScmContext:        payload.ScmContext,
		PR:                payload.PR,
		BaseBranch:        payload.BaseBranch,
		Timings:           models.BuildTimings{},
	}
	err := s.builds.Create(ctx, nil, build)
	if err != nil {
		return nil, err
	}
	if payload.Start {
		return s.Start(ctx, build.ID)
	}
	return build, nil
}

func (s *Service) Update(ctx context.Context, build *models.Build) (*models.Build, error) {
	err := s.builds.Update(ctx, nil, build)
	if err != nil {
		return nil, err
	}
	return build, nil
}

// Start transitions a CREATED/QUEUED build to QUEUED, the furthest this trigger-only engine takes
// a build: actually running it is the job of a separate scheduler/executor, out of scope per §1
// ("scheduling of build executors").
func (s *Service) Start(ctx context.Context, id models.BuildID) (*models.Build, error) {
	build, err := s.builds.Read(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	build.Status = models.BuildStatusQueued
	queuedAt := models.NewTime(time.Now())
	build.Timings.QueuedAt = &queuedAt
	err = s.builds.Update(ctx, nil, build)
	if err != nil {
		return nil, err
	}
	return build, nil
}

func (s *Service) Remove(ctx context.Context, id models.BuildID) error {
	if !id.Valid() {
		return gerror.NewErrValidationFailed("build id must be set")
	}
	return s.builds.Delete(ctx, nil, id)
}

var _ trigger.BuildFactory = (*Service)(nil)
