// Package job adapts the jobs store into trigger.JobFactory (§6).
package job

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
	"github.com/buildbeaver/trigger-engine/server/store/jobs"
)

type Service struct {
	jobs *jobs.JobStore
	log  logger.Log
}

func NewService(jobStore *jobs.JobStore, logFactory logger.LogFactory) *Service {
	return &Service{jobs: jobStore, log: logFactory("JobService")}
}

// Create registers a new job. Not part of trigger.JobFactory; exposed for the host process to
// populate a pipeline's jobs from parsed build configuration ahead of any event being triggered.
func (s *Service) Create(ctx context.Context, job *models.Job) error {
	return s.jobs.Create(ctx, nil, job)
}

func (s *Service) GetByID(ctx context.Context, id models.JobID) (*models.Job, error) {
	if !id.Valid() {
		return nil, gerror.NewErrValidationFailed("job id must be set")
	}
	return s.jobs.Read(ctx, nil, id)
}

func (s *Service) GetByName(ctx context.Context, pipelineID models.PipelineID, name models.ResourceName) (*models.Job, error) {
	if !pipelineID.Valid() {
		return nil, gerror.NewErrValidationFailed("pipeline id must be set")
	}
	if err := name.Validate(); err != nil {
		return nil, gerror.NewErrValidationFailed("job name invalid: " + err.Error())
	}
	return s.jobs.ReadByName(ctx, nil, pipelineID, name)
}

var _ trigger.JobFactory = (*Service)(nil)
