// Package pipeline adapts the pipelines/jobs stores into trigger.PipelineFactory, the Tx-less
// collaborator interface the Trigger Orchestrator consumes (§6).
package pipeline

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
	"github.com/buildbeaver/trigger-engine/server/store/jobs"
	"github.com/buildbeaver/trigger-engine/server/store/pipelines"
)

// Service implements trigger.PipelineFactory against the pipelines/jobs stores.
type Service struct {
	pipelines *pipelines.PipelineStore
	jobs      *jobs.JobStore
	tokens    TokenSource
	log       logger.Log
}

func NewService(pipelineStore *pipelines.PipelineStore, jobStore *jobs.JobStore, tokens TokenSource, logFactory logger.LogFactory) *Service {
	return &Service{
		pipelines: pipelineStore,
		jobs:      jobStore,
		tokens:    tokens,
		log:       logFactory("PipelineService"),
	}
}

// Create registers a new pipeline. Not part of trigger.PipelineFactory; exposed for the host
// process (webhook/config-sync layer) to populate pipelines ahead of any event being triggered.
func (s *Service) Create(ctx context.Context, pipeline *models.Pipeline) error {
	return s.pipelines.Create(ctx, nil, pipeline)
}

func (s *Service) Get(ctx context.Context, id models.PipelineID) (*models.Pipeline, error) {
	if !id.Valid() {
		return nil, gerror.NewErrValidationFailed("pipeline id must be set")
	}
	return s.pipelines.Read(ctx, nil, id)
}

func (s *Service) GetAdmin(ctx context.Context, id models.PipelineID) (trigger.PipelineAdmin, error) {
	pipeline, err := s.pipelines.Read(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &admin{username: pipeline.AdminUsername, source: s.tokens}, nil
}

func (s *Service) GetJobs(ctx context.Context, id models.PipelineID) ([]*models.Job, error) {
	if !id.Valid() {
		return nil, gerror.NewErrValidationFailed("pipeline id must be set")
	}
	return s.jobs.ListByPipelineID(ctx, nil, id)
}

var _ trigger.PipelineFactory = (*Service)(nil)
