package app

import (
	"github.com/buildbeaver/trigger-engine/server/services/build"
	"github.com/buildbeaver/trigger-engine/server/services/event"
	"github.com/buildbeaver/trigger-engine/server/services/job"
	"github.com/buildbeaver/trigger-engine/server/services/pipeline"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
)

// Server is the trigger engine's process-level handle: the orchestrator itself plus the
// collaborator services a host process (webhook/config-sync layer, out of scope per §1) would
// use to populate pipelines and jobs ahead of triggering events against them.
type Server struct {
	TriggerService   *trigger.Service
	PipelineService  *pipeline.Service
	JobService       *job.Service
	EventService     *event.Service
	BuildService     *build.Service
	PipelineAdminTokens *pipeline.StaticTokenSource
}

func NewServer(
	triggerService *trigger.Service,
	pipelineService *pipeline.Service,
	jobService *job.Service,
	eventService *event.Service,
	buildService *build.Service,
	pipelineAdminTokens *pipeline.StaticTokenSource,
) *Server {
	return &Server{
		TriggerService:      triggerService,
		PipelineService:     pipelineService,
		JobService:          jobService,
		EventService:        eventService,
		BuildService:        buildService,
		PipelineAdminTokens: pipelineAdminTokens,
	}
}
