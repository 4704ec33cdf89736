// Hand-written equivalent of the wire.go injector (see New below), maintained directly.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package app

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/server/services/build"
	"github.com/buildbeaver/trigger-engine/server/services/event"
	"github.com/buildbeaver/trigger-engine/server/services/job"
	"github.com/buildbeaver/trigger-engine/server/services/pipeline"
	"github.com/buildbeaver/trigger-engine/server/services/scm/fake_scm"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
	"github.com/buildbeaver/trigger-engine/server/store"
	"github.com/buildbeaver/trigger-engine/server/store/builds"
	"github.com/buildbeaver/trigger-engine/server/store/events"
	"github.com/buildbeaver/trigger-engine/server/store/jobs"
	"github.com/buildbeaver/trigger-engine/server/store/migrations"
	"github.com/buildbeaver/trigger-engine/server/store/pipelines"
)

// NewPipelineAdminTokens seeds a StaticTokenSource from the config-supplied token map.
func NewPipelineAdminTokens(config *TriggerEngineConfig) *pipeline.StaticTokenSource {
	return pipeline.NewStaticTokenSource(config.PipelineAdminTokens)
}

// New assembles the trigger engine's dependency graph. It is the hand-written equivalent of the
// injector declared in wire.go; wire codegen produces this file in the teacher repo, but since the
// graph here is small and stable it is maintained directly.
func New(ctx context.Context, config *TriggerEngineConfig) (*Server, func(), error) {
	logRegistry, err := logger.NewLogRegistry(config.LogLevels)
	if err != nil {
		return nil, nil, err
	}
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	migrationRunner := migrations.NewBBGolangMigrateRunner(logFactory)

	db, dbCleanup, err := store.NewDatabase(ctx, config.DatabaseConfig, migrationRunner)
	if err != nil {
		return nil, nil, err
	}

	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	eventStore := events.NewStore(db, logFactory)
	buildStore := builds.NewStore(db, logFactory)

	pipelineAdminTokens := NewPipelineAdminTokens(config)
	pipelineService := pipeline.NewService(pipelineStore, jobStore, pipelineAdminTokens, logFactory)
	jobService := job.NewService(jobStore, logFactory)
	eventService := event.NewService(eventStore, buildStore, jobStore, logFactory)
	buildService := build.NewService(buildStore, logFactory)

	scm := fake_scm.NewFakeSCMService(logFactory)
	workflowParser := trigger.NewGraphWorkflowParser()
	triggerService := trigger.NewService(pipelineService, jobService, eventService, buildService, scm, workflowParser, config.MaxJoinFanIn, logFactory)

	server := NewServer(triggerService, pipelineService, jobService, eventService, buildService, pipelineAdminTokens)

	cleanup := func() {
		dbCleanup()
	}
	return server, cleanup, nil
}
