//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

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

func New(ctx context.Context, config *TriggerEngineConfig) (*Server, func(), error) {
	panic(wire.Build(
		NewServer,
		wire.FieldsOf(new(*TriggerEngineConfig), "DatabaseConfig", "LogLevels", "MaxJoinFanIn"),
		store.NewDatabase,
		migrations.NewBBGolangMigrateRunner,
		wire.Bind(new(store.MigrationRunner), new(*migrations.GolangMigrateRunner)),

		// Stores
		pipelines.NewStore,
		jobs.NewStore,
		events.NewStore,
		builds.NewStore,

		// Collaborator services wired against the trigger.Service's Factory contracts (§6)
		NewPipelineAdminTokens,
		wire.Bind(new(pipeline.TokenSource), new(*pipeline.StaticTokenSource)),
		pipeline.NewService,
		wire.Bind(new(trigger.PipelineFactory), new(*pipeline.Service)),
		job.NewService,
		wire.Bind(new(trigger.JobFactory), new(*job.Service)),
		event.NewService,
		wire.Bind(new(trigger.EventFactory), new(*event.Service)),
		build.NewService,
		wire.Bind(new(trigger.BuildFactory), new(*build.Service)),

		fake_scm.NewFakeSCMService,
		wire.Bind(new(trigger.SCM), new(*fake_scm.FakeSCMService)),
		trigger.NewGraphWorkflowParser,
		trigger.NewService,

		logger.NewLogRegistry,
		logger.MakeLogrusLogFactoryStdOut,
	))
}
