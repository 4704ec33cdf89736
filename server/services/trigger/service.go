package trigger

import (
	"context"
	"fmt"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
)

// DefaultMaxJoinFanIn bounds the number of upstream sources a single AND-join next-job may name
// in its workflow graph (§4.C "srcForJoin"), guarding against a pathological or malformed graph
// fanning a join out indefinitely. Used by NewService when maxJoinFanIn <= 0.
const DefaultMaxJoinFanIn = 32

// Service is the Trigger Orchestrator (§4.G): the top-level entry point that, for each next job
// named by the workflow graph, dispatches to the correct internal/external/join/re-entry path.
type Service struct {
	pipelines    PipelineFactory
	jobs         JobFactory
	events       EventFactory
	builds       BuildFactory
	scm          SCM
	parser       WorkflowParser
	maxJoinFanIn int
	log          logger.Log
}

// NewService wires the Trigger Orchestrator's collaborators (§6 "consumed collaborator interfaces").
// maxJoinFanIn bounds the join list length SrcForJoin may return before triggerOne/triggerJoin
// refuse to process it (§7 "GraphMismatch"); maxJoinFanIn <= 0 falls back to DefaultMaxJoinFanIn.
func NewService(pipelines PipelineFactory, jobs JobFactory, events EventFactory, builds BuildFactory, scm SCM, parser WorkflowParser, maxJoinFanIn int, logFactory logger.LogFactory) *Service {
	if maxJoinFanIn <= 0 {
		maxJoinFanIn = DefaultMaxJoinFanIn
	}
	return &Service{
		pipelines:    pipelines,
		jobs:         jobs,
		events:       events,
		builds:       builds,
		scm:          scm,
		parser:       parser,
		maxJoinFanIn: maxJoinFanIn,
		log:          logFactory("trigger"),
	}
}

// TriggerEventConfig is the payload for the exposed triggerEvent operation (§6).
type TriggerEventConfig struct {
	PipelineID    models.PipelineID
	StartFrom     string
	CauseMessage  string
	ParentBuildID models.BuildID
	ParentBuilds  models.ParentBuildsLedger
	ParentEventID *models.EventID
	GroupEventID  *models.EventID
}

// TriggerEvent creates a downstream event for an arbitrary pipeline (§6 "triggerEvent(config)").
// The commit sha is resolved via the target pipeline's own admin credentials and the SCM
// collaborator, exactly as createExternalBuild does internally (§4.F).
func (s *Service) TriggerEvent(ctx context.Context, cfg TriggerEventConfig) (*models.Event, error) {
	if !cfg.PipelineID.Valid() || cfg.StartFrom == "" || !cfg.ParentBuildID.Valid() {
		return nil, gerror.NewErrValidationFailed("pipelineId, startFrom and parentBuildId are required")
	}
	pipeline, err := s.pipelines.Get(ctx, cfg.PipelineID)
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error loading pipeline for triggerEvent", err)
	}
	admin, err := s.pipelines.GetAdmin(ctx, cfg.PipelineID)
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error loading pipeline admin for triggerEvent", err)
	}
	token, err := admin.UnsealToken(ctx)
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error unsealing pipeline admin token", err)
	}
	sha, err := s.scm.GetCommitSha(ctx, GetCommitShaOptions{ScmContext: pipeline.ScmContext, ScmUri: pipeline.ScmUri, Token: token})
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error resolving commit sha for triggerEvent", err)
	}
	var configSha *string
	if pipeline.HasConfigPipeline() {
		configSha, err = s.resolveConfigPipelineSha(ctx, *pipeline.ConfigPipelineID, token)
		if err != nil {
			return nil, err
		}
	}
	return CreateExternalBuild(ctx, s.events, ExternalBuildParams{
		PipelineID:        cfg.PipelineID,
		StartFrom:         cfg.StartFrom,
		CauseMessage:      cfg.CauseMessage,
		ParentBuildID:     cfg.ParentBuildID,
		ParentBuilds:      cfg.ParentBuilds,
		ParentEventID:     cfg.ParentEventID,
		GroupEventID:      cfg.GroupEventID,
		ScmContext:        pipeline.ScmContext,
		Username:          admin.Username(),
		Sha:               sha,
		ConfigPipelineSha: configSha,
	})
}

func (s *Service) resolveConfigPipelineSha(ctx context.Context, configPipelineID models.PipelineID, token string) (*string, error) {
	configPipeline, err := s.pipelines.Get(ctx, configPipelineID)
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error loading config pipeline", err)
	}
	sha, err := s.scm.GetCommitSha(ctx, GetCommitShaOptions{ScmContext: configPipeline.ScmContext, ScmUri: configPipeline.ScmUri, Token: token})
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error resolving config pipeline commit sha", err)
	}
	return &sha, nil
}

// TriggerNextJobsConfig is the payload for the exposed triggerNextJobs operation (§6).
type TriggerNextJobsConfig struct {
	Pipeline   *models.Pipeline
	Job        *models.Job
	Build      *models.Build
	Username   models.ResourceName
	ScmContext string
}

// TriggerNextJobs is the Trigger Orchestrator (§4.G): for every job the workflow graph says
// follows the one that just finished, dispatch to the internal/external/join/re-entry path.
// Next jobs are processed sequentially, and each is wrapped in error-capture and logged: a
// failure processing one next job never prevents the others from being attempted (§4.G, §7).
func (s *Service) TriggerNextJobs(ctx context.Context, cfg TriggerNextJobsConfig) error {
	event, err := s.events.Get(ctx, cfg.Build.EventID)
	if err != nil {
		return gerror.NewErrFactoryFailure("error loading event for triggerNextJobs", err)
	}

	currentJobName := cfg.Job.Name.String()
	nextJobNames := s.parser.NextJobs(&event.WorkflowGraph, currentJobName, event.IsPullRequest())

	for _, nextJobName := range nextJobNames {
		log := s.log.WithField("pipeline_id", cfg.Pipeline.ID.String()).
			WithField("build_id", cfg.Build.ID.String()).
			WithField("next_job_name", nextJobName)

		if err := s.triggerOne(ctx, cfg, event, currentJobName, nextJobName); err != nil {
			log.WithField("error", err.Error()).Error("error triggering next job")
		}
	}
	return nil
}

func (s *Service) triggerOne(
	ctx context.Context,
	cfg TriggerNextJobsConfig,
	event *models.Event,
	currentJobName string,
	nextJobName string,
) error {
	joinListNames := s.parser.SrcForJoin(&event.WorkflowGraph, nextJobName)
	if len(joinListNames) > s.maxJoinFanIn {
		return gerror.NewErrGraphMismatch(fmt.Sprintf(
			"join list for %q names %d upstream sources, exceeding the configured maximum of %d",
			nextJobName, len(joinListNames), s.maxJoinFanIn))
	}
	c := Classify(nextJobName, cfg.Pipeline.ID)

	parentBuilds := Merge(
		JoinSkeleton(cfg.Pipeline.ID, joinListNames),
		cfg.Build.ParentBuilds,
		SingletonLedger(cfg.Pipeline.ID, event.ID, TrimJobName(currentJobName), cfg.Build.ID),
	)

	if len(joinListNames) == 0 || isORTrigger(joinListNames, cfg.Pipeline.ID, currentJobName) {
		if !c.IsExternal {
			return s.triggerInternal(ctx, cfg, event, c.JobName, parentBuilds)
		}
		if entry := cfg.Build.ParentBuilds[c.PipelineID]; entry != nil {
			_, err := Reenter(ctx, s.log, s.events, s.builds, s.jobs, ReentryParams{
				CurrentBuild:       cfg.Build,
				CurrentPipelineID:  cfg.Pipeline.ID,
				CurrentJobName:     currentJobName,
				ExternalPipelineID: c.PipelineID,
				ExternalJobName:    c.JobName,
				NewContribution:    parentBuilds,
				Username:           cfg.Username,
				ScmContext:         cfg.ScmContext,
			})
			return err
		}
		return s.triggerExternalFanOut(ctx, cfg, event, currentJobName, c)
	}

	return s.triggerJoin(ctx, cfg, event, joinListNames, c, parentBuilds)
}

// triggerInternal handles the OR-trigger / no-join internal case (§4.G dispatch row 1):
// createInternalBuild(start=true).
func (s *Service) triggerInternal(ctx context.Context, cfg TriggerNextJobsConfig, event *models.Event, jobName string, parentBuilds models.ParentBuildsLedger) error {
	job, err := s.jobs.GetByName(ctx, cfg.Pipeline.ID, models.ResourceName(jobName))
	if err != nil {
		return gerror.NewErrFactoryFailure("error loading next job", err)
	}
	_, err = CreateInternalBuild(ctx, s.builds, InternalBuildParams{
		Job:            job,
		Sha:            cfg.Build.Sha,
		ParentBuildIDs: []models.BuildID{cfg.Build.ID},
		ParentBuilds:   parentBuilds,
		EventID:        event.ID,
		Username:       cfg.Username,
		ScmContext:     cfg.ScmContext,
		PR:             event.PR,
		BaseBranch:     event.BaseBranch,
		Start:          true,
	})
	return err
}

// triggerExternalFanOut handles the OR-trigger / no-join external case when there is no prior
// ledger entry for the external pipeline (§4.G dispatch row 3): createExternalBuild, forwarding
// parentEventId only if the current event itself has no parent.
func (s *Service) triggerExternalFanOut(ctx context.Context, cfg TriggerNextJobsConfig, event *models.Event, currentJobName string, c ClassifiedName) error {
	var parentEventID *models.EventID
	if !event.HasParent() {
		id := event.ID
		parentEventID = &id
	}
	startFrom := "~sd@" + cfg.Pipeline.ID.ExternalToken() + ":" + currentJobName
	_, err := s.TriggerEvent(ctx, TriggerEventConfig{
		PipelineID:    c.PipelineID,
		StartFrom:     startFrom,
		CauseMessage:  "Triggered by " + "sd@" + cfg.Pipeline.ID.ExternalToken() + ":" + currentJobName,
		ParentBuildID: cfg.Build.ID,
		ParentEventID: parentEventID,
	})
	return err
}

// triggerJoin handles the AND-join case, internal or external (§4.G dispatch row 4): resolve an
// existing next-build candidate or create one, update its ledger, evaluate the join, and apply
// the lifecycle action. External joins search/create with start=false via the external candidate
// search (§4.D external path).
func (s *Service) triggerJoin(ctx context.Context, cfg TriggerNextJobsConfig, event *models.Event, joinListNames []string, c ClassifiedName, parentBuilds models.ParentBuildsLedger) error {
	targetJob, err := s.jobs.GetByName(ctx, c.PipelineID, models.ResourceName(c.JobName))
	if err != nil {
		return gerror.NewErrFactoryFailure("error loading join target job", err)
	}

	var nextBuild *models.Build
	var found bool
	if c.IsExternal {
		nextBuild, err = FindExternalCandidate(ctx, s.builds, targetJob.ID, event.ID)
		if err != nil {
			return gerror.NewErrFactoryFailure("error searching for external join candidate", err)
		}
		found = nextBuild != nil
	} else {
		finished, err := FinishedBuildsForEvent(ctx, s.builds, event.ID)
		if err != nil {
			return gerror.NewErrFactoryFailure("error loading finished builds for join", err)
		}
		parallel, err := ParallelBuilds(ctx, s.builds, s.jobs, event.GroupEventID, cfg.Pipeline.ID)
		if err != nil {
			return gerror.NewErrFactoryFailure("error loading parallel builds for join", err)
		}
		candidates := append(finished, parallel...)
		nextBuild, found = FindInternalCandidate(candidates, targetJob.ID, event.ID)
	}

	if !found {
		ledger := JoinSkeleton(cfg.Pipeline.ID, joinListNames)
		ledger = Merge(ledger, parentBuilds)
		nextBuild, err = CreateInternalBuild(ctx, s.builds, InternalBuildParams{
			Job:            targetJob,
			Sha:            cfg.Build.Sha,
			ParentBuildIDs: []models.BuildID{cfg.Build.ID},
			ParentBuilds:   ledger,
			EventID:        event.ID,
			Username:       cfg.Username,
			ScmContext:     cfg.ScmContext,
			PR:             event.PR,
			BaseBranch:     event.BaseBranch,
			Start:          false,
		})
		if err != nil {
			return err
		}
		if nextBuild == nil {
			return nil // job disabled: non-error, nothing further to do
		}
	} else {
		currentBuildInfo := SingletonLedger(cfg.Pipeline.ID, event.ID, TrimJobName(cfg.Job.Name.String()), cfg.Build.ID)
		nextBuild, err = UpdateParentBuilds(ctx, s.builds, nextBuild, joinListNames, cfg.Pipeline.ID, cfg.Build.ParentBuilds, currentBuildInfo, cfg.Build.ID)
		if err != nil {
			return err
		}
	}

	loadBuild := func(id models.BuildID) (*models.Build, bool) {
		b, err := s.builds.Get(ctx, id)
		if err != nil {
			return nil, false
		}
		return b, true
	}
	result := EvaluateJoin(nextBuild.ParentBuilds, joinListNames, cfg.Pipeline.ID, loadBuild)
	_, err = HandleNewBuild(ctx, s.builds, result, nextBuild)
	return err
}

// isORTrigger reports whether the destination job's declared join list omits the job that just
// finished, meaning any single upstream trigger is enough to fire it rather than all of them
// (§4.G "isORTrigger = joinListNames does not include currentJobName nor sd@<curPid>:<curJob>").
func isORTrigger(joinListNames []string, currentPipelineID models.PipelineID, currentJobName string) bool {
	canonical := "sd@" + currentPipelineID.ExternalToken() + ":" + currentJobName
	for _, name := range joinListNames {
		if name == currentJobName || name == canonical {
			return false
		}
	}
	return true
}
