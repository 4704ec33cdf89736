package trigger

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
)

// ReentryParams bundles everything the External Re-entry Handler needs to reconcile a flow that
// has looped back to a pipeline it originated from (§4.E). NewContribution is the ledger the
// orchestrator has already computed for this next job (joinSkeleton + current build's ledger +
// its own singleton contribution, §4.G "parseJobInfo"), before this handler patches it further.
type ReentryParams struct {
	CurrentBuild       *models.Build
	CurrentPipelineID  models.PipelineID
	CurrentJobName     string
	ExternalPipelineID models.PipelineID
	ExternalJobName    string
	NewContribution    models.ParentBuildsLedger
	Username           models.ResourceName
	ScmContext         string
}

// ReentryResult is what the handler produced. Build is set when it patched or created a build
// directly in the already-known external event; Event is set when it had to fork a fresh event
// for a restart.
type ReentryResult struct {
	Build *models.Build
	Event *models.Event
}

// Reenter reconciles an external trigger that loops back to a pipeline the current flow
// originated from (§4.E). The caller (the orchestrator, §4.G) only invokes this once it has
// established that currentBuild's ledger already has an entry for externalPipelineID.
//
// Per step 7 of §4.E, re-entry always treats the join as done=true, hasFailure=false and defers
// start/delete to HandleNewBuild: the outer orchestrator has already established that the current
// build satisfies the re-entering dependency, and the external event's own trigger path runs the
// standard evaluator for any joins still outstanding there (§9 open question: a more rigorous
// implementation would still run the evaluator to guard against premature start when multiple
// join parents are external — recorded as a design decision in DESIGN.md).
func Reenter(
	ctx context.Context,
	log logger.Log,
	events EventFactory,
	buildsF BuildFactory,
	jobs JobFactory,
	params ReentryParams,
) (ReentryResult, error) {
	extEntry := params.CurrentBuild.ParentBuilds[params.ExternalPipelineID]
	if extEntry == nil || extEntry.EventID == nil {
		return ReentryResult{}, gerror.NewErrGraphMismatch("reenter: no prior event recorded for external pipeline")
	}

	extEvent, err := events.Get(ctx, *extEntry.EventID)
	if err != nil {
		return ReentryResult{}, gerror.NewErrFactoryFailure("error loading external event for re-entry", err)
	}
	graph := &extEvent.WorkflowGraph

	targetName := TrimJobName(params.ExternalJobName)
	node, ok := graph.NodeByName(targetName)
	if !ok {
		node, ok = graph.NodeContaining(params.ExternalJobName)
	}
	if !ok {
		log.WithField("external_pipeline_id", params.ExternalPipelineID.String()).
			WithField("external_job_name", params.ExternalJobName).
			Warn("reenter: no matching node found in external workflow graph")
		return ReentryResult{}, gerror.NewErrGraphMismatch("reenter: no matching node in external workflow graph")
	}

	candidates, err := FinishedBuildsForEvent(ctx, buildsF, extEvent.ID)
	if err != nil {
		return ReentryResult{}, gerror.NewErrFactoryFailure("error loading candidate builds for re-entry", err)
	}
	parallel, err := ParallelBuilds(ctx, buildsF, jobs, extEvent.GroupEventID, extEvent.PipelineID)
	if err != nil {
		return ReentryResult{}, gerror.NewErrFactoryFailure("error loading parallel builds for re-entry", err)
	}
	candidates = append(candidates, parallel...)

	lookup := func(pid models.PipelineID, name string) (models.JobID, bool) {
		job, err := jobs.GetByName(ctx, pid, models.ResourceName(name))
		if err != nil || job == nil {
			return models.JobID{}, false
		}
		return job.ID, true
	}
	ledger := Fill(log, params.NewContribution, extEvent.PipelineID, graph, candidates, lookup)

	targetJobID, ok := lookup(extEvent.PipelineID, node.Name)
	if !ok {
		return ReentryResult{}, gerror.NewErrGraphMismatch("reenter: target job not found for matched node")
	}
	nextBuild, found := FindInternalCandidate(candidates, targetJobID, extEvent.ID)

	if !found {
		build, err := reenterCreate(ctx, buildsF, jobs, extEvent, graph, node, ledger, params)
		if err != nil || build == nil {
			return ReentryResult{Build: build}, err
		}
		started, err := HandleNewBuild(ctx, buildsF, JoinResult{Done: true}, build)
		return ReentryResult{Build: started}, err
	}

	if nextBuild.Status != models.BuildStatusCreated {
		event, err := reenterRestart(ctx, events, extEvent, nextBuild, ledger, params)
		return ReentryResult{Event: event}, err
	}

	updated, err := UpdateParentBuilds(
		ctx, buildsF, nextBuild,
		nil, // the join list is already fully captured in ledger; nothing further to skeletonize
		params.CurrentPipelineID,
		models.NewParentBuildsLedger(),
		ledger,
		params.CurrentBuild.ID,
	)
	if err != nil {
		return ReentryResult{}, err
	}
	started, err := HandleNewBuild(ctx, buildsF, JoinResult{Done: true}, updated)
	return ReentryResult{Build: started}, err
}

// reenterCreate handles the "no prior build" branch: resolve the parent build id from the edge
// pointing at the current job's external representation within the external graph, then create a
// fresh build directly in the already-known external event (§4.E step 6, first bullet).
func reenterCreate(
	ctx context.Context,
	buildsF BuildFactory,
	jobs JobFactory,
	extEvent *models.Event,
	graph *models.WorkflowGraph,
	node *models.WorkflowGraphNode,
	ledger models.ParentBuildsLedger,
	params ReentryParams,
) (*models.Build, error) {
	currentRef := "sd@" + params.CurrentPipelineID.ExternalToken() + ":" + params.CurrentJobName
	var parentJobName string
	if refNode, ok := graph.NodeContaining(currentRef); ok {
		if srcs := graph.SrcForJoin(refNode.Name); len(srcs) > 0 {
			parentJobName = TrimJobName(srcs[0])
		}
	}
	var parentBuildIDs []models.BuildID
	if parentJobName != "" {
		if entry := params.CurrentBuild.ParentBuilds[params.ExternalPipelineID]; entry != nil {
			if bid := entry.Jobs[parentJobName]; bid != nil {
				parentBuildIDs = []models.BuildID{*bid}
			}
		}
	}

	job, err := jobs.GetByName(ctx, extEvent.PipelineID, models.ResourceName(node.Name))
	if err != nil || job == nil {
		return nil, gerror.NewErrGraphMismatch("reenter: target job lookup failed")
	}
	return CreateInternalBuild(ctx, buildsF, InternalBuildParams{
		Job:            job,
		Sha:            extEvent.Sha,
		ParentBuildIDs: parentBuildIDs,
		ParentBuilds:   ledger,
		EventID:        extEvent.ID,
		Username:       params.Username,
		ScmContext:     params.ScmContext,
		BaseBranch:     extEvent.BaseBranch,
		Start:          false,
	})
}

// reenterRestart handles the case where a prior build for the target job already ran to
// completion: a fresh external event is forked, sharing groupEventId with the prior build's event
// so the restart lineage invariant holds (§3 invariant 3), starting from the canonical
// "~sd@<curPid>:<curJob>" trigger node when the external graph still declares one (§4.E step 6,
// second bullet).
func reenterRestart(
	ctx context.Context,
	events EventFactory,
	extEvent *models.Event,
	priorBuild *models.Build,
	ledger models.ParentBuildsLedger,
	params ReentryParams,
) (*models.Event, error) {
	startFrom := params.ExternalJobName
	restartRef := "~sd@" + params.CurrentPipelineID.ExternalToken() + ":" + params.CurrentJobName
	if _, ok := extEvent.WorkflowGraph.NodeContaining(restartRef); ok {
		startFrom = restartRef
	}

	groupEventID := priorBuild.EventID
	event, err := events.Create(ctx, EventCreate{
		PipelineID:    extEvent.PipelineID,
		StartFrom:     startFrom,
		Type:          models.EventTypePipeline,
		CauseMessage:  "Re-entry restart triggered by " + params.CurrentJobName,
		ParentBuildID: params.CurrentBuild.ID,
		ParentBuilds:  Merge(priorBuild.ParentBuilds, ledger),
		GroupEventID:  &groupEventID,
		ScmContext:    params.ScmContext,
		Username:      params.Username,
		Sha:           extEvent.Sha,
	})
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error forking restart event for re-entry", err)
	}
	return event, nil
}
