package trigger

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/models"
)

// InternalBuildParams is the payload needed to create a build for a job in the current pipeline
// (§4.F "createInternalBuild"). Job must already be resolved (by id or by (pipelineId, name)) by
// the caller, per §9's note to split job lookup into two explicit operations.
type InternalBuildParams struct {
	Job               *models.Job
	Sha               string
	ParentBuildIDs    []models.BuildID
	ParentBuilds      models.ParentBuildsLedger
	EventID           models.EventID
	Username          models.ResourceName
	ConfigPipelineSha *string
	ScmContext        string
	PR                *models.PullRequestInfo
	BaseBranch        string
	// Start requests the build be queued and started immediately after creation. The zero value is
	// false: the orchestrator sets true on the no-join internal path and false for joins and re-entry.
	Start bool
}

// CreateInternalBuild persists a new build for an already-resolved job, unless the job is
// disabled, in which case it returns (nil, nil): Disabled is a non-error sentinel, not a failure
// (§7 "Disabled (job not enabled; non-error, produces null)").
func CreateInternalBuild(ctx context.Context, buildsF BuildFactory, p InternalBuildParams) (*models.Build, error) {
	if !p.Job.IsEnabled() {
		return nil, nil
	}
	build, err := buildsF.Create(ctx, BuildCreate{
		JobID:             p.Job.ID,
		EventID:           p.EventID,
		Sha:               p.Sha,
		ParentBuildIDs:    p.ParentBuildIDs,
		ParentBuilds:      p.ParentBuilds,
		Username:          p.Username,
		ConfigPipelineSha: p.ConfigPipelineSha,
		ScmContext:        p.ScmContext,
		PR:                p.PR,
		BaseBranch:        p.BaseBranch,
		Start:             p.Start,
	})
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error creating internal build", err)
	}
	return build, nil
}

// ExternalBuildParams is the payload needed to create a downstream event on another pipeline
// (§4.F "createExternalBuild"). Sha and ConfigPipelineSha are resolved by the caller via the SCM
// and PipelineAdmin collaborators before calling this, since that's a suspension point the
// orchestrator itself drives (§5).
type ExternalBuildParams struct {
	PipelineID        models.PipelineID
	StartFrom         string
	CauseMessage      string
	ParentBuildID     models.BuildID
	ParentBuilds      models.ParentBuildsLedger
	ParentEventID     *models.EventID
	GroupEventID      *models.EventID
	ScmContext        string
	Username          models.ResourceName
	Sha               string
	ConfigPipelineSha *string
}

// CreateExternalBuild persists a new downstream Event on another pipeline (§4.F
// "createExternalBuild"): type 'pipeline', crediting the pipeline's admin as the triggering user.
func CreateExternalBuild(ctx context.Context, events EventFactory, p ExternalBuildParams) (*models.Event, error) {
	event, err := events.Create(ctx, EventCreate{
		PipelineID:        p.PipelineID,
		StartFrom:         p.StartFrom,
		Type:              models.EventTypePipeline,
		CauseMessage:      p.CauseMessage,
		ParentBuildID:     p.ParentBuildID,
		ParentBuilds:      p.ParentBuilds,
		ParentEventID:     p.ParentEventID,
		GroupEventID:      p.GroupEventID,
		ScmContext:        p.ScmContext,
		Username:          p.Username,
		Sha:               p.Sha,
		ConfigPipelineSha: p.ConfigPipelineSha,
	})
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error creating external build", err)
	}
	return event, nil
}

// UpdateParentBuilds folds a new contribution into nextBuild's ledger and re-persists it (§4.F
// "updateParentBuilds"). The ledger is rebuilt as
// merge(joinSkeleton, currentJobLedger, nextBuild.ParentBuilds, currentBuildInfo) — merging rather
// than overwriting keeps every contribution nextBuild already holds, except where currentBuildInfo
// names the same job (Merge is right-wins, nil values included). nextBuild is the copy the caller
// loaded and is not re-read here, so a concurrent writer is caught only as far as
// BuildFactory.Update detects it; a failed update is returned as an error, not retried.
func UpdateParentBuilds(
	ctx context.Context,
	buildsF BuildFactory,
	nextBuild *models.Build,
	joinListNames []string,
	currentPipelineID models.PipelineID,
	currentJobLedger models.ParentBuildsLedger,
	currentBuildInfo models.ParentBuildsLedger,
	currentBuildID models.BuildID,
) (*models.Build, error) {
	skeleton := JoinSkeleton(currentPipelineID, joinListNames)
	nextBuild.ParentBuilds = Merge(skeleton, currentJobLedger, nextBuild.ParentBuilds, currentBuildInfo)
	nextBuild.AddParent(currentBuildID)
	updated, err := buildsF.Update(ctx, nextBuild)
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error updating parent builds ledger", err)
	}
	return updated, nil
}

// HandleNewBuild applies the join verdict to newBuild (§4.F "handleNewBuild"): not done is a
// no-op, done-with-failure deletes the (unstartable) build, done-without-failure queues and
// starts it. Returns the final build, or nil when the build was removed or left untouched.
func HandleNewBuild(ctx context.Context, buildsF BuildFactory, result JoinResult, newBuild *models.Build) (*models.Build, error) {
	if !result.Done {
		return nil, nil
	}
	if result.HasFailure {
		if err := buildsF.Remove(ctx, newBuild.ID); err != nil {
			// Best-effort: failure to delete a join-poisoned build is logged by the caller but not
			// retried (§7 "Deletion of a join-poisoned build is best-effort").
			return nil, gerror.NewErrFactoryFailure("error removing join-poisoned build", err)
		}
		return nil, nil
	}
	newBuild.Status = models.BuildStatusQueued
	updated, err := buildsF.Update(ctx, newBuild)
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error queuing build", err)
	}
	started, err := buildsF.Start(ctx, updated.ID)
	if err != nil {
		return nil, gerror.NewErrFactoryFailure("error starting build", err)
	}
	return started, nil
}
