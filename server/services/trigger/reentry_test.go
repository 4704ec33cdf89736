package trigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
)

// reentryFixture wires a minimal two-pipeline world (current + external) for Reenter's tests:
// the external event already exists with its own workflow graph, and the current build's ledger
// already carries an entry for the external pipeline's event, which is what makes the orchestrator
// call Reenter in the first place (§4.E, §4.G dispatch row 2).
type reentryFixture struct {
	events *fakeEvents
	builds *fakeBuilds
	jobs   *fakeJobs

	currentPipelineID  models.PipelineID
	externalPipelineID models.PipelineID
	currentJobName     string
	externalJobName    string

	currentBuild *models.Build
	extEvent     *models.Event
	targetJob    *models.Job
}

func newReentryFixture(t *testing.T, extGraph models.WorkflowGraph) *reentryFixture {
	curPID := models.NewPipelineID()
	extPID := models.NewPipelineID()

	extEvent := &models.Event{
		ID:            models.NewEventID(),
		PipelineID:    extPID,
		WorkflowGraph: extGraph,
		Sha:           "ext-sha",
	}
	extEvent.GroupEventID = extEvent.ID

	events := newFakeEvents()
	events.add(extEvent)

	builds := newFakeBuilds()
	jobs := newFakeJobs()

	targetJob := &models.Job{ID: models.NewJobID(), PipelineID: extPID, Name: "downstream", State: models.JobStateEnabled}
	jobs.add(targetJob)

	currentBuildID := models.NewBuildID()
	extEventID := extEvent.ID
	currentBuild := &models.Build{
		ID:      currentBuildID,
		EventID: models.NewEventID(),
		JobID:   models.NewJobID(),
		Status:  models.BuildStatusSuccess,
		Sha:     "abc123",
		ParentBuilds: models.ParentBuildsLedger{
			extPID: &models.LedgerPipelineEntry{EventID: &extEventID, Jobs: map[string]*models.BuildID{}},
		},
	}
	builds.add(currentBuild)

	return &reentryFixture{
		events:             events,
		builds:             builds,
		jobs:               jobs,
		currentPipelineID:  curPID,
		externalPipelineID: extPID,
		currentJobName:     "deploy",
		externalJobName:    "downstream",
		currentBuild:       currentBuild,
		extEvent:           extEvent,
		targetJob:          targetJob,
	}
}

func (f *reentryFixture) params() ReentryParams {
	return ReentryParams{
		CurrentBuild:       f.currentBuild,
		CurrentPipelineID:  f.currentPipelineID,
		CurrentJobName:     f.currentJobName,
		ExternalPipelineID: f.externalPipelineID,
		ExternalJobName:    f.externalJobName,
		NewContribution:    models.NewParentBuildsLedger(),
		Username:           "admin",
		ScmContext:         "github",
	}
}

func noOpLog(t *testing.T) logger.Log {
	return logger.NoOpLogFactory("reentry-test")
}

// TestReenter_NoPriorLedgerEntryIsGraphMismatch covers the guard at the top of Reenter: the caller
// contract requires an existing ledger entry for the external pipeline, and Reenter itself reports
// GraphMismatch rather than silently proceeding if that invariant is somehow violated.
func TestReenter_NoPriorLedgerEntryIsGraphMismatch(t *testing.T) {
	ctx := context.Background()
	graph := mustGraph(
		[]models.WorkflowGraphNode{{ID: "1", Name: "downstream"}},
		nil,
	)
	f := newReentryFixture(t, graph)
	f.currentBuild.ParentBuilds = models.NewParentBuildsLedger() // no entry for the external pipeline

	_, err := Reenter(ctx, noOpLog(t), f.events, f.builds, f.jobs, f.params())
	require.Error(t, err)
	require.True(t, gerror.IsGraphMismatch(err))
}

// TestReenter_NoMatchingNodeIsGraphMismatch covers Reenter's second guard: the external event's
// workflow graph has to actually carry a node for the re-entering job.
func TestReenter_NoMatchingNodeIsGraphMismatch(t *testing.T) {
	ctx := context.Background()
	graph := mustGraph(
		[]models.WorkflowGraphNode{{ID: "1", Name: "unrelated"}},
		nil,
	)
	f := newReentryFixture(t, graph)

	_, err := Reenter(ctx, noOpLog(t), f.events, f.builds, f.jobs, f.params())
	require.Error(t, err)
	require.True(t, gerror.IsGraphMismatch(err))
}

// TestReenter_CreatesBuildWhenNoneExists covers reenterCreate (§4.E step 6, first bullet): when
// the external event has no build yet for the target job, Reenter creates one directly in the
// already-known external event rather than forking a new one.
func TestReenter_CreatesBuildWhenNoneExists(t *testing.T) {
	ctx := context.Background()
	graph := mustGraph(
		[]models.WorkflowGraphNode{{ID: "1", Name: "downstream"}},
		nil,
	)
	f := newReentryFixture(t, graph)

	result, err := Reenter(ctx, noOpLog(t), f.events, f.builds, f.jobs, f.params())
	require.NoError(t, err)
	require.NotNil(t, result.Build)
	require.Nil(t, result.Event)
	require.True(t, result.Build.EventID.Equal(f.extEvent.ID.ResourceID), "the new build must belong to the already-known external event, not a fresh one")
	require.True(t, result.Build.JobID.Equal(f.targetJob.ID.ResourceID))
}

// TestReenter_CreatesBuildResolvesParentFromCurrentJobReference covers reenterCreate's parent-build
// id resolution: when the external graph declares an edge from the current job's external
// representation into the target node, the resolved parent build id from the ledger is carried
// onto the newly-created build.
func TestReenter_CreatesBuildResolvesParentFromCurrentJobReference(t *testing.T) {
	ctx := context.Background()
	curPID := models.NewPipelineID()
	extPID := models.NewPipelineID()
	currentJobName := "deploy"
	currentRef := "sd@" + curPID.ExternalToken() + ":" + currentJobName

	// "upstream-job" has an edge into the currentRef node: reenterCreate resolves the parent job
	// name by looking up SrcForJoin(currentRef) — the sources feeding the current job's external
	// representation — not any edge currentRef itself points to.
	graph := mustGraph(
		[]models.WorkflowGraphNode{{ID: "0", Name: "upstream-job"}, {ID: "1", Name: currentRef}, {ID: "2", Name: "downstream"}},
		[]models.WorkflowGraphEdge{{Src: "0", Dest: "1"}},
	)

	extEvent := &models.Event{ID: models.NewEventID(), PipelineID: extPID, WorkflowGraph: graph, Sha: "ext-sha"}
	extEvent.GroupEventID = extEvent.ID

	events := newFakeEvents()
	events.add(extEvent)
	builds := newFakeBuilds()
	jobs := newFakeJobs()
	targetJob := &models.Job{ID: models.NewJobID(), PipelineID: extPID, Name: "downstream", State: models.JobStateEnabled}
	jobs.add(targetJob)

	parentBuildID := models.NewBuildID()
	extEventID := extEvent.ID
	currentBuild := &models.Build{
		ID:      models.NewBuildID(),
		EventID: models.NewEventID(),
		JobID:   models.NewJobID(),
		Status:  models.BuildStatusSuccess,
		Sha:     "abc123",
		ParentBuilds: models.ParentBuildsLedger{
			extPID: &models.LedgerPipelineEntry{
				EventID: &extEventID,
				Jobs:    map[string]*models.BuildID{"upstream-job": &parentBuildID},
			},
		},
	}
	builds.add(currentBuild)

	params := ReentryParams{
		CurrentBuild:       currentBuild,
		CurrentPipelineID:  curPID,
		CurrentJobName:     currentJobName,
		ExternalPipelineID: extPID,
		ExternalJobName:    "downstream",
		NewContribution:    models.NewParentBuildsLedger(),
		Username:           "admin",
		ScmContext:         "github",
	}

	result, err := Reenter(ctx, noOpLog(t), events, builds, jobs, params)
	require.NoError(t, err)
	require.NotNil(t, result.Build)
	require.Contains(t, result.Build.ParentBuildIDs, parentBuildID, "the resolved join-source build id should be recorded as a parent")
}

// TestReenter_UpdatesExistingCreatedBuild covers the already-CREATED branch of Reenter: when a
// build for the target job already exists in CREATED status, Reenter patches its ledger directly
// via UpdateParentBuilds rather than creating a second build or forking a restart event.
func TestReenter_UpdatesExistingCreatedBuild(t *testing.T) {
	ctx := context.Background()
	graph := mustGraph(
		[]models.WorkflowGraphNode{{ID: "1", Name: "downstream"}},
		nil,
	)
	f := newReentryFixture(t, graph)

	existing := &models.Build{
		ID:           models.NewBuildID(),
		EventID:      f.extEvent.ID,
		JobID:        f.targetJob.ID,
		Status:       models.BuildStatusCreated,
		Sha:          f.extEvent.Sha,
		ParentBuilds: models.NewParentBuildsLedger(),
	}
	f.builds.add(existing)

	result, err := Reenter(ctx, noOpLog(t), f.events, f.builds, f.jobs, f.params())
	require.NoError(t, err)
	require.NotNil(t, result.Build)
	require.True(t, result.Build.ID.Equal(existing.ID.ResourceID), "the existing CREATED build must be patched in place, not replaced")
	require.Contains(t, result.Build.ParentBuildIDs, f.currentBuild.ID)
}

// TestReenter_RestartsCompletedBuildViaFreshEvent covers reenterRestart: when the target job's
// build already ran to completion, Reenter forks a fresh event in the external pipeline rather
// than mutating the finished build, sharing GroupEventID with the prior build's event so the
// restart lineage invariant holds (§3 invariant 3).
func TestReenter_RestartsCompletedBuildViaFreshEvent(t *testing.T) {
	ctx := context.Background()
	graph := mustGraph(
		[]models.WorkflowGraphNode{{ID: "1", Name: "downstream"}},
		nil,
	)
	f := newReentryFixture(t, graph)

	completed := &models.Build{
		ID:           models.NewBuildID(),
		EventID:      f.extEvent.ID,
		JobID:        f.targetJob.ID,
		Status:       models.BuildStatusSuccess,
		Sha:          f.extEvent.Sha,
		ParentBuilds: models.NewParentBuildsLedger(),
	}
	f.builds.add(completed)

	result, err := Reenter(ctx, noOpLog(t), f.events, f.builds, f.jobs, f.params())
	require.NoError(t, err)
	require.Nil(t, result.Build)
	require.NotNil(t, result.Event)
	require.True(t, result.Event.PipelineID.Equal(f.externalPipelineID.ResourceID))
	require.True(t, result.Event.GroupEventID.Equal(completed.EventID.ResourceID), "the restart event must share GroupEventID with the completed build's event")
}

// TestReenter_RestartUsesCanonicalRestartRefWhenDeclared covers reenterRestart's "~sd@<pid>:<job>"
// canonical-restart-ref lookup (§4.E step 6, second bullet): when the external graph declares the
// tilde-prefixed node for the current job, the forked event's StartFrom uses it instead of the
// plain external job name.
func TestReenter_RestartUsesCanonicalRestartRefWhenDeclared(t *testing.T) {
	ctx := context.Background()
	curPID := models.NewPipelineID()
	extPID := models.NewPipelineID()
	currentJobName := "deploy"
	restartRef := "~sd@" + curPID.ExternalToken() + ":" + currentJobName

	graph := mustGraph(
		[]models.WorkflowGraphNode{{ID: "1", Name: "downstream"}, {ID: "2", Name: restartRef}},
		nil,
	)

	extEvent := &models.Event{ID: models.NewEventID(), PipelineID: extPID, WorkflowGraph: graph, Sha: "ext-sha"}
	extEvent.GroupEventID = extEvent.ID

	events := newFakeEvents()
	events.add(extEvent)
	builds := newFakeBuilds()
	jobs := newFakeJobs()
	targetJob := &models.Job{ID: models.NewJobID(), PipelineID: extPID, Name: "downstream", State: models.JobStateEnabled}
	jobs.add(targetJob)

	completed := &models.Build{
		ID:           models.NewBuildID(),
		EventID:      extEvent.ID,
		JobID:        targetJob.ID,
		Status:       models.BuildStatusSuccess,
		Sha:          extEvent.Sha,
		ParentBuilds: models.NewParentBuildsLedger(),
	}
	builds.add(completed)

	extEventID := extEvent.ID
	currentBuild := &models.Build{
		ID:      models.NewBuildID(),
		EventID: models.NewEventID(),
		JobID:   models.NewJobID(),
		Status:  models.BuildStatusSuccess,
		Sha:     "abc123",
		ParentBuilds: models.ParentBuildsLedger{
			extPID: &models.LedgerPipelineEntry{EventID: &extEventID, Jobs: map[string]*models.BuildID{}},
		},
	}
	builds.add(currentBuild)

	params := ReentryParams{
		CurrentBuild:       currentBuild,
		CurrentPipelineID:  curPID,
		CurrentJobName:     currentJobName,
		ExternalPipelineID: extPID,
		ExternalJobName:    "downstream",
		NewContribution:    models.NewParentBuildsLedger(),
		Username:           "admin",
		ScmContext:         "github",
	}

	result, err := Reenter(ctx, noOpLog(t), events, builds, jobs, params)
	require.NoError(t, err)
	require.NotNil(t, result.Event)
	require.Equal(t, restartRef, events.lastCreate.StartFrom, "the forked event must start from the canonical restart ref when the external graph declares one")
}
