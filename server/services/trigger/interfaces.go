package trigger

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/models"
)

// PipelineAdmin is the principal capable of minting a source-control token on behalf of a
// pipeline (§6 "Pipeline.admin → {username, unsealToken() → string}"). UnsealToken is treated as
// a short-lived secret scoped to a single call (§5): never logged, never cached across calls.
type PipelineAdmin interface {
	Username() models.ResourceName
	UnsealToken(ctx context.Context) (string, error)
}

// PipelineFactory resolves pipelines and their jobs (§6 "PipelineFactory.get(id) → Pipeline").
type PipelineFactory interface {
	Get(ctx context.Context, id models.PipelineID) (*models.Pipeline, error)
	GetAdmin(ctx context.Context, id models.PipelineID) (PipelineAdmin, error)
	// GetJobs returns every job belonging to the pipeline (§6 "Pipeline...getJobs({params}) → [Job]").
	GetJobs(ctx context.Context, id models.PipelineID) ([]*models.Job, error)
}

// JobFactory resolves jobs either by id or by (pipelineId, name) (§9 design note: "split into two
// explicit operations (getById, getByName)").
type JobFactory interface {
	GetByID(ctx context.Context, id models.JobID) (*models.Job, error)
	GetByName(ctx context.Context, pipelineID models.PipelineID, name models.ResourceName) (*models.Job, error)
}

// EventListParams filters an EventFactory.List call.
type EventListParams struct {
	PipelineID *models.PipelineID
	ParentID   *models.EventID
	Status     *models.BuildStatus // filters by the status of the event's builds, when set
}

// EventCreate is the payload accepted by EventFactory.Create, composed by createExternalBuild (§4.F).
type EventCreate struct {
	PipelineID        models.PipelineID
	StartFrom         string
	Type              models.EventType
	CauseMessage      string
	ParentBuildID     models.BuildID
	ParentBuilds      models.ParentBuildsLedger
	ParentEventID     *models.EventID
	GroupEventID      *models.EventID
	ScmContext        string
	Username          models.ResourceName
	Sha               string
	ConfigPipelineSha *string
	BaseBranch        string
	PR                *models.PullRequestInfo
}

// EventFactory resolves, lists and creates events (§6 "EventFactory").
type EventFactory interface {
	Get(ctx context.Context, id models.EventID) (*models.Event, error)
	List(ctx context.Context, params EventListParams) ([]*models.Event, error)
	Create(ctx context.Context, payload EventCreate) (*models.Event, error)
	// GetBuilds returns every build that belongs to the event (§6 "Event.getBuilds() → [Build]").
	GetBuilds(ctx context.Context, id models.EventID) ([]*models.Build, error)
}

// BuildListParams filters a BuildFactory.List call. SortDescending orders by CreatedAt.
type BuildListParams struct {
	EventID        *models.EventID
	JobID          *models.JobID
	Status         *models.BuildStatus
	SortDescending bool
	Limit          int
}

// BuildCreate is the payload accepted by BuildFactory.Create, composed by createInternalBuild (§4.F).
type BuildCreate struct {
	JobID             models.JobID
	EventID           models.EventID
	Sha               string
	ParentBuildIDs    []models.BuildID
	ParentBuilds      models.ParentBuildsLedger
	Username          models.ResourceName
	ConfigPipelineSha *string
	ScmContext        string
	PR                *models.PullRequestInfo
	BaseBranch        string
	// Start requests that the build be queued and started immediately after creation. The zero
	// value is false, so callers set it explicitly (true on the no-join internal path).
	Start bool
}

// BuildFactory resolves, lists, creates and mutates builds (§6 "BuildFactory").
type BuildFactory interface {
	Get(ctx context.Context, id models.BuildID) (*models.Build, error)
	List(ctx context.Context, params BuildListParams) ([]*models.Build, error)
	// GetLatestBuilds returns the most recent build for each job across every event sharing the
	// given groupEventId (§4.D "parallelBuilds(event.parentEventId, ...)" draws on this).
	GetLatestBuilds(ctx context.Context, groupEventID models.EventID) ([]*models.Build, error)
	Create(ctx context.Context, payload BuildCreate) (*models.Build, error)
	Update(ctx context.Context, build *models.Build) (*models.Build, error)
	// Start transitions a CREATED/QUEUED build towards running (§6 "Build.start() → Build").
	Start(ctx context.Context, id models.BuildID) (*models.Build, error)
	// Remove deletes a build outright (§6 "Build.remove() → void"), used only for joins poisoned
	// by an upstream failure (§3 invariant 5).
	Remove(ctx context.Context, id models.BuildID) error
}

// GetCommitShaOptions is the input to SCM.GetCommitSha (§6 "scm.getCommitSha({scmContext, scmUri, token})").
type GetCommitShaOptions struct {
	ScmContext string
	ScmUri     string
	Token      string
}

// SCM is the minimal source-control collaborator the trigger engine needs: resolving the commit
// SHA a downstream event should build (§1 lists full SCM integration as out of scope; only this
// narrow surface is a consumed interface).
type SCM interface {
	GetCommitSha(ctx context.Context, opts GetCommitShaOptions) (string, error)
}

// WorkflowParser exposes the two workflow-graph queries the orchestrator needs (§6
// "workflowParser.getNextJobs"/"getSrcForJoin"). The graph itself knows how to answer both
// (§3), so the default implementation (graphWorkflowParser) just delegates to it; this interface
// exists so the graph-traversal strategy can be swapped out independently of the graph's own
// storage representation.
type WorkflowParser interface {
	NextJobs(graph *models.WorkflowGraph, trigger string, chainPR bool) []string
	SrcForJoin(graph *models.WorkflowGraph, jobName string) []string
}

type graphWorkflowParser struct{}

// NewGraphWorkflowParser returns the default WorkflowParser, which answers both queries directly
// from the WorkflowGraph snapshot carried by the event (§3).
func NewGraphWorkflowParser() WorkflowParser {
	return graphWorkflowParser{}
}

func (graphWorkflowParser) NextJobs(graph *models.WorkflowGraph, trigger string, chainPR bool) []string {
	return graph.NextJobs(trigger, chainPR)
}

func (graphWorkflowParser) SrcForJoin(graph *models.WorkflowGraph, jobName string) []string {
	return graph.SrcForJoin(jobName)
}
