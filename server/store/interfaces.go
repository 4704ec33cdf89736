package store

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/models"
)

// PipelineStore persists Pipelines (§3 "Pipeline P").
type PipelineStore interface {
	// Create a new pipeline.
	// Returns gerror.ErrAlreadyExists if a pipeline with matching unique properties already exists.
	Create(ctx context.Context, txOrNil *Tx, pipeline *models.Pipeline) error
	// Read an existing pipeline, looking it up by ResourceID.
	// Returns gerror.ErrNotFound if the pipeline does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.PipelineID) (*models.Pipeline, error)
	// Update an existing pipeline with optimistic locking. Overrides all previous values using the supplied model.
	// Returns gerror.ErrOptimisticLockFailed if there is an optimistic lock mismatch.
	Update(ctx context.Context, txOrNil *Tx, pipeline *models.Pipeline) error
}

// JobStore persists Jobs, each belonging to one Pipeline (§3 "Job J").
type JobStore interface {
	// Create a new job.
	// Returns gerror.ErrAlreadyExists if a job with matching unique properties already exists.
	Create(ctx context.Context, txOrNil *Tx, job *models.Job) error
	// Read an existing job, looking it up by ResourceID.
	// Returns gerror.ErrNotFound if the job does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.JobID) (*models.Job, error)
	// ReadByName reads an existing job, looking it up by the pipeline it belongs to and its name.
	// Returns gerror.ErrNotFound if the job does not exist.
	ReadByName(ctx context.Context, txOrNil *Tx, pipelineID models.PipelineID, name models.ResourceName) (*models.Job, error)
	// Update an existing job with optimistic locking. Overrides all previous values using the supplied model.
	// Returns gerror.ErrOptimisticLockFailed if there is an optimistic lock mismatch.
	Update(ctx context.Context, txOrNil *Tx, job *models.Job) error
	// ListByPipelineID lists all jobs belonging to the specified pipeline.
	ListByPipelineID(ctx context.Context, txOrNil *Tx, pipelineID models.PipelineID) ([]*models.Job, error)
}

// EventListParams filters EventStore.List (mirrors trigger.EventListParams, §4.G).
type EventListParams struct {
	PipelineID *models.PipelineID
	ParentID   *models.EventID
}

// EventStore persists Events, each one execution of a pipeline's workflow graph (§3 "Event E").
type EventStore interface {
	// Create a new event.
	// Returns gerror.ErrAlreadyExists if an event with matching unique properties already exists.
	Create(ctx context.Context, txOrNil *Tx, event *models.Event) error
	// Read an existing event, looking it up by ResourceID.
	// Returns gerror.ErrNotFound if the event does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.EventID) (*models.Event, error)
	// List events matching the supplied filter, most recently created first.
	List(ctx context.Context, txOrNil *Tx, params EventListParams) ([]*models.Event, error)
}

// BuildListParams filters BuildStore.List (mirrors trigger.BuildListParams, §4.D/§4.G).
type BuildListParams struct {
	EventID        *models.EventID
	JobID          *models.JobID
	Status         *models.BuildStatus
	SortDescending bool
	Limit          int
}

// BuildStore persists Builds, each one attempt to run a Job within an Event (§3 "Build B").
type BuildStore interface {
	// Create a new build.
	// Returns gerror.ErrAlreadyExists if a build with matching unique properties already exists.
	Create(ctx context.Context, txOrNil *Tx, build *models.Build) error
	// Read an existing build, looking it up by ResourceID.
	// Returns gerror.ErrNotFound if the build does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.BuildID) (*models.Build, error)
	// Update an existing build with optimistic locking. Overrides all previous values using the supplied model.
	// Returns gerror.ErrOptimisticLockFailed if there is an optimistic lock mismatch.
	Update(ctx context.Context, txOrNil *Tx, build *models.Build) error
	// LockRowForUpdate takes out an exclusive row lock on the build table row for the specified build.
	// This function must be called within a transaction.
	LockRowForUpdate(ctx context.Context, tx *Tx, id models.BuildID) error
	// Delete permanently removes a build. Used to discard a join-poisoned build (§4.F "handleNewBuild").
	Delete(ctx context.Context, txOrNil *Tx, id models.BuildID) error
	// List builds matching the supplied filter.
	List(ctx context.Context, txOrNil *Tx, params BuildListParams) ([]*models.Build, error)
	// ListLatestPerJobForGroupEvent returns the most recently created build for each (pipeline, job)
	// combination across every event sharing groupEventID, per §4.D "parallelBuilds".
	ListLatestPerJobForGroupEvent(ctx context.Context, txOrNil *Tx, groupEventID models.EventID) ([]*models.Build, error)
}
