package jobs

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/store"
)

func init() {
	_ = models.MutableResource(&models.Job{})
	store.MustDBModel(&models.Job{})
}

type JobStore struct {
	table *store.ResourceTable
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *JobStore {
	return &JobStore{
		table: store.NewResourceTable(db, logFactory, &models.Job{}),
	}
}

// Create a new job.
// Returns gerror.ErrAlreadyExists if a job with matching unique properties already exists.
func (d *JobStore) Create(ctx context.Context, txOrNil *store.Tx, job *models.Job) error {
	return d.table.Create(ctx, txOrNil, job)
}

// Read an existing job, looking it up by ResourceID.
// Returns gerror.ErrNotFound if the job does not exist.
func (d *JobStore) Read(ctx context.Context, txOrNil *store.Tx, id models.JobID) (*models.Job, error) {
	job := &models.Job{}
	return job, d.table.ReadByID(ctx, txOrNil, id.ResourceID, job)
}

// ReadByName reads an existing job, looking it up by the pipeline it belongs to and its name.
// Returns gerror.ErrNotFound if the job does not exist.
func (d *JobStore) ReadByName(ctx context.Context, txOrNil *store.Tx, pipelineID models.PipelineID, name models.ResourceName) (*models.Job, error) {
	job := &models.Job{}
	return job, d.table.ReadWhere(ctx, txOrNil, job,
		goqu.Ex{"job_pipeline_id": pipelineID, "job_name": name})
}

// Update an existing job with optimistic locking. Overrides all previous values using the supplied model.
// Returns gerror.ErrOptimisticLockFailed if there is an optimistic lock mismatch.
func (d *JobStore) Update(ctx context.Context, txOrNil *store.Tx, job *models.Job) error {
	return d.table.UpdateByID(ctx, txOrNil, job)
}

// ListByPipelineID lists all jobs belonging to the specified pipeline.
func (d *JobStore) ListByPipelineID(ctx context.Context, txOrNil *store.Tx, pipelineID models.PipelineID) ([]*models.Job, error) {
	ds := d.table.Dialect().From(d.table.TableName()).
		Select(&models.Job{}).
		Where(goqu.Ex{"job_pipeline_id": pipelineID}).
		Order(goqu.I("job_created_at").Asc())

	var results []*models.Job
	err := d.table.ReadManyIn(ctx, txOrNil, &results, ds)
	if err != nil {
		return nil, err
	}
	return results, nil
}
