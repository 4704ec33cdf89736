package pipelines

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/store"
)

func init() {
	_ = models.MutableResource(&models.Pipeline{})
	store.MustDBModel(&models.Pipeline{})
}

type PipelineStore struct {
	table *store.ResourceTable
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *PipelineStore {
	return &PipelineStore{
		table: store.NewResourceTable(db, logFactory, &models.Pipeline{}),
	}
}

// Create a new pipeline.
// Returns gerror.ErrAlreadyExists if a pipeline with matching unique properties already exists.
func (d *PipelineStore) Create(ctx context.Context, txOrNil *store.Tx, pipeline *models.Pipeline) error {
	return d.table.Create(ctx, txOrNil, pipeline)
}

// Read an existing pipeline, looking it up by ResourceID.
// Returns gerror.ErrNotFound if the pipeline does not exist.
func (d *PipelineStore) Read(ctx context.Context, txOrNil *store.Tx, id models.PipelineID) (*models.Pipeline, error) {
	pipeline := &models.Pipeline{}
	return pipeline, d.table.ReadByID(ctx, txOrNil, id.ResourceID, pipeline)
}

// Update an existing pipeline with optimistic locking. Overrides all previous values using the supplied model.
// Returns gerror.ErrOptimisticLockFailed if there is an optimistic lock mismatch.
func (d *PipelineStore) Update(ctx context.Context, txOrNil *store.Tx, pipeline *models.Pipeline) error {
	return d.table.UpdateByID(ctx, txOrNil, pipeline)
}
