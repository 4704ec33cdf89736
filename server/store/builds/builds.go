package builds

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/store"
)

func init() {
	_ = models.MutableResource(&models.Build{})
	store.MustDBModel(&models.Build{})
}

type BuildStore struct {
	table *store.ResourceTable
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *BuildStore {
	return &BuildStore{
		table: store.NewResourceTable(db, logFactory, &models.Build{}),
	}
}

// Create a new build.
// Returns gerror.ErrAlreadyExists if a build with matching unique properties already exists.
func (d *BuildStore) Create(ctx context.Context, txOrNil *store.Tx, build *models.Build) error {
	return d.table.Create(ctx, txOrNil, build)
}

// Read an existing build, looking it up by ResourceID.
// Returns gerror.ErrNotFound if the build does not exist.
func (d *BuildStore) Read(ctx context.Context, txOrNil *store.Tx, id models.BuildID) (*models.Build, error) {
	build := &models.Build{}
	return build, d.table.ReadByID(ctx, txOrNil, id.ResourceID, build)
}

// Update an existing build with optimistic locking. Overrides all previous values using the supplied model.
// Returns gerror.ErrOptimisticLockFailed if there is an optimistic lock mismatch.
func (d *BuildStore) Update(ctx context.Context, txOrNil *store.Tx, build *models.Build) error {
	return d.table.UpdateByID(ctx, txOrNil, build)
}

// LockRowForUpdate takes out an exclusive row lock on the build table row for the specified build.
// This function must be called within a transaction, and will block other transactions from locking, updating
// or deleting the row until this transaction ends.
func (d *BuildStore) LockRowForUpdate(ctx context.Context, tx *store.Tx, id models.BuildID) error {
	return d.table.LockRowForUpdate(ctx, tx, id.ResourceID)
}

// Delete permanently removes a build. Used to discard a join-poisoned build (§4.F "handleNewBuild").
func (d *BuildStore) Delete(ctx context.Context, txOrNil *store.Tx, id models.BuildID) error {
	return d.table.DeleteByID(ctx, txOrNil, id.ResourceID)
}

// List builds matching the supplied filter.
func (d *BuildStore) List(ctx context.Context, txOrNil *store.Tx, params store.BuildListParams) ([]*models.Build, error) {
	ds := d.table.Dialect().From(d.table.TableName()).Select(&models.Build{})
	if params.EventID != nil {
		ds = ds.Where(goqu.Ex{"build_event_id": *params.EventID})
	}
	if params.JobID != nil {
		ds = ds.Where(goqu.Ex{"build_job_id": *params.JobID})
	}
	if params.Status != nil {
		ds = ds.Where(goqu.Ex{"build_status": *params.Status})
	}
	if params.SortDescending {
		ds = ds.Order(goqu.I("build_created_at").Desc())
	} else {
		ds = ds.Order(goqu.I("build_created_at").Asc())
	}
	if params.Limit > 0 {
		ds = ds.Limit(uint(params.Limit))
	}

	var results []*models.Build
	err := d.table.ReadManyIn(ctx, txOrNil, &results, ds)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListLatestPerJobForGroupEvent returns the most recently created build for each (pipeline, job)
// combination across every event sharing groupEventID, per §4.D "parallelBuilds".
func (d *BuildStore) ListLatestPerJobForGroupEvent(ctx context.Context, txOrNil *store.Tx, groupEventID models.EventID) ([]*models.Build, error) {
	ds := d.table.Dialect().From(d.table.TableName()).
		Select(&models.Build{}).
		Join(goqu.T("events"), goqu.On(goqu.Ex{"builds.build_event_id": goqu.I("events.event_id")})).
		Where(goqu.Ex{"events.event_group_event_id": groupEventID}).
		Order(goqu.I("build_job_id").Asc(), goqu.I("build_created_at").Desc())

	var all []*models.Build
	err := d.table.ReadManyIn(ctx, txOrNil, &all, ds)
	if err != nil {
		return nil, err
	}

	// Keep only the first (most recently created, thanks to the ORDER BY above) build per job.
	seen := make(map[models.JobID]bool, len(all))
	latest := make([]*models.Build, 0, len(all))
	for _, b := range all {
		if seen[b.JobID] {
			continue
		}
		seen[b.JobID] = true
		latest = append(latest, b)
	}
	return latest, nil
}
