package events

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/store"
)

func init() {
	_ = models.MutableResource(&models.Event{})
	store.MustDBModel(&models.Event{})
}

type EventStore struct {
	table *store.ResourceTable
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *EventStore {
	return &EventStore{
		table: store.NewResourceTable(db, logFactory, &models.Event{}),
	}
}

// Create a new event.
// Returns gerror.ErrAlreadyExists if an event with matching unique properties already exists.
func (d *EventStore) Create(ctx context.Context, txOrNil *store.Tx, event *models.Event) error {
	return d.table.Create(ctx, txOrNil, event)
}

// Read an existing event, looking it up by ResourceID.
// Returns gerror.ErrNotFound if the event does not exist.
func (d *EventStore) Read(ctx context.Context, txOrNil *store.Tx, id models.EventID) (*models.Event, error) {
	event := &models.Event{}
	return event, d.table.ReadByID(ctx, txOrNil, id.ResourceID, event)
}

// List events matching the supplied filter, most recently created first.
func (d *EventStore) List(ctx context.Context, txOrNil *store.Tx, params store.EventListParams) ([]*models.Event, error) {
	ds := d.table.Dialect().From(d.table.TableName()).Select(&models.Event{})
	if params.PipelineID != nil {
		ds = ds.Where(goqu.Ex{"event_pipeline_id": *params.PipelineID})
	}
	if params.ParentID != nil {
		ds = ds.Where(goqu.Ex{"event_parent_event_id": *params.ParentID})
	}
	ds = ds.Order(goqu.I("event_created_at").Desc())

	var results []*models.Event
	err := d.table.ReadManyIn(ctx, txOrNil, &results, ds)
	if err != nil {
		return nil, err
	}
	return results, nil
}
