// Package event adapts the events/builds/jobs stores into trigger.EventFactory (§6).
package event

import (
	"context"
	"time"

	"github.com/buildbeaver/trigger-engine/common/gerror"
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/services/trigger"
	"github.com/buildbeaver/trigger-engine/server/store"
	"github.com/buildbeaver/trigger-engine/server/store/builds"
	"github.com/buildbeaver/trigger-engine/server/store/events"
	"github.com/buildbeaver/trigger-engine/server/store/jobs"
)

type Service struct {
	events *events.EventStore
	builds *builds.BuildStore
	jobs   *jobs.JobStore
	log    logger.Log
}

func NewService(eventStore *events.EventStore, buildStore *builds.BuildStore, jobStore *jobs.JobStore, logFactory logger.LogFactory) *Service {
	return &Service{events: eventStore, builds: buildStore, jobs: jobStore, log: logFactory("EventService")}
}

func (s *Service) Get(ctx context.Context, id models.EventID) (*models.Event, error) {
	if !id.Valid() {
		return nil, gerror.NewErrValidationFailed("event id must be set")
	}
	return s.events.Read(ctx, nil, id)
}

// List resolves params.Status (a filter on the event's builds, not a field the Event model
// itself carries, per trigger.EventListParams) by reading each candidate event's builds and
// keeping only events with at least one build matching the requested status.
func (s *Service) List(ctx context.Context, params trigger.EventListParams) ([]*models.Event, error) {
	candidates, err := s.events.List(ctx, nil, store.EventListParams{
		PipelineID: params.PipelineID,
		ParentID:   params.ParentID,
	})
	if err != nil {
		return nil, err
	}
	if params.Status == nil {
		return candidates, nil
	}

	matching := make([]*models.Event, 0, len(candidates))
	for _, event := range candidates {
		eventBuilds, err := s.builds.List(ctx, nil, store.BuildListParams{EventID: &event.ID})
		if err != nil {
			return nil, err
		}
		for _, build := range eventBuilds {
			if build.Status == *params.Status {
				matching = append(matching, event)
				break
			}
		}
	}
	return matching, nil
}

// Create builds a new downstream Event from payload, resolving its WorkflowGraph snapshot since
// trigger.EventCreate carries none: the workflow-graph parser is a consumed library (§1 Non-goal),
// so the new event reuses the target pipeline's most recently created event's graph, or (for a
// pipeline with no prior events) a flat graph with one node per currently enabled job and no edges.
func (s *Service) Create(ctx context.Context, payload trigger.EventCreate) (*models.Event, error) {
	if !payload.PipelineID.Valid() || payload.Sha == "" {
		return nil, gerror.NewErrValidationFailed("pipelineId and sha are required")
	}

	graph, err := s.resolveWorkflowGraph(ctx, payload.PipelineID)
	if err != nil {
		return nil, err
	}

	now := models.NewTime(time.Now())
	event := &models.Event{
		ID:                models.NewEventID(),
		PipelineID:        payload.PipelineID,
		CreatedAt:         now,
		WorkflowGraph:     graph,
		Sha:               payload.Sha,
		ConfigPipelineSha: payload.ConfigPipelineSha,
		ParentEventID:     payload.ParentEventID,
		BaseBranch:        payload.BaseBranch,
		PR:                payload.PR,
		Type:              payload.Type,
		CauseMessage:      payload.CauseMessage,
		Username:          payload.Username,
	}
	if payload.GroupEventID != nil && payload.GroupEventID.Valid() {
		event.GroupEventID = *payload.GroupEventID
	} else {
		event.GroupEventID = event.ID
	}
	if event.Type == "" {
		event.Type = models.EventTypePipeline
	}

	err = s.events.Create(ctx, nil, event)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) resolveWorkflowGraph(ctx context.Context, pipelineID models.PipelineID) (models.WorkflowGraph, error) {
	priorEvents, err := s.events.List(ctx, nil, store.EventListParams{PipelineID: &pipelineID})
	if err != nil {
		return models.WorkflowGraph{}, err
	}
	if len(priorEvents) > 0 {
		return priorEvents[0].WorkflowGraph, nil
	}

	jobList, err := s.jobs.ListByPipelineID(ctx, nil, pipelineID)
	if err != nil {
		return models.WorkflowGraph{}, err
	}
	graph := models.WorkflowGraph{}
	for _, job := range jobList {
		if !job.IsEnabled() {
			continue
		}
		graph.Nodes = append(graph.Nodes, models.WorkflowGraphNode{ID: job.ID.String(), Name: job.Name.String()})
	}
	return graph, nil
}

func (s *Service) GetBuilds(ctx context.Context, id models.EventID) ([]*models.Build, error) {
	if !id.Valid() {
		return nil, gerror.NewErrValidationFailed("event id must be set")
	}
	return s.builds.List(ctx, nil, store.BuildListParams{EventID: &id})
}

var _ trigger.EventFactory = (*Service)(nil)
