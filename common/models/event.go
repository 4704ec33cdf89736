package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const EventResourceKind ResourceKind = "event"

type EventID struct {
	ResourceID
}

func NewEventID() EventID {
	return EventID{ResourceID: NewResourceID(EventResourceKind)}
}

func EventIDFromResourceID(id ResourceID) EventID {
	return EventID{ResourceID: id}
}

func ParseEventID(str string) (EventID, error) {
	resourceID, err := ParseResourceID(str)
	if err != nil {
		return EventID{}, errors.Wrap(err, "error parsing Event ID")
	}
	return EventIDFromResourceID(resourceID), nil
}

const (
	// EventTypePipeline is a downstream event created by the trigger engine to start a pipeline
	// (§6 "type: 'pipeline'").
	EventTypePipeline EventType = "pipeline"
)

type EventType string

func (t EventType) String() string {
	return string(t)
}

// PullRequestInfo carries the pull-request context for an Event (§3 "pr {ref, prSource, prInfo}").
// It is nil for non-PR events.
type PullRequestInfo struct {
	Ref      string `json:"ref"`
	PRSource string `json:"pr_source"`
	PRInfo   string `json:"pr_info"`
}

func (p *PullRequestInfo) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("unsupported type for pull request info: %[1]T (%[1]v)", src)
	}
	if str == "" {
		return nil
	}
	return json.Unmarshal([]byte(str), p)
}

func (p *PullRequestInfo) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("error marshalling pull request info to JSON: %w", err)
	}
	return string(buf), nil
}

// Event is one execution of a pipeline's workflow graph, possibly a restart of a prior event
// (§3 "Event E"). Events are created externally (by the host process in response to SCM
// webhooks, user action etc.); the trigger engine only reads them, except when it creates a
// downstream event itself via createExternalBuild (§4.F).
type Event struct {
	ID         EventID    `json:"id" goqu:"skipupdate" db:"event_id"`
	PipelineID PipelineID `json:"pipeline_id" goqu:"skipupdate" db:"event_pipeline_id"`
	CreatedAt  Time       `json:"created_at" goqu:"skipupdate" db:"event_created_at"`
	ETag       ETag       `json:"etag" db:"event_etag" hash:"ignore"`

	// WorkflowGraph is the parsed dependency graph snapshotted at the time the event was created.
	WorkflowGraph WorkflowGraph `json:"workflow_graph" db:"event_workflow_graph"`
	// Sha is the commit being built for this event.
	Sha string `json:"sha" db:"event_sha"`
	// ConfigPipelineSha is the commit of the config pipeline's repo used to resolve build config,
	// if this pipeline's configuration is owned by another pipeline.
	ConfigPipelineSha *string `json:"config_pipeline_sha,omitempty" db:"event_config_pipeline_sha"`
	// ParentEventID is set when this event was itself created as a downstream trigger of another event.
	ParentEventID *EventID `json:"parent_event_id,omitempty" db:"event_parent_event_id"`
	// GroupEventID is the root of this event's restart chain; equal to the event's own ID for root events
	// (§3 invariant 3: GroupEventID is invariant across restarts).
	GroupEventID EventID `json:"group_event_id" db:"event_group_event_id"`
	// BaseBranch is the branch the event's workflow graph was resolved against.
	BaseBranch string `json:"base_branch" db:"event_base_branch"`
	// PR carries pull-request context, or nil for a non-PR event.
	PR *PullRequestInfo `json:"pr,omitempty" db:"event_pr"`
	// Type identifies how the event was created (e.g. EventTypePipeline for trigger-engine-created events).
	Type EventType `json:"type" db:"event_type"`
	// CauseMessage is a human-readable description of why the event was created.
	CauseMessage string `json:"cause_message" db:"event_cause_message"`
	// Username is the principal credited with causing the event.
	Username ResourceName `json:"username" db:"event_username"`
}

func (m *Event) GetKind() ResourceKind {
	return EventResourceKind
}

func (m *Event) GetCreatedAt() Time {
	return m.CreatedAt
}

func (m *Event) GetID() ResourceID {
	return m.ID.ResourceID
}

func (m *Event) GetETag() ETag {
	return m.ETag
}

func (m *Event) SetETag(eTag ETag) {
	m.ETag = eTag
}

func (m *Event) GetUpdatedAt() Time {
	return m.CreatedAt
}

func (m *Event) SetUpdatedAt(t Time) {}

// IsPullRequest returns true if this event carries pull-request context.
func (m *Event) IsPullRequest() bool {
	return m.PR != nil
}

// IsRestart returns true if this event is not the root of its own restart lineage.
func (m *Event) IsRestart() bool {
	return !m.GroupEventID.Equal(m.ID.ResourceID)
}

// HasParent returns true if this event was created as a downstream trigger of another event (§4.G
// uses this to decide whether to forward parentEventId when creating a fresh external event).
func (m *Event) HasParent() bool {
	return m.ParentEventID != nil && m.ParentEventID.Valid()
}

func (m *Event) Validate() error {
	var result *multierror.Error
	if !m.ID.Valid() {
		result = multierror.Append(result, errors.New("error id must be set"))
	}
	if !m.PipelineID.Valid() {
		result = multierror.Append(result, errors.New("error pipeline id must be set"))
	}
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if m.Sha == "" {
		result = multierror.Append(result, errors.New("error sha must be set"))
	}
	if !m.GroupEventID.Valid() {
		result = multierror.Append(result, errors.New("error group event id must be set"))
	}
	return result.ErrorOrNil()
}
