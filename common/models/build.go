package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const BuildResourceKind ResourceKind = "build"

type BuildID struct {
	ResourceID
}

func NewBuildID() BuildID {
	return BuildID{ResourceID: NewResourceID(BuildResourceKind)}
}

func BuildIDFromResourceID(id ResourceID) BuildID {
	return BuildID{ResourceID: id}
}

func ParseBuildID(str string) (BuildID, error) {
	resourceID, err := ParseResourceID(str)
	if err != nil {
		return BuildID{}, errors.Wrap(err, "error parsing Build ID")
	}
	return BuildIDFromResourceID(resourceID), nil
}

// BuildTimings records the times at which a build transitioned between statuses, mirroring the
// teacher's WorkflowTimings bookkeeping for diagnosability.
type BuildTimings struct {
	QueuedAt   *Time `json:"queued_at,omitempty"`
	RunningAt  *Time `json:"running_at,omitempty"`
	FinishedAt *Time `json:"finished_at,omitempty"`
}

func (t *BuildTimings) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("unsupported type for build timings: %[1]T (%[1]v)", src)
	}
	if str == "" {
		return nil
	}
	return json.Unmarshal([]byte(str), t)
}

func (t BuildTimings) Value() (driver.Value, error) {
	buf, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("error marshalling build timings to JSON: %w", err)
	}
	return string(buf), nil
}

// BuildIDList is an ordered, JSON-backed list of build ids (used for Build.ParentBuildIDs).
type BuildIDList []BuildID

func (l *BuildIDList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("unsupported type for build id list: %[1]T (%[1]v)", src)
	}
	if str == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(str), l)
}

func (l BuildIDList) Value() (driver.Value, error) {
	buf, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("error marshalling build id list to JSON: %w", err)
	}
	return string(buf), nil
}

// Build is one execution of one job within one event (§3 "Build B"). Builds are created by the
// trigger engine (status CREATED), have their Parent-Builds Ledger updated as upstream builds
// report in, and are promoted to QUEUED then (by a separate scheduler, out of scope) RUNNING, or
// removed outright when a join is poisoned by an upstream failure (§4.F handleNewBuild).
type Build struct {
	ID        BuildID `json:"id" goqu:"skipupdate" db:"build_id"`
	EventID   EventID `json:"event_id" goqu:"skipupdate" db:"build_event_id"`
	JobID     JobID   `json:"job_id" goqu:"skipupdate" db:"build_job_id"`
	CreatedAt Time    `json:"created_at" goqu:"skipupdate" db:"build_created_at"`
	UpdatedAt Time    `json:"updated_at" db:"build_updated_at"`
	ETag      ETag    `json:"etag" db:"build_etag" hash:"ignore"`

	Status BuildStatus `json:"status" db:"build_status"`
	// Sha is the commit this build executes against (inherited from the parent build's sha unless
	// overridden, per createInternalBuild's "sha = override∥parent.sha").
	Sha string `json:"sha" db:"build_sha"`
	// ParentBuildIDs records every upstream build that caused this build to exist or contributed to
	// its join, modelled uniformly as an ordered list (§9 design note: "model this uniformly as an
	// ordered list and adapt at the boundary" rather than carrying the scalar-or-list ambiguity).
	ParentBuildIDs BuildIDList `json:"parent_build_ids" db:"build_parent_build_ids"`
	// ParentBuilds is this build's Parent-Builds Ledger (§3 "L").
	ParentBuilds ParentBuildsLedger `json:"parent_builds" db:"build_parent_builds"`

	Username          ResourceName     `json:"username" db:"build_username"`
	ConfigPipelineSha *string          `json:"config_pipeline_sha,omitempty" db:"build_config_pipeline_sha"`
	ScmContext        string           `json:"scm_context" db:"build_scm_context"`
	PR                *PullRequestInfo `json:"pr,omitempty" db:"build_pr"`
	BaseBranch        string           `json:"base_branch" db:"build_base_branch"`

	Timings BuildTimings `json:"timings" db:"build_timings"`
	// Error carries the failure that ended this build, if any.
	Error *Error `json:"error,omitempty" db:"build_error"`
}

func (m *Build) GetKind() ResourceKind {
	return BuildResourceKind
}

func (m *Build) GetCreatedAt() Time {
	return m.CreatedAt
}

func (m *Build) GetID() ResourceID {
	return m.ID.ResourceID
}

func (m *Build) GetUpdatedAt() Time {
	return m.UpdatedAt
}

func (m *Build) SetUpdatedAt(t Time) {
	m.UpdatedAt = t
}

func (m *Build) GetETag() ETag {
	return m.ETag
}

func (m *Build) SetETag(eTag ETag) {
	m.ETag = eTag
}

// AddParent prepends a build id to ParentBuildIDs if it is not already present (§4.F
// updateParentBuilds: "prepend currentBuild.id to nextBuild.parentBuildId, promoting scalar
// to list as needed" — here the list is always the representation, so this is just an
// idempotent prepend).
func (m *Build) AddParent(id BuildID) {
	for _, existing := range m.ParentBuildIDs {
		if existing.Equal(id.ResourceID) {
			return
		}
	}
	m.ParentBuildIDs = append([]BuildID{id}, m.ParentBuildIDs...)
}

func (m *Build) Validate() error {
	var result *multierror.Error
	if !m.ID.Valid() {
		result = multierror.Append(result, errors.New("error id must be set"))
	}
	if !m.EventID.Valid() {
		result = multierror.Append(result, errors.New("error event id must be set"))
	}
	if !m.JobID.Valid() {
		result = multierror.Append(result, errors.New("error job id must be set"))
	}
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if m.Sha == "" {
		result = multierror.Append(result, errors.New("error sha must be set"))
	}
	if !m.Status.Valid() {
		result = multierror.Append(result, errors.New("error status is invalid"))
	}
	return result.ErrorOrNil()
}
