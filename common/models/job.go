package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const JobResourceKind ResourceKind = "job"

type JobID struct {
	ResourceID
}

func NewJobID() JobID {
	return JobID{ResourceID: NewResourceID(JobResourceKind)}
}

func JobIDFromResourceID(id ResourceID) JobID {
	return JobID{ResourceID: id}
}

func ParseJobID(str string) (JobID, error) {
	resourceID, err := ParseResourceID(str)
	if err != nil {
		return JobID{}, errors.Wrap(err, "error parsing Job ID")
	}
	return JobIDFromResourceID(resourceID), nil
}

const (
	JobStateEnabled  JobState = "enabled"
	JobStateDisabled JobState = "disabled"
)

var jobStates = map[string]JobState{
	string(JobStateEnabled):  JobStateEnabled,
	string(JobStateDisabled): JobStateDisabled,
}

// JobState is the job's enable/disable switch (§3 "state ∈ {ENABLED, DISABLED}").
type JobState string

func (s JobState) Valid() bool {
	_, ok := jobStates[string(s)]
	return ok
}

func (s JobState) String() string {
	return string(s)
}

func (s *JobState) Scan(src interface{}) error {
	if src == nil {
		*s = JobStateDisabled
		return nil
	}
	t, ok := src.(string)
	if !ok {
		return fmt.Errorf("unsupported type for job state: %[1]T (%[1]v)", src)
	}
	state, ok := jobStates[t]
	if !ok {
		return fmt.Errorf("unknown job state %q", t)
	}
	*s = state
	return nil
}

func (s JobState) Value() (driver.Value, error) {
	return string(s), nil
}

// Job belongs to one Pipeline (§3 "Job J"). A job name containing ':' denotes a pull-request
// job; the portion after ':' is the canonical job name for workflow-graph lookup (see the
// Trigger-Name Parser, §4.A).
type Job struct {
	ID         JobID      `json:"id" goqu:"skipupdate" db:"job_id"`
	PipelineID PipelineID `json:"pipeline_id" goqu:"skipupdate" db:"job_pipeline_id"`
	CreatedAt  Time       `json:"created_at" goqu:"skipupdate" db:"job_created_at"`
	UpdatedAt  Time       `json:"updated_at" db:"job_updated_at"`
	ETag       ETag       `json:"etag" db:"job_etag" hash:"ignore"`
	Name       ResourceName `json:"name" db:"job_name"`
	State      JobState     `json:"state" db:"job_state"`
}

func (m *Job) GetKind() ResourceKind {
	return JobResourceKind
}

func (m *Job) GetCreatedAt() Time {
	return m.CreatedAt
}

func (m *Job) GetID() ResourceID {
	return m.ID.ResourceID
}

func (m *Job) GetParentID() ResourceID {
	return m.PipelineID.ResourceID
}

func (m *Job) GetName() ResourceName {
	return m.Name
}

func (m *Job) GetUpdatedAt() Time {
	return m.UpdatedAt
}

func (m *Job) SetUpdatedAt(t Time) {
	m.UpdatedAt = t
}

func (m *Job) GetETag() ETag {
	return m.ETag
}

func (m *Job) SetETag(eTag ETag) {
	m.ETag = eTag
}

// IsEnabled returns true if the job is allowed to have builds created for it (§4.F createInternalBuild).
func (m *Job) IsEnabled() bool {
	return m.State == JobStateEnabled
}

func (m *Job) Validate() error {
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
	if err := m.Name.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if !m.State.Valid() {
		result = multierror.Append(result, errors.New("error state is invalid"))
	}
	return result.ErrorOrNil()
}
