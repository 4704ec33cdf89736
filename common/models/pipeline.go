package models

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// externalPipelineNamespace seeds the deterministic UUID derivation used by ExternalPipelineID,
// so that the same wire-grammar token (the "<pipelineId>" in "sd@<pipelineId>:<jobName>", §6)
// always maps to the same PipelineID without a lookup.
var externalPipelineNamespace = uuid.MustParse("6f9a6e2e-6b2a-4e9a-8f0a-6f5e6d2a1b10")

// ExternalToken returns the identifier used for this pipeline in the external trigger-name
// grammar "sd@<pipelineId>:<jobName>" (§6). It is the pipeline's underlying UUID with no kind
// prefix, so it never contains ':' and can be embedded directly in the grammar.
func (id PipelineID) ExternalToken() string {
	return id.ResourceID.uuidString()
}

// ExternalPipelineID resolves a wire-grammar pipeline token back into a PipelineID. Tokens that
// are themselves valid UUIDs (as produced by ExternalToken) parse directly; any other token
// (e.g. a legacy/example numeric id such as "2") is deterministically mapped to a stable
// synthetic PipelineID, so Classify is a pure function and round-trips (§8 property 4).
func ExternalPipelineID(token string) PipelineID {
	if parsed, err := uuid.Parse(token); err == nil {
		return PipelineID{ResourceID: ResourceID{kind: PipelineResourceKind, id: parsed}}
	}
	synthetic := uuid.NewSHA1(externalPipelineNamespace, []byte(token))
	return PipelineID{ResourceID: ResourceID{kind: PipelineResourceKind, id: synthetic}}
}

const PipelineResourceKind ResourceKind = "pipeline"

type PipelineID struct {
	ResourceID
}

func NewPipelineID() PipelineID {
	return PipelineID{ResourceID: NewResourceID(PipelineResourceKind)}
}

func PipelineIDFromResourceID(id ResourceID) PipelineID {
	return PipelineID{ResourceID: id}
}

func ParsePipelineID(str string) (PipelineID, error) {
	resourceID, err := ParseResourceID(str)
	if err != nil {
		return PipelineID{}, errors.Wrap(err, "error parsing Pipeline ID")
	}
	return PipelineIDFromResourceID(resourceID), nil
}

// Pipeline is a versioned CI configuration tied to a source-control repository (§3 "Pipeline P").
type Pipeline struct {
	ID        PipelineID `json:"id" goqu:"skipupdate" db:"pipeline_id"`
	CreatedAt Time       `json:"created_at" goqu:"skipupdate" db:"pipeline_created_at"`
	UpdatedAt Time       `json:"updated_at" db:"pipeline_updated_at"`
	ETag      ETag       `json:"etag" db:"pipeline_etag" hash:"ignore"`
	// ScmContext identifies which source-control provider/installation this pipeline is hosted by.
	ScmContext string `json:"scm_context" db:"pipeline_scm_context"`
	// ScmUri is the repository location, e.g. "github.com/org/repo".
	ScmUri string `json:"scm_uri" db:"pipeline_scm_uri"`
	// ConfigPipelineID optionally points to the pipeline that owns this pipeline's build configuration
	// (a "parent-of-configuration" pipeline, per §3).
	ConfigPipelineID *PipelineID `json:"config_pipeline_id,omitempty" db:"pipeline_config_pipeline_id"`
	// AdminUsername identifies the principal whose credentials are used to mint a source-control
	// token for this pipeline (§6 "Pipeline.admin"). The capability to actually unseal a token is
	// provided by the PipelineAdmin collaborator returned from PipelineFactory.GetAdmin, not stored here.
	AdminUsername ResourceName `json:"admin_username" db:"pipeline_admin_username"`
}

func (m *Pipeline) GetKind() ResourceKind {
	return PipelineResourceKind
}

func (m *Pipeline) GetCreatedAt() Time {
	return m.CreatedAt
}

func (m *Pipeline) GetID() ResourceID {
	return m.ID.ResourceID
}

func (m *Pipeline) GetUpdatedAt() Time {
	return m.UpdatedAt
}

func (m *Pipeline) SetUpdatedAt(t Time) {
	m.UpdatedAt = t
}

func (m *Pipeline) GetETag() ETag {
	return m.ETag
}

func (m *Pipeline) SetETag(eTag ETag) {
	m.ETag = eTag
}

func (m *Pipeline) Validate() error {
	var result *multierror.Error
	if !m.ID.Valid() {
		result = multierror.Append(result, errors.New("error id must be set"))
	}
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if m.ScmContext == "" {
		result = multierror.Append(result, errors.New("error scm context must be set"))
	}
	if m.ScmUri == "" {
		result = multierror.Append(result, errors.New("error scm uri must be set"))
	}
	if err := m.AdminUsername.Validate(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "error admin username invalid"))
	}
	return result.ErrorOrNil()
}

// HasConfigPipeline returns true if this pipeline's build configuration is owned by another pipeline.
func (m *Pipeline) HasConfigPipeline() bool {
	return m.ConfigPipelineID != nil && m.ConfigPipelineID.Valid()
}
