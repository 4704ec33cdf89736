package trigger

import (
	"regexp"
	"strings"

	"github.com/buildbeaver/trigger-engine/common/models"
)

// externalNameRegex matches the external trigger-name grammar "sd@<pipelineId>:<jobName>" (§6).
// The pipeline token is opaque (not necessarily decimal digits): this module's PipelineIDs are
// UUID-based rather than the integer ids of the system this spec is modelled on, so the token is
// whatever ExternalToken produces (see models.ExternalPipelineID).
var externalNameRegex = regexp.MustCompile(`^sd@([^:]+):(.+)$`)

// ClassifiedName is the result of classifying a workflow-graph node name (§4.A "classify").
type ClassifiedName struct {
	PipelineID models.PipelineID
	JobName    string
	IsExternal bool
}

// Canonical renders the classified name back into wire form, used by callers that need to embed
// a ClassifiedName into a new node name (e.g. the re-entry handler's "~sd@<curPid>:<curJob>"
// lookup, §4.E). Canonical is the round-trip partner of Classify (§8 property 4).
func (c ClassifiedName) Canonical() string {
	if !c.IsExternal {
		return c.JobName
	}
	return "sd@" + c.PipelineID.ExternalToken() + ":" + c.JobName
}

// Classify determines whether name refers to a job in currentPipelineID or in another pipeline,
// per the external trigger-name grammar "sd@<pipelineId>:<jobName>" (§4.A). Internal names are
// returned unchanged with IsExternal false.
func Classify(name string, currentPipelineID models.PipelineID) ClassifiedName {
	if m := externalNameRegex.FindStringSubmatch(name); m != nil {
		return ClassifiedName{
			PipelineID: models.ExternalPipelineID(m[1]),
			JobName:    m[2],
			IsExternal: true,
		}
	}
	return ClassifiedName{
		PipelineID: currentPipelineID,
		JobName:    name,
		IsExternal: false,
	}
}

// IsPR returns true iff name denotes a pull-request job, i.e. it contains ':' (§4.A). This is
// distinct from the external-pipeline grammar, whose prefix is "sd@" rather than "PR-<n>".
func IsPR(name string) bool {
	return strings.Contains(name, ":") && !externalNameRegex.MatchString(name)
}

// TrimJobName returns the canonical job name used as a ledger/workflow-graph key: the portion
// after ':' for a PR job, or name unchanged otherwise (§4.A, §3 invariant 4). TrimJobName is
// idempotent (§8 property 3): trimming an already-trimmed name is a no-op.
func TrimJobName(name string) string {
	if !IsPR(name) {
		return name
	}
	idx := strings.Index(name, ":")
	return name[idx+1:]
}
