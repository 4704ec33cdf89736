package trigger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/trigger-engine/common/models"
)

func TestClassify_Internal(t *testing.T) {
	current := models.NewPipelineID()
	c := Classify("build", current)
	require.False(t, c.IsExternal)
	require.Equal(t, "build", c.JobName)
	require.True(t, c.PipelineID.Equal(current.ResourceID))
}

func TestClassify_External(t *testing.T) {
	current := models.NewPipelineID()
	external := models.NewPipelineID()
	name := "sd@" + external.ExternalToken() + ":deploy"

	c := Classify(name, current)
	require.True(t, c.IsExternal)
	require.Equal(t, "deploy", c.JobName)
	require.True(t, c.PipelineID.Equal(external.ResourceID))
}

func TestClassify_Canonical_RoundTrips(t *testing.T) {
	current := models.NewPipelineID()
	external := models.NewPipelineID()
	name := "sd@" + external.ExternalToken() + ":deploy"

	c := Classify(name, current)
	require.Equal(t, name, c.Canonical())

	internal := Classify("build", current)
	require.Equal(t, "build", internal.Canonical())
}

func TestTrimJobName(t *testing.T) {
	require.Equal(t, "build", TrimJobName("build"))
	require.Equal(t, "build", TrimJobName("PR-12:build"))
}

func TestIsPR(t *testing.T) {
	require.True(t, IsPR("PR-12:build"))
	require.False(t, IsPR("build"))
}

func TestExternalPipelineID_DeterministicForSameToken(t *testing.T) {
	a := models.ExternalPipelineID("some-legacy-token")
	b := models.ExternalPipelineID("some-legacy-token")
	require.True(t, a.Equal(b.ResourceID))
}

func TestExternalPipelineID_RoundTripsThroughExternalToken(t *testing.T) {
	original := models.NewPipelineID()
	recovered := models.ExternalPipelineID(original.ExternalToken())
	require.True(t, original.Equal(recovered.ResourceID))
}
