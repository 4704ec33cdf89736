package trigger

import (
	"context"

	"github.com/buildbeaver/trigger-engine/common/models"
)

// FinishedBuildsForEvent returns every build belonging to event, the candidate pool for the
// internal path (§4.D, §5). Despite the name, a build still in CREATED is also a valid candidate:
// it's the in-flight next-build a second join contribution needs to find and update.
func FinishedBuildsForEvent(ctx context.Context, builds BuildFactory, eventID models.EventID) ([]*models.Build, error) {
	id := eventID
	return builds.List(ctx, BuildListParams{EventID: &id})
}

// ParallelBuilds returns the latest build for each job across every event sharing groupEventID,
// excluding builds belonging to excludePipelineID (§4.D "parallelBuilds(event.parentEventId,
// excluding event.pipelineId)"). A restart lineage shares one groupEventId across all its events
// (§3 invariant 3), so this searches the whole lineage rather than literally the immediate parent.
func ParallelBuilds(ctx context.Context, builds BuildFactory, jobs JobFactory, groupEventID models.EventID, excludePipelineID models.PipelineID) ([]*models.Build, error) {
	all, err := builds.GetLatestBuilds(ctx, groupEventID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Build, 0, len(all))
	for _, b := range all {
		job, err := jobs.GetByID(ctx, b.JobID)
		if err != nil {
			continue
		}
		if job.PipelineID.Equal(excludePipelineID.ResourceID) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// FindInternalCandidate finds the candidate build whose JobID matches targetJobID and whose
// EventID equals eventID (§4.D internal path).
func FindInternalCandidate(candidates []*models.Build, targetJobID models.JobID, eventID models.EventID) (*models.Build, bool) {
	for _, b := range candidates {
		if b.JobID.Equal(targetJobID.ResourceID) && b.EventID.Equal(eventID.ResourceID) {
			return b, true
		}
	}
	return nil, false
}

// FindExternalCandidate finds the latest CREATED build for targetJobID within eventID (§4.D
// external path: "query the latest build with status=CREATED and eventId=event.id,
// descending-sorted" — §9 open question notes a correct implementation must await the full list
// before indexing into it, which this does via BuildFactory.List before touching the result).
func FindExternalCandidate(ctx context.Context, builds BuildFactory, targetJobID models.JobID, eventID models.EventID) (*models.Build, error) {
	created := models.BuildStatusCreated
	id := eventID
	list, err := builds.List(ctx, BuildListParams{
		EventID:        &id,
		JobID:          &targetJobID,
		Status:         &created,
		SortDescending: true,
		Limit:          1,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
