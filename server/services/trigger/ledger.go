package trigger

import (
	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
)

// JobIDLookup resolves the job id for a job name within a pipeline. Fill needs this to compare a
// workflow-graph node against a candidate build's JobID. The caller supplies it; the re-entry
// handler's lookup calls JobFactory.GetByName, so each call made by Fill is a factory round trip.
type JobIDLookup func(pipelineID models.PipelineID, jobName string) (models.JobID, bool)

// SingletonLedger builds the ledger contribution of a single (pipeline, event, job, build)
// observation (§4.B "singletonLedger").
func SingletonLedger(pipelineID models.PipelineID, eventID models.EventID, jobName string, buildID models.BuildID) models.ParentBuildsLedger {
	eid := eventID
	bid := buildID
	return models.ParentBuildsLedger{
		pipelineID: &models.LedgerPipelineEntry{
			EventID: &eid,
			Jobs:    map[string]*models.BuildID{jobName: &bid},
		},
	}
}

// JoinSkeleton builds the "not yet known" shape of a ledger for a declared join list: every name
// is classified, trimmed, and given a nil build id; entries for the same pipeline are merged
// (§4.B "joinSkeleton").
func JoinSkeleton(currentPipelineID models.PipelineID, joinListNames []string) models.ParentBuildsLedger {
	out := models.NewParentBuildsLedger()
	for _, raw := range joinListNames {
		c := Classify(raw, currentPipelineID)
		entry, ok := out[c.PipelineID]
		if !ok {
			entry = &models.LedgerPipelineEntry{Jobs: make(map[string]*models.BuildID)}
			out[c.PipelineID] = entry
		}
		jname := TrimJobName(c.JobName)
		if _, exists := entry.Jobs[jname]; !exists {
			entry.Jobs[jname] = nil
		}
	}
	return out
}

// Merge deep-merges any number of ledgers with right-wins at leaves and a union of keys at every
// nested level (§4.B "merge"): for a given (pipelineId, jobName), the value comes from the last
// ledger in the argument list that mentions that key, whether or not that value is nil; ledgers
// that don't mention a key leave an earlier definition untouched. This is associative and
// idempotent: merging the same ledger in twice, or re-grouping the fold, yields the same result.
func Merge(ledgers ...models.ParentBuildsLedger) models.ParentBuildsLedger {
	out := models.NewParentBuildsLedger()
	for _, l := range ledgers {
		for pid, entry := range l {
			if entry == nil {
				continue
			}
			dst, ok := out[pid]
			if !ok {
				dst = &models.LedgerPipelineEntry{Jobs: make(map[string]*models.BuildID)}
				out[pid] = dst
			}
			if entry.EventID != nil {
				dst.EventID = entry.EventID
			}
			for jname, bid := range entry.Jobs {
				dst.Jobs[jname] = bid
			}
		}
	}
	return out
}

// Fill patches every still-unknown (pipelineId, jobName) entry in L by looking for a matching
// node in the current event's workflow graph and, if one exists, a candidate build for that job
// (§4.B "fill"). A node that cannot be found is logged as a GraphMismatch and left unresolved —
// non-fatal, since the join will simply re-evaluate as not-done until a later build reports in.
func Fill(
	log logger.Log,
	L models.ParentBuildsLedger,
	currentPipelineID models.PipelineID,
	graph *models.WorkflowGraph,
	candidateBuilds []*models.Build,
	lookupJobID JobIDLookup,
) models.ParentBuildsLedger {
	out := L.Clone()
	for pid, entry := range out {
		if entry == nil {
			continue
		}
		for jname, bid := range entry.Jobs {
			if bid != nil {
				continue
			}
			var node *models.WorkflowGraphNode
			var ok bool
			if pid.Equal(currentPipelineID.ResourceID) {
				node, ok = graph.NodeByName(jname)
			} else {
				node, ok = graph.NodeContaining("sd@" + pid.ExternalToken() + ":" + jname)
			}
			if !ok {
				log.WithField("pipeline_id", pid.String()).WithField("job_name", jname).
					Warn("fill: no workflow graph node found for ledger entry, leaving unresolved")
				continue
			}
			jobID, ok := lookupJobID(pid, node.Name)
			if !ok {
				continue
			}
			for _, b := range candidateBuilds {
				if !b.JobID.Equal(jobID.ResourceID) {
					continue
				}
				id := b.ID
				entry.Jobs[jname] = &id
				eid := b.EventID
				entry.EventID = &eid
				break
			}
		}
	}
	return out
}
