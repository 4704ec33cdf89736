package trigger

import "github.com/buildbeaver/trigger-engine/common/models"

// JoinResult is the outcome of evaluating a next-build's ledger against its declared join list
// (§4.C). Done means every declared parent has reported a terminal status; HasFailure means at
// least one of them did not succeed.
type JoinResult struct {
	Done       bool
	HasFailure bool
}

// BuildLoader resolves a build by id for the evaluator, returning false when the build cannot be
// loaded. The caller supplies it; the orchestrator's loader calls BuildFactory.Get, so each call
// made during evaluation is a factory round trip.
type BuildLoader func(id models.BuildID) (*models.Build, bool)

// EvaluateJoin computes (done, hasFailure) for a next build's ledger L against joinList (the
// declared parent names from srcForJoin), per §4.C:
//
//  1. For each name in joinList, classify to (pid, jname). If L[pid].jobs[jname] is unset or nil,
//     done=false and that name contributes nothing further (its upstream build hasn't reported).
//  2. Otherwise load the upstream build and fold its status in: UNSTABLE counts as both terminal
//     and a failure (matching the policy that unstable builds must not propagate downstream), any
//     of FAILURE/ABORTED/COLLAPSED/UNSTABLE sets hasFailure, and anything not yet terminal keeps
//     done=false.
func EvaluateJoin(L models.ParentBuildsLedger, joinList []string, currentPipelineID models.PipelineID, loadBuild BuildLoader) JoinResult {
	result := JoinResult{Done: true}
	for _, raw := range joinList {
		c := Classify(raw, currentPipelineID)
		jname := TrimJobName(c.JobName)

		entry, ok := L[c.PipelineID]
		if !ok || entry == nil {
			result.Done = false
			continue
		}
		buildID, ok := entry.Jobs[jname]
		if !ok || buildID == nil {
			result.Done = false
			continue
		}

		build, ok := loadBuild(*buildID)
		if !ok {
			// The ledger names a build we can't load: treat as not-yet-reported rather than failed,
			// since this is most likely a stale id racing a concurrent delete.
			result.Done = false
			continue
		}
		if build.Status.IsFailure() {
			result.HasFailure = true
		}
		if !build.Status.HasFinished() {
			result.Done = false
		}
	}
	return result
}
