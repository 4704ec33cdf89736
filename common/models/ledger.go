package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LedgerPipelineEntry is one pipeline's contribution to a build's Parent-Builds Ledger (§3):
//
//	L : Map<pipelineId, { eventId: EventId|null, jobs: Map<jobName, BuildId|null> }>
type LedgerPipelineEntry struct {
	// EventID is the event that produced the most recent contribution from this pipeline, or nil
	// if no contribution has been observed yet.
	EventID *EventID `json:"event_id,omitempty"`
	// Jobs maps a job name (the ledger key — the trimmed name for PR jobs, per invariant 4) to the
	// id of the upstream build that has reached this point, or nil meaning "not yet known".
	Jobs map[string]*BuildID `json:"jobs"`
}

// ParentBuildsLedger is the nested map that travels with each build recording which upstream
// builds have contributed, keyed by pipeline id (§3 "Parent-Builds Ledger").
type ParentBuildsLedger map[PipelineID]*LedgerPipelineEntry

// NewParentBuildsLedger returns an empty, non-nil ledger.
func NewParentBuildsLedger() ParentBuildsLedger {
	return make(ParentBuildsLedger)
}

// Clone makes a deep copy of the ledger so callers can mutate the result without aliasing the
// original (the orchestrator and ledger operations never mutate a ledger in place, per §9's note
// that idempotent merges must not corrupt a caller's already-persisted ledger).
func (l ParentBuildsLedger) Clone() ParentBuildsLedger {
	out := NewParentBuildsLedger()
	for pid, entry := range l {
		if entry == nil {
			out[pid] = nil
			continue
		}
		newEntry := &LedgerPipelineEntry{EventID: entry.EventID, Jobs: make(map[string]*BuildID, len(entry.Jobs))}
		for jname, bid := range entry.Jobs {
			newEntry.Jobs[jname] = bid
		}
		out[pid] = newEntry
	}
	return out
}

func (l *ParentBuildsLedger) Scan(src interface{}) error {
	if src == nil {
		*l = NewParentBuildsLedger()
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("unsupported type for parent builds ledger: %[1]T (%[1]v)", src)
	}
	if str == "" {
		*l = NewParentBuildsLedger()
		return nil
	}
	m := NewParentBuildsLedger()
	if err := json.Unmarshal([]byte(str), &m); err != nil {
		return fmt.Errorf("error unmarshalling parent builds ledger from JSON: %w", err)
	}
	*l = m
	return nil
}

func (l ParentBuildsLedger) Value() (driver.Value, error) {
	if l == nil {
		l = NewParentBuildsLedger()
	}
	buf, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("error marshalling parent builds ledger to JSON: %w", err)
	}
	return string(buf), nil
}
