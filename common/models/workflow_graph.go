package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// isPR mirrors the Trigger-Name Parser's isPR predicate (§4.A): a node name denotes a
// pull-request job iff it contains ':' (the "PR-<n>:<job>" grammar, distinct from the
// external "sd@<pid>:<job>" prefix which the parser itself is responsible for distinguishing).
func isPR(name string) bool {
	return strings.Contains(name, ":")
}

// WorkflowGraphNode is one node of a WorkflowGraph (§3 "nodes (each {id, name})"). Node names
// follow the external trigger-name grammar (§6): a plain job name for an internal node, or
// "sd@<pipelineId>:<jobName>" for a node representing a job in another pipeline.
type WorkflowGraphNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WorkflowGraphEdge is one edge of a WorkflowGraph (§3 "edges ({src, dest})"), referencing nodes by ID.
type WorkflowGraphEdge struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
}

// WorkflowGraph is the directed graph of job dependencies snapshotted onto an Event (§3 "Event E ...
// has workflowGraph snapshot"). Building a graph from a raw build-definition file is out of scope
// (§1 "the workflow-graph parser (consumed as a library)"); WorkflowGraph only stores the parsed
// result and answers the two queries the trigger engine needs.
type WorkflowGraph struct {
	Nodes []WorkflowGraphNode `json:"nodes"`
	Edges []WorkflowGraphEdge `json:"edges"`
}

func (g *WorkflowGraph) nodeByID(id string) (*WorkflowGraphNode, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// NodeByName finds the node whose name exactly matches name.
func (g *WorkflowGraph) NodeByName(name string) (*WorkflowGraphNode, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// NextJobs returns the names of the nodes reachable by a direct edge from the node named trigger.
// When chainPR is false, destination nodes whose name carries a "PR-<n>:" prefix are excluded,
// since a non-PR build should not fan out into PR-only jobs (§4.G drives this from the workflow
// parser's getNextJobs(graph, {trigger, chainPR}) contract).
func (g *WorkflowGraph) NextJobs(trigger string, chainPR bool) []string {
	src, ok := g.NodeByName(trigger)
	if !ok {
		return nil
	}
	var names []string
	for _, e := range g.Edges {
		if e.Src != src.ID {
			continue
		}
		dest, ok := g.nodeByID(e.Dest)
		if !ok {
			continue
		}
		if !chainPR && isPR(dest.Name) {
			continue
		}
		names = append(names, dest.Name)
	}
	return names
}

// NodeContaining returns the first node whose name contains substr. Used as a fallback when an
// exact-name lookup fails because the node name embeds the reference with extra prefixing, e.g. a
// plain "sd@2:X" reference still resolves against a node named "~sd@2:X" or "PR-3:sd@2:X"
// (§4.B fill, §4.E).
func (g *WorkflowGraph) NodeContaining(substr string) (*WorkflowGraphNode, bool) {
	for i := range g.Nodes {
		if strings.Contains(g.Nodes[i].Name, substr) {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// SrcForJoin returns the names of every node with a direct edge into the node named jobName —
// the declared join list a destination job requires before it may start (§4.C/§4.G).
func (g *WorkflowGraph) SrcForJoin(jobName string) []string {
	dest, ok := g.NodeByName(jobName)
	if !ok {
		return nil
	}
	var names []string
	for _, e := range g.Edges {
		if e.Dest != dest.ID {
			continue
		}
		src, ok := g.nodeByID(e.Src)
		if !ok {
			continue
		}
		names = append(names, src.Name)
	}
	return names
}

func (g *WorkflowGraph) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	str, ok := src.(string)
	if !ok {
		return fmt.Errorf("unsupported type for workflow graph: %[1]T (%[1]v)", src)
	}
	if str == "" {
		return nil
	}
	return json.Unmarshal([]byte(str), g)
}

func (g WorkflowGraph) Value() (driver.Value, error) {
	buf, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("error marshalling workflow graph to JSON: %w", err)
	}
	return string(buf), nil
}
