package store

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/smallnest/hybridrag/rag"
)

// boundedSubgraph walks outgoing edges from startID for at most maxDepth hops.
//
// Every edge leaving a node within maxDepth-1 hops lies on some path of length
// at most maxDepth, so all of them are collected once each. The node set is
// then capped at maxNodes, closest hop first with discovery order breaking
// ties; the start node is always kept and edges survive only when both of
// their endpoints do.
func boundedSubgraph(startID string, nodes map[string]rag.Node, edges []rag.Relationship, maxDepth, maxNodes int) (*rag.Subgraph, error) {
	if err := validateFind(startID, maxDepth, maxNodes); err != nil {
		return nil, err
	}
	start, ok := nodes[startID]
	if !ok {
		return nil, fmt.Errorf("find %q: %w", startID, rag.ErrNotFound)
	}

	out := make(map[string][]rag.Relationship)
	for _, e := range edges {
		out[e.SourceID] = append(out[e.SourceID], e)
	}
	for id := range out {
		slices.SortStableFunc(out[id], func(a, b rag.Relationship) int {
			return cmp.Or(cmp.Compare(a.TargetID, b.TargetID), cmp.Compare(a.Relation, b.Relation), cmp.Compare(a.ID, b.ID))
		})
	}

	dist := map[string]int{startID: 0}
	order := []string{startID}
	seenEdge := make(map[string]bool)
	var collected []rag.Relationship

	for i := 0; i < len(order); i++ {
		id := order[i]
		if dist[id] >= maxDepth {
			continue
		}
		for _, e := range out[id] {
			key := edgeKey(e)
			if !seenEdge[key] {
				seenEdge[key] = true
				collected = append(collected, e)
			}
			if _, known := dist[e.TargetID]; known {
				continue
			}
			if _, exists := nodes[e.TargetID]; !exists {
				continue
			}
			dist[e.TargetID] = dist[id] + 1
			order = append(order, e.TargetID)
		}
	}

	if len(order) > maxNodes {
		order = order[:maxNodes]
	}

	sg := &rag.Subgraph{Nodes: make([]rag.Node, 0, len(order))}
	kept := make(map[string]bool, len(order))
	for _, id := range order {
		kept[id] = true
		if id == startID {
			sg.Nodes = append(sg.Nodes, start)
			continue
		}
		sg.Nodes = append(sg.Nodes, nodes[id])
	}
	for _, e := range collected {
		if kept[e.SourceID] && kept[e.TargetID] {
			sg.Relationships = append(sg.Relationships, e)
		}
	}
	return sg, nil
}

func validateFind(id string, maxDepth, maxNodes int) error {
	if id == "" {
		return fmt.Errorf("find: %w: empty node id", rag.ErrInvalidArgument)
	}
	if maxDepth <= 0 || maxNodes <= 0 {
		return fmt.Errorf("find %q: %w: maxDepth and maxNodes must be positive", id, rag.ErrInvalidArgument)
	}
	return nil
}

// edgeKey identifies an edge instance. Edges without an id fall back to their triple.
func edgeKey(e rag.Relationship) string {
	if e.ID != "" {
		return e.ID
	}
	return e.SourceID + "\x00" + e.Relation + "\x00" + e.TargetID
}
