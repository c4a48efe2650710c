package rag

import (
	"fmt"
	"strings"
)

const descSep = ";"

// RenderSubgraph turns a subgraph into LLM-ready context blocks.
//
// Each relationship whose endpoints are both present in sg.Nodes yields one
// block with the triple and the descriptions of source, target and edge.
// Every node that is not an endpoint of a rendered relationship then yields an
// isolated-entity block. Relationships with a missing endpoint are dropped.
func RenderSubgraph(sg *Subgraph) string {
	if sg == nil {
		return ""
	}

	nodes := make(map[string]Node, len(sg.Nodes))
	for _, n := range sg.Nodes {
		nodes[n.ID] = n
	}

	var blocks []string
	linked := make(map[string]bool)
	for _, rel := range sg.Relationships {
		src, okS := nodes[rel.SourceID]
		dst, okT := nodes[rel.TargetID]
		if !okS || !okT {
			continue
		}
		linked[src.ID] = true
		linked[dst.ID] = true

		var b strings.Builder
		b.WriteString("Entity relationship:\n")
		fmt.Fprintf(&b, "  %s -> %s -> %s\n", src.Name, rel.Relation, dst.Name)
		fmt.Fprintf(&b, "  %s: %s\n", src.Name, strings.Join(src.Desc, descSep))
		fmt.Fprintf(&b, "  %s: %s\n", dst.Name, strings.Join(dst.Desc, descSep))
		fmt.Fprintf(&b, "  %s: %s\n", rel.Relation, strings.Join(rel.Desc, descSep))
		blocks = append(blocks, b.String())
	}

	for _, n := range sg.Nodes {
		if linked[n.ID] {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Entity:\n  %s: %s\n", n.Name, strings.Join(n.Desc, descSep)))
	}

	return strings.Join(blocks, "\n")
}
