package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/rag/identity"
)

// NewGraphStore creates a graph store based on the database URL
func NewGraphStore(databaseURL string) (rag.GraphStore, error) {
	if strings.HasPrefix(databaseURL, "memory://") {
		return NewMemoryGraph(), nil
	}

	if strings.HasPrefix(databaseURL, "falkordb://") {
		g, err := NewFalkorDBGraph(databaseURL)
		if err != nil {
			return nil, err
		}
		return g, nil
	}

	return nil, fmt.Errorf("%w: only memory:// and falkordb:// graph URLs are supported", rag.ErrInvalidArgument)
}

// NewVectorStore creates a vector store based on the database URL. For
// Postgres the given collections get their tables created.
func NewVectorStore(ctx context.Context, databaseURL string, dimension int, collections ...string) (rag.VectorStore, error) {
	if strings.HasPrefix(databaseURL, "memory://") {
		return NewInMemoryVectorStore(), nil
	}

	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		s, err := NewPgVectorStore(ctx, PgVectorOptions{ConnString: databaseURL, Dimension: dimension})
		if err != nil {
			return nil, err
		}
		if err := s.InitSchema(ctx, collections...); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}

	return nil, fmt.Errorf("%w: only memory:// and postgres:// vector URLs are supported", rag.ErrInvalidArgument)
}

// MemoryGraph implements an in-memory property graph
type MemoryGraph struct {
	mu        sync.RWMutex
	nodes     map[string]rag.Node
	nodeOrder []string
	edges     []rag.Relationship
	edgeIndex map[string]int
}

var _ rag.GraphStore = (*MemoryGraph)(nil)

// NewMemoryGraph creates an empty MemoryGraph
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		nodes:     make(map[string]rag.Node),
		edgeIndex: make(map[string]int),
	}
}

// UpsertEntity adds a node or replaces the one with the same id.
func (m *MemoryGraph) UpsertEntity(ctx context.Context, node rag.Node) error {
	if node.ID == "" {
		return fmt.Errorf("upsert entity %q: %w: empty id", node.Name, rag.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[node.ID]; !exists {
		m.nodeOrder = append(m.nodeOrder, node.ID)
	}
	node.Desc = slices.Clone(node.Desc)
	m.nodes[node.ID] = node
	return nil
}

// UpsertRelationship adds an edge or replaces the one with the same id.
// Both endpoints must already exist.
func (m *MemoryGraph) UpsertRelationship(ctx context.Context, rel rag.Relationship) error {
	if rel.ID == "" {
		return fmt.Errorf("upsert relationship: %w: empty id", rag.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []string{rel.SourceID, rel.TargetID} {
		if _, ok := m.nodes[id]; !ok {
			return fmt.Errorf("upsert relationship %s: %w: %q", rel.ID, rag.ErrUnresolvedEndpoint, id)
		}
	}

	rel.Desc = slices.Clone(rel.Desc)
	if i, exists := m.edgeIndex[rel.ID]; exists {
		m.edges[i] = rel
		return nil
	}
	m.edgeIndex[rel.ID] = len(m.edges)
	m.edges = append(m.edges, rel)
	return nil
}

// MergeEntity unions node's desc into the stored node with the same id.
// The stored name and type win; a node not yet stored is returned unchanged.
func (m *MemoryGraph) MergeEntity(ctx context.Context, node rag.Node) (rag.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existing, ok := m.nodes[node.ID]
	if !ok {
		return node, nil
	}
	return mergeNode(existing, node), nil
}

// MergeRelationship unions rel's desc into the stored edge with the same
// (source, target, relation) triple.
func (m *MemoryGraph) MergeRelationship(ctx context.Context, rel rag.Relationship) (rag.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.edges {
		if e.SourceID == rel.SourceID && e.TargetID == rel.TargetID && e.Relation == rel.Relation {
			return mergeRelationship(e, rel), nil
		}
	}
	return rel, nil
}

// Find returns the subgraph reachable from id over outgoing edges.
func (m *MemoryGraph) Find(ctx context.Context, id string, maxDepth, maxNodes int) (*rag.Subgraph, error) {
	if err := validateFind(id, maxDepth, maxNodes); err != nil {
		return nil, err
	}

	m.mu.RLock()
	nodes := make(map[string]rag.Node, len(m.nodes))
	for k, n := range m.nodes {
		n.Desc = slices.Clone(n.Desc)
		nodes[k] = n
	}
	edges := make([]rag.Relationship, len(m.edges))
	for i, e := range m.edges {
		e.Desc = slices.Clone(e.Desc)
		edges[i] = e
	}
	m.mu.RUnlock()

	return boundedSubgraph(id, nodes, edges, maxDepth, maxNodes)
}

// BuildPrompt renders sg as context blocks.
func (m *MemoryGraph) BuildPrompt(sg *rag.Subgraph) string {
	return rag.RenderSubgraph(sg)
}

// Close closes the graph (no-op for in-memory implementation)
func (m *MemoryGraph) Close() error {
	return nil
}

func mergeNode(existing, candidate rag.Node) rag.Node {
	out := existing
	if out.Name == "" {
		out.Name = candidate.Name
	}
	if out.Type == "" {
		out.Type = candidate.Type
	}
	out.Desc = identity.Union(existing.Desc, candidate.Desc)
	return out
}

func mergeRelationship(existing, candidate rag.Relationship) rag.Relationship {
	out := candidate
	if out.ID == "" {
		out.ID = existing.ID
	}
	out.Desc = identity.Union(existing.Desc, candidate.Desc)
	return out
}
