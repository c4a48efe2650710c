package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/hybridrag/rag"
	"github.com/tidwall/gjson"
)

const entityLabel = "Entity"

// FalkorDBGraph implements rag.GraphStore on FalkorDB.
//
// Nodes carry the label Entity with id, name and type properties. Edge types
// are the sanitized relation and the original relation is kept in a property.
// Descriptions are stored as JSON-encoded string lists.
type FalkorDBGraph struct {
	client redis.UniversalClient
	graph  Graph
	query  func(ctx context.Context, q string) (QueryResult, error)
}

var _ rag.GraphStore = (*FalkorDBGraph)(nil)

// NewFalkorDBGraph creates a new FalkorDB graph store
func NewFalkorDBGraph(connectionString string) (*FalkorDBGraph, error) {
	// Format: falkordb://[:password@]host:port/graph_name
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid connection string: %v", rag.ErrInvalidArgument, err)
	}
	if u.Scheme != "falkordb" {
		return nil, fmt.Errorf("%w: invalid connection string: scheme %q", rag.ErrInvalidArgument, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: invalid connection string: missing host", rag.ErrInvalidArgument)
	}
	graphName := strings.TrimPrefix(u.Path, "/")
	if graphName == "" {
		graphName = "rag"
	}

	opts := &redis.Options{Addr: u.Host}
	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}
	return NewFalkorDBGraphWithClient(redis.NewClient(opts), graphName), nil
}

// NewFalkorDBGraphWithClient creates a graph store over an existing client
func NewFalkorDBGraphWithClient(client redis.UniversalClient, graphName string) *FalkorDBGraph {
	f := &FalkorDBGraph{
		client: client,
		graph:  NewGraph(graphName, client),
	}
	f.query = f.graph.Query
	return f
}

func (f *FalkorDBGraph) run(ctx context.Context, op, q string, params map[string]any) (QueryResult, error) {
	qr, err := f.query(ctx, withParams(q, params))
	if err != nil {
		return qr, rag.StoreError(op, err)
	}
	return qr, nil
}

// UpsertEntity merges the node by id and overwrites its properties.
func (f *FalkorDBGraph) UpsertEntity(ctx context.Context, node rag.Node) error {
	if node.ID == "" {
		return fmt.Errorf("upsert entity %q: %w: empty id", node.Name, rag.ErrInvalidArgument)
	}
	_, err := f.run(ctx, "upsert entity "+node.ID,
		"MERGE (n:Entity {id: $id}) SET n.name = $name, n.type = $type, n.desc = $desc",
		map[string]any{"id": node.ID, "name": node.Name, "type": node.Type, "desc": encodeDesc(node.Desc)})
	return err
}

// UpsertRelationship writes the edge with rel.ID between two existing nodes,
// replacing any edge already holding that id.
func (f *FalkorDBGraph) UpsertRelationship(ctx context.Context, rel rag.Relationship) error {
	if rel.ID == "" {
		return fmt.Errorf("upsert relationship: %w: empty id", rag.ErrInvalidArgument)
	}
	op := "upsert relationship " + rel.ID
	params := map[string]any{
		"id":       rel.ID,
		"src":      rel.SourceID,
		"dst":      rel.TargetID,
		"relation": rel.Relation,
		"desc":     encodeDesc(rel.Desc),
	}

	qr, err := f.run(ctx, op,
		"MATCH (n:Entity) WHERE n.id = $src OR n.id = $dst RETURN DISTINCT n.id", params)
	if err != nil {
		return err
	}
	found := make(map[string]bool)
	for _, row := range qr.Results {
		if len(row) > 0 {
			found[cellString(row[0])] = true
		}
	}
	for _, id := range []string{rel.SourceID, rel.TargetID} {
		if !found[id] {
			return fmt.Errorf("%s: %w: %q", op, rag.ErrUnresolvedEndpoint, id)
		}
	}

	if _, err := f.run(ctx, op,
		"MATCH (:Entity)-[r {id: $id}]->(:Entity) WHERE r.relation <> $relation OR startNode(r).id <> $src OR endNode(r).id <> $dst DELETE r",
		params); err != nil {
		return err
	}

	q := fmt.Sprintf(
		"MATCH (a:Entity {id: $src}), (b:Entity {id: $dst}) MERGE (a)-[r:%s {id: $id}]->(b) SET r.relation = $relation, r.desc = $desc",
		sanitizeLabel(rel.Relation))
	_, err = f.run(ctx, op, q, params)
	return err
}

// MergeEntity unions node's desc into the stored node with the same id.
func (f *FalkorDBGraph) MergeEntity(ctx context.Context, node rag.Node) (rag.Node, error) {
	qr, err := f.run(ctx, "merge entity "+node.ID,
		"MATCH (n:Entity {id: $id}) RETURN n.id, n.name, n.type, n.desc LIMIT 1",
		map[string]any{"id": node.ID})
	if err != nil {
		return rag.Node{}, err
	}
	if len(qr.Results) == 0 {
		return node, nil
	}
	existing, ok := parseNodeRow(qr.Results[0])
	if !ok {
		return node, nil
	}
	return mergeNode(existing, node), nil
}

// MergeRelationship unions rel's desc into the stored edge with the same
// (source, target, relation) triple.
func (f *FalkorDBGraph) MergeRelationship(ctx context.Context, rel rag.Relationship) (rag.Relationship, error) {
	qr, err := f.run(ctx, "merge relationship "+rel.ID,
		"MATCH (:Entity {id: $src})-[r]->(:Entity {id: $dst}) WHERE r.relation = $relation RETURN r.id, r.desc LIMIT 1",
		map[string]any{"src": rel.SourceID, "dst": rel.TargetID, "relation": rel.Relation})
	if err != nil {
		return rag.Relationship{}, err
	}
	if len(qr.Results) == 0 || len(qr.Results[0]) < 2 {
		return rel, nil
	}
	row := qr.Results[0]
	existing := rag.Relationship{
		ID:       cellString(row[0]),
		Relation: rel.Relation,
		SourceID: rel.SourceID,
		TargetID: rel.TargetID,
		Desc:     decodeDesc(row[1]),
	}
	return mergeRelationship(existing, rel), nil
}

// Find loads the start node, every node reachable within maxDepth hops and
// every edge on those paths, then bounds the result locally.
func (f *FalkorDBGraph) Find(ctx context.Context, id string, maxDepth, maxNodes int) (*rag.Subgraph, error) {
	if err := validateFind(id, maxDepth, maxNodes); err != nil {
		return nil, err
	}
	op := "find " + id
	params := map[string]any{"id": id}

	qr, err := f.run(ctx, op, "MATCH (n:Entity {id: $id}) RETURN n.id, n.name, n.type, n.desc LIMIT 1", params)
	if err != nil {
		return nil, err
	}
	if len(qr.Results) == 0 {
		return nil, fmt.Errorf("%s: %w", op, rag.ErrNotFound)
	}
	start, ok := parseNodeRow(qr.Results[0])
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, rag.ErrNotFound)
	}
	nodes := map[string]rag.Node{start.ID: start}

	qr, err = f.run(ctx, op, fmt.Sprintf(
		"MATCH (:Entity {id: $id})-[*1..%d]->(n:Entity) RETURN DISTINCT n.id, n.name, n.type, n.desc", maxDepth), params)
	if err != nil {
		return nil, err
	}
	for _, row := range qr.Results {
		if n, ok := parseNodeRow(row); ok {
			nodes[n.ID] = n
		}
	}

	qr, err = f.run(ctx, op, fmt.Sprintf(
		"MATCH p = (:Entity {id: $id})-[*1..%d]->(:Entity) UNWIND relationships(p) AS e WITH DISTINCT e "+
			"RETURN e.id, e.relation, startNode(e).id, endNode(e).id, e.desc", maxDepth), params)
	if err != nil {
		return nil, err
	}
	var edges []rag.Relationship
	for _, row := range qr.Results {
		if len(row) < 5 {
			continue
		}
		edges = append(edges, rag.Relationship{
			ID:       cellString(row[0]),
			Relation: cellString(row[1]),
			SourceID: cellString(row[2]),
			TargetID: cellString(row[3]),
			Desc:     decodeDesc(row[4]),
		})
	}

	return boundedSubgraph(id, nodes, edges, maxDepth, maxNodes)
}

// BuildPrompt renders sg as context blocks.
func (f *FalkorDBGraph) BuildPrompt(sg *rag.Subgraph) string {
	return rag.RenderSubgraph(sg)
}

// Close closes the client
func (f *FalkorDBGraph) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Helpers

var labelRegex = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func sanitizeLabel(l string) string {
	clean := labelRegex.ReplaceAllString(l, "_")
	if clean == "" {
		return entityLabel
	}
	if clean[0] >= '0' && clean[0] <= '9' {
		// identifiers may not start with a digit
		clean = "_" + clean
	}
	return clean
}

func encodeDesc(desc []string) string {
	if desc == nil {
		desc = []string{}
	}
	b, _ := json.Marshal(desc)
	return string(b)
}

func decodeDesc(v any) []string {
	out := []string{}
	for _, item := range gjson.Parse(cellString(v)).Array() {
		out = append(out, item.String())
	}
	return out
}

func parseNodeRow(row []any) (rag.Node, bool) {
	if len(row) < 4 {
		return rag.Node{}, false
	}
	n := rag.Node{
		ID:   cellString(row[0]),
		Name: cellString(row[1]),
		Type: cellString(row[2]),
		Desc: decodeDesc(row[3]),
	}
	return n, n.ID != ""
}
