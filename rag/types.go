package rag

import (
	"context"
	"slices"
)

// Record field names shared by both vector collections.
const (
	FieldVectorID  = "vector_id"
	FieldContent   = "content"
	FieldHash      = "hash"
	FieldEmbedding = "embedding"
	FieldType      = "type"
	FieldDesc      = "desc"
	FieldAlias     = "alias"
	FieldTags      = "tags"
	FieldChunkIDs  = "chunk_ids"
	FieldEntityIDs = "entity_ids"
	FieldSource    = "source"
)

// Record is a schemaless row in a vector collection.
type Record map[string]any

// String returns the string stored at key, or "" if absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Strings returns the list stored at key. Both []string and []any holding
// strings are accepted, since decoded JSON yields the latter.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Vector returns the embedding, converting from []float64 or []any if needed.
func (r Record) Vector() []float32 {
	switch v := r[FieldEmbedding].(type) {
	case []float32:
		return v
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(v))
		for _, item := range v {
			if f, ok := item.(float64); ok {
				out = append(out, float32(f))
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy with list values copied.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		switch vv := v.(type) {
		case []string:
			out[k] = slices.Clone(vv)
		case []float32:
			out[k] = slices.Clone(vv)
		default:
			out[k] = v
		}
	}
	return out
}

// EntityType classifies an entity mention.
type EntityType string

const (
	EntityPrecise  EntityType = "precise"
	EntityAbstract EntityType = "abstract"
)

// Entity is a named thing extracted from text. VectorID is shared by the
// entity's vector row and its graph node.
type Entity struct {
	VectorID  string
	Content   string
	Type      EntityType
	Desc      []string
	Alias     []string
	Tags      []string
	ChunkIDs  []string
	Hash      string
	Embedding []float32
}

// Record converts the entity to a vector row.
func (e Entity) Record() Record {
	return Record{
		FieldVectorID:  e.VectorID,
		FieldContent:   e.Content,
		FieldType:      string(e.Type),
		FieldDesc:      nonNil(e.Desc),
		FieldAlias:     nonNil(e.Alias),
		FieldTags:      nonNil(e.Tags),
		FieldChunkIDs:  nonNil(e.ChunkIDs),
		FieldHash:      e.Hash,
		FieldEmbedding: e.Embedding,
	}
}

// EntityFromRecord is the inverse of Entity.Record.
func EntityFromRecord(r Record) Entity {
	return Entity{
		VectorID:  r.String(FieldVectorID),
		Content:   r.String(FieldContent),
		Type:      EntityType(r.String(FieldType)),
		Desc:      r.Strings(FieldDesc),
		Alias:     r.Strings(FieldAlias),
		Tags:      r.Strings(FieldTags),
		ChunkIDs:  r.Strings(FieldChunkIDs),
		Hash:      r.String(FieldHash),
		Embedding: r.Vector(),
	}
}

// TextChunk is one chunk of a source document.
type TextChunk struct {
	VectorID  string
	Content   string
	Hash      string
	Source    string
	EntityIDs []string
	Embedding []float32
}

// Record converts the chunk to a vector row.
func (c TextChunk) Record() Record {
	return Record{
		FieldVectorID:  c.VectorID,
		FieldContent:   c.Content,
		FieldHash:      c.Hash,
		FieldSource:    c.Source,
		FieldEntityIDs: nonNil(c.EntityIDs),
		FieldEmbedding: c.Embedding,
	}
}

// TextChunkFromRecord is the inverse of TextChunk.Record.
func TextChunkFromRecord(r Record) TextChunk {
	return TextChunk{
		VectorID:  r.String(FieldVectorID),
		Content:   r.String(FieldContent),
		Hash:      r.String(FieldHash),
		Source:    r.String(FieldSource),
		EntityIDs: r.Strings(FieldEntityIDs),
		Embedding: r.Vector(),
	}
}

// Relationship is a directed, labelled edge between two entity nodes.
type Relationship struct {
	ID       string
	Relation string
	SourceID string
	TargetID string
	Desc     []string
}

// Node is an entity as stored in the graph.
type Node struct {
	ID   string
	Name string
	Type string
	Desc []string
}

// Subgraph is the result of a bounded traversal.
type Subgraph struct {
	Nodes         []Node
	Relationships []Relationship
}

// ExtractedEntity is an entity stub parsed from an LLM response.
type ExtractedEntity struct {
	Content string
	Type    EntityType
	Desc    string
}

// ExtractedRelationship is a relationship stub whose endpoints are still names.
type ExtractedRelationship struct {
	Source   string
	Relation string
	Target   string
	Desc     string
}

// Extraction is everything parsed from one chunk.
type Extraction struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
}

// VectorQuery describes a vector collection lookup. With Embedding set it is a
// similarity search; otherwise it is an exact filter scan.
type VectorQuery struct {
	Embedding    []float32
	TopK         int
	Filter       map[string]any
	OutputFields []string
}

// VectorStore wraps a similarity index with named collections.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, rows []Record) error
	Query(ctx context.Context, collection string, q VectorQuery) ([]Record, error)
	Count(ctx context.Context, collections ...string) (map[string]int64, error)
	// Merge folds candidate into the existing row with the same hash, if any.
	Merge(ctx context.Context, collection string, candidate Record, fields []string) (Record, error)
	Close() error
}

// GraphStore wraps a property graph of entity nodes and relationship edges.
type GraphStore interface {
	UpsertEntity(ctx context.Context, node Node) error
	UpsertRelationship(ctx context.Context, rel Relationship) error
	MergeEntity(ctx context.Context, node Node) (Node, error)
	// MergeRelationship unions desc with an edge of the same (source, target, relation).
	MergeRelationship(ctx context.Context, rel Relationship) (Relationship, error)
	// Find returns ErrNotFound if id has no node.
	Find(ctx context.Context, id string, maxDepth, maxNodes int) (*Subgraph, error)
	BuildPrompt(sg *Subgraph) string
	Close() error
}

// LLM is a chat completion backend.
type LLM interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RerankResult points at one input document with its relevance score.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker orders documents by relevance to query, best first.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error)
}

// Chunker splits a document into bounded segments.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// DocumentLoader resolves a path or URL into raw text.
type DocumentLoader interface {
	Load(ctx context.Context, source string) (string, error)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
