package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/rag/identity"
)

var (
	entityMergeFields = []string{rag.FieldVectorID, rag.FieldChunkIDs, rag.FieldType, rag.FieldDesc, rag.FieldAlias, rag.FieldTags}
	textMergeFields   = []string{rag.FieldVectorID, rag.FieldEntityIDs, rag.FieldSource}
)

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	RunID         string
	Source        string
	Chunks        int
	Entities      int
	Relationships int
	// Dropped counts relationships whose endpoints did not resolve.
	Dropped int
	// Skipped counts chunks the extractor rejected as unsupported input.
	Skipped int
}

// Upsert loads source through the document loader and ingests its text.
func (e *RetrievalEngine) Upsert(ctx context.Context, source string) (*IngestReport, error) {
	var text string
	err := e.do(ctx, "load "+source, func(ctx context.Context) error {
		var err error
		text, err = e.loader.Load(ctx, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e.UpsertText(ctx, source, text)
}

// UpsertText chunks text and ingests the chunks in order. The returned report
// covers the chunks committed before any error.
func (e *RetrievalEngine) UpsertText(ctx context.Context, source, text string) (*IngestReport, error) {
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	report := &IngestReport{RunID: uuid.NewString(), Source: source}
	chunks, err := e.chunker.Chunk(text)
	if err != nil {
		return report, fmt.Errorf("chunk %s: %w", source, err)
	}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.ingestChunk(ctx, source, chunk, report); err != nil {
			return report, fmt.Errorf("ingest %s chunk %d: %w", source, i, err)
		}
	}

	e.logger.Info("engine: run %s ingested %s: %d chunks, %d entities, %d relationships, %d dropped, %d skipped",
		report.RunID, source, report.Chunks, report.Entities, report.Relationships, report.Dropped, report.Skipped)
	return report, nil
}

func (e *RetrievalEngine) ingestChunk(ctx context.Context, source, chunk string, report *IngestReport) error {
	var ext *rag.Extraction
	err := e.do(ctx, "extract", func(ctx context.Context) error {
		var err error
		ext, err = e.extractor.Extract(ctx, chunk)
		return err
	})
	if errors.Is(err, rag.ErrUnsupportedInput) {
		report.Skipped++
		e.logger.Warn("engine: run %s skipped chunk: %v", report.RunID, err)
		return nil
	}
	if err != nil {
		return err
	}

	entities, err := e.entityRecords(ctx, ext.Entities)
	if err != nil {
		return err
	}
	entities = identity.Fold(entities)
	for i, r := range entities {
		if err := e.do(ctx, "merge entity", func(ctx context.Context) error {
			merged, err := e.vectorStore.Merge(ctx, e.config.EntityCollection, r, entityMergeFields)
			entities[i] = merged
			return err
		}); err != nil {
			return err
		}
	}

	text, err := e.chunkRecord(ctx, source, chunk)
	if err != nil {
		return err
	}
	if err := e.do(ctx, "merge chunk", func(ctx context.Context) error {
		merged, err := e.vectorStore.Merge(ctx, e.config.TextCollection, text, textMergeFields)
		text = merged
		return err
	}); err != nil {
		return err
	}

	if err := e.do(ctx, "assign entity ids", func(ctx context.Context) error {
		_, err := e.assigner.AssignMissing(ctx, e.config.EntityCollection, entities)
		return err
	}); err != nil {
		return err
	}
	if err := e.do(ctx, "assign chunk id", func(ctx context.Context) error {
		_, err := e.assigner.AssignMissing(ctx, e.config.TextCollection, []rag.Record{text})
		return err
	}); err != nil {
		return err
	}

	chunkID := text.String(rag.FieldVectorID)
	entityIDs := make([]string, 0, len(entities))
	for _, r := range entities {
		r[rag.FieldChunkIDs] = identity.Union(r.Strings(rag.FieldChunkIDs), []string{chunkID})
		entityIDs = append(entityIDs, r.String(rag.FieldVectorID))
	}
	text[rag.FieldEntityIDs] = identity.Union(text.Strings(rag.FieldEntityIDs), entityIDs)

	if len(entities) > 0 {
		if err := e.do(ctx, "upsert entities", func(ctx context.Context) error {
			return e.vectorStore.Upsert(ctx, e.config.EntityCollection, entities)
		}); err != nil {
			return err
		}
	}
	if err := e.do(ctx, "upsert chunk", func(ctx context.Context) error {
		return e.vectorStore.Upsert(ctx, e.config.TextCollection, []rag.Record{text})
	}); err != nil {
		return err
	}

	if err := e.writeNodes(ctx, entities); err != nil {
		return err
	}
	report.Entities += len(entities)

	if err := e.writeRelationships(ctx, entities, ext.Relationships, report); err != nil {
		return err
	}
	report.Chunks++
	return nil
}

// entityRecords builds one candidate row per stub, embedding them in parallel.
func (e *RetrievalEngine) entityRecords(ctx context.Context, stubs []rag.ExtractedEntity) ([]rag.Record, error) {
	records := make([]rag.Record, len(stubs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.EmbedConcurrency)
	for i, stub := range stubs {
		g.Go(func() error {
			var embedding []float32
			err := e.do(gctx, "embed entity "+stub.Content, func(ctx context.Context) error {
				var err error
				embedding, err = e.embedder.Embed(ctx, stub.Content+"\n"+stub.Desc)
				return err
			})
			if err != nil {
				return err
			}
			var desc []string
			if stub.Desc != "" {
				desc = []string{stub.Desc}
			}
			records[i] = rag.Entity{
				Content:   stub.Content,
				Type:      stub.Type,
				Desc:      desc,
				Hash:      contentHash(stub.Content),
				Embedding: embedding,
			}.Record()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (e *RetrievalEngine) chunkRecord(ctx context.Context, source, chunk string) (rag.Record, error) {
	var embedding []float32
	err := e.do(ctx, "embed chunk", func(ctx context.Context) error {
		var err error
		embedding, err = e.embedder.Embed(ctx, chunk)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rag.TextChunk{
		Content:   chunk,
		Hash:      contentHash(chunk),
		Source:    source,
		Embedding: embedding,
	}.Record(), nil
}

// writeNodes mirrors every entity row into the graph, keyed by vector_id.
func (e *RetrievalEngine) writeNodes(ctx context.Context, entities []rag.Record) error {
	for _, r := range entities {
		node := rag.Node{
			ID:   r.String(rag.FieldVectorID),
			Name: r.String(rag.FieldContent),
			Type: r.String(rag.FieldType),
			Desc: r.Strings(rag.FieldDesc),
		}
		if err := e.do(ctx, "write node "+node.ID, func(ctx context.Context) error {
			merged, err := e.graphStore.MergeEntity(ctx, node)
			if err != nil {
				return err
			}
			return e.graphStore.UpsertEntity(ctx, merged)
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeRelationships resolves endpoint names against this chunk's entities.
// Relationships with an unknown endpoint are dropped, not fatal.
func (e *RetrievalEngine) writeRelationships(ctx context.Context, entities []rag.Record, stubs []rag.ExtractedRelationship, report *IngestReport) error {
	ids := make(map[string]string, len(entities))
	for _, r := range entities {
		ids[r.String(rag.FieldContent)] = r.String(rag.FieldVectorID)
	}

	for _, stub := range stubs {
		src, srcOK := ids[stub.Source]
		dst, dstOK := ids[stub.Target]
		if !srcOK || !dstOK {
			report.Dropped++
			e.logger.Warn("engine: run %s dropped %s -%s-> %s: %v",
				report.RunID, stub.Source, stub.Relation, stub.Target, rag.ErrUnresolvedEndpoint)
			continue
		}

		desc := stub.Desc
		if desc == "" {
			desc = DefaultRelationDesc
		}
		rel := rag.Relationship{
			ID:       fmt.Sprintf("relation_%s_%s", src, dst),
			Relation: stub.Relation,
			SourceID: src,
			TargetID: dst,
			Desc:     []string{desc},
		}
		err := e.do(ctx, "write relationship "+rel.ID, func(ctx context.Context) error {
			merged, err := e.graphStore.MergeRelationship(ctx, rel)
			if err != nil {
				return err
			}
			return e.graphStore.UpsertRelationship(ctx, merged)
		})
		if errors.Is(err, rag.ErrUnresolvedEndpoint) {
			report.Dropped++
			e.logger.Warn("engine: run %s dropped %s: %v", report.RunID, rel.ID, err)
			continue
		}
		if err != nil {
			return err
		}
		report.Relationships++
	}
	return nil
}

// do runs fn under the per-call timeout.
func (e *RetrievalEngine) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return classify(op, fn(cctx))
}

func contentHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
