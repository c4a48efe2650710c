package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/hybridrag/rag"
)

// QueryRequest is one question. Zero limits and an empty mode take the
// engine defaults.
type QueryRequest struct {
	Text     string
	TopK     int
	TopDepth int
	MaxNodes int
	Mode     Mode
}

// QueryResult carries the answer together with the context it was built from.
type QueryResult struct {
	Answer  string
	Context string
	Mode    Mode
}

// Query retrieves context for req.Text in the requested mode and asks the LLM
// to answer from it. Queries never write to either store.
func (e *RetrievalEngine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	req = e.fill(req)
	if req.Text == "" {
		return nil, fmt.Errorf("%w: empty query", rag.ErrInvalidArgument)
	}
	if req.TopK < 0 || req.TopDepth < 0 || req.MaxNodes < 0 {
		return nil, fmt.Errorf("%w: negative limit", rag.ErrInvalidArgument)
	}

	var blocks []string
	var err error
	switch req.Mode {
	case ModeOrigin:
		err = e.do(ctx, "origin retrieval", func(ctx context.Context) error {
			var rerr error
			blocks, rerr = e.vectorRetriever.Retrieve(ctx, req.Text, req.TopK)
			return rerr
		})
	case ModeGraph:
		err = e.do(ctx, "graph retrieval", func(ctx context.Context) error {
			var rerr error
			blocks, rerr = e.graphRetriever.Retrieve(ctx, req.Text, req.TopK, req.TopDepth, req.MaxNodes)
			return rerr
		})
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", rag.ErrInvalidArgument, req.Mode)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &QueryResult{Context: strings.Join(blocks, "\n"), Mode: req.Mode}
	err = e.do(ctx, "answer", func(ctx context.Context) error {
		var err error
		res.Answer, err = e.llm.Chat(ctx, fmt.Sprintf(e.config.AnswerPrompt, res.Context, req.Text))
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Retrieve returns the context blocks for req without calling the LLM.
func (e *RetrievalEngine) Retrieve(ctx context.Context, req QueryRequest) ([]string, error) {
	req = e.fill(req)
	switch req.Mode {
	case ModeOrigin:
		return e.vectorRetriever.Retrieve(ctx, req.Text, req.TopK)
	case ModeGraph:
		return e.graphRetriever.Retrieve(ctx, req.Text, req.TopK, req.TopDepth, req.MaxNodes)
	}
	return nil, fmt.Errorf("%w: unknown mode %q", rag.ErrInvalidArgument, req.Mode)
}

// Find exposes the graph store traversal for callers that hold a vector id.
func (e *RetrievalEngine) Find(ctx context.Context, id string, maxDepth, maxNodes int) (*rag.Subgraph, error) {
	return e.graphStore.Find(ctx, id, maxDepth, maxNodes)
}

// BuildPrompt renders a subgraph the way graph-mode context is rendered.
func (e *RetrievalEngine) BuildPrompt(sg *rag.Subgraph) string {
	return e.graphStore.BuildPrompt(sg)
}

func (e *RetrievalEngine) fill(req QueryRequest) QueryRequest {
	if req.TopK == 0 {
		req.TopK = e.config.TopK
	}
	if req.TopDepth == 0 {
		req.TopDepth = e.config.TopDepth
	}
	if req.MaxNodes == 0 {
		req.MaxNodes = e.config.MaxNodes
	}
	if req.Mode == "" {
		req.Mode = e.config.Mode
	}
	return req
}
