package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/textsplitter"
)

// LangChainLLM adapts a langchaingo llms.Model to our LLM interface
type LangChainLLM struct {
	model   llms.Model
	options []llms.CallOption
}

var _ LLM = (*LangChainLLM)(nil)

// NewLangChainLLM creates a new adapter for langchaingo models. The call
// options are applied to every Chat.
func NewLangChainLLM(model llms.Model, options ...llms.CallOption) *LangChainLLM {
	return &LangChainLLM{
		model:   model,
		options: options,
	}
}

// Chat sends prompt as a single human message
func (l *LangChainLLM) Chat(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l.model, prompt, l.options...)
}

// LangChainEmbedder adapts langchaingo's embeddings.Embedder to our Embedder interface
type LangChainEmbedder struct {
	embedder embeddings.Embedder
}

var _ Embedder = (*LangChainEmbedder)(nil)

// NewLangChainEmbedder creates a new adapter for langchaingo embedders
func NewLangChainEmbedder(embedder embeddings.Embedder) *LangChainEmbedder {
	return &LangChainEmbedder{
		embedder: embedder,
	}
}

// Embed embeds text as a query
func (l *LangChainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return l.embedder.EmbedQuery(ctx, text)
}

// LangChainChunker adapts a langchaingo text splitter to our Chunker interface
type LangChainChunker struct {
	splitter textsplitter.TextSplitter
}

var _ Chunker = (*LangChainChunker)(nil)

// NewLangChainChunker creates a new adapter for langchaingo text splitters
func NewLangChainChunker(splitter textsplitter.TextSplitter) *LangChainChunker {
	return &LangChainChunker{
		splitter: splitter,
	}
}

// Chunk splits text with the wrapped splitter
func (l *LangChainChunker) Chunk(text string) ([]string, error) {
	chunks, err := l.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	return chunks, nil
}

// LangChainDocumentLoader adapts langchaingo document loaders to our
// DocumentLoader interface. A langchaingo loader is bound to one source, so
// the adapter builds one per Load.
type LangChainDocumentLoader struct {
	open func(ctx context.Context, source string) (documentloaders.Loader, error)
}

var _ DocumentLoader = (*LangChainDocumentLoader)(nil)

// NewLangChainDocumentLoader creates a new adapter around a loader factory
func NewLangChainDocumentLoader(open func(ctx context.Context, source string) (documentloaders.Loader, error)) *LangChainDocumentLoader {
	return &LangChainDocumentLoader{
		open: open,
	}
}

// Load joins the page contents of every document the loader returns
func (l *LangChainDocumentLoader) Load(ctx context.Context, source string) (string, error) {
	loader, err := l.open(ctx, source)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", source, err)
	}
	docs, err := loader.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", source, err)
	}

	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.PageContent) != "" {
			pages = append(pages, d.PageContent)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
