package loader

import (
	"context"
	"fmt"
	"maps"

	"github.com/smallnest/hybridrag/rag"
)

// StaticDocumentLoader serves documents from a fixed source-to-text map
type StaticDocumentLoader struct {
	Documents map[string]string
}

var _ rag.DocumentLoader = (*StaticDocumentLoader)(nil)

// NewStaticDocumentLoader creates a new StaticDocumentLoader
func NewStaticDocumentLoader(documents map[string]string) *StaticDocumentLoader {
	return &StaticDocumentLoader{
		Documents: maps.Clone(documents),
	}
}

// Load returns the text registered for source
func (l *StaticDocumentLoader) Load(ctx context.Context, source string) (string, error) {
	text, ok := l.Documents[source]
	if !ok {
		return "", fmt.Errorf("load %s: %w", source, rag.ErrNotFound)
	}
	return text, nil
}
