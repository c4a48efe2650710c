// Package extractor turns chunk text into entity and relationship stubs by
// prompting an LLM and parsing its line-oriented answer.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/smallnest/hybridrag/log"
	"github.com/smallnest/hybridrag/rag"
)

const (
	// DefaultEntityPrompt asks for one JSON object per line. %s is the chunk text.
	DefaultEntityPrompt = `
You extract a knowledge graph from text.

For every entity mentioned in the text, output one line:
{"e": "<entity name>", "t": "precise|abstract", "desc": "<what the text says about the entity>"}
Use "precise" when the entity names a specific thing (a person, product, place, id)
and "abstract" when it is a general concept or category.

For every relationship between two of those entities, output one line:
{"x1": "<source entity name>", "r": "<relation in snake_case>", "x2": "<target entity name>", "desc": "<what the text says about the relation>"}

Output only these lines, one JSON object per line, nothing else.

Text:
%s
`

	// DefaultQueryEntityPrompt classifies the entities in a question. %s is the question.
	DefaultQueryEntityPrompt = `
List the entities mentioned in the question below.
Classify each one as "precise" when it names a specific thing (a person, product, place, id)
or "abstract" when it is a general concept or category.

Output one line per entity and nothing else:
{"e": "<entity>", "t": "precise|abstract"}

Question:
%s
`
)

// Extractor prompts an LLM and parses the response. It owns no inference itself.
type Extractor struct {
	llm          rag.LLM
	logger       log.Logger
	entityPrompt string
	queryPrompt  string
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger used for skipped lines
func WithLogger(l log.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithEntityPrompt overrides the chunk extraction prompt. It must contain one %s.
func WithEntityPrompt(p string) Option {
	return func(e *Extractor) {
		e.entityPrompt = p
	}
}

// WithQueryEntityPrompt overrides the query classification prompt. It must contain one %s.
func WithQueryEntityPrompt(p string) Option {
	return func(e *Extractor) {
		e.queryPrompt = p
	}
}

// New creates an Extractor over llm
func New(llm rag.LLM, opts ...Option) *Extractor {
	e := &Extractor{
		llm:          llm,
		entityPrompt: DefaultEntityPrompt,
		queryPrompt:  DefaultQueryEntityPrompt,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = log.OrDefault(e.logger)
	return e
}

// Extract issues one LLM call for text and returns every well-formed entity
// and relationship line. Malformed lines are skipped. Blank or non-UTF-8 text
// is rejected with rag.ErrUnsupportedInput before the LLM is called.
func (e *Extractor) Extract(ctx context.Context, text string) (*rag.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: blank chunk", rag.ErrUnsupportedInput)
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: chunk is not valid UTF-8", rag.ErrUnsupportedInput)
	}
	resp, err := e.llm.Chat(ctx, fmt.Sprintf(e.entityPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("entity extraction: %w", err)
	}

	out := &rag.Extraction{}
	skipped := 0
	for item, err := range ParseLines(resp) {
		if err != nil {
			skipped++
			e.logger.Debug("extractor: %v", err)
			continue
		}
		if item.Entity != nil {
			out.Entities = append(out.Entities, *item.Entity)
		} else {
			out.Relationships = append(out.Relationships, *item.Relationship)
		}
	}
	if skipped > 0 {
		e.logger.Debug("extractor: skipped %d malformed lines", skipped)
	}
	return out, nil
}

// ExtractQueryEntities returns the entities named in a question, each tagged
// precise or abstract. Types other than "precise" are treated as abstract.
func (e *Extractor) ExtractQueryEntities(ctx context.Context, text string) ([]rag.ExtractedEntity, error) {
	resp, err := e.llm.Chat(ctx, fmt.Sprintf(e.queryPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("query entity extraction: %w", err)
	}

	var out []rag.ExtractedEntity
	for line := range strings.Lines(resp) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ent, err := parseQueryLine(line)
		if err != nil {
			e.logger.Debug("extractor: %v", errors.Join(rag.ErrExtractionParseSkip, err))
			continue
		}
		out = append(out, ent)
	}
	return out, nil
}
