package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/smallnest/hybridrag/rag"
	"github.com/tidwall/gjson"
)

// Chunker splits documents for extraction and embedding. JSON objects (or
// arrays of objects) are chunked field by field; everything else goes through
// the recursive character splitter.
type Chunker struct {
	splitter *RecursiveCharacterTextSplitter
}

var _ rag.Chunker = (*Chunker)(nil)

// NewChunker creates a chunker; options configure the underlying splitter.
func NewChunker(opts ...RecursiveCharacterTextSplitterOption) *Chunker {
	return &Chunker{splitter: NewRecursiveCharacterTextSplitter(opts...)}
}

// Chunk splits text into ordered segments.
func (c *Chunker) Chunk(text string) ([]string, error) {
	s := c.splitter
	if s.chunkSize <= 0 || s.chunkOverlap < 0 || s.chunkOverlap >= s.chunkSize {
		return nil, fmt.Errorf("%w: chunk size %d with overlap %d", rag.ErrInvalidArgument, s.chunkSize, s.chunkOverlap)
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", rag.ErrUnsupportedInput)
	}

	if chunks, ok := c.chunkJSON(text); ok {
		return chunks, nil
	}
	return s.SplitText(text), nil
}

// chunkJSON reports false when text is not a JSON object or array of objects.
func (c *Chunker) chunkJSON(text string) ([]string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return nil, false
	}

	doc := gjson.Parse(trimmed)
	var objects []gjson.Result
	switch {
	case doc.IsObject():
		objects = []gjson.Result{doc}
	case doc.IsArray():
		for _, item := range doc.Array() {
			if !item.IsObject() {
				return nil, false
			}
			objects = append(objects, item)
		}
		if len(objects) == 0 {
			return nil, false
		}
	default:
		return nil, false
	}

	var out []string
	for _, obj := range objects {
		out = append(out, c.chunkObject(obj)...)
	}
	return out, true
}

type jsonField struct {
	key    string
	value  string
	pieces []string
}

// chunkObject replicates obj once per sub-chunk of its longest string field.
// Fields that were split take their i-th piece (the last one once exhausted);
// all other fields repeat unchanged.
func (c *Chunker) chunkObject(obj gjson.Result) []string {
	var fields []jsonField
	replicas := 1
	obj.ForEach(func(key, value gjson.Result) bool {
		f := jsonField{key: key.String()}
		if value.Type == gjson.String {
			f.value = value.String()
			if c.splitter.lengthFunc(f.value) > c.splitter.chunkSize {
				f.pieces = c.splitter.SplitText(f.value)
				if len(f.pieces) == 0 {
					f.pieces = []string{""}
				}
				replicas = max(replicas, len(f.pieces))
			}
		} else {
			f.value = value.Raw
		}
		fields = append(fields, f)
		return true
	})

	out := make([]string, 0, replicas)
	for i := range replicas {
		var b strings.Builder
		for _, f := range fields {
			v := f.value
			if f.pieces != nil {
				v = f.pieces[min(i, len(f.pieces)-1)]
			}
			fmt.Fprintf(&b, "%s: %s\n", f.key, v)
		}
		out = append(out, b.String())
	}
	return out
}
