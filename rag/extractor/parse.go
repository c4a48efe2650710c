package extractor

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/smallnest/hybridrag/rag"
)

// Item is one successfully parsed response line. Exactly one field is set.
type Item struct {
	Entity       *rag.ExtractedEntity
	Relationship *rag.ExtractedRelationship
}

// ParseLines lazily parses a line-oriented extraction response.
//
// Every non-blank line must be a JSON object. Objects with string keys e, desc
// and t are entities; objects with string keys x1, r, x2 and desc are
// relationships. Anything else is yielded as an error wrapping
// rag.ErrExtractionParseSkip, and iteration continues with the next line.
func ParseLines(response string) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		lineNo := 0
		for line := range strings.Lines(response) {
			lineNo++
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			item, err := parseLine(line)
			if err != nil {
				err = fmt.Errorf("line %d: %w: %w", lineNo, rag.ErrExtractionParseSkip, err)
			}
			if !yield(item, err) {
				return
			}
		}
	}
}

func parseLine(line string) (Item, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return Item{}, err
	}

	if e, desc, t, ok := strings3(obj, "e", "desc", "t"); ok {
		return Item{Entity: &rag.ExtractedEntity{
			Content: e,
			Type:    entityType(t),
			Desc:    desc,
		}}, nil
	}
	if x1, r, x2, ok := strings3(obj, "x1", "r", "x2"); ok {
		desc, isStr := obj["desc"].(string)
		x2 = strings.TrimSpace(x2)
		if isStr && x2 != "" {
			return Item{Relationship: &rag.ExtractedRelationship{
				Source:   x1,
				Relation: strings.TrimSpace(r),
				Target:   x2,
				Desc:     desc,
			}}, nil
		}
	}
	return Item{}, fmt.Errorf("unrecognized shape %q", line)
}

// parseQueryLine accepts {e, t} objects.
func parseQueryLine(line string) (rag.ExtractedEntity, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return rag.ExtractedEntity{}, err
	}
	e, okE := obj["e"].(string)
	t, okT := obj["t"].(string)
	if !okE || !okT || strings.TrimSpace(e) == "" {
		return rag.ExtractedEntity{}, fmt.Errorf("unrecognized shape %q", line)
	}
	return rag.ExtractedEntity{Content: strings.TrimSpace(e), Type: entityType(t)}, nil
}

// entityType maps a model-supplied type onto the two stored kinds. Anything
// other than "precise" is abstract.
func entityType(t string) rag.EntityType {
	if strings.EqualFold(strings.TrimSpace(t), string(rag.EntityPrecise)) {
		return rag.EntityPrecise
	}
	return rag.EntityAbstract
}

// strings3 returns the three keys as strings when all are present and the
// first is non-blank.
func strings3(obj map[string]any, a, b, c string) (string, string, string, bool) {
	va, okA := obj[a].(string)
	vb, okB := obj[b].(string)
	vc, okC := obj[c].(string)
	if !okA || !okB || !okC || strings.TrimSpace(va) == "" {
		return "", "", "", false
	}
	return strings.TrimSpace(va), vb, vc, true
}
