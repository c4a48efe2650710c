package splitter

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators is the break priority used by the chunker: sentence
// terminators (ASCII then CJK) before line breaks before clause marks before
// spaces before a hard cut.
var DefaultSeparators = []string{
	".\n", "!\n", "?\n",
	". ", "! ", "? ",
	"！\n", "？\n", "。\n",
	"\n", "\r\n",
	"，", "？", "！", "。",
	" ",
	"",
}

// RecursiveCharacterTextSplitter recursively splits text while keeping related pieces together.
//
// At each level it picks the first separator that occurs in the text, splits
// on it keeping the separator at the head of the following piece, recurses into
// pieces that are still too long with the remaining separators, and greedily
// merges the small pieces back into chunks of at most chunkSize characters with
// up to chunkOverlap characters repeated between neighbours.
type RecursiveCharacterTextSplitter struct {
	separators   []string
	chunkSize    int
	chunkOverlap int
	lengthFunc   func(string) int
}

// RecursiveCharacterTextSplitterOption configures the RecursiveCharacterTextSplitter
type RecursiveCharacterTextSplitterOption func(*RecursiveCharacterTextSplitter)

// WithChunkSize sets the chunk size for the splitter
func WithChunkSize(size int) RecursiveCharacterTextSplitterOption {
	return func(s *RecursiveCharacterTextSplitter) {
		s.chunkSize = size
	}
}

// WithChunkOverlap sets the chunk overlap for the splitter
func WithChunkOverlap(overlap int) RecursiveCharacterTextSplitterOption {
	return func(s *RecursiveCharacterTextSplitter) {
		s.chunkOverlap = overlap
	}
}

// WithSeparators sets the custom separators for the splitter
func WithSeparators(separators []string) RecursiveCharacterTextSplitterOption {
	return func(s *RecursiveCharacterTextSplitter) {
		s.separators = separators
	}
}

// WithLengthFunction sets a custom length function
func WithLengthFunction(fn func(string) int) RecursiveCharacterTextSplitterOption {
	return func(s *RecursiveCharacterTextSplitter) {
		s.lengthFunc = fn
	}
}

// NewRecursiveCharacterTextSplitter creates a splitter with chunk size 500,
// overlap 200, DefaultSeparators and a character (rune) length function.
func NewRecursiveCharacterTextSplitter(opts ...RecursiveCharacterTextSplitterOption) *RecursiveCharacterTextSplitter {
	s := &RecursiveCharacterTextSplitter{
		separators:   DefaultSeparators,
		chunkSize:    500,
		chunkOverlap: 200,
		lengthFunc:   utf8.RuneCountInString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SplitText splits text into chunks
func (s *RecursiveCharacterTextSplitter) SplitText(text string) []string {
	return s.splitTextRecursive(text, s.separators)
}

func (s *RecursiveCharacterTextSplitter) splitTextRecursive(text string, separators []string) []string {
	separator := ""
	if len(separators) > 0 {
		separator = separators[len(separators)-1]
	}
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if s.lengthFunc(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.mergeSplits(good)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.splitTextRecursive(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.mergeSplits(good)...)
	}
	return final
}

// splitKeepSeparator splits on sep and glues each separator to the front of
// the piece that follows it. An empty sep splits into single characters.
func splitKeepSeparator(text, sep string) []string {
	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// mergeSplits greedily packs pieces into chunks. When a chunk is emitted,
// pieces are dropped from its front until what remains fits in the overlap
// window, and that tail seeds the next chunk.
func (s *RecursiveCharacterTextSplitter) mergeSplits(splits []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)

	for _, d := range splits {
		n := s.lengthFunc(d)
		if total+n > s.chunkSize && len(current) > 0 {
			if doc := joinDocs(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.chunkOverlap || (total+n > s.chunkSize && total > 0) {
				total -= s.lengthFunc(current[0])
				current = current[1:]
			}
		}
		current = append(current, d)
		total += n
	}

	if doc := joinDocs(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func joinDocs(docs []string) string {
	return strings.TrimSpace(strings.Join(docs, ""))
}
