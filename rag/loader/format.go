package loader

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// noiseSelector matches page chrome that never carries document content.
const noiseSelector = "script, style, noscript, nav, header, footer, aside"

func htmlToText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	return normalizeLines(sel.Text()), nil
}

func markdownToText(body []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	rendered := markdown.ToHTML(body, p, nil)
	stripped := bluemonday.StrictPolicy().SanitizeBytes(rendered)
	return normalizeLines(html.UnescapeString(string(stripped)))
}

// normalizeLines trims every line and drops the blank ones.
func normalizeLines(s string) string {
	var out []string
	for line := range strings.Lines(s) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
