package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// quoteString renders a Go value as a Cypher literal.
func quoteString(i any) string {
	switch x := i.(type) {
	case string:
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		return `"` + r.Replace(x) + `"`
	case []string:
		parts := make([]string, len(x))
		for j, s := range x {
			parts[j] = quoteString(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "null"
	default:
		return quoteString(fmt.Sprint(x))
	}
}

// withParams prefixes q with a CYPHER parameter header, keys sorted.
func withParams(q string, params map[string]any) string {
	if len(params) == 0 {
		return q
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString("CYPHER")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, quoteString(params[k]))
	}
	b.WriteString(" ")
	b.WriteString(q)
	return b.String()
}

// Graph is a named FalkorDB graph reached over a Redis connection.
type Graph struct {
	Name string
	Conn redis.UniversalClient
}

// NewGraph creates a new graph handle.
func NewGraph(name string, conn redis.UniversalClient) Graph {
	return Graph{Name: name, Conn: conn}
}

// QueryResult represents the results of a query.
type QueryResult struct {
	Header     []string
	Results    [][]any
	Statistics []string
}

// Query executes a query against the graph.
func (g *Graph) Query(ctx context.Context, q string) (QueryResult, error) {
	qr := QueryResult{}

	res, err := g.Conn.Do(ctx, "GRAPH.QUERY", g.Name, q).Result()
	if err != nil {
		return qr, err
	}

	r, ok := res.([]any)
	if !ok {
		return qr, fmt.Errorf("unexpected response type: %T", res)
	}

	switch len(r) {
	case 3:
		if header, ok := r[0].([]any); ok {
			qr.Header = make([]string, len(header))
			for i, h := range header {
				qr.Header[i] = fmt.Sprint(h)
			}
		}
		qr.Results = parseRows(r[1])
		qr.Statistics = parseStats(r[2])
	case 1:
		// Write-only queries reply with statistics alone.
		qr.Statistics = parseStats(r[0])
	default:
		return qr, fmt.Errorf("unexpected response length: %d", len(r))
	}

	return qr, nil
}

func parseRows(v any) [][]any {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if vals, ok := row.([]any); ok {
			out = append(out, vals)
		}
	}
	return out
}

func parseStats(v any) []string {
	stats, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = fmt.Sprint(s)
	}
	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
