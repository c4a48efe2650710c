// Package log provides the leveled, printf-style logging interface used across hybridrag.
//
// The package-level default is backed by github.com/kataras/golog and prefixes every
// line with "[hybridrag] ". Components such as the retrieval engine, the extractor and
// the document loader accept a Logger; when none is given they fall back to the
// package-level logger via OrDefault.
//
// # Log Levels
//
//   - LogLevelDebug: skipped extraction lines, per-chunk progress
//   - LogLevelInfo: ingestion summaries
//   - LogLevelWarn: dropped relationships, retried downloads
//   - LogLevelError: failures surfaced to the caller
//   - LogLevelNone: disables all output
//
// # Example
//
//	log.SetLogLevel(log.LogLevelDebug)
//
//	g := golog.New()
//	g.SetOutput(os.Stdout)
//	eng, err := engine.NewRetrievalEngine(ctx, engine.Config{}, engine.Components{
//		Vector:   vectorStore,
//		Graph:    graphStore,
//		LLM:      llm,
//		Embedder: embedder,
//		Logger:   log.NewGologLogger(g),
//	})
//
// DefaultLogger (standard library) and NoOpLogger are also available for callers
// that want plain output or silence.
package log
