// Package sqlite provides a SQLite-backed id sequence for single-host ingestion.
//
// Use a file path to keep counters across restarts, or ":memory:" for a
// process-lifetime counter.
package sqlite
