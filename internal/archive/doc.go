// Package archive mirrors the observation log into Postgres.
//
// The archiver is optional and strictly a sink: the NDJSON log stays the
// source of truth, and archive failures never reach the poller. Rows are
// batched and flushed on size or interval, inserted append-only with
// ON CONFLICT DO NOTHING so replays are harmless.
package archive
