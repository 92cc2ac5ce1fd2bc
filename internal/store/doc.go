// Package store implements the durable price log.
//
// The log is newline-delimited JSON, one Observation per line, append
// order preserved. Appends are fsynced before they return and whole lines
// are written in a single call, so a reader never sees a partial
// Observation. A torn trailing line left by a crash mid-append is dropped
// on open; earlier entries are never touched.
package store
