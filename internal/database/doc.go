// Package database provides the connection pool for the archive mirror.
//
// Only the archiver talks to Postgres; the tracker itself runs entirely
// off the local log file.
package database
