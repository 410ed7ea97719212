// Package store persists the media catalog and the conversion ledger.
//
// Store speaks database/sql to either SQLite (modernc.org/sqlite, the default
// for a single agent) or PostgreSQL (pgx stdlib, for a fleet sharing one
// catalog). Each dialect ships an embedded schema guarded by a
// schema_version row. Every logical key carries a UNIQUE constraint and a
// violation surfaces as catalog.ErrDuplicate so the cache-aside layer can
// resolve insert races. Transient failures (SQLite busy, PostgreSQL
// serialization conflicts, connections that are safe to retry) are retried
// with bounded exponential backoff.
package store
