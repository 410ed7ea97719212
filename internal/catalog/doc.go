// Package catalog mediates every read and write of the media catalog.
//
// Table implements the cache-aside strategy once for every entity kind:
// reads try the cache, fall through to the durable Source on a miss, then
// populate the cache under every logical key of the value. Inserts are
// idempotent on the logical key, and the store's UNIQUE constraints settle
// concurrent insert races. Catalog wraps one Table per kind behind the
// operations the ingestion and conversion pipeline use, and doubles as the
// conversion ledger consumed by the queue package.
package catalog
