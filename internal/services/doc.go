// Package services defines shared utilities consumed by the ingestion,
// conversion, and dispatch pipeline.
//
// Key responsibilities:
//   - Context helpers that stamp video IDs, stage names, dispatch hosts, and
//     scan-cycle correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (retry a transfer, fail a conversion, abort the cycle).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across the agent.
package services
