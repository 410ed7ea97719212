// Package ingest is the scan front end of the agent.
//
// A Scanner walks the media tree once per cycle. Each file is classified by
// extension and handled in isolation: videos are deduplicated against the
// catalog, skipped while they are still downloading, optionally renamed to a
// scrubbed name, catalogued and, when their container is not playable in a
// browser, handed to the dispatcher as a conversion job. TV episodes are
// linked to their show and season, browser-friendly videos receive a
// thumbnail, and images are catalogued by base name.
//
// A remote agent runs the same scan without a catalog: every
// non-browser-friendly file in its conversion directory becomes a local job,
// and converted outputs left behind by an earlier cycle are shipped back to
// the control host by ReturnPending.
//
// Errors and panics are contained per file. Scan returns an error only when
// the walk itself cannot start or the context is cancelled.
package ingest
