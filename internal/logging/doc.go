// Package logging assembles structured slog loggers and formatting helpers used
// across the media agent.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code can automatically tag
// log lines with video IDs, stages, dispatch hosts, and scan-cycle IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
