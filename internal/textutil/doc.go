// Package textutil provides the filename and display-name helpers used during
// ingestion.
//
// ScrubFileName produces the web-safe base names the catalog stores,
// DisplayName turns a folder or file stem into a readable title, and
// ParseEpisode extracts season and episode numbers from TV file names.
package textutil
