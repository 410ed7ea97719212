package textutil

import (
	"path/filepath"
	"strings"
)

// scrubReplacer turns spaces into underscores and drops characters that break
// CDN URLs or shell quoting.
var scrubReplacer = strings.NewReplacer(
	" ", "_",
	"'", "",
	"`", "",
	"*", "",
	"{", "",
	"}", "",
	"[", "",
	"]", "",
	"(", "",
	")", "",
	">", "",
	"#", "",
	"+", "",
	"-", "",
	"!", "",
	"$", "",
)

// ScrubFileName cleans the base name of a file, keeping its extension.
// The result is empty only when every character of the stem is removed.
func ScrubFileName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stem = scrubReplacer.Replace(strings.TrimSpace(stem))
	if stem == "" {
		return ""
	}
	return stem + ext
}

// ScrubPath returns path with only its final element scrubbed.
func ScrubPath(path string) string {
	scrubbed := ScrubFileName(filepath.Base(path))
	if scrubbed == "" {
		return path
	}
	return filepath.Join(filepath.Dir(path), scrubbed)
}
