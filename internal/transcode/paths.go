package transcode

import (
	"path/filepath"
	"strings"
)

// TempMarker tags in-progress outputs.
const TempMarker = ".converting."

// OutputExtension is the container every conversion produces.
const OutputExtension = ".mp4"

// TempPath returns the in-progress path for output: <dir>/<stem>.converting.<ext>.
func TempPath(output string) string {
	dir := filepath.Dir(output)
	base := filepath.Base(output)
	ext := filepath.Ext(base)
	if ext == "" {
		ext = OutputExtension
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+strings.TrimSuffix(TempMarker, ".")+ext)
}

// IsTempArtifact reports whether path names an in-progress output.
func IsTempArtifact(path string) bool {
	return strings.Contains(filepath.Base(path), TempMarker)
}

// OutputPath returns the browser-friendly sibling of input.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + OutputExtension
}
