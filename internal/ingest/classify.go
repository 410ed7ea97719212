package ingest

import (
	"path/filepath"
	"strings"
)

// Kind is the ingestion class of a file.
type Kind int

const (
	KindOther Kind = iota
	KindVideo
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindImage:
		return "image"
	default:
		return "other"
	}
}

var (
	browserFriendlyVideo = map[string]struct{}{
		".mp4": {},
	}
	nonBrowserFriendlyVideo = map[string]struct{}{
		".avi":  {},
		".mkv":  {},
		".wmv":  {},
		".flv":  {},
		".mov":  {},
		".mpg":  {},
		".mpeg": {},
		".m4v":  {},
		".ts":   {},
		".m2ts": {},
		".vob":  {},
		".3gp":  {},
		".webm": {},
	}
	imageTypes = map[string]struct{}{
		".jpg":  {},
		".jpeg": {},
		".png":  {},
		".gif":  {},
		".webp": {},
		".bmp":  {},
	}
)

// Classify returns the kind of path by its extension.
func Classify(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := browserFriendlyVideo[ext]; ok {
		return KindVideo
	}
	if _, ok := nonBrowserFriendlyVideo[ext]; ok {
		return KindVideo
	}
	if _, ok := imageTypes[ext]; ok {
		return KindImage
	}
	return KindOther
}

// IsBrowserFriendly reports whether path is a video browsers play natively.
func IsBrowserFriendly(path string) bool {
	_, ok := browserFriendlyVideo[strings.ToLower(filepath.Ext(path))]
	return ok
}

// NeedsConversion reports whether path is a video that must be converted.
func NeedsConversion(path string) bool {
	_, ok := nonBrowserFriendlyVideo[strings.ToLower(filepath.Ext(path))]
	return ok
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
