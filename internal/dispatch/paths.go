package dispatch

import (
	"path"
	"path/filepath"
	"strings"
)

// Library categories carried through the remote conversion directory.
const (
	CategoryMovies = "movies"
	CategoryTV     = "tv"
	CategoryVideos = "videos"
)

// CategoryOf returns movies or tv when a directory of that name appears in
// p, and videos otherwise.
func CategoryOf(p string) string {
	segments := strings.Split(filepath.ToSlash(filepath.Dir(p)), "/")
	for _, seg := range segments {
		switch strings.ToLower(seg) {
		case CategoryMovies:
			return CategoryMovies
		case CategoryTV:
			return CategoryTV
		}
	}
	return CategoryVideos
}

// ShipPath returns the destination of local in a remote conversion directory.
func ShipPath(remoteDir, category, local string) string {
	if category == "" {
		category = CategoryOf(local)
	}
	return path.Join(remoteDir, category, filepath.Base(local))
}

// ReturnPath returns where a converted file lands on the control host.
func ReturnPath(returnBase, category, local string) string {
	return ShipPath(returnBase, category, local)
}
