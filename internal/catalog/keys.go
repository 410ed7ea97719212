package catalog

import (
	"strconv"
	"strings"
)

// Key fields understood by every Source implementation.
const (
	FieldID               = "id"
	FieldTitle            = "title"
	FieldFilename         = "filename"
	FieldFileName         = "file_name"
	FieldShowFolder       = "show_folder"
	FieldShowSeason       = "show_season"
	FieldVideoID          = "video_id"
	FieldSeasonEpisode    = "season_episode"
	FieldOriginalFilename = "original_filename"
)

// Key addresses one catalog entry by a single field.
type Key struct {
	Field string
	Value string
}

// String renders the cache key form "field:value".
func (k Key) String() string {
	return k.Field + ":" + k.Value
}

// IDKey addresses an entry by its store-assigned identifier.
func IDKey(id int64) Key {
	return Key{Field: FieldID, Value: strconv.FormatInt(id, 10)}
}

// PairKey encodes a composite key such as (show_id, season_number).
func PairKey(field string, a int64, b int) Key {
	return Key{Field: field, Value: strconv.FormatInt(a, 10) + "/" + strconv.Itoa(b)}
}

// ParsePair decodes the value of a PairKey.
func ParsePair(value string) (int64, int, bool) {
	left, right, ok := strings.Cut(value, "/")
	if !ok {
		return 0, 0, false
	}
	a, err := strconv.ParseInt(left, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(right)
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

// ParseID decodes the value of an IDKey.
func ParseID(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
