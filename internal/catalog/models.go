package catalog

import "time"

// Video is a catalogued video file.
type Video struct {
	ID                int64  `json:"id"`
	Filename          string `json:"filename"`
	CDNPath           string `json:"cdn_path"`
	Title             string `json:"title"`
	EntertainmentType string `json:"entertainment_type"`
	ThumbnailID       int64  `json:"thumbnail_id,omitempty"`
	BrowserFriendly   bool   `json:"browser_friendly"`
	Uploaded          bool   `json:"uploaded"`
}

// Image is a catalogued image file, keyed by its base name.
type Image struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	CDNPath  string `json:"cdn_path"`
	Uploaded bool   `json:"uploaded"`
}

// Show is a TV show, keyed by the folder it lives in.
type Show struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ThumbnailID int64  `json:"thumbnail_id,omitempty"`
	ShowFolder  string `json:"show_folder"`
}

// Season belongs to one show and is unique on (show, number).
type Season struct {
	ID           int64 `json:"id"`
	ShowID       int64 `json:"show_id"`
	SeasonNumber int   `json:"season_number"`
}

// Episode links a video to a season and is unique on the video and on (season, number).
type Episode struct {
	ID            int64  `json:"id"`
	VideoID       int64  `json:"video_id"`
	ShowID        int64  `json:"show_id"`
	SeasonID      int64  `json:"season_id"`
	EpisodeNumber int    `json:"episode_number"`
	Description   string `json:"description,omitempty"`
}

// ConversionStatus is the tri-state outcome of a conversion.
type ConversionStatus string

const (
	ConversionPending   ConversionStatus = "pending"
	ConversionConverted ConversionStatus = "converted"
	ConversionFailed    ConversionStatus = "failed"
)

// ParseConversionStatus accepts the canonical status names.
func ParseConversionStatus(value string) (ConversionStatus, bool) {
	switch ConversionStatus(value) {
	case ConversionPending, ConversionConverted, ConversionFailed:
		return ConversionStatus(value), true
	default:
		return "", false
	}
}

// Conversion is a ledger record, one per original file.
type Conversion struct {
	ID                int64            `json:"id"`
	OriginalVideoID   int64            `json:"original_video_id,omitempty"`
	OriginalFilename  string           `json:"original_filename"`
	ConvertedFilename string           `json:"converted_filename"`
	Status            ConversionStatus `json:"conversion_status"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	Host              string           `json:"host"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
